package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/pkg/errors"
	"periph.io/x/periph/conn/physic"
	"periph.io/x/periph/host"

	"github.com/tracked-rc/go-controller/pkg/pca9685"
)

var Flags struct {
	Bus       string `help:"I2C bus device." default:"/dev/i2c-1"`
	Frequency int    `help:"PWM frequency in Hz." default:"50"`
	Simulate  bool   `help:"Log writes instead of using the bus."`
}

// Commands read from stdin, one per line.
var CLI struct {
	Quit    QuitCmd    `cmd:"" help:"Quit."`
	Servo   ServoCmd   `cmd:"" aliases:"s" help:"Set a port to a servo position."`
	PWM     PWMCmd     `cmd:"" name:"pwm" aliases:"p" help:"Set a port to a raw duty cycle."`
	Neutral NeutralCmd `cmd:"" help:"Centre every port."`
}

type Context struct {
	pwm pca9685.Interface
}

type ServoCmd struct {
	Port     int     `arg:"" help:"Port number 0-15."`
	Position float64 `arg:"" help:"Servo position 0.0-1.0; 0.5=centre."`
}

func (c *ServoCmd) Run(ctx *Context) error {
	fmt.Printf("Setting servo %d to %f\n", c.Port, c.Position)
	return ctx.pwm.SetServo(c.Port, c.Position)
}

type PWMCmd struct {
	Port int     `arg:"" help:"Port number 0-15."`
	Duty float64 `arg:"" help:"Duty cycle 0.0-1.0; 0=fully off, 1.0=fully on."`
}

func (c *PWMCmd) Run(ctx *Context) error {
	fmt.Printf("Setting PWM %d to %f\n", c.Port, c.Duty)
	return ctx.pwm.SetPWM(c.Port, c.Duty)
}

type NeutralCmd struct{}

func (NeutralCmd) Run(ctx *Context) error {
	for port := 0; port < pca9685.NumPorts; port++ {
		if err := ctx.pwm.SetServo(port, 0.5); err != nil {
			return err
		}
	}
	return nil
}

type QuitCmd struct{}

func (QuitCmd) Run(ctx *Context) error {
	return Quit
}

var Quit = errors.New("Quit")

func main() {
	fmt.Println("---- servotests ----")
	kong.Parse(&Flags, kong.Description("Interactive PCA9685 port tests."))

	freq := physic.Frequency(Flags.Frequency) * physic.Hertz
	ctx := &Context{}
	if Flags.Simulate {
		ctx.pwm = pca9685.Dummy(true)
	} else {
		if _, err := host.Init(); err != nil {
			fmt.Println("Failed to initialise host drivers", err)
			return
		}
		var err error
		ctx.pwm, err = pca9685.New(Flags.Bus, freq)
		if err != nil {
			fmt.Println("Failed to open PCA9685", err)
			return
		}
	}
	defer ctx.pwm.Close()

	if err := ctx.pwm.Configure(); err != nil {
		fmt.Println("Failed to configure PCA9685", err)
		return
	}
	min, max := pca9685.ServoRange(freq)
	fmt.Printf("Prescale 0x%02x, period %v, servo counts %.1f-%.1f\n",
		pca9685.PreScale(freq), pca9685.Period(freq), min, max)

	k, err := kong.New(&CLI, kong.Name("servotests"), kong.Exit(func(int) {}))
	if err != nil {
		panic(err)
	}

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		args := strings.Fields(scanner.Text())
		if len(args) == 0 {
			continue
		}
		parsed, err := k.Parse(args)
		if err != nil {
			fmt.Println("parse error:", err)
			continue
		}
		err = parsed.Run(ctx)
		if err == Quit {
			break
		} else if err != nil {
			fmt.Println("ERROR:", err)
		}
	}
}
