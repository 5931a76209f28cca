package main

import (
	"context"
	"fmt"
	"log"
	"runtime"
	"time"

	"github.com/alecthomas/kong"
	"periph.io/x/periph/host"

	"github.com/tracked-rc/go-controller/pkg/config"
	"github.com/tracked-rc/go-controller/pkg/gamepad"
	"github.com/tracked-rc/go-controller/pkg/joystick"
	"github.com/tracked-rc/go-controller/pkg/output"
	"github.com/tracked-rc/go-controller/pkg/pca9685"
	"github.com/tracked-rc/go-controller/pkg/shutdown"
	"github.com/tracked-rc/go-controller/pkg/sound"
)

var CLI struct {
	Config   string `help:"Path to the YAML config." default:"${config_path}" type:"path"`
	Device   string `help:"Gamepad device node, overrides the config." env:"JOYSTICK_DEVICE"`
	Simulate bool   `help:"Log PWM writes instead of using the I2C bus."`
	Verbose  bool   `help:"Log every PWM write."`
}

func main() {
	kong.Parse(&CLI,
		kong.Description("Drive a tracked vehicle from an Xbox-style gamepad."),
		kong.Vars{"config_path": config.DefaultPath})

	fmt.Println("---- trackctl ----")
	fmt.Println("GOMAXPROCS", runtime.GOMAXPROCS(0))

	cfg, err := config.Load(CLI.Config)
	if err != nil {
		log.Fatalln("Failed to load config:", err)
	}
	if CLI.Device != "" {
		cfg.Gamepad.Device = CLI.Device
	}
	if CLI.Simulate {
		cfg.PWM.Simulate = true
	}
	if CLI.Verbose {
		cfg.PWM.Verbose = true
	}

	// Our global context, we cancel it to trigger shutdown.
	ctx, cancel := context.WithCancel(context.Background())

	// Hook Ctrl-C etc.
	shutdown.RegisterSignalHandlers(cancel)

	pwm := initPWM(cfg)
	defer pwm.Close()

	bindings, err := cfg.Bindings()
	if err != nil {
		log.Fatalln("Bad output bindings:", err)
	}
	out, err := output.New(pwm, bindings)
	if err != nil {
		log.Fatalln("Bad output bindings:", err)
	}
	fmt.Print("Input mappings:\n", out.Describe())
	defer func() {
		fmt.Println("Zeroing outputs for shut down")
		if err := out.Neutral(); err != nil {
			fmt.Println("Failed to zero outputs:", err)
		}
	}()

	player := sound.NewPlayer()
	defer player.Close()

	src := joystick.NewSource(cfg.Gamepad.Device, cfg.Gamepad.Legacy)
	defer src.Close()

	opts := append(cfg.MonitorOptions(), gamepad.WithStateChangeHook(func(from, to gamepad.ConnState) {
		fmt.Printf("JOYSTICK: %v -> %v\n", from, to)
		switch to {
		case gamepad.Connected:
			player.Play(cfg.Sounds.Connected)
		case gamepad.Retrying:
			player.Play(cfg.Sounds.Disconnected)
		case gamepad.GivenUp:
			player.Play(cfg.Sounds.GivenUp)
		}
	}))
	monitor := gamepad.New(src, opts...)
	monitor.Start(ctx)
	defer monitor.Stop()

	loop(ctx, monitor, out, cfg.UpdateInterval)
}

func initPWM(cfg config.Config) pca9685.Interface {
	var pwm pca9685.Interface
	if !cfg.PWM.Simulate {
		// Make sure periph is initialized.
		if _, err := host.Init(); err != nil {
			fmt.Println("Failed to initialise host drivers:", err)
		} else if pwm, err = pca9685.New(cfg.PWM.Bus, cfg.PWMFrequency()); err != nil {
			fmt.Println("Failed to open PCA9685, falling back to simulation:", err)
			pwm = nil
		}
	}
	if pwm == nil {
		pwm = pca9685.Dummy(cfg.PWM.Verbose)
	}
	if err := pwm.Configure(); err != nil {
		fmt.Println("Failed to configure PCA9685, falling back to simulation:", err)
		_ = pwm.Close()
		pwm = pca9685.Dummy(cfg.PWM.Verbose)
	}
	return pwm
}

// loop copies gamepad snapshots to the outputs until ctx is cancelled. The
// outputs are held neutral whenever the gamepad is not connected.
func loop(ctx context.Context, monitor *gamepad.Monitor, out *output.Output, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	watchdog := time.NewTicker(5 * time.Second)
	defer watchdog.Stop()

	monitorDone := monitor.Done()
	for {
		select {
		case <-ctx.Done():
			fmt.Println("Context done, shutting down")
			return
		case <-monitorDone:
			fmt.Println("Gamepad monitoring stopped:", monitor.Err())
			monitorDone = nil
		case <-ticker.C:
			var err error
			if monitor.IsConnected() {
				err = out.Apply(monitor.Read())
			} else {
				err = out.Neutral()
			}
			if err != nil {
				fmt.Println("Failed to update outputs:", err)
			}
		case <-watchdog.C:
			fmt.Printf("Main loop still running, gamepad %v\n", monitor.ConnState())
		}
	}
}
