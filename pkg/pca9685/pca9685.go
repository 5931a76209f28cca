package pca9685

import (
	"fmt"
	"math"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/exp/io/i2c"
	"periph.io/x/periph/conn/physic"
)

const (
	DefaultAddr = 0x40

	RegMode1 = 0x00
	RegMode2 = 0x01

	// Each PWM output has two 16-bit (low byte first) registers.
	// First register is the on time, second is the off time.
	RegLEDBase = 0x06

	RegPreScale = 0xfe // Pre-scaler for PWM frequency.
	RegTestMode = 0xff

	NumPorts = 16

	PWMMax = 4095

	OscillatorFrequency = 25 * physic.MegaHertz
	DefaultFrequency    = 50 * physic.Hertz

	ServoMinPulseDuration = 1000 * time.Microsecond
	ServoMaxPulseDuration = 2000 * time.Microsecond
)

type Interface interface {
	Configure() error
	SetServo(port int, value float64) error
	SetPWM(port int, value float64) error
	Close() error
}

// PreScale is the prescaler register value for the given output frequency.
func PreScale(freq physic.Frequency) byte {
	v := math.Round(float64(OscillatorFrequency)/(4096*float64(freq))) - 1
	if v < 3 {
		v = 3
	} else if v > 255 {
		v = 255
	}
	return byte(v)
}

// Period is the length of one PWM cycle.
func Period(freq physic.Frequency) time.Duration {
	return time.Duration(float64(time.Second) * float64(physic.Hertz) / float64(freq))
}

// ServoRange returns the PWM counts for the shortest and longest servo pulse.
func ServoRange(freq physic.Frequency) (min, max float64) {
	period := Period(freq)
	min = PWMMax * float64(ServoMinPulseDuration) / float64(period)
	max = PWMMax * float64(ServoMaxPulseDuration) / float64(period)
	return
}

type PCA9685 struct {
	dev  *i2c.Device
	freq physic.Frequency

	servoMinPWM, servoMaxPWM float64
}

func New(deviceFile string, freq physic.Frequency) (Interface, error) {
	if freq <= 0 {
		freq = DefaultFrequency
	}
	dev, err := i2c.Open(&i2c.Devfs{Dev: deviceFile}, DefaultAddr)
	if err != nil {
		return nil, errors.Wrapf(err, "opening PCA9685 on %s", deviceFile)
	}
	p := &PCA9685{
		dev:  dev,
		freq: freq,
	}
	p.servoMinPWM, p.servoMaxPWM = ServoRange(freq)
	return p, nil
}

func (p *PCA9685) Configure() (err error) {
	// Put device to sleep.
	err = p.dev.WriteReg(RegMode1, []byte{0x11})
	if err != nil {
		return
	}
	// Prescaler can only be written while asleep.
	err = p.dev.WriteReg(RegPreScale, []byte{PreScale(p.freq)})
	if err != nil {
		return
	}
	// Trigger a reset
	err = p.dev.WriteReg(RegMode1, []byte{0x01})
	if err != nil {
		return
	}
	// Required delay after reset.
	time.Sleep(1 * time.Millisecond)
	// Enable.
	err = p.dev.WriteReg(RegMode1, []byte{0x81})
	return
}

func (p *PCA9685) SetServo(port int, value float64) error {
	if err := checkPort(port); err != nil {
		return err
	}
	value = clamp(value)
	pwmValue := uint16(p.servoMinPWM + value*(p.servoMaxPWM-p.servoMinPWM))
	return p.write(port, pwmValue)
}

func (p *PCA9685) SetPWM(port int, value float64) error {
	if err := checkPort(port); err != nil {
		return err
	}
	return p.write(port, uint16(PWMMax*clamp(value)))
}

func (p *PCA9685) write(port int, pwmValue uint16) error {
	addr := RegLEDBase + port*4
	return p.dev.WriteReg(byte(addr), []byte{0, 0, byte(pwmValue & 0xff), byte(pwmValue >> 8)})
}

func (p *PCA9685) Close() error {
	return p.dev.Close()
}

func checkPort(port int) error {
	if port < 0 || port >= NumPorts {
		return fmt.Errorf("PWM port %d out of range", port)
	}
	return nil
}

func clamp(value float64) float64 {
	if value < 0 {
		return 0
	} else if value > 1 {
		return 1
	}
	return value
}

// Dummy returns a controller that only logs, for running without hardware.
func Dummy(verbose bool) Interface {
	return &dummyServo{verbose: verbose}
}

type dummyServo struct {
	verbose bool
}

func (*dummyServo) Configure() error {
	fmt.Println("PWM: simulated PCA9685 configured")
	return nil
}

func (d *dummyServo) SetServo(port int, value float64) error {
	if err := checkPort(port); err != nil {
		return err
	}
	if d.verbose {
		fmt.Printf("PWM: servo %d = %.3f\n", port, clamp(value))
	}
	return nil
}

func (d *dummyServo) SetPWM(port int, value float64) error {
	if err := checkPort(port); err != nil {
		return err
	}
	if d.verbose {
		fmt.Printf("PWM: pwm %d = %.3f\n", port, clamp(value))
	}
	return nil
}

func (*dummyServo) Close() error {
	return nil
}
