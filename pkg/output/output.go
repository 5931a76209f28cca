package output

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/tracked-rc/go-controller/pkg/gamepad"
	"github.com/tracked-rc/go-controller/pkg/pca9685"
)

type Kind string

const (
	KindServo Kind = "servo"
	KindPWM   Kind = "pwm"
)

// Setter is the PWM board, normally a pca9685.Interface.
type Setter interface {
	SetServo(port int, value float64) error
	SetPWM(port int, value float64) error
}

// Binding routes one gamepad channel to one PWM port.
type Binding struct {
	Channel gamepad.Channel
	Port    int
	Kind    Kind
	Invert  bool
}

func (b Binding) Validate() error {
	if !b.Channel.Valid() {
		return fmt.Errorf("invalid channel %v", b.Channel)
	}
	if b.Port < 0 || b.Port >= pca9685.NumPorts {
		return fmt.Errorf("%v: port %d out of range", b.Channel, b.Port)
	}
	switch b.Kind {
	case KindServo, KindPWM, "":
	default:
		return fmt.Errorf("%v: unknown output kind %q", b.Channel, b.Kind)
	}
	return nil
}

// Value maps a channel reading onto the 0..1 range the board expects.
// Axes are centred on 0.5; triggers and buttons are already 0..1.
func (b Binding) Value(s gamepad.State) float64 {
	v := s.Get(b.Channel)
	if b.Channel.Kind() == gamepad.KindAxis {
		if b.Invert {
			v = -v
		}
		return (v + 1) / 2
	}
	if b.Invert {
		return 1 - v
	}
	return v
}

// Output writes gamepad snapshots to PWM ports.
type Output struct {
	setter   Setter
	bindings []Binding
}

func New(setter Setter, bindings []Binding) (*Output, error) {
	seen := map[int]gamepad.Channel{}
	for _, b := range bindings {
		if err := b.Validate(); err != nil {
			return nil, err
		}
		if other, ok := seen[b.Port]; ok {
			return nil, fmt.Errorf("port %d bound to both %v and %v", b.Port, other, b.Channel)
		}
		seen[b.Port] = b.Channel
	}
	return &Output{
		setter:   setter,
		bindings: bindings,
	}, nil
}

func (o *Output) Bindings() []Binding {
	return o.bindings
}

// Apply writes every bound channel of s. It carries on past a failing port
// and returns the first error.
func (o *Output) Apply(s gamepad.State) error {
	var firstErr error
	for _, b := range o.bindings {
		var err error
		if b.Kind == KindPWM {
			err = o.setter.SetPWM(b.Port, b.Value(s))
		} else {
			err = o.setter.SetServo(b.Port, b.Value(s))
		}
		if err != nil && firstErr == nil {
			firstErr = errors.Wrapf(err, "setting port %d (%v)", b.Port, b.Channel)
		}
	}
	return firstErr
}

// Neutral writes the all-zero snapshot: servos centred, PWM off.
func (o *Output) Neutral() error {
	return o.Apply(gamepad.State{})
}

// Describe lists the bindings, one per line.
func (o *Output) Describe() string {
	s := ""
	for _, b := range o.bindings {
		kind := b.Kind
		if kind == "" {
			kind = KindServo
		}
		s += fmt.Sprintf("  %-15v -> %s %d", b.Channel, kind, b.Port)
		if b.Invert {
			s += " (inverted)"
		}
		s += "\n"
	}
	return s
}
