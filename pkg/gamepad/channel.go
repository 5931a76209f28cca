package gamepad

import (
	"fmt"
)

// Channel mapping (canonical index order, as returned by State.Values):
//
//    0  LeftJoystickY      10 Y
//    1  LeftJoystickX      11 B
//    2  RightJoystickY     12 LeftThumb
//    3  RightJoystickX     13 RightThumb
//    4  LeftTrigger        14 Back
//    5  RightTrigger       15 Start
//    6  LeftBumper         16 LeftDPad
//    7  RightBumper        17 RightDPad
//    8  A                  18 UpDPad
//    9  X                  19 DownDPad

type Channel uint8

const (
	LeftJoystickY Channel = iota
	LeftJoystickX
	RightJoystickY
	RightJoystickX
	LeftTrigger
	RightTrigger
	LeftBumper
	RightBumper
	A
	X
	Y
	B
	LeftThumb
	RightThumb
	Back
	Start
	LeftDPad
	RightDPad
	UpDPad
	DownDPad

	NumChannels = int(DownDPad) + 1
)

var channelNames = [NumChannels]string{
	"LeftJoystickY",
	"LeftJoystickX",
	"RightJoystickY",
	"RightJoystickX",
	"LeftTrigger",
	"RightTrigger",
	"LeftBumper",
	"RightBumper",
	"A",
	"X",
	"Y",
	"B",
	"LeftThumb",
	"RightThumb",
	"Back",
	"Start",
	"LeftDPad",
	"RightDPad",
	"UpDPad",
	"DownDPad",
}

// Kind says how a channel's raw value is normalized.
type Kind uint8

const (
	KindAxis Kind = iota
	KindTrigger
	KindButton
)

func (k Kind) String() string {
	switch k {
	case KindAxis:
		return "axis"
	case KindTrigger:
		return "trigger"
	case KindButton:
		return "button"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

func (c Channel) Valid() bool {
	return int(c) < NumChannels
}

func (c Channel) String() string {
	if !c.Valid() {
		return fmt.Sprintf("Channel(%d)", uint8(c))
	}
	return channelNames[c]
}

func (c Channel) Kind() Kind {
	switch c {
	case LeftJoystickY, LeftJoystickX, RightJoystickY, RightJoystickX:
		return KindAxis
	case LeftTrigger, RightTrigger:
		return KindTrigger
	default:
		return KindButton
	}
}

// ParseChannel looks a channel up by its name, e.g. "LeftJoystickY".
func ParseChannel(name string) (Channel, error) {
	for i, n := range channelNames {
		if n == name {
			return Channel(i), nil
		}
	}
	return 0, fmt.Errorf("unknown channel %q", name)
}

// AllChannels returns every channel in canonical order.
func AllChannels() []Channel {
	chs := make([]Channel, NumChannels)
	for i := range chs {
		chs[i] = Channel(i)
	}
	return chs
}
