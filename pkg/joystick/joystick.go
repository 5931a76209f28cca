package joystick

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"time"
	"unsafe"

	"github.com/tracked-rc/go-controller/pkg/gamepad"
)

// The joystick API (/dev/input/jsN) numbers axes and buttons densely and
// rescales every axis to -32767..32767. The driver's axis and button maps
// translate those numbers back to evdev codes; for an Xbox pad on xpad:
//
// Axes
//
//    0 ABS_X      3 ABS_RX     6 ABS_HAT0X
//    1 ABS_Y      4 ABS_RY     7 ABS_HAT0Y
//    2 ABS_Z      5 ABS_RZ
//
// Buttons
//
//    0 BTN_SOUTH  3 BTN_WEST   6 BTN_SELECT   9 BTN_THUMBL
//    1 BTN_EAST   4 BTN_TL     7 BTN_START   10 BTN_THUMBR
//    2 BTN_NORTH  5 BTN_TR     8 BTN_MODE
//
// Triggers are mapped back from -32767..32767 to 0..255 so the monitor can
// normalize them the same way as evdev triggers.

type EventType uint8

const (
	EventTypeButton EventType = 0x01
	EventTypeAxis   EventType = 0x02
	EventTypeInit   EventType = 0x80
)

func (e EventType) String() string {
	switch e & 0x7f {
	case EventTypeAxis:
		return "axis"
	case EventTypeButton:
		return "button"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(e))
	}
}

type rawEvent struct {
	Time   uint32
	Value  int16
	Type   uint8
	Number uint8
}

const rawEventSize = 8

// Event is one joystick API event, timestamped against the wall clock.
type Event struct {
	Time   time.Time
	Value  int16
	Type   EventType
	Number uint8
}

func (e *Event) String() string {
	return fmt.Sprintf("%v(%v)=%v", e.Type, e.Number, e.Value)
}

// LegacyDevice reads a joystick API node such as /dev/input/js0.
type LegacyDevice struct {
	file    *os.File
	name    string
	readBuf [64 * rawEventSize]byte

	axes    uint8
	buttons uint8
	axMap   [64]uint8
	btnMap  [512]uint16

	deviceEpoch    uint32
	wallclockEpoch time.Time
}

func OpenLegacyDevice(path string) (*LegacyDevice, error) {
	f, err := openDevice(path)
	if err != nil {
		return nil, err
	}
	d := &LegacyDevice{file: f}
	if err := d.queryMaps(); err != nil {
		_ = f.Close()
		return nil, err
	}
	return d, nil
}

func (d *LegacyDevice) queryMaps() (err error) {
	if d.name, err = ioctlName(d.file, jsiocgName); err != nil {
		return
	}
	if err = ioctl(d.file, jsiocgAxes, unsafe.Pointer(&d.axes)); err != nil {
		return
	}
	if err = ioctl(d.file, jsiocgButtons, unsafe.Pointer(&d.buttons)); err != nil {
		return
	}
	if err = ioctl(d.file, jsiocgAxMap, unsafe.Pointer(&d.axMap)); err != nil {
		return
	}
	return ioctl(d.file, jsiocgBtnMap, unsafe.Pointer(&d.btnMap))
}

func (d *LegacyDevice) Name() string {
	return d.name
}

func (d *LegacyDevice) Path() string {
	return d.file.Name()
}

// ReadRawEvents returns every joystick API event available from one read.
func (d *LegacyDevice) ReadRawEvents(ctx context.Context) ([]*Event, error) {
	n, err := readContext(ctx, d.file, d.readBuf[:])
	if err != nil {
		return nil, err
	}
	return d.decodeRaw(d.readBuf[:n-n%rawEventSize])
}

func (d *LegacyDevice) decodeRaw(buf []byte) ([]*Event, error) {
	var events []*Event
	r := bytes.NewReader(buf)
	for r.Len() > 0 {
		var raw rawEvent
		if err := binary.Read(r, binary.LittleEndian, &raw); err != nil {
			return nil, err
		}
		if d.deviceEpoch == 0 {
			d.deviceEpoch = raw.Time
			d.wallclockEpoch = time.Now()
		}
		events = append(events, &Event{
			Time:   d.wallclockEpoch.Add(time.Duration(raw.Time-d.deviceEpoch) * time.Millisecond),
			Value:  raw.Value,
			Type:   EventType(raw.Type),
			Number: raw.Number,
		})
	}
	return events, nil
}

// ReadEvents returns the next batch translated into evdev codes.
func (d *LegacyDevice) ReadEvents(ctx context.Context) ([]gamepad.Event, error) {
	raw, err := d.ReadRawEvents(ctx)
	if err != nil {
		return nil, err
	}
	events := make([]gamepad.Event, 0, len(raw))
	for _, e := range raw {
		if ev, ok := d.translate(e); ok {
			events = append(events, ev)
		}
	}
	return events, nil
}

func (d *LegacyDevice) translate(e *Event) (gamepad.Event, bool) {
	switch e.Type &^ EventTypeInit {
	case EventTypeAxis:
		if int(e.Number) >= len(d.axMap) {
			return gamepad.Event{}, false
		}
		code := uint16(d.axMap[e.Number])
		value := int32(e.Value)
		if code == gamepad.AbsZ || code == gamepad.AbsRZ {
			value = (value + 32767) * 255 / 65534
		}
		return gamepad.Event{Type: gamepad.EvAbs, Code: code, Value: value}, true
	case EventTypeButton:
		if int(e.Number) >= len(d.btnMap) {
			return gamepad.Event{}, false
		}
		return gamepad.Event{Type: gamepad.EvKey, Code: d.btnMap[e.Number], Value: int32(e.Value)}, true
	default:
		return gamepad.Event{}, false
	}
}

func (d *LegacyDevice) Close() error {
	return d.file.Close()
}

// Axes and Buttons are the counts reported by the driver.
func (d *LegacyDevice) Axes() int {
	return int(d.axes)
}

func (d *LegacyDevice) Buttons() int {
	return int(d.buttons)
}
