package joystick

import (
	"bytes"
	"context"
	"encoding/binary"
	"os"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/tracked-rc/go-controller/pkg/gamepad"
)

// inputEvent mirrors struct input_event from linux/input.h.
type inputEvent struct {
	Time  unix.Timeval
	Type  uint16
	Code  uint16
	Value int32
}

// absInfo mirrors struct input_absinfo.
type absInfo struct {
	Value      int32
	Minimum    int32
	Maximum    int32
	Fuzz       int32
	Flat       int32
	Resolution int32
}

const (
	inputEventSize = int(unsafe.Sizeof(inputEvent{}))

	synDropped = 0x03
)

// EventDevice reads an evdev node such as /dev/input/event3.
type EventDevice struct {
	file    *os.File
	name    string
	readBuf []byte

	// Events of the report currently being assembled.
	pending  []gamepad.Event
	dropping bool

	// resync reports the current value of every mapped code. It replaces
	// the events lost to a SYN_DROPPED.
	resync func() ([]gamepad.Event, error)
}

func OpenEventDevice(path string) (*EventDevice, error) {
	f, err := openDevice(path)
	if err != nil {
		return nil, err
	}
	name, err := ioctlName(f, eviocgName)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	d := &EventDevice{
		file:    f,
		name:    name,
		readBuf: make([]byte, 64*inputEventSize),
	}
	d.resync = d.queryState
	return d, nil
}

func (d *EventDevice) Name() string {
	return d.name
}

func (d *EventDevice) Path() string {
	return d.file.Name()
}

// ReadEvents blocks until at least one complete report (terminated by
// SYN_REPORT) has arrived and returns the events of every complete report.
func (d *EventDevice) ReadEvents(ctx context.Context) ([]gamepad.Event, error) {
	for {
		n, err := readContext(ctx, d.file, d.readBuf)
		if err != nil {
			return nil, err
		}
		batch, ok, err := d.decode(d.readBuf[:n-n%inputEventSize])
		if err != nil {
			return nil, err
		}
		if ok {
			return batch, nil
		}
	}
}

func (d *EventDevice) decode(buf []byte) ([]gamepad.Event, bool, error) {
	complete := -1
	r := bytes.NewReader(buf)
	for r.Len() > 0 {
		var ev inputEvent
		if binary.Read(r, binary.LittleEndian, &ev) != nil {
			break
		}
		if ev.Type != gamepad.EvSyn {
			if !d.dropping {
				d.pending = append(d.pending, gamepad.Event{Type: ev.Type, Code: ev.Code, Value: ev.Value})
			}
			continue
		}
		switch ev.Code {
		case gamepad.SynReport:
			if d.dropping {
				d.dropping = false
				state, err := d.resync()
				if err != nil {
					return nil, false, errors.Wrap(err, "resyncing after SYN_DROPPED")
				}
				d.pending = append(d.pending, state...)
			}
			complete = len(d.pending)
		case synDropped:
			// The kernel buffer overran; discard up to the next report.
			d.dropping = true
			if complete >= 0 {
				d.pending = d.pending[:complete]
			} else {
				d.pending = nil
			}
		}
	}
	if complete < 0 {
		return nil, false, nil
	}
	batch := make([]gamepad.Event, complete)
	copy(batch, d.pending)
	d.pending = append(d.pending[:0], d.pending[complete:]...)
	return batch, true, nil
}

// queryState reads the current key bitmap and axis values from the kernel.
func (d *EventDevice) queryState() ([]gamepad.Event, error) {
	var keys [keyBytes]byte
	if err := ioctl(d.file, eviocgKey, unsafe.Pointer(&keys)); err != nil {
		return nil, err
	}
	var events []gamepad.Event
	for _, code := range gamepad.MappedCodes(gamepad.EvKey) {
		value := int32(keys[code/8]>>(code%8)) & 1
		events = append(events, gamepad.Event{Type: gamepad.EvKey, Code: code, Value: value})
	}
	for _, code := range gamepad.MappedCodes(gamepad.EvAbs) {
		var info absInfo
		if err := ioctl(d.file, eviocgAbs+uintptr(code), unsafe.Pointer(&info)); err != nil {
			if errors.Is(err, unix.EINVAL) {
				// No such axis on this pad.
				continue
			}
			return nil, err
		}
		events = append(events, gamepad.Event{Type: gamepad.EvAbs, Code: code, Value: info.Value})
	}
	return events, nil
}

func (d *EventDevice) Close() error {
	return d.file.Close()
}
