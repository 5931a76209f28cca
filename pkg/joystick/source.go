package joystick

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/tracked-rc/go-controller/pkg/gamepad"
)

const inputPath = "/dev/input"

// Device is an open gamepad node.
type Device interface {
	Name() string
	Path() string
	ReadEvents(ctx context.Context) ([]gamepad.Event, error)
	Close() error
}

// Source feeds a gamepad.Monitor from a Linux input device. The device is
// opened lazily and closed whenever it disappears, so a replugged pad is
// found again by the next Probe.
type Source struct {
	// Path of the device node; empty means pick the first gamepad found.
	Path string
	// Legacy selects the joystick API (/dev/input/jsN) instead of evdev.
	Legacy bool
	// Logf reports which device was opened. Defaults to fmt.Printf.
	Logf func(format string, args ...interface{})

	lock sync.Mutex
	dev  Device
	open func(path string) (Device, error)
	find func() (string, error)
}

var _ gamepad.Source = (*Source)(nil)

func NewSource(path string, legacy bool) *Source {
	return &Source{Path: path, Legacy: legacy}
}

func (s *Source) ReadEvents(ctx context.Context) ([]gamepad.Event, error) {
	dev, err := s.device()
	if err != nil {
		return nil, err
	}
	events, err := dev.ReadEvents(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.drop(dev)
		return nil, classify(dev.Path(), err)
	}
	return events, nil
}

// Probe succeeds once a gamepad node can be opened.
func (s *Source) Probe(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.device()
	return err
}

func (s *Source) Close() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.dev == nil {
		return nil
	}
	err := s.dev.Close()
	s.dev = nil
	return err
}

func (s *Source) device() (Device, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.dev != nil {
		return s.dev, nil
	}

	path := s.Path
	if path == "" {
		var err error
		if path, err = s.findDevice(); err != nil {
			return nil, err
		}
	}
	dev, err := s.openDevice(path)
	if err != nil {
		return nil, classify(path, err)
	}
	s.logf("JOYSTICK: Opened %s (%s)\n", dev.Path(), dev.Name())
	s.dev = dev
	return dev, nil
}

func (s *Source) drop(dev Device) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.dev == dev {
		_ = dev.Close()
		s.dev = nil
	}
}

func (s *Source) findDevice() (string, error) {
	if s.find != nil {
		return s.find()
	}
	return FindGamepad(s.Legacy)
}

func (s *Source) openDevice(path string) (Device, error) {
	if s.open != nil {
		return s.open(path)
	}
	if s.Legacy {
		return OpenLegacyDevice(path)
	}
	return OpenEventDevice(path)
}

func (s *Source) logf(format string, args ...interface{}) {
	if s.Logf != nil {
		s.Logf(format, args...)
		return
	}
	fmt.Printf(format, args...)
}

// classify turns "device went away" errors into gamepad.ErrDeviceAbsent and
// leaves everything else alone.
func classify(path string, err error) error {
	if errors.Is(err, gamepad.ErrDeviceAbsent) {
		return err
	}
	if isUnplugged(err) {
		return errors.Wrapf(gamepad.ErrDeviceAbsent, "%s: %v", path, err)
	}
	return errors.Wrapf(err, "gamepad %s", path)
}

// FindGamepad returns the first gamepad node, preferring stable by-id names.
func FindGamepad(legacy bool) (string, error) {
	patterns := []string{
		filepath.Join(inputPath, "by-id", "*-event-joystick"),
		filepath.Join(inputPath, "by-path", "*-event-joystick"),
	}
	if legacy {
		patterns = []string{
			filepath.Join(inputPath, "by-id", "*-joystick"),
			filepath.Join(inputPath, "js*"),
		}
	}
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return "", err
		}
		sort.Strings(matches)
		for _, m := range matches {
			if legacy && strings.HasSuffix(m, "-event-joystick") {
				continue
			}
			if _, err := os.Stat(m); err == nil {
				return m, nil
			}
		}
	}
	return "", errors.Wrap(gamepad.ErrDeviceAbsent, "no gamepad found")
}
