package joystick

import (
	"context"
	"errors"
	"io"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// openDevice opens a device node read-only. A node that has just appeared may
// not have its permissions applied by udev yet, so EACCES is retried briefly.
func openDevice(path string) (f *os.File, err error) {
	for i := 0; i < 5; i++ {
		f, err = os.OpenFile(path, os.O_RDONLY|unix.O_CLOEXEC, 0)
		if err == nil || !errors.Is(err, os.ErrPermission) {
			return
		}
		time.Sleep(200 * time.Millisecond)
	}
	return
}

// readContext is f.Read that gives up when ctx is cancelled. Device nodes
// are pollable so a past deadline unblocks the pending read.
func readContext(ctx context.Context, f *os.File, buf []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	// Clear a deadline left behind by an earlier cancelled read.
	_ = f.SetReadDeadline(time.Time{})

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = f.SetReadDeadline(time.Now())
		case <-stop:
		}
	}()

	n, err := f.Read(buf)
	if err != nil && ctx.Err() != nil {
		return n, ctx.Err()
	}
	return n, err
}

// isUnplugged reports whether err means the device is gone rather than
// broken.
func isUnplugged(err error) bool {
	return errors.Is(err, os.ErrNotExist) ||
		errors.Is(err, unix.ENODEV) ||
		errors.Is(err, unix.ENXIO) ||
		errors.Is(err, unix.EIO) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF)
}
