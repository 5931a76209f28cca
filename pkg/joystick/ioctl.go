package joystick

import (
	"fmt"
	"os"
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	nameLen = 128

	// linux/input.h
	eviocgName = 0x80004506 + (nameLen << 16)
	eviocgKey  = 0x80004518 + (keyBytes << 16)
	eviocgAbs  = 0x80184540 // + axis code

	keyBytes = 0x2ff/8 + 1 // KEY_MAX bits

	// linux/joystick.h
	jsiocgName    = 0x80006a13 + (nameLen << 16)
	jsiocgAxes    = 0x80016a11
	jsiocgButtons = 0x80016a12
	jsiocgAxMap   = 0x80406a32
	jsiocgBtnMap  = 0x84006a34
)

// ioctl goes through SyscallConn rather than f.Fd() so the descriptor stays
// in non-blocking mode and read deadlines keep working.
func ioctl(f *os.File, req uintptr, dest unsafe.Pointer) error {
	conn, err := f.SyscallConn()
	if err != nil {
		return err
	}
	var errno syscall.Errno
	err = conn.Control(func(fd uintptr) {
		_, _, errno = unix.Syscall(unix.SYS_IOCTL, fd, req, uintptr(dest))
	})
	if err != nil {
		return err
	}
	if errno != 0 {
		return fmt.Errorf("ioctl %#x on %s: %w", req, f.Name(), errno)
	}
	return nil
}

func ioctlName(f *os.File, req uintptr) (string, error) {
	buf := make([]byte, nameLen)
	if err := ioctl(f, req, unsafe.Pointer(&buf[0])); err != nil {
		return "", err
	}
	return unix.ByteSliceToString(buf), nil
}
