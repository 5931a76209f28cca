package pca9685

import (
	"math"
	"testing"
	"time"

	"periph.io/x/periph/conn/physic"
)

func TestPreScale(t *testing.T) {
	// 0x79 is the datasheet value for 50Hz with the internal oscillator.
	if v := PreScale(50 * physic.Hertz); v != 0x79 {
		t.Fatalf("50Hz prescaler should be 0x79, not %#x", v)
	}
	if v := PreScale(1526 * physic.Hertz); v != 3 {
		t.Fatalf("1526Hz prescaler should be 3, not %d", v)
	}
	if v := PreScale(1 * physic.Hertz); v != 255 {
		t.Fatalf("prescaler should clamp to 255, not %d", v)
	}
}

func TestServoRange(t *testing.T) {
	if p := Period(50 * physic.Hertz); p != 20*time.Millisecond {
		t.Fatalf("50Hz period should be 20ms, not %v", p)
	}
	min, max := ServoRange(50 * physic.Hertz)
	if math.Abs(min-204.75) > 0.01 || math.Abs(max-409.5) > 0.01 {
		t.Fatalf("unexpected servo range %v..%v", min, max)
	}
}

func TestDummyRejectsBadPorts(t *testing.T) {
	d := Dummy(false)
	if err := d.SetServo(16, 0.5); err == nil {
		t.Fatal("port 16 should be rejected")
	}
	if err := d.SetPWM(-1, 0.5); err == nil {
		t.Fatal("port -1 should be rejected")
	}
	if err := d.SetServo(15, 2); err != nil {
		t.Fatalf("port 15 should be accepted: %v", err)
	}
}
