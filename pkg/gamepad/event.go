package gamepad

import (
	"fmt"
	"sort"
)

// Event types and codes from linux/input-event-codes.h.
const (
	EvSyn = 0x00
	EvKey = 0x01
	EvAbs = 0x03

	SynReport = 0x00

	AbsX     = 0x00
	AbsY     = 0x01
	AbsZ     = 0x02
	AbsRX    = 0x03
	AbsRY    = 0x04
	AbsRZ    = 0x05
	AbsHat0X = 0x10
	AbsHat0Y = 0x11

	BtnSouth         = 0x130
	BtnEast          = 0x131
	BtnNorth         = 0x133
	BtnWest          = 0x134
	BtnTL            = 0x136
	BtnTR            = 0x137
	BtnSelect        = 0x13a
	BtnStart         = 0x13b
	BtnMode          = 0x13c
	BtnThumbL        = 0x13d
	BtnThumbR        = 0x13e
	BtnTriggerHappy1 = 0x2c0
	BtnTriggerHappy2 = 0x2c1
	BtnTriggerHappy3 = 0x2c2
	BtnTriggerHappy4 = 0x2c3
)

const (
	MaxJoyVal  = 1 << 15
	MaxTrigVal = 1 << 8
)

// Event is one raw input event in the evdev code space.
type Event struct {
	Type  uint16
	Code  uint16
	Value int32
}

func (e Event) String() string {
	return fmt.Sprintf("type=%d code=%#x value=%d", e.Type, e.Code, e.Value)
}

type eventKey struct {
	typ  uint16
	code uint16
}

type binding struct {
	channel Channel
	// Hat axes drive a pair of D-pad buttons, neg for -1 and channel for +1.
	hat bool
	neg Channel
}

var eventTable = map[eventKey]binding{
	{EvAbs, AbsY}:  {channel: LeftJoystickY},
	{EvAbs, AbsX}:  {channel: LeftJoystickX},
	{EvAbs, AbsRY}: {channel: RightJoystickY},
	{EvAbs, AbsRX}: {channel: RightJoystickX},
	{EvAbs, AbsZ}:  {channel: LeftTrigger},
	{EvAbs, AbsRZ}: {channel: RightTrigger},

	{EvKey, BtnTL}:            {channel: LeftBumper},
	{EvKey, BtnTR}:            {channel: RightBumper},
	{EvKey, BtnSouth}:         {channel: A},
	{EvKey, BtnNorth}:         {channel: Y},
	{EvKey, BtnWest}:          {channel: X},
	{EvKey, BtnEast}:          {channel: B},
	{EvKey, BtnThumbL}:        {channel: LeftThumb},
	{EvKey, BtnThumbR}:        {channel: RightThumb},
	{EvKey, BtnSelect}:        {channel: Back},
	{EvKey, BtnStart}:         {channel: Start},
	{EvKey, BtnTriggerHappy1}: {channel: LeftDPad},
	{EvKey, BtnTriggerHappy2}: {channel: RightDPad},
	{EvKey, BtnTriggerHappy3}: {channel: UpDPad},
	{EvKey, BtnTriggerHappy4}: {channel: DownDPad},

	{EvAbs, AbsHat0X}: {hat: true, neg: LeftDPad, channel: RightDPad},
	{EvAbs, AbsHat0Y}: {hat: true, neg: UpDPad, channel: DownDPad},
}

// MappedCodes lists the codes of the given event type that drive a channel,
// in ascending order.
func MappedCodes(evType uint16) []uint16 {
	var codes []uint16
	for k := range eventTable {
		if k.typ == evType {
			codes = append(codes, k.code)
		}
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	return codes
}

// Normalize converts a raw value into the channel's range: axes to about
// [-1, 1], triggers to about [0, 1], buttons unchanged.
func Normalize(c Channel, raw int32) float64 {
	switch c.Kind() {
	case KindAxis:
		return float64(raw) / MaxJoyVal
	case KindTrigger:
		return float64(raw) / MaxTrigVal
	default:
		return float64(raw)
	}
}

// apply folds one event into s. Unknown events are ignored.
func (s *State) apply(e Event) bool {
	b, ok := eventTable[eventKey{e.Type, e.Code}]
	if !ok {
		return false
	}
	if b.hat {
		var neg, pos float64
		if e.Value < 0 {
			neg = 1
		} else if e.Value > 0 {
			pos = 1
		}
		s.set(b.neg, neg)
		s.set(b.channel, pos)
		return true
	}
	s.set(b.channel, Normalize(b.channel, e.Value))
	return true
}
