package gamepad

import (
	"fmt"
	"strings"
)

// State is a snapshot of every channel. It is a plain value so copies
// handed out by Monitor.Read never change underneath the caller.
type State struct {
	values [NumChannels]float64
}

func (s State) Get(c Channel) float64 {
	if !c.Valid() {
		return 0
	}
	return s.values[c]
}

// Pressed reports whether a button-like channel is non-zero.
func (s State) Pressed(c Channel) bool {
	return s.Get(c) != 0
}

// Values returns all channel values in canonical index order.
func (s State) Values() []float64 {
	out := make([]float64, NumChannels)
	copy(out, s.values[:])
	return out
}

// Select returns the values of the given channels in the given order.
func (s State) Select(chs ...Channel) []float64 {
	out := make([]float64, len(chs))
	for i, c := range chs {
		out[i] = s.Get(c)
	}
	return out
}

// Map returns the snapshot keyed by channel name.
func (s State) Map() map[string]float64 {
	m := make(map[string]float64, NumChannels)
	for i, v := range s.values {
		m[channelNames[i]] = v
	}
	return m
}

func (s State) IsZero() bool {
	return s == State{}
}

func (s State) String() string {
	var b strings.Builder
	b.WriteString("{")
	for i, v := range s.values {
		if i > 0 {
			b.WriteString(" ")
		}
		if Channel(i).Kind() == KindButton {
			fmt.Fprintf(&b, "%s:%d", channelNames[i], int(v))
		} else {
			fmt.Fprintf(&b, "%s:%.3f", channelNames[i], v)
		}
	}
	b.WriteString("}")
	return b.String()
}

// StateFromEvents folds events into a zero State, as the monitor would.
func StateFromEvents(events ...Event) State {
	var s State
	for _, e := range events {
		s.apply(e)
	}
	return s
}

func (s *State) set(c Channel, v float64) {
	s.values[c] = v
}
