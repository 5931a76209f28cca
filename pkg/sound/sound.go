package sound

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"
	"github.com/faiface/beep/wav"
)

// Player plays wav files one at a time on a background goroutine. A new
// sound cuts off the one currently playing.
type Player struct {
	soundsToPlay chan string
	done         chan struct{}
	closeOnce    sync.Once
}

func NewPlayer() *Player {
	p := &Player{
		soundsToPlay: make(chan string),
		done:         make(chan struct{}),
	}
	go p.loop()
	return p
}

func (p *Player) loop() {
	defer close(p.done)
	defer func() {
		recover()
		for s := range p.soundsToPlay {
			fmt.Println("SOUND: Unable to play", s)
		}
	}()

	sampleRate := beep.SampleRate(44100)
	err := speaker.Init(sampleRate, sampleRate.N(time.Second/5))
	if err != nil {
		fmt.Println("SOUND: Failed to open speaker", err)
		for s := range p.soundsToPlay {
			fmt.Println("SOUND: Unable to play", s)
		}
		return
	}

	var ctrl *beep.Ctrl
	var s beep.StreamSeekCloser
	for soundToPlay := range p.soundsToPlay {
		if ctrl != nil {
			speaker.Lock()
			ctrl.Paused = true
			ctrl.Streamer = nil
			speaker.Unlock()
			ctrl = nil
		}
		if s != nil {
			s.Close()
			s = nil
		}

		f, err := os.Open(soundToPlay)
		if err != nil {
			fmt.Println("SOUND: Failed to open sound", err)
			continue
		}
		s, _, err = wav.Decode(f)
		if err != nil {
			fmt.Println("SOUND: Failed to decode sound", err)
			_ = f.Close()
			continue
		}
		ctrl = &beep.Ctrl{Streamer: s}
		speaker.Play(ctrl)
	}
}

// Play queues a sound without blocking the caller for long; an empty path
// is ignored.
func (p *Player) Play(path string) {
	if path == "" {
		return
	}
	defer func() {
		recover() // Don't die if the channel is already closed.
	}()
	select {
	case p.soundsToPlay <- path:
	case <-time.After(10 * time.Millisecond):
		fmt.Println("SOUND: Timed out trying to play sound: ", path)
	}
}

func (p *Player) Close() {
	p.closeOnce.Do(func() {
		close(p.soundsToPlay)
	})
	<-p.done
}
