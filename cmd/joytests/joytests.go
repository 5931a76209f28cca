package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/alecthomas/kong"

	"github.com/tracked-rc/go-controller/pkg/gamepad"
	"github.com/tracked-rc/go-controller/pkg/joystick"
	"github.com/tracked-rc/go-controller/pkg/shutdown"
)

var CLI struct {
	Device string `help:"Gamepad device node; auto-detected when empty." env:"JOYSTICK_DEVICE"`
	Legacy bool   `help:"Use the /dev/input/js* interface instead of evdev."`

	Events struct {
	} `cmd:"" help:"Print raw events as they arrive."`

	All struct {
		Interval time.Duration `help:"Time between snapshots." default:"500ms"`
	} `cmd:"" default:"1" help:"Print the whole snapshot keyed by channel name."`

	Values struct {
		Interval time.Duration `help:"Time between snapshots." default:"500ms"`
	} `cmd:"" help:"Print every channel value in index order."`

	Select struct {
		Interval time.Duration `help:"Time between snapshots." default:"500ms"`
		Channels []string      `arg:"" help:"Channel names, printed in the order given."`
	} `cmd:"" help:"Print the chosen channels only."`
}

func main() {
	k, err := kong.New(&CLI, kong.Description("Gamepad read tests."))
	if err != nil {
		panic(err)
	}
	parsed, err := k.Parse(os.Args[1:])
	k.FatalIfErrorf(err)

	// Our global context, we cancel it to trigger shutdown.
	ctx, cancel := context.WithCancel(context.Background())

	// Hook Ctrl-C etc.
	shutdown.RegisterSignalHandlers(cancel)

	src := joystick.NewSource(CLI.Device, CLI.Legacy)
	defer src.Close()

	switch parsed.Command() {
	case "events":
		printEvents(ctx, src)
	case "all":
		printSnapshots(ctx, src, CLI.All.Interval, func(s gamepad.State) {
			fmt.Println(s.Map())
		})
	case "values":
		printSnapshots(ctx, src, CLI.Values.Interval, func(s gamepad.State) {
			fmt.Println(s.Values())
		})
	case "select <channels>":
		var chs []gamepad.Channel
		for _, name := range CLI.Select.Channels {
			ch, err := gamepad.ParseChannel(name)
			if err != nil {
				log.Fatalln(err)
			}
			chs = append(chs, ch)
		}
		printSnapshots(ctx, src, CLI.Select.Interval, func(s gamepad.State) {
			fmt.Println(s.Select(chs...))
		})
	}
}

func printEvents(ctx context.Context, src *joystick.Source) {
	for ctx.Err() == nil {
		events, err := src.ReadEvents(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			fmt.Printf("Failed to read from joystick: %v.\n", err)
			time.Sleep(time.Second)
			continue
		}
		for _, e := range events {
			fmt.Printf("Event from joystick: %v\n", e)
		}
	}
}

func printSnapshots(ctx context.Context, src gamepad.Source, interval time.Duration, print func(gamepad.State)) {
	m := gamepad.New(src)
	m.Start(ctx)
	defer m.Stop()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.Done():
			fmt.Println("Monitor stopped:", m.Err())
			return
		case <-ticker.C:
			print(m.Read())
		}
	}
}
