package shutdown

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// Grace is how long a signalled process has to wind down before it exits.
const Grace = 2 * time.Second

// RegisterSignalHandlers cancels cancelFunc on Ctrl-C or SIGTERM and exits
// the process if it is still running after Grace.
func RegisterSignalHandlers(cancelFunc context.CancelFunc) {
	register(cancelFunc, Grace, os.Exit)
}

func register(cancelFunc context.CancelFunc, grace time.Duration, exit func(int)) {
	signals := make(chan os.Signal, 2)
	signal.Notify(signals, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		s := <-signals
		log.Println("Signal: ", s)
		cancelFunc()
		time.Sleep(grace)
		exit(0)
	}()
}
