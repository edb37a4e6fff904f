package utils

import (
	"os"
	"os/signal"
	"syscall"
)

// WatchSignal blocks until the process receives SIGINT or SIGTERM.
func WatchSignal() os.Signal {
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGTERM, syscall.SIGINT)
	return <-signalCh
}
