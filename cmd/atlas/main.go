// atlas renders the Mandelbrot set as a grid of grayscale tiles.
//
// Every tile is rendered independently on a pool of workers; tiles whose
// intensity range is too narrow to be interesting are not stored.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("atlas: %v", err)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return newRootCmd().ExecuteContext(ctx)
}
