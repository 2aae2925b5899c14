// rconrelay - a web form that relays commands to a game-server console.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"rconrelay/cmd"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := cmd.Execute(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "rconrelay: %v\n", err)
		os.Exit(1)
	}
}
