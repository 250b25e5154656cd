// ABOUTME: Operator CLI for inspecting a vistly-bot database
// ABOUTME: Cobra commands for users, stats, entities, watch lists and session resets

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cc := newCommandContext(nil)
	err := newRootCommand(cc).ExecuteContext(ctx)
	if closeErr := cc.close(); closeErr != nil {
		err = errors.Join(err, fmt.Errorf("closing store: %w", closeErr))
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
