package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/willibrandon/goasics/cmd/goasics/cli"
	"github.com/willibrandon/goasics/cmd/goasics/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	env := cli.Default
	cli.AddCommand(commands.NewInspectCommand(env))
	cli.AddCommand(commands.NewSignCommand(env))
	cli.AddCommand(commands.NewVerifyCommand(env))
	cli.AddCommand(commands.NewDetectCommand(env))
	cli.AddCommand(commands.NewExtractCommand(env))
	cli.AddCommand(commands.NewConfigCommand(env))
	cli.AddCommand(commands.NewVersionCommand(env))

	err := cli.ExecuteContext(ctx)
	_ = cli.Shutdown(context.Background())
	stop()

	if err != nil {
		// SilenceErrors is set on the root command.
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
