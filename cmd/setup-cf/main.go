package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	setupcmd "github.com/vchrisb/setup-cf/pkg/setupcf/cmd"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := setupcmd.DefaultConfig()
	root := setupcmd.NewRootCommand(cfg)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		setupcmd.ReportError(cfg.Action, err)
		return 1
	}
	return 0
}
