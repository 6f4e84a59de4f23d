package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/smazurov/framelink/cmd"
	"github.com/smazurov/framelink/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	root := &cobra.Command{
		Use:   "framelink",
		Short: "Zero-copy frame sharing between processes over file descriptors",
		Long: `framelink passes video frames between two local processes by handing over ` +
			`DMA-BUF or memfd file descriptors on a Unix socket. Frame pixels are never copied.`,
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(cmd.CreateProduceCmd())
	root.AddCommand(cmd.CreateConsumeCmd())
	root.AddCommand(cmd.CreateVersionCmd())

	err := root.ExecuteContext(ctx)
	stop()
	if err != nil {
		slog.Error("framelink failed", "error", err)
		os.Exit(1)
	}
}
