package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/smazurov/framelink/internal/api/models"
	"github.com/smazurov/framelink/internal/consumer"
	"github.com/smazurov/framelink/internal/events"
	"github.com/smazurov/framelink/internal/frames"
	"github.com/smazurov/framelink/internal/persist"
)

// CreateConsumeCmd creates the consume command.
func CreateConsumeCmd() *cobra.Command {
	opts := &Options{}

	cmd := &cobra.Command{
		Use:   "consume",
		Short: "Receive shared frames and hand them to the configured visitors",
		Long: `Connects to the producer's rendezvous socket, maps every received frame ` +
			`read-only and passes it to the checksum and file-dump visitors. Stops on ` +
			`SIGINT/SIGTERM or when the producer goes away.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConsume(cmd, opts)
		},
	}

	bindFlags(cmd, opts, "channel", "geometry", "consumer", "persist", "status", "auth", "logging")
	return cmd
}

func runConsume(cmd *cobra.Command, opts *Options) error {
	env, err := setup(cmd, opts)
	if err != nil {
		return err
	}
	defer env.Close()

	visit, closeVisitors, err := buildVisitor(opts)
	if err != nil {
		return frames.SetupError("persist", err)
	}
	defer closeVisitors()

	geometry := opts.Geometry()
	session, err := consumer.New(consumer.Config{
		SocketPath: opts.SocketPath,
		Geometry:   geometry,
		Handshake:  opts.Handshake,
		Reconnect:  opts.Reconnect(),
	}, env.bus)
	if err != nil {
		return err
	}

	env.logger.Info("Consumer starting",
		"session_id", session.ID(),
		"socket", opts.SocketPath,
		"geometry", geometry.String(),
		"persist", opts.PersistEnabled)

	status := func() models.SessionData {
		stats := session.Stats()
		return models.SessionData{
			Role:       events.RoleConsumer,
			SessionID:  session.ID(),
			State:      string(session.State()),
			SocketPath: opts.SocketPath,
			Geometry:   geometry,
			Counters: map[string]uint64{
				"attempts": stats.Attempts,
				"consumed": stats.Consumed,
				"failed":   stats.Failed,
			},
		}
	}

	err = env.run(cmd.Context(), status, func(ctx context.Context) error {
		return session.Run(ctx, visit)
	})
	return env.finish(err)
}

// buildVisitor chains the checksum and file sink visitors enabled in opts.
func buildVisitor(opts *Options) (frames.Visitor, func(), error) {
	var visitors []frames.Visitor
	closeFn := func() {}

	if opts.PersistChecksum {
		visitors = append(visitors, persist.NewChecksum().Visit)
	}

	if opts.PersistEnabled {
		sink, err := persist.NewFileSink(persist.FileSinkConfig{
			Dir:      opts.PersistOutputDir,
			Compress: opts.PersistCompress,
		})
		if err != nil {
			return nil, closeFn, err
		}
		visitors = append(visitors, sink.Visit)
		closeFn = func() { _ = sink.Close() }
	}

	return persist.Chain(visitors...), closeFn, nil
}
