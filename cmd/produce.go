package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/smazurov/framelink/internal/api/models"
	"github.com/smazurov/framelink/internal/events"
	"github.com/smazurov/framelink/internal/frames"
	"github.com/smazurov/framelink/internal/producer"
	"github.com/smazurov/framelink/internal/source"
)

// CreateProduceCmd creates the produce command.
func CreateProduceCmd() *cobra.Command {
	opts := &Options{}

	cmd := &cobra.Command{
		Use:   "produce",
		Short: "Share frames from a media source over the rendezvous socket",
		Long: `Binds the rendezvous socket, waits for one consumer and passes every frame ` +
			`of the configured source to it as a file descriptor. Stops on SIGINT/SIGTERM, ` +
			`when the source ends, or when the consumer leaves (unless --producer-accept-next).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runProduce(cmd, opts)
		},
	}

	bindFlags(cmd, opts, "channel", "geometry", "producer", "source", "status", "auth", "logging")
	return cmd
}

func runProduce(cmd *cobra.Command, opts *Options) error {
	env, err := setup(cmd, opts)
	if err != nil {
		return err
	}
	defer env.Close()

	geometry := opts.Geometry()
	session, err := producer.New(producer.Config{
		SocketPath: opts.SocketPath,
		Geometry:   geometry,
		Handshake:  opts.Handshake,
		AcceptNext: opts.ProducerAcceptNext,
	}, env.bus)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	src, err := openSource(ctx, opts, geometry)
	if err != nil {
		return frames.SetupError("open source", err)
	}
	defer src.Close()

	env.logger.Info("Producer starting",
		"session_id", session.ID(),
		"socket", opts.SocketPath,
		"geometry", geometry.String(),
		"source", opts.SourceKind)

	status := func() models.SessionData {
		stats := session.Stats()
		return models.SessionData{
			Role:       events.RoleProducer,
			SessionID:  session.ID(),
			State:      string(session.State()),
			SocketPath: opts.SocketPath,
			Geometry:   geometry,
			Counters: map[string]uint64{
				"connections": stats.Connections,
				"published":   stats.Published,
				"skipped":     stats.Skipped,
			},
		}
	}

	err = env.run(ctx, status, func(ctx context.Context) error {
		return session.Run(ctx, src)
	})
	return env.finish(err)
}

// openSource builds the frame source selected by source.kind.
func openSource(ctx context.Context, opts *Options, g frames.Geometry) (source.Source, error) {
	switch source.Kind(opts.SourceKind) {
	case source.KindSynthetic:
		src, err := source.NewSynthetic(ctx, source.SyntheticConfig{
			Geometry:  g,
			FPS:       opts.SourceFPS,
			MaxFrames: opts.SourceMaxFrames,
		})
		if err != nil {
			return nil, err
		}
		return src, nil
	case source.KindGStreamer:
		src, err := source.NewGStreamer(ctx, source.GStreamerConfig{
			Geometry: g,
			Pipeline: opts.SourcePipeline,
		})
		if err != nil {
			return nil, err
		}
		return src, nil
	default:
		return nil, fmt.Errorf("unknown source kind %q", opts.SourceKind)
	}
}
