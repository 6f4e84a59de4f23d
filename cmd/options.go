package cmd

import (
	"time"

	"github.com/smazurov/framelink/internal/consumer"
	"github.com/smazurov/framelink/internal/frames"
	"github.com/smazurov/framelink/internal/logging"
)

// Options is the flat option set shared by produce and consume. Precedence is
// CLI flag > FRAMELINK_* environment > TOML file > default tag.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"framelink.toml"`

	// Channel settings
	SocketPath string `help:"Rendezvous socket path" default:"/tmp/dmabuf_socket" toml:"channel.socket_path" env:"SOCKET_PATH"`
	Handshake  bool   `help:"Exchange frame geometry when connecting" default:"true" toml:"channel.handshake" env:"HANDSHAKE"`

	// Geometry settings
	GeometryWidth         uint32 `help:"Frame width in pixels" default:"2560" toml:"geometry.width" env:"GEOMETRY_WIDTH"`
	GeometryHeight        uint32 `help:"Frame height in rows" default:"1440" toml:"geometry.height" env:"GEOMETRY_HEIGHT"`
	GeometryPitch         uint32 `help:"Bytes per row including padding" default:"10240" toml:"geometry.pitch" env:"GEOMETRY_PITCH"`
	GeometryBytesPerPixel uint32 `help:"Bytes per pixel" default:"4" toml:"geometry.bytes_per_pixel" env:"GEOMETRY_BYTES_PER_PIXEL"`

	// Producer settings
	ProducerAcceptNext bool `help:"Wait for another consumer after one disconnects" default:"false" toml:"producer.accept_next" env:"PRODUCER_ACCEPT_NEXT"`

	// Source settings
	SourceKind      string  `help:"Frame source (synthetic, gstreamer)" default:"synthetic" toml:"source.kind" env:"SOURCE_KIND"`
	SourceFPS       float64 `help:"Frame rate cap, 0 for unlimited" default:"30" toml:"source.fps" env:"SOURCE_FPS"`
	SourcePipeline  string  `help:"GStreamer pipeline ending in appsink name=sink" default:"" toml:"source.pipeline" env:"SOURCE_PIPELINE"`
	SourceMaxFrames uint64  `help:"Stop after this many frames, 0 for unlimited" default:"0" toml:"source.max_frames" env:"SOURCE_MAX_FRAMES"`

	// Consumer settings
	ConsumerReconnectAttempts  int `help:"Connection attempts before giving up" default:"1" toml:"consumer.reconnect_attempts" env:"CONSUMER_RECONNECT_ATTEMPTS"`
	ConsumerReconnectInitialMs int `help:"First retry delay in milliseconds" default:"100" toml:"consumer.reconnect_initial_ms" env:"CONSUMER_RECONNECT_INITIAL_MS"`
	ConsumerReconnectMaxMs     int `help:"Longest retry delay in milliseconds" default:"5000" toml:"consumer.reconnect_max_ms" env:"CONSUMER_RECONNECT_MAX_MS"`

	// Persist settings
	PersistEnabled   bool   `help:"Write received frames to disk" default:"false" toml:"persist.enabled" env:"PERSIST_ENABLED"`
	PersistOutputDir string `help:"Directory for frame dumps" default:"frames" toml:"persist.output_dir" env:"PERSIST_OUTPUT_DIR"`
	PersistCompress  bool   `help:"Compress frame dumps with zstd" default:"false" toml:"persist.compress" env:"PERSIST_COMPRESS"`
	PersistChecksum  bool   `help:"Log an xxhash64 of every frame" default:"true" toml:"persist.checksum" env:"PERSIST_CHECKSUM"`

	// Status API settings
	StatusListen string `help:"Status API address, empty to disable" default:"" toml:"status.listen" env:"STATUS_LISTEN"`
	AuthUsername string `help:"Basic auth username" default:"" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Logging settings
	LoggingLevel     string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat    string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingTransport string `help:"Frame channel logging level" default:"" toml:"logging.transport" env:"LOGGING_TRANSPORT"`
	LoggingProducer  string `help:"Producer logging level" default:"" toml:"logging.producer" env:"LOGGING_PRODUCER"`
	LoggingConsumer  string `help:"Consumer logging level" default:"" toml:"logging.consumer" env:"LOGGING_CONSUMER"`
	LoggingSource    string `help:"Source logging level" default:"" toml:"logging.source" env:"LOGGING_SOURCE"`
	LoggingPersist   string `help:"Persist logging level" default:"" toml:"logging.persist" env:"LOGGING_PERSIST"`
	LoggingAPI       string `help:"API logging level" default:"" toml:"logging.api" env:"LOGGING_API"`
}

// Geometry assembles the frame geometry from the geometry.* options.
func (o *Options) Geometry() frames.Geometry {
	return frames.Geometry{
		Width:         o.GeometryWidth,
		Height:        o.GeometryHeight,
		Pitch:         o.GeometryPitch,
		BytesPerPixel: o.GeometryBytesPerPixel,
	}
}

// Reconnect maps the consumer.reconnect_* options onto a policy.
func (o *Options) Reconnect() consumer.ReconnectPolicy {
	return consumer.ReconnectPolicy{
		MaxAttempts:     o.ConsumerReconnectAttempts,
		InitialInterval: time.Duration(o.ConsumerReconnectInitialMs) * time.Millisecond,
		MaxInterval:     time.Duration(o.ConsumerReconnectMaxMs) * time.Millisecond,
	}
}

// Logging builds the logging configuration. Empty module levels follow the
// global level.
func (o *Options) Logging() logging.Config {
	modules := make(map[string]string)
	for module, level := range map[string]string{
		"transport": o.LoggingTransport,
		"producer":  o.LoggingProducer,
		"consumer":  o.LoggingConsumer,
		"source":    o.LoggingSource,
		"persist":   o.LoggingPersist,
		"api":       o.LoggingAPI,
	} {
		if level != "" {
			modules[module] = level
		}
	}
	return logging.Config{
		Level:   o.LoggingLevel,
		Format:  o.LoggingFormat,
		Modules: modules,
	}
}
