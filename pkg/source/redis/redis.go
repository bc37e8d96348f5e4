// Package redis provides a pub/sub message source for the overlay.
//
// It subscribes to a redis channel carrying JSON-encoded chat messages and
// feeds them into a caller-supplied sink (normally Overlay.AddMessage). The
// wire format is deliberately small:
//
//	{"kind": "normal", "text": "hello", "author": "ada"}
//
// Unknown kinds fall back to normal; malformed payloads are skipped with a
// source-error hook so one bad publisher cannot stall the feed.
package redis

import (
	"context"
	"encoding/json"
	"io"

	"github.com/charmbracelet/log"
	goredis "github.com/redis/go-redis/v9"

	"github.com/driftlane/driftlane/pkg/errors"
	"github.com/driftlane/driftlane/pkg/observability"
	"github.com/driftlane/driftlane/pkg/overlay"
)

// Config holds connection parameters for the source.
type Config struct {
	// Addr is the redis host:port.
	Addr string

	// Channel is the pub/sub channel to subscribe to.
	Channel string

	// Password is optional.
	Password string

	// DB selects the redis logical database.
	DB int

	// Logger is optional; the default discards everything.
	Logger *log.Logger
}

// wireMessage is the pub/sub payload format.
type wireMessage struct {
	Kind   string `json:"kind,omitempty"`
	Text   string `json:"text"`
	Author string `json:"author,omitempty"`
}

// ChatPayload is what the source hands to the sink as the opaque message
// payload. Renderers that know this source can type-assert it.
type ChatPayload struct {
	Text   string
	Author string
}

// Source is a redis pub/sub message source.
type Source struct {
	client  *goredis.Client
	channel string
	logger  *log.Logger
}

// New creates a source. The connection is established lazily on Run.
func New(cfg Config) (*Source, error) {
	if cfg.Addr == "" {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "redis address is required")
	}
	if cfg.Channel == "" {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "redis channel is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &Source{client: client, channel: cfg.Channel, logger: logger}, nil
}

// Run subscribes and pumps messages into sink until ctx is cancelled or the
// subscription dies. It blocks; run it on its own goroutine.
func (s *Source) Run(ctx context.Context, sink func(overlay.Message)) error {
	sub := s.client.Subscribe(ctx, s.channel)
	defer sub.Close()

	// Wait for the subscription to be confirmed before consuming.
	if _, err := sub.Receive(ctx); err != nil {
		return errors.Wrap(errors.ErrCodeSource, err, "subscribe to %s", s.channel)
	}
	s.logger.Info("subscribed", "channel", s.channel)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-ch:
			if !ok {
				return errors.New(errors.ErrCodeSourceClosed, "subscription to %s closed", s.channel)
			}
			observability.Source().OnMessage("redis", s.channel)

			var wm wireMessage
			if err := json.Unmarshal([]byte(m.Payload), &wm); err != nil {
				s.logger.Warn("skipping malformed message", "err", err)
				observability.Source().OnSourceError("redis", err)
				continue
			}
			sink(overlay.NewMessage(parseKind(wm.Kind), ChatPayload{Text: wm.Text, Author: wm.Author}))
		}
	}
}

// Close releases the redis client.
func (s *Source) Close() error {
	return s.client.Close()
}

func parseKind(kind string) overlay.Kind {
	switch kind {
	case "highlight":
		return overlay.KindHighlight
	case "system":
		return overlay.KindSystem
	default:
		return overlay.KindNormal
	}
}
