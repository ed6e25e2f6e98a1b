package notifications

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"mediaflow/internal/config"
)

const defaultStreamMaxLen = 10000

// Fanout publishes every message to each member publisher.
type Fanout struct {
	publishers []Publisher
	closers    []io.Closer
}

// NewFanout combines publishers.
func NewFanout(publishers ...Publisher) *Fanout {
	return &Fanout{publishers: publishers}
}

// New builds the publishers enabled in cfg.
func New(cfg *config.Config) *Fanout {
	f := &Fanout{}
	if cfg == nil {
		return f
	}
	n := cfg.Notifications
	if topic := strings.TrimSpace(n.NtfyTopic); topic != "" {
		f.publishers = append(f.publishers, NewNtfy(topic, time.Duration(n.RequestTimeout)*time.Second))
	}
	if stream := strings.TrimSpace(n.RedisStream); stream != "" && n.RedisAddr != "" {
		client := goredis.NewClient(&goredis.Options{Addr: n.RedisAddr})
		f.publishers = append(f.publishers, NewStream(client, stream, defaultStreamMaxLen))
		f.closers = append(f.closers, client)
	}
	return f
}

// Len returns the number of member publishers.
func (f *Fanout) Len() int { return len(f.publishers) }

// Publish sends msg to every member and joins their errors.
func (f *Fanout) Publish(ctx context.Context, msg Message) error {
	var errs []error
	for _, p := range f.publishers {
		if err := p.Publish(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close releases clients created by New.
func (f *Fanout) Close() error {
	var errs []error
	for _, c := range f.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}
