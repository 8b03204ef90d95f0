// drivecast - Real-time location-triggered safety alerts
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivecast

package bus

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/tomtom215/drivecast/internal/logging"
)

// Redis is a Bus over Redis pub/sub. It shares the client used by the
// coordination store.
type Redis struct {
	client redis.UniversalClient

	mu     sync.Mutex
	subs   map[*redisSub]struct{}
	closed bool
}

// NewRedis creates a Redis pub/sub bus over client. Close does not close the
// client.
func NewRedis(client redis.UniversalClient) *Redis {
	return &Redis{
		client: client,
		subs:   make(map[*redisSub]struct{}),
	}
}

// Publish implements Bus.
func (r *Redis) Publish(ctx context.Context, channel string, data []byte) error {
	if channel == "" {
		return ErrEmptyChannel
	}
	if r.isClosed() {
		return ErrClosed
	}
	if err := r.client.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", channel, err)
	}
	return nil
}

// Subscribe implements Bus. The subscription is confirmed by Redis before
// Subscribe returns.
func (r *Redis) Subscribe(ctx context.Context, channel string, h Handler) (Subscription, error) {
	if channel == "" {
		return nil, ErrEmptyChannel
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrClosed
	}
	r.mu.Unlock()

	ps := r.client.Subscribe(ctx, channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe to %s: %w", channel, err)
	}

	sub := &redisSub{owner: r, ps: ps, done: make(chan struct{})}
	r.mu.Lock()
	r.subs[sub] = struct{}{}
	r.mu.Unlock()

	go sub.run(ctx, channel, h)
	return sub, nil
}

// Close unsubscribes every active subscription.
func (r *Redis) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	subs := make([]*redisSub, 0, len(r.subs))
	for s := range r.subs {
		subs = append(subs, s)
	}
	r.mu.Unlock()

	for _, s := range subs {
		_ = s.Unsubscribe()
	}
	return nil
}

func (r *Redis) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

type redisSub struct {
	owner *Redis
	ps    *redis.PubSub
	once  sync.Once
	done  chan struct{}
}

func (s *redisSub) run(ctx context.Context, channel string, h Handler) {
	defer close(s.done)
	for msg := range s.ps.Channel() {
		if msg.Channel != channel {
			continue
		}
		h(ctx, []byte(msg.Payload))
	}
	logging.Ctx(ctx).Debug().Str("channel", channel).Msg("Redis subscription closed")
}

func (s *redisSub) Unsubscribe() error {
	var err error
	s.once.Do(func() {
		s.owner.mu.Lock()
		delete(s.owner.subs, s)
		s.owner.mu.Unlock()
		err = s.ps.Close()
		<-s.done
	})
	return err
}
