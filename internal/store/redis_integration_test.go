// drivecast - Real-time location-triggered safety alerts
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivecast

//go:build integration

package store

import (
	"context"
	"testing"
	"time"

	"github.com/tomtom215/drivecast/internal/testinfra"
)

func TestRedisContract(t *testing.T) {
	testinfra.SkipIfNoDocker(t)

	ctx := context.Background()
	rc, err := testinfra.NewRedisContainer(ctx)
	if err != nil {
		t.Fatalf("start redis: %v", err)
	}
	defer testinfra.CleanupContainer(t, ctx, rc)

	runContract(t, func(t *testing.T) Store {
		s, err := NewRedis(ctx, RedisOptions{Addr: rc.Addr, DialTimeout: 5 * time.Second})
		if err != nil {
			t.Fatalf("NewRedis: %v", err)
		}
		if err := s.Client().FlushDB(ctx).Err(); err != nil {
			t.Fatalf("flush: %v", err)
		}
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestRedisExpireIfEqualsSetsTTL(t *testing.T) {
	testinfra.SkipIfNoDocker(t)

	ctx := context.Background()
	rc, err := testinfra.NewRedisContainer(ctx)
	if err != nil {
		t.Fatalf("start redis: %v", err)
	}
	defer testinfra.CleanupContainer(t, ctx, rc)

	s, err := NewRedis(ctx, RedisOptions{Addr: rc.Addr})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	_ = s.Set(ctx, "owner", "n1", 0)
	if ok, err := s.ExpireIfEquals(ctx, "owner", "n1", 5*time.Minute); err != nil || !ok {
		t.Fatalf("ExpireIfEquals = %v, %v", ok, err)
	}
	ttl, err := s.Client().PTTL(ctx, "owner").Result()
	if err != nil {
		t.Fatal(err)
	}
	if ttl <= 4*time.Minute || ttl > 5*time.Minute {
		t.Errorf("TTL = %v, want about 5m", ttl)
	}
}
