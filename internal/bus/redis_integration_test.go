// drivecast - Real-time location-triggered safety alerts
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivecast

//go:build integration

package bus

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"

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

	clientA := redis.NewClient(&redis.Options{Addr: rc.Addr})
	defer clientA.Close()
	clientB := redis.NewClient(&redis.Options{Addr: rc.Addr})
	defer clientB.Close()

	a := NewRedis(clientA)
	defer a.Close()
	b := NewRedis(clientB)
	defer b.Close()

	runContract(t, a, b)
}
