// drivecast - Real-time location-triggered safety alerts
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivecast

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tomtom215/drivecast/internal/geo"
)

// compareAndDelete deletes KEYS[1] only while it equals ARGV[1].
var compareAndDelete = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// compareAndExpire sets a PEXPIRE of ARGV[2] on KEYS[1] only while it
// equals ARGV[1]. A non-positive TTL removes the expiry.
var compareAndExpire = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	local ttl = tonumber(ARGV[2])
	if ttl > 0 then
		return redis.call("PEXPIRE", KEYS[1], ttl)
	end
	redis.call("PERSIST", KEYS[1])
	return 1
end
return 0
`)

// RedisOptions configures the Redis backend.
type RedisOptions struct {
	Addr         string
	Username     string
	Password     string
	DB           int
	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Redis is a Store backed by a Redis or Valkey server.
type Redis struct {
	client redis.UniversalClient
}

// NewRedis connects to Redis and verifies the connection with PING.
func NewRedis(ctx context.Context, opts RedisOptions) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Username:     opts.Username,
		Password:     opts.Password,
		DB:           opts.DB,
		PoolSize:     opts.PoolSize,
		DialTimeout:  opts.DialTimeout,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", opts.Addr, err)
	}
	return NewRedisFromClient(client), nil
}

// NewRedisFromClient wraps an existing client. The store owns the client
// and closes it on Close.
func NewRedisFromClient(client redis.UniversalClient) *Redis {
	return &Redis{client: client}
}

// Client exposes the underlying client so the relay bus can share the
// connection pool.
func (r *Redis) Client() redis.UniversalClient {
	return r.client
}

// SetIfAbsent implements Store with SET NX.
func (r *Redis) SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	ok, err := r.client.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("setnx %s: %w", key, err)
	}
	return ok, nil
}

// Get implements Store.
func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return v, true, nil
}

// Set implements Store.
func (r *Redis) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Delete implements Store.
func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("del %s: %w", key, err)
	}
	return nil
}

// DeleteIfEquals implements Store.
func (r *Redis) DeleteIfEquals(ctx context.Context, key, value string) (bool, error) {
	n, err := compareAndDelete.Run(ctx, r.client, []string{key}, value).Int64()
	if err != nil {
		return false, fmt.Errorf("compare-and-delete %s: %w", key, err)
	}
	return n == 1, nil
}

// ExpireIfEquals implements Store.
func (r *Redis) ExpireIfEquals(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	n, err := compareAndExpire.Run(ctx, r.client, []string{key}, value, ttl.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("compare-and-expire %s: %w", key, err)
	}
	return n == 1, nil
}

// GeoAdd implements Store.
func (r *Redis) GeoAdd(ctx context.Context, bucket, member string, p geo.Point, ttl time.Duration) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.GeoAdd(ctx, bucket, &redis.GeoLocation{
			Name:      member,
			Longitude: p.Lng,
			Latitude:  p.Lat,
		})
		if ttl > 0 {
			pipe.Expire(ctx, bucket, ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("geoadd %s: %w", bucket, err)
	}
	return nil
}

// GeoRadius implements Store with GEOSEARCH ... BYRADIUS.
func (r *Redis) GeoRadius(ctx context.Context, bucket string, center geo.Point, radiusMeters float64) ([]string, error) {
	members, err := r.client.GeoSearch(ctx, bucket, &redis.GeoSearchQuery{
		Longitude:  center.Lng,
		Latitude:   center.Lat,
		Radius:     radiusMeters,
		RadiusUnit: "m",
		Sort:       "ASC",
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("geosearch %s: %w", bucket, err)
	}
	return members, nil
}

// GeoPosition implements Store.
func (r *Redis) GeoPosition(ctx context.Context, bucket, member string) (geo.Point, bool, error) {
	pos, err := r.client.GeoPos(ctx, bucket, member).Result()
	if errors.Is(err, redis.Nil) {
		return geo.Point{}, false, nil
	}
	if err != nil {
		return geo.Point{}, false, fmt.Errorf("geopos %s: %w", bucket, err)
	}
	if len(pos) == 0 || pos[0] == nil {
		return geo.Point{}, false, nil
	}
	return geo.Point{Lat: pos[0].Latitude, Lng: pos[0].Longitude}, true, nil
}

// Close implements Store.
func (r *Redis) Close() error {
	return r.client.Close()
}
