// drivecast - Real-time location-triggered safety alerts
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivecast

package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/drivecast/internal/geo"
)

// Key prefixes separating plain values from geo bucket members.
const (
	badgerValuePrefix = "v\x00"
	badgerGeoPrefix   = "g\x00"
)

// BadgerOptions configures the Badger backend.
type BadgerOptions struct {
	Path     string
	InMemory bool
}

// Badger is a Store backed by an embedded BadgerDB. It is suitable for a
// single node only; multiple nodes cannot share one database.
type Badger struct {
	db *badger.DB
}

// NewBadger opens (or creates) a Badger database.
func NewBadger(opts BadgerOptions) (*Badger, error) {
	bopts := badger.DefaultOptions(opts.Path)
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	}
	bopts.Logger = nil // Suppress BadgerDB logs

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open badger db: %w", err)
	}
	return &Badger{db: db}, nil
}

func valueKey(key string) []byte {
	return []byte(badgerValuePrefix + key)
}

func geoKey(bucket, member string) []byte {
	return []byte(badgerGeoPrefix + bucket + "\x00" + member)
}

func geoPrefix(bucket string) []byte {
	return []byte(badgerGeoPrefix + bucket + "\x00")
}

func newEntry(key []byte, value []byte, ttl time.Duration) *badger.Entry {
	e := badger.NewEntry(key, value)
	if ttl > 0 {
		e = e.WithTTL(ttl)
	}
	return e
}

// readValue returns the value at key inside txn.
func readValue(txn *badger.Txn, key []byte) (string, bool, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	val, err := item.ValueCopy(nil)
	if err != nil {
		return "", false, err
	}
	return string(val), true, nil
}

// SetIfAbsent implements Store. Two concurrent claims on the same key
// conflict at commit; the loser reports false.
func (b *Badger) SetIfAbsent(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	created := false
	err := b.db.Update(func(txn *badger.Txn) error {
		_, exists, err := readValue(txn, valueKey(key))
		if err != nil || exists {
			return err
		}
		created = true
		return txn.SetEntry(newEntry(valueKey(key), []byte(value), ttl))
	})
	if errors.Is(err, badger.ErrConflict) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("set-if-absent %s: %w", key, err)
	}
	return created, nil
}

// Get implements Store.
func (b *Badger) Get(_ context.Context, key string) (string, bool, error) {
	var (
		val string
		ok  bool
	)
	err := b.db.View(func(txn *badger.Txn) error {
		var err error
		val, ok, err = readValue(txn, valueKey(key))
		return err
	})
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return val, ok, nil
}

// Set implements Store.
func (b *Badger) Set(_ context.Context, key, value string, ttl time.Duration) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(newEntry(valueKey(key), []byte(value), ttl))
	})
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Delete implements Store.
func (b *Badger) Delete(_ context.Context, key string) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(valueKey(key))
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// compareAndUpdate runs apply inside one transaction when key holds value.
func (b *Badger) compareAndUpdate(key, value string, apply func(txn *badger.Txn) error) (bool, error) {
	matched := false
	err := b.db.Update(func(txn *badger.Txn) error {
		current, ok, err := readValue(txn, valueKey(key))
		if err != nil || !ok || current != value {
			return err
		}
		matched = true
		return apply(txn)
	})
	if errors.Is(err, badger.ErrConflict) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return matched, nil
}

// DeleteIfEquals implements Store.
func (b *Badger) DeleteIfEquals(_ context.Context, key, value string) (bool, error) {
	ok, err := b.compareAndUpdate(key, value, func(txn *badger.Txn) error {
		return txn.Delete(valueKey(key))
	})
	if err != nil {
		return false, fmt.Errorf("compare-and-delete %s: %w", key, err)
	}
	return ok, nil
}

// ExpireIfEquals implements Store.
func (b *Badger) ExpireIfEquals(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	ok, err := b.compareAndUpdate(key, value, func(txn *badger.Txn) error {
		return txn.SetEntry(newEntry(valueKey(key), []byte(value), ttl))
	})
	if err != nil {
		return false, fmt.Errorf("compare-and-expire %s: %w", key, err)
	}
	return ok, nil
}

// GeoAdd implements Store. Each member is its own entry, so the bucket TTL
// applies per member from the time it was last written.
func (b *Badger) GeoAdd(_ context.Context, bucket, member string, p geo.Point, ttl time.Duration) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal point: %w", err)
	}
	err = b.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(newEntry(geoKey(bucket, member), data, ttl))
	})
	if err != nil {
		return fmt.Errorf("geoadd %s: %w", bucket, err)
	}
	return nil
}

// GeoRadius implements Store by scanning the bucket prefix.
func (b *Badger) GeoRadius(_ context.Context, bucket string, center geo.Point, radiusMeters float64) ([]string, error) {
	type hit struct {
		member string
		dist   float64
	}
	var hits []hit

	prefix := geoPrefix(bucket)
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			var p geo.Point
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &p)
			}); err != nil {
				return err
			}
			if d := geo.DistanceMeters(center, p); d <= radiusMeters {
				hits = append(hits, hit{member: string(item.Key()[len(prefix):]), dist: d})
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("georadius %s: %w", bucket, err)
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].dist < hits[j].dist })
	members := make([]string, len(hits))
	for i, h := range hits {
		members[i] = h.member
	}
	return members, nil
}

// GeoPosition implements Store.
func (b *Badger) GeoPosition(_ context.Context, bucket, member string) (geo.Point, bool, error) {
	var (
		p  geo.Point
		ok bool
	)
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(geoKey(bucket, member))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		ok = true
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &p)
		})
	})
	if err != nil {
		return geo.Point{}, false, fmt.Errorf("geopos %s: %w", bucket, err)
	}
	return p, ok, nil
}

// Close implements Store.
func (b *Badger) Close() error {
	return b.db.Close()
}
