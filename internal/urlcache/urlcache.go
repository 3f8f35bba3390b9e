// Package urlcache remembers which snapshot URL worked for a device so the
// next acquisition can skip straight to it. It stores one URL string per
// device address with a TTL: a cache of probe outcomes, not a device store.
// Every path through it degrades to "cache miss" on trouble.
package urlcache

import (
	"context"
	"log"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"
)

// Store is what the orchestrator sees. Get returning false means "probe
// from scratch"; Put failures are invisible by design.
type Store interface {
	Get(ctx context.Context, deviceAddr string) (string, bool)
	Put(ctx context.Context, deviceAddr, url string)
}

type memoryEntry struct {
	url     string
	addedAt time.Time
}

// Memory is an in-process LRU with TTL. It is the only tier when redis is
// not configured, and the read-through front when it is.
type Memory struct {
	cache *lru.Cache[string, memoryEntry]
	ttl   time.Duration
}

func NewMemory(size int, ttl time.Duration) *Memory {
	c, _ := lru.New[string, memoryEntry](size)
	return &Memory{cache: c, ttl: ttl}
}

func (m *Memory) Get(_ context.Context, deviceAddr string) (string, bool) {
	e, ok := m.cache.Get(deviceAddr)
	if !ok {
		return "", false
	}
	if time.Since(e.addedAt) > m.ttl {
		m.cache.Remove(deviceAddr)
		return "", false
	}
	return e.url, true
}

func (m *Memory) Put(_ context.Context, deviceAddr, url string) {
	m.cache.Add(deviceAddr, memoryEntry{url: url, addedAt: time.Now()})
}

// Redis persists working URLs across restarts, with a Memory front so the
// common repeat-device case stays off the wire.
type Redis struct {
	client *redis.Client
	front  *Memory
	ttl    time.Duration
}

func NewRedis(client *redis.Client, frontSize int, ttl time.Duration) *Redis {
	return &Redis{
		client: client,
		front:  NewMemory(frontSize, ttl),
		ttl:    ttl,
	}
}

func key(deviceAddr string) string {
	return "snapurl:" + deviceAddr
}

func (r *Redis) Get(ctx context.Context, deviceAddr string) (string, bool) {
	if url, ok := r.front.Get(ctx, deviceAddr); ok {
		return url, true
	}
	url, err := r.client.Get(ctx, key(deviceAddr)).Result()
	if err == redis.Nil {
		return "", false
	}
	if err != nil {
		log.Printf("[urlcache] redis get %s: %v", deviceAddr, err)
		return "", false
	}
	r.front.Put(ctx, deviceAddr, url)
	return url, true
}

func (r *Redis) Put(ctx context.Context, deviceAddr, url string) {
	r.front.Put(ctx, deviceAddr, url)
	if err := r.client.Set(ctx, key(deviceAddr), url, r.ttl).Err(); err != nil {
		log.Printf("[urlcache] redis set %s: %v", deviceAddr, err)
	}
}
