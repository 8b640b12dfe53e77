package storage

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/bradfitz/gomemcache/memcache"

	"github.com/wanderapp/wander/internal/observability"
)

const keyPrefix = "wander:"

// MemcachedStore implements Store on memcached. Entries are written without
// expiry; durability matches the memcached deployment, which is acceptable
// for a shared-cache installation of the app.
type MemcachedStore struct {
	client *memcache.Client
}

// NewMemcachedStore creates a MemcachedStore. addrs is a comma-separated
// list (e.g. "localhost:11211" or "host1:11211,host2:11211"). timeout and
// maxIdleConns configure the client; both use package defaults if zero.
func NewMemcachedStore(addrs string, timeout time.Duration, maxIdleConns int) (*MemcachedStore, error) {
	servers := parseAddrs(addrs)
	if len(servers) == 0 {
		servers = []string{"localhost:11211"}
	}
	client := memcache.New(servers...)
	if timeout > 0 {
		client.Timeout = timeout
	}
	if maxIdleConns > 0 {
		client.MaxIdleConns = maxIdleConns
	}
	return &MemcachedStore{client: client}, nil
}

func parseAddrs(s string) []string {
	var out []string
	for _, a := range strings.Split(s, ",") {
		a = strings.TrimSpace(a)
		if a != "" {
			out = append(out, a)
		}
	}
	return out
}

func (c *MemcachedStore) key(k string) string {
	return keyPrefix + k
}

func (c *MemcachedStore) Get(key string) (json.RawMessage, bool) {
	item, err := c.client.Get(c.key(key))
	if err != nil {
		return nil, false
	}
	if !heal(item.Value) {
		c.Remove(key)
		observability.StorageSelfHealsTotal.WithLabelValues(key).Inc()
		return nil, false
	}
	return json.RawMessage(item.Value), true
}

func (c *MemcachedStore) Set(key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(&memcache.Item{Key: c.key(key), Value: raw})
}

func (c *MemcachedStore) Remove(key string) {
	_ = c.client.Delete(c.key(key))
}

// Ping checks if memcached is reachable. Used for health checks.
func (c *MemcachedStore) Ping() error {
	return c.client.Ping()
}

// Close closes the memcached client connections. Call during shutdown.
func (c *MemcachedStore) Close() error {
	return c.client.Close()
}
