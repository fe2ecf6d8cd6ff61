/*
Copyright © 2025 Benny Powers <web@bennypowers.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/

// Package cache implements the optional on-disk parse cache from spec
// §6: entries are keyed by (path, modification_time, file_size), carry a
// parser version, and expire on TTL or size limit with an LRU-ish
// drop-oldest-10%-when-full policy. Disk storage is github.com/peterbourgon/diskv,
// the same flat-file cache backend httpcache uses, so a disabled/in-memory
// mode and a persistent mode share one interface.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/peterbourgon/diskv"
)

// Key identifies a cached parse result.
type Key struct {
	Path         string
	ModifiedUnix int64
	Size         int64
	ParserVersion string
}

func (k Key) digest() string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%d|%d|%s", k.Path, k.ModifiedUnix, k.Size, k.ParserVersion)
	return hex.EncodeToString(h.Sum(nil))
}

type entry struct {
	StoredAt int64  `json:"storedAt"`
	Value    []byte `json:"value"`
}

// Cache is safe for concurrent use.
type Cache struct {
	mu           sync.Mutex
	disk         *diskv.Diskv
	enabled      bool
	persistent   bool
	ttl          time.Duration
	maxEntries   int
	memoryIndex  map[string]int64 // digest -> storedAt, used for LRU-ish eviction bookkeeping
	mem          map[string][]byte
}

// Options configures a Cache; zero value disables persistence.
type Options struct {
	Enabled      bool
	Persistent   bool
	CacheDir     string
	TTL          time.Duration
	MaxSizeBytes int64
}

// New builds a Cache. When Persistent is false, entries live only in
// process memory (still governed by TTL/MaxSizeBytes eviction), matching
// the disable-cache environment switches from spec §6.
func New(opts Options) *Cache {
	c := &Cache{
		enabled:     opts.Enabled,
		persistent:  opts.Persistent && opts.CacheDir != "",
		ttl:         opts.TTL,
		memoryIndex: make(map[string]int64),
		mem:         make(map[string][]byte),
	}
	if c.persistent {
		c.disk = diskv.New(diskv.Options{
			BasePath:     opts.CacheDir,
			Transform:    func(s string) []string { return []string{s[:2], s[2:4]} },
			CacheSizeMax: uint64(opts.MaxSizeBytes),
		})
	}
	// approximate entry budget for the drop-oldest-10%-when-full policy;
	// callers don't need to know individual value sizes to trigger GC.
	c.maxEntries = 10_000
	if opts.MaxSizeBytes > 0 {
		c.maxEntries = int(opts.MaxSizeBytes / 4096)
		if c.maxEntries < 64 {
			c.maxEntries = 64
		}
	}
	return c
}

// Get returns the cached value for key if present and not expired.
func (c *Cache) Get(key Key) ([]byte, bool) {
	if !c.enabled {
		return nil, false
	}
	digest := key.digest()

	c.mu.Lock()
	defer c.mu.Unlock()

	raw, ok := c.read(digest)
	if !ok {
		return nil, false
	}
	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, false
	}
	if c.ttl > 0 && time.Since(time.Unix(e.StoredAt, 0)) > c.ttl {
		c.evict(digest)
		return nil, false
	}
	c.memoryIndex[digest] = time.Now().Unix() // touch for LRU-ish recency
	return e.Value, true
}

// Set stores value under key, evicting the oldest 10% of entries first if
// the cache is at its entry budget.
func (c *Cache) Set(key Key, value []byte) error {
	if !c.enabled {
		return nil
	}
	digest := key.digest()

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.memoryIndex) >= c.maxEntries {
		c.evictOldestLocked(c.maxEntries / 10)
	}

	raw, err := json.Marshal(entry{StoredAt: time.Now().Unix(), Value: value})
	if err != nil {
		return err
	}
	c.memoryIndex[digest] = time.Now().Unix()
	return c.write(digest, raw)
}

func (c *Cache) read(digest string) ([]byte, bool) {
	if v, ok := c.mem[digest]; ok {
		return v, true
	}
	if c.disk != nil && c.disk.Has(digest) {
		v, err := c.disk.Read(digest)
		if err == nil {
			return v, true
		}
	}
	return nil, false
}

func (c *Cache) write(digest string, raw []byte) error {
	c.mem[digest] = raw
	if c.disk != nil {
		return c.disk.Write(digest, raw)
	}
	return nil
}

func (c *Cache) evict(digest string) {
	delete(c.mem, digest)
	delete(c.memoryIndex, digest)
	if c.disk != nil {
		_ = c.disk.Erase(digest)
	}
}

func (c *Cache) evictOldestLocked(n int) {
	if n <= 0 {
		n = 1
	}
	type kv struct {
		digest string
		at     int64
	}
	all := make([]kv, 0, len(c.memoryIndex))
	for d, at := range c.memoryIndex {
		all = append(all, kv{d, at})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].at < all[j].at })
	for i := 0; i < n && i < len(all); i++ {
		c.evict(all[i].digest)
	}
}

// Clear removes every entry; used by environment-switch "disable cache"
// handling and by tests.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for d := range c.memoryIndex {
		c.evict(d)
	}
}
