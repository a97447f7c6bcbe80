package driver

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"moonc/internal/config"
)

// Digest keys a cache entry.
type Digest [sha256.Size]byte

func (d Digest) String() string { return hex.EncodeToString(d[:]) }

// CacheKey hashes the encoded chunk together with everything that changes the
// output for it.
func CacheKey(input []byte, opts config.Options) Digest {
	h := sha256.New()
	var schema [2]byte
	binary.LittleEndian.PutUint16(schema[:], ArtifactSchema)
	h.Write(schema[:])
	h.Write([]byte(opts.Key()))
	h.Write([]byte{0})
	h.Write(input)
	var d Digest
	copy(d[:], h.Sum(nil))
	return d
}

// DiskCache stores artifacts by Digest. Safe for concurrent use. A nil
// *DiskCache is a cache that never hits.
type DiskCache struct {
	mu  sync.RWMutex
	dir string
}

// OpenDiskCache opens the cache under $XDG_CACHE_HOME/app, falling back to
// ~/.cache/app.
func OpenDiskCache(app string) (*DiskCache, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		base = filepath.Join(home, ".cache")
	}
	return OpenDiskCacheAt(filepath.Join(base, app))
}

// OpenDiskCacheAt opens a cache rooted at dir.
func OpenDiskCacheAt(dir string) (*DiskCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &DiskCache{dir: dir}, nil
}

// Dir returns the cache root.
func (c *DiskCache) Dir() string {
	if c == nil {
		return ""
	}
	return c.dir
}

func (c *DiskCache) pathFor(key Digest) string {
	return filepath.Join(c.dir, "chunks", key.String()+".mp")
}

// Put stores art under key.
func (c *DiskCache) Put(key Digest, art *Artifact) error {
	if c == nil {
		return nil
	}
	data, err := msgpack.Marshal(art)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return writeAtomic(c.pathFor(key), data)
}

// Get loads the artifact stored under key. Entries from an older schema are
// reported as misses.
func (c *DiskCache) Get(key Digest) (*Artifact, bool, error) {
	if c == nil {
		return nil, false, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	data, err := os.ReadFile(c.pathFor(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	// A truncated or corrupt entry is a miss; the next Put overwrites it.
	var art Artifact
	if err := msgpack.Unmarshal(data, &art); err != nil {
		return nil, false, nil
	}
	if art.Schema != ArtifactSchema {
		return nil, false, nil
	}
	return &art, true, nil
}

// DropAll removes every entry.
func (c *DiskCache) DropAll() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	old := c.dir + ".old-" + time.Now().Format("20060102150405")
	if err := os.Rename(c.dir, old); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if err := os.RemoveAll(old); err != nil {
		return err
	}
	return os.MkdirAll(c.dir, 0o755)
}
