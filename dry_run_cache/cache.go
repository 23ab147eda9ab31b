package dry_run_cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/meysamhadeli/docai/utils"
	"github.com/pterm/pterm"
)

// DefaultTTL is how long a cached response stays fresh.
const DefaultTTL = 24 * time.Hour

// Entry is one memoized provider response. Entries are replaced, never edited.
type Entry struct {
	SymbolID string    `json:"symbol_id"`
	Provider string    `json:"provider"`
	Text     string    `json:"text"`
	CachedAt time.Time `json:"cached_at"`
}

// ProjectCache is the on-disk document for one project.
type ProjectCache struct {
	ProjectPath string  `json:"project_path"`
	Entries     []Entry `json:"entries"`
}

// Stats describes the cache file of a project.
type Stats struct {
	Path        string
	Exists      bool
	Entries     int
	Fresh       int
	Expired     int
	SizeBytes   int64
	LastUpdated time.Time
}

type Option func(*CacheManager)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *CacheManager) { c.now = now }
}

func WithTTL(ttl time.Duration) Option {
	return func(c *CacheManager) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

func WithLogger(logger *pterm.Logger) Option {
	return func(c *CacheManager) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// CacheManager persists dry run responses per project under a cache directory.
// One in-process writer at a time updates a cache file.
type CacheManager struct {
	dir    string
	ttl    time.Duration
	now    func() time.Time
	logger *pterm.Logger
	mu     sync.Mutex
}

// NewCacheManager stores cache files under dir, or under the user cache
// directory when dir is empty.
func NewCacheManager(dir string, opts ...Option) (*CacheManager, error) {
	if dir == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			return nil, fmt.Errorf("failed to locate user cache directory: %w", err)
		}
		dir = filepath.Join(base, "docai")
	}

	c := &CacheManager{
		dir:    utils.ExpandHome(dir),
		ttl:    DefaultTTL,
		now:    time.Now,
		logger: utils.DiscardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Dir returns the directory holding cache files.
func (c *CacheManager) Dir() string {
	return c.dir
}

// CachePath returns the cache file of projectPath.
func (c *CacheManager) CachePath(projectPath string) string {
	return filepath.Join(c.dir, utils.ProjectHash(projectPath)+".json")
}

// IsCacheExpired reports whether an entry cached at cachedAt is older than the TTL.
// An entry exactly TTL old is still fresh.
func (c *CacheManager) IsCacheExpired(cachedAt time.Time) bool {
	return c.now().Sub(cachedAt) > c.ttl
}

// LoadCache reads the cache of projectPath. A missing, unreadable or corrupt
// file is reported as no cache.
func (c *CacheManager) LoadCache(projectPath string) (*ProjectCache, bool) {
	path := c.CachePath(projectPath)

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			c.logger.Warn("dry run cache unreadable", c.logger.Args("path", path, "error", err.Error()))
		}
		return nil, false
	}

	var cache ProjectCache
	if err := json.Unmarshal(data, &cache); err != nil {
		c.logger.Warn("dry run cache corrupt, ignoring", c.logger.Args("path", path, "error", err.Error()))
		return nil, false
	}
	return &cache, true
}

// Lookup returns the fresh entry for (symbolID, provider), if any.
func (c *CacheManager) Lookup(projectPath, symbolID, provider string) (Entry, bool) {
	cache, ok := c.LoadCache(projectPath)
	if !ok {
		return Entry{}, false
	}
	for _, entry := range cache.Entries {
		if entry.SymbolID == symbolID && entry.Provider == provider {
			if c.IsCacheExpired(entry.CachedAt) {
				return Entry{}, false
			}
			return entry, true
		}
	}
	return Entry{}, false
}

// SaveEntry replaces the entry for (symbol id, provider), or appends it, and
// rewrites the cache file atomically. A zero CachedAt is stamped with the clock.
func (c *CacheManager) SaveEntry(projectPath string, entry Entry) error {
	if entry.CachedAt.IsZero() {
		entry.CachedAt = c.now()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	cache, ok := c.LoadCache(projectPath)
	if !ok {
		canonical, err := utils.CanonicalPath(projectPath)
		if err != nil {
			canonical = projectPath
		}
		cache = &ProjectCache{ProjectPath: canonical}
	}

	entries := make([]Entry, 0, len(cache.Entries)+1)
	replaced := false
	for _, existing := range cache.Entries {
		if existing.SymbolID == entry.SymbolID && existing.Provider == entry.Provider {
			if !replaced {
				entries = append(entries, entry)
				replaced = true
			}
			continue
		}
		entries = append(entries, existing)
	}
	if !replaced {
		entries = append(entries, entry)
	}
	cache.Entries = entries

	return c.write(projectPath, cache)
}

func (c *CacheManager) write(projectPath string, cache *ProjectCache) error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	data, err := json.MarshalIndent(cache, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode dry run cache: %w", err)
	}

	if err := utils.WriteFileAtomic(c.CachePath(projectPath), data, 0o644); err != nil {
		return fmt.Errorf("failed to save dry run cache: %w", err)
	}
	return nil
}

// ClearCache removes the cache file of projectPath. Clearing a missing cache is not an error.
func (c *CacheManager) ClearCache(projectPath string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.Remove(c.CachePath(projectPath)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to clear dry run cache: %w", err)
	}
	return nil
}

// Stats summarizes the cache file of projectPath.
func (c *CacheManager) Stats(projectPath string) Stats {
	stats := Stats{Path: c.CachePath(projectPath)}

	info, err := os.Stat(stats.Path)
	if err != nil {
		return stats
	}
	stats.Exists = true
	stats.SizeBytes = info.Size()
	stats.LastUpdated = info.ModTime()

	cache, ok := c.LoadCache(projectPath)
	if !ok {
		return stats
	}
	stats.Entries = len(cache.Entries)
	for _, entry := range cache.Entries {
		if c.IsCacheExpired(entry.CachedAt) {
			stats.Expired++
		} else {
			stats.Fresh++
		}
	}
	return stats
}
