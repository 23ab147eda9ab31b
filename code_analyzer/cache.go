package code_analyzer

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/meysamhadeli/docai/code_analyzer/models"
)

// CacheEntry is the cached content and analysis of one source file.
type CacheEntry struct {
	Content  []byte
	Root     string
	Package  string
	Symbols  []models.ApiSymbol
	Analyzed bool
	FileSize int64
	ModTime  time.Time
}

// CacheStats tracks cache performance metrics
type CacheStats struct {
	TotalRequests int64
	CacheHits     int64
	CacheMisses   int64
	LastResetTime time.Time
	mutex         sync.RWMutex
}

// FileCache keeps source files in memory and drops an entry as soon as the file's
// modification time or size changes, so a written file is never served stale.
type FileCache struct {
	entries map[string]*CacheEntry
	mutex   sync.RWMutex
	stats   *CacheStats
}

func NewFileCache() *FileCache {
	return &FileCache{
		entries: make(map[string]*CacheEntry),
		stats:   &CacheStats{LastResetTime: time.Now()},
	}
}

// isFileChanged checks if a file has been modified since last cache
func isFileChanged(filePath string, entry *CacheEntry) (bool, error) {
	fileInfo, err := os.Stat(filePath)
	if err != nil {
		return true, err
	}
	return !fileInfo.ModTime().Equal(entry.ModTime) || fileInfo.Size() != entry.FileSize, nil
}

// Get returns the entry of filePath if the file has not changed since it was cached.
func (fc *FileCache) Get(filePath string) (*CacheEntry, bool) {
	fc.mutex.RLock()
	entry, ok := fc.entries[filePath]
	fc.mutex.RUnlock()

	if !ok {
		fc.recordCacheMiss()
		return nil, false
	}

	if changed, err := isFileChanged(filePath, entry); err != nil || changed {
		fc.Delete(filePath)
		fc.recordCacheMiss()
		return nil, false
	}

	fc.recordCacheHit()
	return entry, true
}

// Set stores entry for filePath, stamped with the file's current metadata.
func (fc *FileCache) Set(filePath string, entry *CacheEntry) error {
	fileInfo, err := os.Stat(filePath)
	if err != nil {
		return fmt.Errorf("failed to get file info: %w", err)
	}
	entry.FileSize = fileInfo.Size()
	entry.ModTime = fileInfo.ModTime()

	fc.mutex.Lock()
	defer fc.mutex.Unlock()
	fc.entries[filePath] = entry
	return nil
}

// ReadFile returns the content of filePath, from memory when it is unchanged.
func (fc *FileCache) ReadFile(filePath string) ([]byte, error) {
	if entry, ok := fc.Get(filePath); ok {
		return entry.Content, nil
	}

	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	_ = fc.Set(filePath, &CacheEntry{Content: content})
	return content, nil
}

// Delete removes a cache entry
func (fc *FileCache) Delete(filePath string) {
	fc.mutex.Lock()
	defer fc.mutex.Unlock()
	delete(fc.entries, filePath)
}

func (fc *FileCache) Len() int {
	fc.mutex.RLock()
	defer fc.mutex.RUnlock()
	return len(fc.entries)
}
