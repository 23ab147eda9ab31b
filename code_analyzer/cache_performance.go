package code_analyzer

import (
	"time"
)

// PerformanceStats is a point in time copy of the cache counters.
type PerformanceStats struct {
	TotalRequests int64
	CacheHits     int64
	CacheMisses   int64
	HitRate       float64
	Uptime        time.Duration
	LastReset     time.Time
}

// recordCacheHit increments cache hit counter
func (fc *FileCache) recordCacheHit() {
	if fc.stats == nil {
		return
	}
	fc.stats.mutex.Lock()
	defer fc.stats.mutex.Unlock()
	fc.stats.TotalRequests++
	fc.stats.CacheHits++
}

// recordCacheMiss increments cache miss counter
func (fc *FileCache) recordCacheMiss() {
	if fc.stats == nil {
		return
	}
	fc.stats.mutex.Lock()
	defer fc.stats.mutex.Unlock()
	fc.stats.TotalRequests++
	fc.stats.CacheMisses++
}

// GetPerformanceStats returns the hit and miss counters of the cache.
func (fc *FileCache) GetPerformanceStats() PerformanceStats {
	if fc.stats == nil {
		return PerformanceStats{}
	}

	fc.stats.mutex.RLock()
	defer fc.stats.mutex.RUnlock()

	hitRate := 0.0
	if fc.stats.TotalRequests > 0 {
		hitRate = float64(fc.stats.CacheHits) / float64(fc.stats.TotalRequests) * 100
	}

	return PerformanceStats{
		TotalRequests: fc.stats.TotalRequests,
		CacheHits:     fc.stats.CacheHits,
		CacheMisses:   fc.stats.CacheMisses,
		HitRate:       hitRate,
		Uptime:        time.Since(fc.stats.LastResetTime),
		LastReset:     fc.stats.LastResetTime,
	}
}
