package utils

import (
	"crypto/md5"
	"fmt"
	"testing"

	"github.com/zeebo/xxh3"
)

var benchmarkProjectPaths = []string{
	"/home/dev/src/github.com/acme/api",
	"/home/dev/src/github.com/acme/api/internal/billing",
	"/Users/dev/go/src/example.com/very/long/path/to/some/deeply/nested/project",
	"/srv/build/workspace/monorepo/services/gateway",
	"/tmp/docai-scratch",
}

// BenchmarkProjectKey compares the key hash used for cache files and backup
// directories against md5.
func BenchmarkProjectKey(b *testing.B) {
	b.Run("MD5", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			path := benchmarkProjectPaths[i%len(benchmarkProjectPaths)]
			_ = fmt.Sprintf("%x", md5.Sum([]byte(path)))
		}
	})

	b.Run("XXH3", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			path := benchmarkProjectPaths[i%len(benchmarkProjectPaths)]
			_ = fmt.Sprintf("%016x", xxh3.HashString(path))
		}
	})

	b.Run("ProjectHash", func(b *testing.B) {
		dir := b.TempDir()
		for i := 0; i < b.N; i++ {
			_ = ProjectHash(dir)
		}
	})
}

func TestProjectKeyIsStable(t *testing.T) {
	for _, path := range benchmarkProjectPaths {
		first := fmt.Sprintf("%016x", xxh3.HashString(path))
		for i := 0; i < 100; i++ {
			if again := fmt.Sprintf("%016x", xxh3.HashString(path)); again != first {
				t.Fatalf("xxh3 key of %s changed: %s != %s", path, first, again)
			}
		}
	}
}
