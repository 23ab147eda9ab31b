package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
)

// ProjectIgnoreFile holds docai specific ignore patterns, in .gitignore syntax.
const ProjectIgnoreFile = ".docai-ignore"

var defaultIgnoredNames = []string{
	"docai-config.yml",
	"docai-config.yaml",
	"docai-config.json",
	".git",
	".svn",
	".idea",
	".vscode",
	".cache",
	"node_modules",
	"vendor",
	"testdata",
	"bin",
	"obj",
	"dist",
	"out",
}

var defaultIgnoredSuffixes = []string{
	".exe",
	".dll",
	".so",
	".log",
	".bak",
	".bkp",
	".tmp",
	".sum",
}

// IsDefaultIgnored reports whether any element of the slash separated path is
// always skipped, independent of ignore files.
func IsDefaultIgnored(path string) bool {
	parts := strings.Split(filepath.ToSlash(path), "/")
	for _, part := range parts {
		part = strings.ToLower(part)
		if part == "" || part == "." {
			continue
		}
		if IsTempFile(part) {
			return true
		}
		for _, name := range defaultIgnoredNames {
			if part == name {
				return true
			}
		}
		for _, suffix := range defaultIgnoredSuffixes {
			if strings.HasSuffix(part, suffix) {
				return true
			}
		}
	}
	return false
}

// IgnoreMatcher combines .gitignore, .docai-ignore and the default ignore list.
type IgnoreMatcher struct {
	patterns *gitignore.GitIgnore
}

// NewIgnoreMatcher reads the ignore files found at the project root.
func NewIgnoreMatcher(root string) (*IgnoreMatcher, error) {
	var lines []string
	for _, name := range []string{".gitignore", ProjectIgnoreFile} {
		patterns, err := readIgnoreFile(filepath.Join(root, name))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
		lines = append(lines, patterns...)
	}

	matcher := &IgnoreMatcher{}
	if len(lines) > 0 {
		matcher.patterns = gitignore.CompileIgnoreLines(lines...)
	}
	return matcher, nil
}

// ShouldIgnore reports whether the project relative path is excluded.
func (m *IgnoreMatcher) ShouldIgnore(relativePath string) bool {
	relativePath = filepath.ToSlash(relativePath)
	if IsDefaultIgnored(relativePath) {
		return true
	}
	if m == nil || m.patterns == nil {
		return false
	}
	return m.patterns.MatchesPath(relativePath)
}

// readIgnoreFile returns the patterns of an ignore file; a missing file has none.
func readIgnoreFile(path string) ([]string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var patterns []string
	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "#") {
			patterns = append(patterns, line)
		}
	}
	return patterns, nil
}
