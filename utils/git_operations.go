package utils

import (
	"fmt"
	"os/exec"
	"strings"
)

// GitOperations answers questions about the git state of a project.
type GitOperations struct {
	workingDir string
}

func NewGitOperations(workingDir string) *GitOperations {
	return &GitOperations{workingDir: workingDir}
}

// CheckGitRepo checks if the working directory is inside a git repository
func (g *GitOperations) CheckGitRepo() error {
	cmd := exec.Command("git", "rev-parse", "--git-dir")
	cmd.Dir = g.workingDir
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("not a git repository")
	}
	return nil
}

// GetGitStatus returns the porcelain status of the working tree
func (g *GitOperations) GetGitStatus() (string, error) {
	cmd := exec.Command("git", "status", "--porcelain")
	cmd.Dir = g.workingDir
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("failed to get git status: %w", err)
	}
	return string(output), nil
}

// UncommittedGoFiles lists modified or untracked .go files; those are the
// files docai may overwrite.
func (g *GitOperations) UncommittedGoFiles() ([]string, error) {
	status, err := g.GetGitStatus()
	if err != nil {
		return nil, err
	}

	var files []string
	for _, line := range strings.Split(status, "\n") {
		if len(line) < 4 {
			continue
		}
		path := strings.TrimSpace(line[3:])
		if idx := strings.Index(path, " -> "); idx >= 0 {
			path = path[idx+4:]
		}
		if strings.HasSuffix(path, ".go") {
			files = append(files, path)
		}
	}
	return files, nil
}
