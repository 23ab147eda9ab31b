package backup_manager

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/meysamhadeli/docai/utils"
	"github.com/pterm/pterm"
)

const (
	// TimestampLayout names snapshot directories; millisecond precision.
	TimestampLayout = "2006-01-02_150405.000"
	ManifestFile    = "manifest.json"
)

var (
	ErrBackupFailed   = errors.New("backup failed")
	ErrBackupNotFound = errors.New("backup not found")
)

// Snapshot is a complete copy of a set of project files taken before mutation.
type Snapshot struct {
	Path        string    `json:"-"`
	ProjectPath string    `json:"project_path"`
	Files       []string  `json:"files"`
	CreatedAt   time.Time `json:"created_at"`
}

// Covers reports whether file resolves to one of the snapshot's files.
func (s *Snapshot) Covers(file string) bool {
	if !filepath.IsAbs(file) {
		return false
	}
	canonical, err := utils.CanonicalPath(file)
	if err != nil || !utils.IsWithin(s.ProjectPath, canonical) {
		return false
	}
	rel, err := filepath.Rel(s.ProjectPath, canonical)
	if err != nil {
		return false
	}
	for _, f := range s.Files {
		if f == rel {
			return true
		}
	}
	return false
}

type Option func(*Manager)

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func WithLogger(logger *pterm.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// Manager snapshots files under <root>/<project id>/<timestamp> and restores them.
type Manager struct {
	root   string
	now    func() time.Time
	logger *pterm.Logger
}

// NewManager keeps snapshots under root, or ~/.docai/backups when root is empty.
func NewManager(root string, opts ...Option) (*Manager, error) {
	if root == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to locate home directory: %w", err)
		}
		root = filepath.Join(home, ".docai", "backups")
	}

	m := &Manager{
		root:   utils.ExpandHome(root),
		now:    time.Now,
		logger: utils.DiscardLogger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

func (m *Manager) Root() string {
	return m.root
}

// ProjectDir is the directory holding every snapshot of projectPath.
func (m *Manager) ProjectDir(projectPath string) string {
	return filepath.Join(m.root, utils.ProjectHash(projectPath))
}

// CreateBackup copies files into a fresh snapshot directory. Files must be absolute
// paths inside projectPath; others are skipped with a warning. Any copy failure
// removes the partial snapshot and returns ErrBackupFailed.
func (m *Manager) CreateBackup(projectPath string, files []string) (*Snapshot, error) {
	project, err := utils.CanonicalPath(projectPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackupFailed, err)
	}

	createdAt := m.now()
	dir, err := m.reserveDir(m.ProjectDir(project), createdAt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackupFailed, err)
	}

	snapshot := &Snapshot{Path: dir, ProjectPath: project, CreatedAt: createdAt}
	seen := make(map[string]bool, len(files))

	for _, file := range files {
		rel, ok := m.relativeTo(project, file)
		if !ok || seen[rel] {
			continue
		}
		seen[rel] = true

		if err := utils.CopyFileAtomic(filepath.Join(project, rel), filepath.Join(dir, rel)); err != nil {
			_ = os.RemoveAll(dir)
			return nil, fmt.Errorf("%w: %v", ErrBackupFailed, err)
		}
		snapshot.Files = append(snapshot.Files, rel)
	}

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err == nil {
		err = utils.WriteFileAtomic(filepath.Join(dir, ManifestFile), data, 0o644)
	}
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("%w: failed to write manifest: %v", ErrBackupFailed, err)
	}

	m.logger.Info("backup created", m.logger.Args("path", dir, "files", len(snapshot.Files)))
	return snapshot, nil
}

// relativeTo validates file for inclusion in a snapshot of project.
func (m *Manager) relativeTo(project, file string) (string, bool) {
	if !filepath.IsAbs(file) {
		m.logger.Warn("skipping non absolute path", m.logger.Args("file", file))
		return "", false
	}

	canonical, err := utils.CanonicalPath(file)
	if err != nil {
		m.logger.Warn("skipping unresolvable file", m.logger.Args("file", file, "error", err.Error()))
		return "", false
	}

	info, err := os.Stat(canonical)
	if err != nil || !info.Mode().IsRegular() {
		m.logger.Warn("skipping missing file", m.logger.Args("file", file))
		return "", false
	}

	if !utils.IsWithin(project, canonical) {
		m.logger.Warn("skipping file outside the project", m.logger.Args("file", file, "project", project))
		return "", false
	}

	rel, err := filepath.Rel(project, canonical)
	if err != nil {
		return "", false
	}
	return rel, true
}

// reserveDir creates <parent>/<timestamp>, appending _1, _2, ... until a name is free.
func (m *Manager) reserveDir(parent string, at time.Time) (string, error) {
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return "", fmt.Errorf("failed to create backup root: %w", err)
	}

	base := filepath.Join(parent, at.Format(TimestampLayout))
	candidate := base
	for n := 1; ; n++ {
		err := os.Mkdir(candidate, 0o755)
		if err == nil {
			return candidate, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("failed to create backup directory: %w", err)
		}
		candidate = base + "_" + strconv.Itoa(n)
	}
}

// RestoreBackup copies every file of the snapshot at backupPath back into projectPath.
// Restoration is best effort; the number of restored files is always returned and
// per-file failures are joined into the error.
func (m *Manager) RestoreBackup(backupPath, projectPath string) (int, error) {
	backupPath = utils.ExpandHome(backupPath)
	if !m.ValidateBackup(backupPath) {
		return 0, fmt.Errorf("%w: %s", ErrBackupNotFound, backupPath)
	}

	project, err := utils.CanonicalPath(projectPath)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve project path: %w", err)
	}

	files, err := m.snapshotFiles(backupPath)
	if err != nil {
		return 0, err
	}

	restored := 0
	var errs []error
	for _, rel := range files {
		target := filepath.Join(project, rel)
		if !utils.IsWithin(project, target) {
			errs = append(errs, fmt.Errorf("refusing to restore %s outside the project", rel))
			continue
		}
		if err := utils.CopyFileAtomic(filepath.Join(backupPath, rel), target); err != nil {
			m.logger.Error("failed to restore file", m.logger.Args("file", rel, "error", err.Error()))
			errs = append(errs, err)
			continue
		}
		restored++
	}

	m.logger.Info("backup restored", m.logger.Args("path", backupPath, "restored", restored, "failed", len(errs)))
	return restored, errors.Join(errs...)
}

// snapshotFiles lists the files of a snapshot from its manifest, or by walking it.
func (m *Manager) snapshotFiles(backupPath string) ([]string, error) {
	if snapshot, err := readManifest(backupPath); err == nil {
		return snapshot.Files, nil
	}

	var files []string
	err := filepath.WalkDir(backupPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || utils.IsTempFile(d.Name()) {
			return nil
		}
		rel, err := filepath.Rel(backupPath, path)
		if err != nil {
			return err
		}
		if rel == ManifestFile {
			return nil
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read backup %s: %w", backupPath, err)
	}
	return files, nil
}

// ReadSnapshot loads the manifest of the snapshot at backupPath. A snapshot
// without a readable manifest is described from its tree like RestoreBackup
// does; its ProjectPath is then empty.
func (m *Manager) ReadSnapshot(backupPath string) (*Snapshot, error) {
	backupPath = utils.ExpandHome(backupPath)
	if !m.ValidateBackup(backupPath) {
		return nil, fmt.Errorf("%w: %s", ErrBackupNotFound, backupPath)
	}
	if snapshot, err := readManifest(backupPath); err == nil {
		return snapshot, nil
	}

	files, err := m.snapshotFiles(backupPath)
	if err != nil {
		return nil, err
	}
	return &Snapshot{Path: backupPath, Files: files, CreatedAt: parseDirTime(filepath.Base(backupPath))}, nil
}

func readManifest(backupPath string) (*Snapshot, error) {
	data, err := os.ReadFile(filepath.Join(backupPath, ManifestFile))
	if err != nil {
		return nil, err
	}
	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, err
	}
	snapshot.Path = backupPath
	return &snapshot, nil
}

// ValidateBackup reports whether backupPath names an existing directory.
func (m *Manager) ValidateBackup(backupPath string) bool {
	info, err := os.Stat(utils.ExpandHome(backupPath))
	return err == nil && info.IsDir()
}

// ListBackups returns the snapshots of projectPath, newest first.
func (m *Manager) ListBackups(projectPath string) ([]Snapshot, error) {
	dir := m.ProjectDir(projectPath)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list backups: %w", err)
	}

	var snapshots []Snapshot
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		snapshot, err := m.ReadSnapshot(path)
		if err != nil {
			snapshot = &Snapshot{Path: path, CreatedAt: parseDirTime(entry.Name())}
		}
		snapshots = append(snapshots, *snapshot)
	}

	sort.SliceStable(snapshots, func(i, j int) bool {
		if snapshots[i].CreatedAt.Equal(snapshots[j].CreatedAt) {
			return snapshots[i].Path > snapshots[j].Path
		}
		return snapshots[i].CreatedAt.After(snapshots[j].CreatedAt)
	})
	return snapshots, nil
}

func parseDirTime(name string) time.Time {
	if idx := strings.LastIndex(name, "_"); idx > len("2006-01-02") {
		if _, err := strconv.Atoi(name[idx+1:]); err == nil {
			name = name[:idx]
		}
	}
	t, err := time.ParseInLocation(TimestampLayout, name, time.Local)
	if err != nil {
		return time.Time{}
	}
	return t
}
