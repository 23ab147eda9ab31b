package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/meysamhadeli/docai/backup_manager"
	"github.com/meysamhadeli/docai/code_analyzer"
	code_analyzer_models "github.com/meysamhadeli/docai/code_analyzer/models"
	"github.com/meysamhadeli/docai/doc_generator"
	"github.com/meysamhadeli/docai/doc_generator/models"
	provider_contracts "github.com/meysamhadeli/docai/providers/contracts"
	provider_models "github.com/meysamhadeli/docai/providers/models"
	"github.com/meysamhadeli/docai/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGateway struct {
	available bool
}

func (g *fakeGateway) Generate(context.Context, provider_models.GenerationRequest) (provider_models.GatewayResult, error) {
	return provider_models.GatewayResult{}, errors.New("not used")
}
func (g *fakeGateway) ActiveProvider() provider_contracts.IDocProvider { return nil }
func (g *fakeGateway) IsAvailable() bool                               { return g.available }

// fakeGenerator drafts "<Name> does things." for every symbol.
type fakeGenerator struct {
	mu     sync.Mutex
	calls  int
	dryRun bool
	fail   map[string]bool
	hook   func()
}

func (g *fakeGenerator) Generate(_ context.Context, _ string, symbols []code_analyzer_models.ApiSymbol, _ int, dryRun bool) []models.GeneratedDocumentation {
	g.mu.Lock()
	g.calls++
	g.dryRun = dryRun
	g.mu.Unlock()
	if g.hook != nil {
		g.hook()
	}

	docs := make([]models.GeneratedDocumentation, len(symbols))
	for i, symbol := range symbols {
		docs[i] = models.GeneratedDocumentation{SymbolID: symbol.ID, FilePath: symbol.FilePath, Provider: "fake", Status: models.StatusPending}
		if g.fail[symbol.Name] {
			docs[i].Status = models.StatusFailed
			docs[i].Error = errors.New("provider failed")
			continue
		}
		docs[i].Text = symbol.Name + " does things."
	}
	return docs
}

type recordingConfirmer struct {
	write    bool
	rollback bool
	err      error

	writeCalls    int
	changeCount   int
	fileCount     int
	rollbackCalls int
	rollbackFiles int
	rollbackPath  string
}

func (c *recordingConfirmer) ConfirmBatchWrite(changeCount, fileCount int) (bool, error) {
	c.writeCalls++
	c.changeCount, c.fileCount = changeCount, fileCount
	return c.write, c.err
}

func (c *recordingConfirmer) ConfirmRollback(fileCount int, backupPath string) (bool, error) {
	c.rollbackCalls++
	c.rollbackFiles, c.rollbackPath = fileCount, backupPath
	return c.rollback, nil
}

// scriptedEditor replaces the draft of every symbol named in revisions.
type scriptedEditor struct {
	revisions map[string]string
	seen      []string
}

func (e *scriptedEditor) Edit(symbol code_analyzer_models.ApiSymbol, text string) (string, error) {
	e.seen = append(e.seen, symbol.Name)
	if revised, ok := e.revisions[symbol.Name]; ok {
		return revised, nil
	}
	return text, nil
}

// failingWriter fails every write into the file with the given base name.
type failingWriter struct {
	*code_analyzer.DocWriter
	failOn string
	writes []string
}

func (w *failingWriter) InsertDocumentation(file string, symbol code_analyzer_models.ApiSymbol, text string) error {
	if filepath.Base(file) == w.failOn {
		return errors.New("disk full")
	}
	w.writes = append(w.writes, filepath.Base(file))
	return w.DocWriter.InsertDocumentation(file, symbol, text)
}

type failingBackups struct{ calls int }

func (b *failingBackups) CreateBackup(string, []string) (*backup_manager.Snapshot, error) {
	b.calls++
	return nil, backup_manager.ErrBackupFailed
}
func (b *failingBackups) RestoreBackup(string, string) (int, error) { return 0, errors.New("not used") }

// partialBackups snapshots every file but the last one it is given.
type partialBackups struct{ *backup_manager.Manager }

func (b partialBackups) CreateBackup(project string, files []string) (*backup_manager.Snapshot, error) {
	return b.Manager.CreateBackup(project, files[:len(files)-1])
}

// panickingCollector panics while collecting the context of the named symbol.
type panickingCollector struct{ name string }

func (c panickingCollector) CollectContext(_ context.Context, symbol code_analyzer_models.ApiSymbol) (code_analyzer_models.ApiContext, error) {
	if symbol.Name == c.name {
		panic("collector boom")
	}
	return code_analyzer_models.ApiContext{SymbolID: symbol.ID}, nil
}

// echoGateway answers every request with "<symbol id> drafted.".
type echoGateway struct{}

func (echoGateway) Generate(_ context.Context, request provider_models.GenerationRequest) (provider_models.GatewayResult, error) {
	return provider_models.GatewayResult{Provider: "echo", Response: provider_models.GenerationResponse{Text: request.SymbolID + " drafted."}}, nil
}
func (echoGateway) ActiveProvider() provider_contracts.IDocProvider { return nil }
func (echoGateway) IsAvailable() bool                               { return true }

type panickingAnalyzer struct{}

func (panickingAnalyzer) AnalyzeProject(context.Context, string) ([]code_analyzer_models.ApiSymbol, []code_analyzer_models.Diagnostic, error) {
	panic("boom")
}

var fixtureFiles = map[string]string{
	"a.go": "package p\n\nfunc A() {}\n",
	"b.go": "package p\n\nfunc B() {}\n",
	"c.go": "package p\n\n// C is documented.\nfunc C() {}\n\nfunc D() {}\n",
}

type harness struct {
	project    string
	backupRoot string
	output     *bytes.Buffer
	generator  *fakeGenerator
	confirmer  *recordingConfirmer
	writer     *failingWriter
	backups    *backup_manager.Manager
	deps       Dependencies
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	project := t.TempDir()
	for name, content := range fixtureFiles {
		require.NoError(t, os.WriteFile(filepath.Join(project, name), []byte(content), 0o644))
	}

	backupRoot := t.TempDir()
	backups, err := backup_manager.NewManager(backupRoot)
	require.NoError(t, err)

	analyzer := code_analyzer.NewCodeAnalyzer()
	h := &harness{
		project:    project,
		backupRoot: backupRoot,
		output:     &bytes.Buffer{},
		generator:  &fakeGenerator{},
		confirmer:  &recordingConfirmer{write: true, rollback: true},
		writer:     &failingWriter{DocWriter: code_analyzer.NewDocWriter(analyzer.Cache())},
		backups:    backups,
	}
	h.deps = Dependencies{
		Analyzer:  analyzer,
		Generator: h.generator,
		Gateway:   &fakeGateway{available: true},
		Backups:   backups,
		Writer:    h.writer,
		Preview:   utils.NewDiffPreviewRenderer(h.writer, project, "", false),
		Confirmer: h.confirmer,
		Output:    h.output,
		NewRunID:  func() string { return "run-1" },
	}
	return h
}

func (h *harness) options() models.GenerationOptions {
	return models.GenerationOptions{ProjectPath: h.project, Parallelism: 2}
}

func (h *harness) read(t *testing.T, name string) string {
	t.Helper()
	content, err := os.ReadFile(filepath.Join(h.project, name))
	require.NoError(t, err)
	return string(content)
}

func (h *harness) snapshotCount(t *testing.T) int {
	t.Helper()
	entries, err := os.ReadDir(h.backupRoot)
	require.NoError(t, err)
	count := 0
	for _, project := range entries {
		snapshots, err := os.ReadDir(filepath.Join(h.backupRoot, project.Name()))
		require.NoError(t, err)
		count += len(snapshots)
	}
	return count
}

func TestGenerate_WritesConfirmedDocumentation(t *testing.T) {
	h := newHarness(t)
	o := NewOrchestrator(h.deps)

	result, err := o.Generate(context.Background(), h.options())
	require.NoError(t, err)

	assert.Equal(t, "run-1", result.RunID)
	assert.Equal(t, string(StateCompleted), result.FinalState)
	assert.NoError(t, result.Cause)
	assert.Equal(t, 3, result.Generated)
	assert.Equal(t, 3, result.FilesWritten)
	assert.NotEmpty(t, result.BackupPath)
	assert.DirExists(t, result.BackupPath)

	assert.Equal(t, 1, h.confirmer.writeCalls)
	assert.Equal(t, 3, h.confirmer.changeCount)
	assert.Equal(t, 3, h.confirmer.fileCount)
	assert.Zero(t, h.confirmer.rollbackCalls)

	assert.Equal(t, "package p\n\n// A does things.\nfunc A() {}\n", h.read(t, "a.go"))
	assert.Equal(t, "package p\n\n// B does things.\nfunc B() {}\n", h.read(t, "b.go"))
	assert.Equal(t, "package p\n\n// C is documented.\nfunc C() {}\n\n// D does things.\nfunc D() {}\n", h.read(t, "c.go"))

	for _, doc := range result.Documentation {
		assert.Equal(t, models.StatusAccepted, doc.Status, doc.SymbolID)
	}

	assert.Contains(t, h.output.String(), "+// A does things.")
	assert.Equal(t, []State{
		StateIdle, StateAnalyzing, StateGenerating, StateAwaitingConfirmation,
		StateBackingUp, StateWriting, StateCompleted,
	}, o.History())
}

func TestGenerate_EditedDocumentationIsWritten(t *testing.T) {
	h := newHarness(t)
	editor := &scriptedEditor{revisions: map[string]string{"B": "B runs the second step.\n"}}
	h.deps.Editor = editor

	result, err := NewOrchestrator(h.deps).Generate(context.Background(), h.options())
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B", "D"}, editor.seen)
	assert.Equal(t, "package p\n\n// B runs the second step.\nfunc B() {}\n", h.read(t, "b.go"))
	assert.Contains(t, h.output.String(), "+// B runs the second step.")

	statuses := make(map[string]models.Status)
	for _, doc := range result.Documentation {
		statuses[doc.SymbolID] = doc.Status
		if doc.SymbolID == "b.go#B" {
			assert.Equal(t, "B runs the second step.", doc.Text)
		}
	}
	assert.Equal(t, map[string]models.Status{
		"a.go#A": models.StatusAccepted,
		"b.go#B": models.StatusEdited,
		"c.go#D": models.StatusAccepted,
	}, statuses)
}

func TestGenerate_DeclineWritesNothing(t *testing.T) {
	h := newHarness(t)
	h.confirmer.write = false

	result, err := NewOrchestrator(h.deps).Generate(context.Background(), h.options())
	require.NoError(t, err)

	assert.Equal(t, string(StateCompleted), result.FinalState)
	assert.Zero(t, result.FilesWritten)
	assert.Empty(t, result.BackupPath)
	assert.Zero(t, h.snapshotCount(t), "declining must not create a backup")
	assert.Empty(t, h.writer.writes)

	for name, content := range fixtureFiles {
		assert.Equal(t, content, h.read(t, name))
	}
	for _, doc := range result.Documentation {
		assert.Equal(t, models.StatusRejected, doc.Status)
	}
}

func TestGenerate_WriteFailureRollsBack(t *testing.T) {
	h := newHarness(t)
	h.writer.failOn = "b.go"
	o := NewOrchestrator(h.deps)

	result, err := o.Generate(context.Background(), h.options())
	require.NoError(t, err)

	assert.Equal(t, string(StateRolledBack), result.FinalState)
	assert.ErrorContains(t, result.Cause, "disk full")
	assert.Equal(t, 1, result.FilesWritten)
	assert.Equal(t, 3, result.FilesRestored)

	assert.Equal(t, 1, h.confirmer.rollbackCalls)
	assert.Equal(t, 3, h.confirmer.rollbackFiles)
	assert.Equal(t, result.BackupPath, h.confirmer.rollbackPath)

	for name, content := range fixtureFiles {
		assert.Equal(t, content, h.read(t, name), name)
	}
	for _, doc := range result.Documentation {
		assert.Equal(t, models.StatusRejected, doc.Status)
	}
	assert.Equal(t, StateRolledBack, o.State())
}

func TestGenerate_DeclinedRollbackKeepsBackup(t *testing.T) {
	h := newHarness(t)
	h.writer.failOn = "b.go"
	h.confirmer.rollback = false

	result, err := NewOrchestrator(h.deps).Generate(context.Background(), h.options())
	require.Error(t, err)

	assert.Equal(t, string(StateFailed), result.FinalState)
	assert.ErrorContains(t, err, "disk full")
	assert.ErrorContains(t, err, result.BackupPath)
	assert.DirExists(t, result.BackupPath)
	assert.Zero(t, result.FilesRestored)
	assert.Contains(t, h.read(t, "a.go"), "// A does things.")
}

func TestGenerate_NoProviderFailsFast(t *testing.T) {
	h := newHarness(t)
	h.deps.Gateway = &fakeGateway{available: false}
	o := NewOrchestrator(h.deps)

	result, err := o.Generate(context.Background(), h.options())

	assert.ErrorIs(t, err, ErrNoProvider)
	assert.Equal(t, string(StateFailed), result.FinalState)
	assert.Zero(t, h.generator.calls)
	assert.Equal(t, []State{StateIdle, StateFailed}, o.History())
}

func TestGenerate_DryRunSkipsConfirmation(t *testing.T) {
	h := newHarness(t)
	options := h.options()
	options.DryRun = true

	result, err := NewOrchestrator(h.deps).Generate(context.Background(), options)
	require.NoError(t, err)

	assert.Equal(t, string(StateCompleted), result.FinalState)
	assert.True(t, h.generator.dryRun)
	assert.Len(t, result.Documentation, 3)
	assert.Zero(t, h.confirmer.writeCalls)
	assert.Zero(t, h.snapshotCount(t))
	for name, content := range fixtureFiles {
		assert.Equal(t, content, h.read(t, name))
	}
}

func TestGenerate_BackupFailureBlocksWrites(t *testing.T) {
	h := newHarness(t)
	backups := &failingBackups{}
	h.deps.Backups = backups

	result, err := NewOrchestrator(h.deps).Generate(context.Background(), h.options())

	assert.ErrorIs(t, err, backup_manager.ErrBackupFailed)
	assert.Equal(t, string(StateFailed), result.FinalState)
	assert.Equal(t, 1, backups.calls)
	assert.Empty(t, h.writer.writes)
	for name, content := range fixtureFiles {
		assert.Equal(t, content, h.read(t, name))
	}
}

func TestGenerate_IncompleteBackupBlocksWrites(t *testing.T) {
	h := newHarness(t)
	h.deps.Backups = partialBackups{h.backups}

	result, err := NewOrchestrator(h.deps).Generate(context.Background(), h.options())

	assert.ErrorIs(t, err, backup_manager.ErrBackupFailed)
	assert.ErrorContains(t, err, "c.go")
	assert.Equal(t, string(StateFailed), result.FinalState)
	assert.Zero(t, result.FilesWritten)
	assert.Empty(t, h.writer.writes)
	for name, content := range fixtureFiles {
		assert.Equal(t, content, h.read(t, name))
	}
}

func TestGenerate_SymlinkedFileIsNeverWritten(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	h := newHarness(t)
	shared := filepath.Join(t.TempDir(), "b.go")
	require.NoError(t, os.WriteFile(shared, []byte(fixtureFiles["b.go"]), 0o644))
	link := filepath.Join(h.project, "b.go")
	require.NoError(t, os.Remove(link))
	require.NoError(t, os.Symlink(shared, link))

	result, err := NewOrchestrator(h.deps).Generate(context.Background(), h.options())
	require.NoError(t, err)

	assert.Equal(t, string(StateCompleted), result.FinalState)
	assert.Equal(t, 2, result.FilesWritten)
	assert.Equal(t, 2, h.confirmer.fileCount)
	assert.NotContains(t, h.writer.writes, "b.go")

	info, err := os.Lstat(link)
	require.NoError(t, err)
	assert.NotZero(t, info.Mode()&os.ModeSymlink)
	content, err := os.ReadFile(shared)
	require.NoError(t, err)
	assert.Equal(t, fixtureFiles["b.go"], string(content))

	snapshot, err := h.backups.ReadSnapshot(result.BackupPath)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a.go", "c.go"}, snapshot.Files)
}

func TestGenerate_OnlySuccessfulDocsAreWritten(t *testing.T) {
	h := newHarness(t)
	h.generator.fail = map[string]bool{"B": true}

	result, err := NewOrchestrator(h.deps).Generate(context.Background(), h.options())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 2, result.FilesWritten)
	assert.Equal(t, 2, h.confirmer.changeCount)
	assert.Equal(t, fixtureFiles["b.go"], h.read(t, "b.go"))
}

func TestGenerate_AllFailedCompletesWithoutConfirmation(t *testing.T) {
	h := newHarness(t)
	h.generator.fail = map[string]bool{"A": true, "B": true, "D": true}

	result, err := NewOrchestrator(h.deps).Generate(context.Background(), h.options())
	require.NoError(t, err)

	assert.Equal(t, string(StateCompleted), result.FinalState)
	assert.Equal(t, 3, result.Failed)
	assert.Zero(t, h.confirmer.writeCalls)
}

func TestGenerate_NothingToDocument(t *testing.T) {
	h := newHarness(t)
	project := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(project, "ok.go"), []byte("package p\n\n// Ok is fine.\nfunc Ok() {}\n"), 0o644))

	o := NewOrchestrator(h.deps)
	result, err := o.Generate(context.Background(), models.GenerationOptions{ProjectPath: project})
	require.NoError(t, err)

	assert.Equal(t, string(StateCompleted), result.FinalState)
	assert.Zero(t, h.generator.calls)
	assert.Equal(t, []State{StateIdle, StateAnalyzing, StateCompleted}, o.History())
}

func TestGenerate_AnalyzerPanicFails(t *testing.T) {
	h := newHarness(t)
	h.deps.Analyzer = panickingAnalyzer{}

	result, err := NewOrchestrator(h.deps).Generate(context.Background(), h.options())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic while analyzing: boom")
	assert.Equal(t, string(StateFailed), result.FinalState)
}

func TestGenerate_WorkerPanicFailsAndKeepsDrafts(t *testing.T) {
	h := newHarness(t)
	h.deps.Gateway = echoGateway{}
	h.deps.Generator = doc_generator.NewGenerator(doc_generator.GeneratorConfig{
		Collector: panickingCollector{name: "B"},
		Gateway:   echoGateway{},
	})

	result, err := NewOrchestrator(h.deps).Generate(context.Background(), h.options())

	require.ErrorIs(t, err, doc_generator.ErrWorkerPanic)
	assert.ErrorContains(t, err, "collector boom")
	assert.Equal(t, string(StateFailed), result.FinalState)
	assert.Len(t, result.Documentation, 3)
	assert.Equal(t, 2, result.Generated)
	assert.Equal(t, 1, result.Failed)
	assert.Zero(t, h.confirmer.writeCalls)
	assert.Zero(t, h.snapshotCount(t))
	for name, content := range fixtureFiles {
		assert.Equal(t, content, h.read(t, name))
	}
}

func TestGenerate_AnalyzerErrorFails(t *testing.T) {
	h := newHarness(t)

	result, err := NewOrchestrator(h.deps).Generate(context.Background(), models.GenerationOptions{ProjectPath: filepath.Join(h.project, "missing")})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to analyze project")
	assert.Equal(t, string(StateFailed), result.FinalState)
}

func TestGenerate_CancelledGenerationFails(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.generator.hook = cancel

	result, err := NewOrchestrator(h.deps).Generate(ctx, h.options())

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, string(StateFailed), result.FinalState)
	assert.Len(t, result.Documentation, 3, "results are preserved")
	assert.Zero(t, h.confirmer.writeCalls)
}

func TestGenerate_ConfirmationErrorFails(t *testing.T) {
	h := newHarness(t)
	h.confirmer.err = errors.New("interrupted")

	result, err := NewOrchestrator(h.deps).Generate(context.Background(), h.options())

	assert.ErrorContains(t, err, "interrupted")
	assert.Equal(t, string(StateFailed), result.FinalState)
	assert.Zero(t, h.snapshotCount(t))
}

func TestGenerate_RejectsConcurrentRuns(t *testing.T) {
	h := newHarness(t)
	started := make(chan struct{})
	release := make(chan struct{})
	h.generator.hook = func() {
		close(started)
		<-release
	}
	o := NewOrchestrator(h.deps)

	done := make(chan error, 1)
	go func() {
		_, err := o.Generate(context.Background(), h.options())
		done <- err
	}()

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("first run did not start")
	}

	_, err := o.Generate(context.Background(), h.options())
	assert.ErrorIs(t, err, ErrRunInProgress)

	close(release)
	require.NoError(t, <-done)
}

func TestGenerate_ReportsTransitions(t *testing.T) {
	h := newHarness(t)
	h.confirmer.write = false
	var seen []string
	h.deps.OnTransition = func(from, to State) {
		seen = append(seen, string(from)+">"+string(to))
	}

	_, err := NewOrchestrator(h.deps).Generate(context.Background(), h.options())
	require.NoError(t, err)

	assert.Equal(t, "idle>analyzing,analyzing>generating,generating>awaiting_confirmation,awaiting_confirmation>completed", strings.Join(seen, ","))
}

func TestTransitionTable(t *testing.T) {
	assert.True(t, CanTransition(StateIdle, StateAnalyzing))
	assert.True(t, CanTransition(StateWriting, StateRolledBack))
	assert.False(t, CanTransition(StateIdle, StateWriting))
	assert.False(t, CanTransition(StateAwaitingConfirmation, StateWriting))
	assert.False(t, CanTransition(StateCompleted, StateAnalyzing))
	assert.False(t, CanTransition(StateAnalyzing, StateRolledBack), "nothing was written while analyzing")

	err := checkTransition(StateGenerating, StateWriting)
	assert.ErrorIs(t, err, ErrIllegalTransition)
	assert.Contains(t, err.Error(), "generating -> writing")

	for _, state := range []State{StateCompleted, StateRolledBack, StateFailed} {
		assert.True(t, state.IsTerminal())
		assert.Empty(t, transitions[state])
	}
	assert.False(t, StateWriting.IsTerminal())
}

func TestOrchestrator_IllegalTransitionLeavesStateUnchanged(t *testing.T) {
	o := NewOrchestrator(Dependencies{})

	err := o.transition(StateWriting)

	assert.ErrorIs(t, err, ErrIllegalTransition)
	assert.Equal(t, StateIdle, o.State())
	assert.Equal(t, []State{StateIdle}, o.History())
}
