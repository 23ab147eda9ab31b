package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/meysamhadeli/docai/backup_manager"
	code_analyzer_contracts "github.com/meysamhadeli/docai/code_analyzer/contracts"
	code_analyzer_models "github.com/meysamhadeli/docai/code_analyzer/models"
	"github.com/meysamhadeli/docai/doc_generator"
	doc_generator_contracts "github.com/meysamhadeli/docai/doc_generator/contracts"
	"github.com/meysamhadeli/docai/doc_generator/models"
	"github.com/meysamhadeli/docai/providers"
	provider_contracts "github.com/meysamhadeli/docai/providers/contracts"
	"github.com/meysamhadeli/docai/utils"
	"github.com/pterm/pterm"
)

var (
	// ErrNoProvider is returned when neither the primary nor the fallback provider is usable.
	ErrNoProvider = providers.ErrNoProvider
	// ErrRunInProgress rejects a second concurrent Generate on the same orchestrator.
	ErrRunInProgress = errors.New("a documentation run is already in progress")
)

// BackupManager snapshots files before they are written and restores them.
type BackupManager interface {
	CreateBackup(projectPath string, files []string) (*backup_manager.Snapshot, error)
	RestoreBackup(backupPath, projectPath string) (int, error)
}

// Dependencies are the collaborators of a run. Editor, Output, Logger, NewRunID
// and OnTransition are optional.
type Dependencies struct {
	Analyzer  code_analyzer_contracts.ICodeAnalyzer
	Generator doc_generator_contracts.IDocGenerator
	Gateway   provider_contracts.IDocGateway
	Backups   BackupManager
	Writer    code_analyzer_contracts.IDocWriter
	Preview   utils.PreviewRenderer
	Confirmer utils.Confirmer
	Editor    utils.Editor
	Output    io.Writer

	Logger       *pterm.Logger
	NewRunID     func() string
	OnTransition func(from, to State)
}

// Orchestrator drives analysis, generation, confirmation, backup and write.
type Orchestrator struct {
	deps Dependencies

	mu      sync.Mutex
	state   State
	history []State
	running atomic.Bool
}

func NewOrchestrator(deps Dependencies) *Orchestrator {
	if deps.Output == nil {
		deps.Output = io.Discard
	}
	if deps.Logger == nil {
		deps.Logger = utils.DiscardLogger()
	}
	if deps.NewRunID == nil {
		deps.NewRunID = uuid.NewString
	}
	return &Orchestrator{deps: deps, state: StateIdle, history: []State{StateIdle}}
}

// State returns the current state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// History returns every state the last run went through, starting with idle.
func (o *Orchestrator) History() []State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]State(nil), o.history...)
}

func (o *Orchestrator) reset() {
	o.mu.Lock()
	o.state = StateIdle
	o.history = []State{StateIdle}
	o.mu.Unlock()
}

func (o *Orchestrator) transition(to State) error {
	o.mu.Lock()
	from := o.state
	if err := checkTransition(from, to); err != nil {
		o.mu.Unlock()
		return err
	}
	o.state = to
	o.history = append(o.history, to)
	o.mu.Unlock()

	o.deps.Logger.Debug("state changed", o.deps.Logger.Args("from", string(from), "to", string(to)))
	if o.deps.OnTransition != nil {
		o.deps.OnTransition(from, to)
	}
	return nil
}

// run carries the state of one Generate call.
type run struct {
	options models.GenerationOptions
	result  *models.GenerationResult
	symbols map[string]code_analyzer_models.ApiSymbol
}

// Generate runs the whole workflow once. The returned error is non-nil only
// when the run ends in the failed state; the result is always returned and
// records the final state and its cause.
func (o *Orchestrator) Generate(ctx context.Context, options models.GenerationOptions) (*models.GenerationResult, error) {
	if !o.running.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}
	defer o.running.Store(false)
	o.reset()

	r := &run{
		options: options,
		result:  &models.GenerationResult{RunID: o.deps.NewRunID()},
		symbols: make(map[string]code_analyzer_models.ApiSymbol),
	}

	err := o.execute(ctx, r)
	r.result.FinalState = string(o.State())
	if err != nil {
		r.result.Cause = err
		if o.State() != StateFailed {
			// Any error the steps did not route themselves ends the run here.
			if terr := o.transition(StateFailed); terr != nil {
				return r.result, errors.Join(err, terr)
			}
			r.result.FinalState = string(StateFailed)
		}
	}

	if o.State() == StateFailed {
		return r.result, r.result.Cause
	}
	return r.result, nil
}

func (o *Orchestrator) execute(ctx context.Context, r *run) error {
	if o.deps.Gateway == nil || !o.deps.Gateway.IsAvailable() {
		return ErrNoProvider
	}

	pending, err := o.analyze(ctx, r)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return o.transition(StateCompleted)
	}

	if err := o.generate(ctx, r, pending); err != nil {
		return err
	}

	if r.options.DryRun {
		return o.transition(StateCompleted)
	}

	suggestions := o.suggestions(r)
	if len(suggestions) == 0 {
		return o.transition(StateCompleted)
	}

	confirmed, err := o.confirm(r, suggestions)
	if err != nil {
		return err
	}
	if !confirmed {
		setStatus(r.result.Documentation, models.StatusRejected)
		return o.transition(StateCompleted)
	}

	snapshot, err := o.backup(r, suggestions)
	if err != nil {
		return err
	}

	return o.write(r, suggestions, snapshot)
}

// guard turns a panic inside step into an error.
func guard(step State, fn func() error) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("panic while %s: %v", step, recovered)
		}
	}()
	return fn()
}

func (o *Orchestrator) analyze(ctx context.Context, r *run) ([]code_analyzer_models.ApiSymbol, error) {
	if err := o.transition(StateAnalyzing); err != nil {
		return nil, err
	}

	var symbols []code_analyzer_models.ApiSymbol
	var diagnostics []code_analyzer_models.Diagnostic
	err := guard(StateAnalyzing, func() error {
		var err error
		symbols, diagnostics, err = o.deps.Analyzer.AnalyzeProject(ctx, r.options.ProjectPath)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to analyze project: %w", err)
	}

	for _, d := range diagnostics {
		o.deps.Logger.Warn(d.Message, o.deps.Logger.Args("file", d.FilePath, "line", d.Line))
	}

	var pending []code_analyzer_models.ApiSymbol
	for _, symbol := range symbols {
		if symbol.DocStatus.NeedsDocumentation() {
			pending = append(pending, symbol)
			r.symbols[symbol.ID] = symbol
		}
	}
	o.deps.Logger.Info("analysis finished", o.deps.Logger.Args("symbols", len(symbols), "pending", len(pending), "diagnostics", len(diagnostics)))
	return pending, nil
}

func (o *Orchestrator) generate(ctx context.Context, r *run, pending []code_analyzer_models.ApiSymbol) error {
	if err := o.transition(StateGenerating); err != nil {
		return err
	}

	var docs []models.GeneratedDocumentation
	err := guard(StateGenerating, func() error {
		docs = o.deps.Generator.Generate(ctx, r.options.ProjectPath, pending, r.options.Parallelism, r.options.DryRun)
		return nil
	})
	if err != nil {
		return err
	}

	r.result.Documentation = docs
	stats := doc_generator.Summarize(docs)
	r.result.Generated, r.result.Cached, r.result.Failed = stats.Generated, stats.Cached, stats.Failed

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("generation cancelled: %w", err)
	}
	for _, doc := range docs {
		if errors.Is(doc.Error, doc_generator.ErrWorkerPanic) {
			return doc.Error
		}
	}
	return nil
}

// suggestions lists successful docs grouped by file in path order, and
// within a file in source order.
func (o *Orchestrator) suggestions(r *run) []code_analyzer_models.Insertion {
	var suggestions []code_analyzer_models.Insertion
	for _, doc := range r.result.Documentation {
		if !doc.Succeeded() {
			continue
		}
		symbol, ok := r.symbols[doc.SymbolID]
		if !ok {
			o.deps.Logger.Warn("generated documentation for an unknown symbol", o.deps.Logger.Args("symbol", doc.SymbolID))
			continue
		}
		suggestions = append(suggestions, code_analyzer_models.Insertion{Symbol: symbol, Text: doc.Text})
	}

	sort.SliceStable(suggestions, func(i, j int) bool {
		a, b := suggestions[i].Symbol, suggestions[j].Symbol
		if a.FilePath != b.FilePath {
			return a.FilePath < b.FilePath
		}
		return a.Line < b.Line
	})
	return suggestions
}

func filesOf(suggestions []code_analyzer_models.Insertion) []string {
	var files []string
	for i, suggestion := range suggestions {
		if i == 0 || suggestion.Symbol.FilePath != suggestions[i-1].Symbol.FilePath {
			files = append(files, suggestion.Symbol.FilePath)
		}
	}
	return files
}

func (o *Orchestrator) confirm(r *run, suggestions []code_analyzer_models.Insertion) (bool, error) {
	if err := o.transition(StateAwaitingConfirmation); err != nil {
		return false, err
	}

	if o.deps.Editor != nil {
		if err := o.edit(r, suggestions); err != nil {
			return false, err
		}
	}

	if o.deps.Preview != nil {
		preview, err := o.deps.Preview.BuildPreview(suggestions)
		if err != nil {
			o.deps.Logger.Warn("failed to build preview", o.deps.Logger.Args("error", err.Error()))
		} else {
			fmt.Fprint(o.deps.Output, preview)
		}
	}

	confirmed, err := o.deps.Confirmer.ConfirmBatchWrite(len(suggestions), len(filesOf(suggestions)))
	if err != nil {
		return false, fmt.Errorf("failed to confirm write: %w", err)
	}
	return confirmed, nil
}

// edit lets the user revise every suggestion in place; revised docs are marked edited.
func (o *Orchestrator) edit(r *run, suggestions []code_analyzer_models.Insertion) error {
	index := make(map[string]int, len(r.result.Documentation))
	for i, doc := range r.result.Documentation {
		index[doc.SymbolID] = i
	}

	for i := range suggestions {
		edited, err := o.deps.Editor.Edit(suggestions[i].Symbol, suggestions[i].Text)
		if err != nil {
			return fmt.Errorf("failed to edit %s: %w", suggestions[i].Symbol.ID, err)
		}
		edited = strings.TrimSpace(edited)
		if edited == "" || edited == suggestions[i].Text {
			continue
		}
		suggestions[i].Text = edited
		if j, ok := index[suggestions[i].Symbol.ID]; ok {
			r.result.Documentation[j].Text = edited
			r.result.Documentation[j].Status = models.StatusEdited
		}
	}
	return nil
}

func (o *Orchestrator) backup(r *run, suggestions []code_analyzer_models.Insertion) (*backup_manager.Snapshot, error) {
	if err := o.transition(StateBackingUp); err != nil {
		return nil, err
	}

	snapshot, err := o.deps.Backups.CreateBackup(r.options.ProjectPath, filesOf(suggestions))
	if err != nil {
		return nil, err
	}
	r.result.BackupPath = snapshot.Path

	var uncovered []string
	for _, file := range filesOf(suggestions) {
		if !snapshot.Covers(file) {
			uncovered = append(uncovered, file)
		}
	}
	if len(uncovered) > 0 {
		return nil, fmt.Errorf("%w: snapshot %s does not cover %s", backup_manager.ErrBackupFailed, snapshot.Path, strings.Join(uncovered, ", "))
	}

	o.deps.Logger.Info("backup created", o.deps.Logger.Args("path", snapshot.Path, "files", len(snapshot.Files)))
	return snapshot, nil
}

func (o *Orchestrator) write(r *run, suggestions []code_analyzer_models.Insertion, snapshot *backup_manager.Snapshot) error {
	if err := o.transition(StateWriting); err != nil {
		return err
	}

	written := make(map[string]bool)
	var writeErr error

	for _, file := range filesOf(suggestions) {
		for _, suggestion := range suggestions {
			if suggestion.Symbol.FilePath != file {
				continue
			}
			if err := o.deps.Writer.InsertDocumentation(file, suggestion.Symbol, suggestion.Text); err != nil {
				writeErr = fmt.Errorf("failed to write %s: %w", suggestion.Symbol.ID, err)
				break
			}
			written[suggestion.Symbol.ID] = true
		}
		if writeErr != nil {
			break
		}
		r.result.FilesWritten++
	}

	for i := range r.result.Documentation {
		if written[r.result.Documentation[i].SymbolID] && r.result.Documentation[i].Status != models.StatusEdited {
			r.result.Documentation[i].Status = models.StatusAccepted
		}
	}

	if writeErr == nil {
		return o.transition(StateCompleted)
	}

	o.deps.Logger.Error("write failed", o.deps.Logger.Args("error", writeErr.Error(), "files_written", r.result.FilesWritten))
	return o.rollback(r, snapshot, writeErr)
}

func (o *Orchestrator) rollback(r *run, snapshot *backup_manager.Snapshot, writeErr error) error {
	confirmed, err := o.deps.Confirmer.ConfirmRollback(len(snapshot.Files), snapshot.Path)
	if err != nil {
		o.deps.Logger.Warn("rollback confirmation failed", o.deps.Logger.Args("error", err.Error()))
	}
	if !confirmed {
		o.deps.Logger.Warn("rollback declined, backup kept", o.deps.Logger.Args("path", snapshot.Path))
		return fmt.Errorf("%w (backup kept at %s)", writeErr, snapshot.Path)
	}

	restored, restoreErr := o.deps.Backups.RestoreBackup(snapshot.Path, r.options.ProjectPath)
	r.result.FilesRestored = restored
	setStatus(r.result.Documentation, models.StatusRejected)

	r.result.Cause = errors.Join(writeErr, restoreErr)
	if err := o.transition(StateRolledBack); err != nil {
		return err
	}
	return nil
}

// setStatus marks every non failed doc with status.
func setStatus(docs []models.GeneratedDocumentation, status models.Status) {
	for i := range docs {
		if docs[i].Status != models.StatusFailed {
			docs[i].Status = status
		}
	}
}
