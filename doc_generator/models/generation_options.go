package models

// GenerationOptions drives one orchestrated run.
type GenerationOptions struct {
	ProjectPath      string
	Parallelism      int
	DryRun           bool
	Provider         string
	FallbackProvider string
	AutoConfirm      bool
}

// GenerationResult is what a run produced, including how it ended.
type GenerationResult struct {
	RunID         string
	Generated     int
	Cached        int
	Failed        int
	Documentation []GeneratedDocumentation
	BackupPath    string
	FilesWritten  int
	FilesRestored int
	FinalState    string
	Cause         error
}
