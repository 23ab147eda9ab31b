package models

import (
	"time"
)

// Status is the review state of a generated doc comment.
type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
	// StatusEdited marks a draft the user revised before it was written.
	StatusEdited   Status = "edited"
	StatusFailed   Status = "failed"
)

// GeneratedDocumentation is the outcome of one symbol in a batch.
type GeneratedDocumentation struct {
	SymbolID      string    `json:"symbol_id"`
	FilePath      string    `json:"file_path"`
	Text          string    `json:"text,omitempty"`
	Provider      string    `json:"provider,omitempty"`
	Model         string    `json:"model,omitempty"`
	TokensUsed    int       `json:"tokens_used"`
	EstimatedCost float64   `json:"estimated_cost"`
	GeneratedAt   time.Time `json:"generated_at"`
	Status        Status    `json:"status"`
	Cached        bool      `json:"cached"`
	Error         error     `json:"-"`
}

// Succeeded reports whether the entry carries text that can be written.
func (d GeneratedDocumentation) Succeeded() bool {
	return d.Status != StatusFailed && d.Error == nil && d.Text != ""
}

// BatchProgress is reported after every finished symbol.
type BatchProgress struct {
	Total     int
	Completed int
	Failed    int
	Cached    int
	Elapsed   time.Duration
}

// BatchStats summarizes a finished batch.
type BatchStats struct {
	Total     int
	Generated int
	Cached    int
	Failed    int
	Tokens    int
	Cost      float64
}

// Percent is the share of finished symbols, 0 to 100.
func (p BatchProgress) Percent() float64 {
	if p.Total == 0 {
		return 100
	}
	return float64(p.Completed) / float64(p.Total) * 100
}
