// Package pipeline drives the end-to-end utterance flow: capture,
// transcription, classification, AI processing, and insertion.
package pipeline

import (
	"context"
	"time"

	"github.com/ahorihuela/juno/internal/audio"
	"github.com/ahorihuela/juno/internal/classifier"
	"github.com/ahorihuela/juno/internal/insert"
	"github.com/ahorihuela/juno/internal/selection"
	"github.com/ahorihuela/juno/internal/transcribe"
)

// Recorder is the pipeline-facing subset of the recorder.
type Recorder interface {
	Start(ctx context.Context, deviceID string) error
	Stop(ctx context.Context) (*audio.Clip, error)
	Cancel(ctx context.Context) error
	Pause()
	Resume()
	SetFeedbackEnabled(enabled bool)
	PlayErrorCue()
	PlayCompleteCue()
}

// Transcriber is the pipeline-facing subset of the orchestrator.
type Transcriber interface {
	Transcribe(ctx context.Context, clip *audio.Clip, opts transcribe.Options) (transcribe.Result, error)
	Cancel()
}

// Processor is the pipeline-facing subset of the AI command processor.
// Model, temperature, and rules are bound at construction time.
type Processor interface {
	Process(ctx context.Context, command string, selectionText string) (string, error)
	Cancel()
}

// Selector reads the foreground selection.
type Selector interface {
	Read(ctx context.Context) (selection.Selection, error)
}

// Inserter places text at the cursor.
type Inserter interface {
	Insert(ctx context.Context, req insert.Request) insert.Outcome
}

// Classify is the classification seam; production wiring uses classifier.Classify.
type Classify func(text string, ctx classifier.Context) classifier.Classification

// Result summarizes one finished utterance for logging and CLI output.
type Result struct {
	State        string
	Transcript   string
	Inserted     string
	WasCommand   bool
	Cancelled    bool
	Deferred     bool
	Err          error
	StartedAt    time.Time
	FinishedAt   time.Time
	ClipDuration time.Duration
}
