package tracker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"simguard/client/internal/api"
	"simguard/client/internal/config"
	"simguard/client/internal/models"
)

// Step is the client-visible stage of one submission flow.
type Step string

const (
	StepIdle      Step = "idle"
	StepUploading Step = "uploading"
	StepQueued    Step = "queued"
	StepAnalyzing Step = "analyzing"
	StepCompleted Step = "completed"
	StepFailed    Step = "failed"
)

func (s Step) Terminal() bool {
	return s == StepCompleted || s == StepFailed
}

var (
	// ErrMissingInput is returned before any network call when either
	// file is absent.
	ErrMissingInput = errors.New("both files are required")

	// ErrPollTimeout bounds the polling loop. The upstream design polled
	// forever; a job stuck short of a terminal status now fails loudly.
	ErrPollTimeout = errors.New("gave up waiting for analysis to finish")
)

// UploadRejectedError reports a failed upload call. The tracker is back at
// Idle when it is returned.
type UploadRejectedError struct {
	Message string
	Err     error
}

func (e *UploadRejectedError) Error() string { return "upload rejected: " + e.Message }
func (e *UploadRejectedError) Unwrap() error { return e.Err }

// PollingError reports a status poll that failed at the transport level.
// The loop stops; it never retries on its own.
type PollingError struct {
	Err error
}

func (e *PollingError) Error() string { return "status poll failed: " + e.Err.Error() }
func (e *PollingError) Unwrap() error { return e.Err }

// AnalysisFailedError carries the server-supplied failure message, or the
// generic fallback when the server sent none.
type AnalysisFailedError struct {
	SubmissionID int64
	Message      string
}

func (e *AnalysisFailedError) Error() string { return e.Message }

type Input struct {
	File1Path    string
	File2Path    string
	Mode         models.SubmissionMode
	LangOverride string
}

type Outcome struct {
	SubmissionID int64
	Detail       models.SubmissionDetail
}

// Tracker drives one comparison job from upload to terminal status.
// Transitions are strictly sequential: the next poll is issued only after
// the previous one resolves. Cancelling the context stops the loop and
// guarantees no further step mutation or callback.
type Tracker struct {
	api *api.Client
	cfg config.PollConfig
	log zerolog.Logger

	mu     sync.Mutex
	step   Step
	onStep func(Step)
}

func New(client *api.Client, cfg config.PollConfig, logger zerolog.Logger) *Tracker {
	return &Tracker{
		api:  client,
		cfg:  cfg,
		log:  logger,
		step: StepIdle,
	}
}

// OnStep installs the step observer. Install before Run.
func (t *Tracker) OnStep(fn func(Step)) {
	t.mu.Lock()
	t.onStep = fn
	t.mu.Unlock()
}

func (t *Tracker) Step() Step {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.step
}

// Run executes the whole flow and blocks until a terminal outcome, an
// error, or cancellation.
func (t *Tracker) Run(ctx context.Context, input Input) (Outcome, error) {
	if input.File1Path == "" || input.File2Path == "" {
		return Outcome{}, ErrMissingInput
	}
	for _, path := range []string{input.File1Path, input.File2Path} {
		if _, err := os.Stat(path); err != nil {
			return Outcome{}, fmt.Errorf("%w: %v", ErrMissingInput, err)
		}
	}

	t.setStep(ctx, StepUploading)
	up, err := t.api.Upload(ctx, input.File1Path, input.File2Path, input.Mode, input.LangOverride)
	if err != nil {
		t.setStep(ctx, StepIdle)
		if ctx.Err() != nil {
			return Outcome{}, ctx.Err()
		}
		return Outcome{}, &UploadRejectedError{Message: err.Error(), Err: err}
	}

	t.log.Debug().
		Int64("submission_id", up.SubmissionID).
		Str("status", string(up.Status)).
		Msg("upload accepted")
	t.setStep(ctx, stepForStatus(up.Status))

	return t.poll(ctx, up.SubmissionID)
}

func (t *Tracker) poll(ctx context.Context, id int64) (Outcome, error) {
	interval := t.cfg.Interval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var deadline time.Time
	if t.cfg.MaxWait > 0 {
		deadline = time.Now().Add(t.cfg.MaxWait)
	}

	for {
		select {
		case <-ctx.Done():
			return Outcome{}, ctx.Err()
		case <-ticker.C:
		}

		if !deadline.IsZero() && time.Now().After(deadline) {
			return Outcome{}, ErrPollTimeout
		}

		st, err := t.api.Status(ctx, id)
		if err != nil {
			if ctx.Err() != nil {
				return Outcome{}, ctx.Err()
			}
			return Outcome{}, &PollingError{Err: err}
		}

		switch st.Status {
		case models.StatusCompleted:
			t.setStep(ctx, StepCompleted)
			return t.handOff(ctx, id)
		case models.StatusFailed:
			t.setStep(ctx, StepFailed)
			msg := st.Message
			if msg == "" {
				msg = "analysis failed, please try again"
			}
			return Outcome{SubmissionID: id}, &AnalysisFailedError{SubmissionID: id, Message: msg}
		case models.StatusProcessing:
			t.setStep(ctx, StepAnalyzing)
		default:
			t.setStep(ctx, StepQueued)
		}
	}
}

// handOff waits out the settle delay, then retrieves the report.
func (t *Tracker) handOff(ctx context.Context, id int64) (Outcome, error) {
	if t.cfg.SettleDelay > 0 {
		timer := time.NewTimer(t.cfg.SettleDelay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return Outcome{}, ctx.Err()
		case <-timer.C:
		}
	}

	detail, err := t.api.Report(ctx, id)
	if err != nil {
		if ctx.Err() != nil {
			return Outcome{}, ctx.Err()
		}
		return Outcome{}, fmt.Errorf("fetch report: %w", err)
	}
	return Outcome{SubmissionID: id, Detail: detail}, nil
}

// setStep records the transition and notifies the observer. Terminal
// steps are final and a cancelled context mutates nothing.
func (t *Tracker) setStep(ctx context.Context, step Step) {
	if ctx.Err() != nil {
		return
	}

	t.mu.Lock()
	if t.step == step || t.step.Terminal() {
		t.mu.Unlock()
		return
	}
	t.step = step
	fn := t.onStep
	t.mu.Unlock()

	if fn != nil {
		fn(step)
	}
}

func stepForStatus(status models.SubmissionStatus) Step {
	switch status {
	case models.StatusProcessing:
		return StepAnalyzing
	case models.StatusCompleted:
		return StepCompleted
	case models.StatusFailed:
		return StepFailed
	default:
		return StepQueued
	}
}
