package tracker_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"simguard/client/internal/api"
	"simguard/client/internal/apitest"
	"simguard/client/internal/config"
	"simguard/client/internal/log"
	"simguard/client/internal/models"
	"simguard/client/internal/session"
	"simguard/client/internal/tracker"
)

const statusRoute = "GET /api/v1/submissions/:id/status"

type fixture struct {
	srv    *apitest.Server
	client *api.Client
	file1  string
	file2  string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	srv := apitest.New()
	t.Cleanup(srv.Close)

	store, err := session.NewStore(t.TempDir(), "", log.Nop())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if _, err := store.Persist(srv.AccessToken, srv.RefreshToken, srv.User); err != nil {
		t.Fatalf("Persist: %v", err)
	}

	cfg := config.APIConfig{BaseURL: srv.BaseURL(), Timeout: 5 * time.Second}
	client := api.NewClient(cfg, store, "test-client", log.Nop())

	dir := t.TempDir()
	file1 := filepath.Join(dir, "left.py")
	file2 := filepath.Join(dir, "right.py")
	for _, f := range []string{file1, file2} {
		if err := os.WriteFile(f, []byte("def main():\n    pass\n"), 0o600); err != nil {
			t.Fatalf("write fixture file: %v", err)
		}
	}

	return &fixture{srv: srv, client: client, file1: file1, file2: file2}
}

func fastPoll() config.PollConfig {
	return config.PollConfig{
		Interval:    10 * time.Millisecond,
		MaxWait:     5 * time.Second,
		SettleDelay: time.Millisecond,
	}
}

// stepRecorder collects step transitions under a lock so tests can assert
// on ordering and on silence after cancellation.
type stepRecorder struct {
	mu    sync.Mutex
	steps []tracker.Step
}

func (r *stepRecorder) record(step tracker.Step) {
	r.mu.Lock()
	r.steps = append(r.steps, step)
	r.mu.Unlock()
}

func (r *stepRecorder) snapshot() []tracker.Step {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]tracker.Step(nil), r.steps...)
}

func TestMissingInputFailsLocally(t *testing.T) {
	f := newFixture(t)
	tr := tracker.New(f.client, fastPoll(), log.Nop())

	_, err := tr.Run(context.Background(), tracker.Input{File1Path: f.file1, Mode: models.ModeText})
	if !errors.Is(err, tracker.ErrMissingInput) {
		t.Fatalf("expected ErrMissingInput, got %v", err)
	}
	if got := f.srv.Hits("POST /api/v1/submissions/upload"); got != 0 {
		t.Fatalf("server contacted %d times despite missing input", got)
	}
	if tr.Step() != tracker.StepIdle {
		t.Fatalf("step moved to %s on local failure", tr.Step())
	}
}

func TestRunProgressesToCompleted(t *testing.T) {
	f := newFixture(t)
	f.srv.ResetStatusScript(models.StatusPending, models.StatusProcessing, models.StatusCompleted)

	similarity := 0.62
	cosine := 0.7
	f.srv.Detail = models.SubmissionDetail{
		ID:        101,
		Mode:      models.ModeCode,
		File1Name: "left.py",
		File2Name: "right.py",
		Status:    models.StatusCompleted,
		Report: &models.Report{
			FinalSimilarity: similarity,
			RiskLevel:       models.RiskHigh,
			Scores:          models.Scores{Cosine: &cosine},
		},
	}

	rec := &stepRecorder{}
	tr := tracker.New(f.client, fastPoll(), log.Nop())
	tr.OnStep(rec.record)

	outcome, err := tr.Run(context.Background(), tracker.Input{
		File1Path: f.file1,
		File2Path: f.file2,
		Mode:      models.ModeCode,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []tracker.Step{tracker.StepUploading, tracker.StepQueued, tracker.StepAnalyzing, tracker.StepCompleted}
	got := rec.snapshot()
	if len(got) != len(want) {
		t.Fatalf("steps = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("steps = %v, want %v", got, want)
		}
	}

	if outcome.Detail.Report == nil {
		t.Fatal("no report handed off")
	}
	report := outcome.Detail.Report
	if report.RiskLevel != models.ClassifyRisk(report.FinalSimilarity) {
		t.Fatalf("risk %s inconsistent with similarity %.2f", report.RiskLevel, report.FinalSimilarity)
	}

	// Terminal status reached: the loop must stop polling.
	polls := f.srv.Hits(statusRoute)
	time.Sleep(60 * time.Millisecond)
	if again := f.srv.Hits(statusRoute); again != polls {
		t.Fatalf("polling continued after terminal status: %d -> %d", polls, again)
	}
}

func TestUploadRejectedReturnsToIdle(t *testing.T) {
	f := newFixture(t)
	f.srv.UploadReject = "Unsupported file type"

	tr := tracker.New(f.client, fastPoll(), log.Nop())
	_, err := tr.Run(context.Background(), tracker.Input{
		File1Path: f.file1,
		File2Path: f.file2,
		Mode:      models.ModeText,
	})

	var ur *tracker.UploadRejectedError
	if !errors.As(err, &ur) {
		t.Fatalf("expected UploadRejectedError, got %v", err)
	}
	if ur.Message == "" {
		t.Fatal("rejection message lost")
	}
	if tr.Step() != tracker.StepIdle {
		t.Fatalf("step = %s after rejected upload, want idle", tr.Step())
	}
	if f.srv.Hits(statusRoute) != 0 {
		t.Fatal("polled after rejected upload")
	}
}

func TestFailedStatusSurfacesServerMessage(t *testing.T) {
	f := newFixture(t)
	f.srv.ResetStatusScript(models.StatusProcessing, models.StatusFailed)
	f.srv.FailMessage = "Analysis failed: tokenizer error"

	tr := tracker.New(f.client, fastPoll(), log.Nop())
	_, err := tr.Run(context.Background(), tracker.Input{
		File1Path: f.file1,
		File2Path: f.file2,
		Mode:      models.ModeText,
	})

	var af *tracker.AnalysisFailedError
	if !errors.As(err, &af) {
		t.Fatalf("expected AnalysisFailedError, got %v", err)
	}
	if af.Message != "Analysis failed: tokenizer error" {
		t.Fatalf("server message not surfaced verbatim: %q", af.Message)
	}
	if tr.Step() != tracker.StepFailed {
		t.Fatalf("step = %s, want failed", tr.Step())
	}

	polls := f.srv.Hits(statusRoute)
	time.Sleep(60 * time.Millisecond)
	if again := f.srv.Hits(statusRoute); again != polls {
		t.Fatal("polling continued after failed status")
	}
}

func TestPollFailureStopsLoop(t *testing.T) {
	f := newFixture(t)
	f.srv.StatusFail = 500

	tr := tracker.New(f.client, fastPoll(), log.Nop())
	_, err := tr.Run(context.Background(), tracker.Input{
		File1Path: f.file1,
		File2Path: f.file2,
		Mode:      models.ModeText,
	})

	var pe *tracker.PollingError
	if !errors.As(err, &pe) {
		t.Fatalf("expected PollingError, got %v", err)
	}

	polls := f.srv.Hits(statusRoute)
	if polls != 1 {
		t.Fatalf("poll retried after failure: %d calls", polls)
	}
}

func TestCancellationStopsMutation(t *testing.T) {
	f := newFixture(t)
	f.srv.ResetStatusScript(models.StatusPending) // repeats forever

	rec := &stepRecorder{}
	tr := tracker.New(f.client, fastPoll(), log.Nop())
	tr.OnStep(rec.record)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := tr.Run(ctx, tracker.Input{
			File1Path: f.file1,
			File2Path: f.file2,
			Mode:      models.ModeText,
		})
		done <- err
	}()

	// Let at least one poll land, then tear the flow down mid-polling.
	deadline := time.Now().Add(2 * time.Second)
	for f.srv.Hits(statusRoute) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("no poll observed before cancel")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	err := <-done
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	// Let any request that was in flight at cancel time drain server-side
	// before taking the baseline.
	time.Sleep(30 * time.Millisecond)

	step := tr.Step()
	steps := rec.snapshot()
	polls := f.srv.Hits(statusRoute)

	time.Sleep(60 * time.Millisecond)

	if got := tr.Step(); got != step {
		t.Fatalf("step mutated after cancellation: %s -> %s", step, got)
	}
	if got := rec.snapshot(); len(got) != len(steps) {
		t.Fatalf("observer called after cancellation: %v -> %v", steps, got)
	}
	if got := f.srv.Hits(statusRoute); got != polls {
		t.Fatalf("orphaned poll fired after cancellation: %d -> %d", polls, got)
	}
}

func TestPollTimeout(t *testing.T) {
	f := newFixture(t)
	f.srv.ResetStatusScript(models.StatusPending)

	cfg := config.PollConfig{
		Interval: 10 * time.Millisecond,
		MaxWait:  35 * time.Millisecond,
	}
	tr := tracker.New(f.client, cfg, log.Nop())

	_, err := tr.Run(context.Background(), tracker.Input{
		File1Path: f.file1,
		File2Path: f.file2,
		Mode:      models.ModeText,
	})
	if !errors.Is(err, tracker.ErrPollTimeout) {
		t.Fatalf("expected ErrPollTimeout, got %v", err)
	}
}
