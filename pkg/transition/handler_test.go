package transition

import (
	"context"
	"reflect"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"etl-state-mover-oci-serverless/pkg/config"
	"etl-state-mover-oci-serverless/pkg/event"
	"etl-state-mover-oci-serverless/pkg/jobs"
	"etl-state-mover-oci-serverless/pkg/notify"
)

var testConfig = config.Config{
	Bucket:       "landing",
	Job:          "orders-etl",
	Crawler:      "orders-crawler",
	ReadyDir:     "ready/",
	InProcessDir: "in-process/",
	SucceededDir: "succeeded/",
	FailedDir:    "failed/",
	FileMarker:   ".csv",
}

func TestReconcile_SucceededMovesToSucceeded(t *testing.T) {
	objects := newMemObjects("in-process/a.csv", "in-process/b.csv", "in-process/c.csv")
	store := newMemJobs(jobs.Record{ID: "run-1", Files: []string{"a.csv", "b.csv", "c.csv"}, Status: jobs.StatusInProcess})
	h := New(testConfig, objects, store, zaptest.NewLogger(t))

	err := h.ReconcileCompletedJob(context.Background(), &event.Detail{JobRunID: "run-1", State: jobs.StatusSucceeded})
	if err != nil {
		t.Fatalf("expected reconcile, got error %v", err)
	}

	if got := objects.under("in-process/"); len(got) != 0 {
		t.Fatalf("expected in-process to be empty, got %v", got)
	}
	want := []string{"succeeded/a.csv", "succeeded/b.csv", "succeeded/c.csv"}
	if got := objects.under("succeeded/"); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if store.recs["run-1"].Status != jobs.StatusSucceeded {
		t.Fatalf("expected status SUCCEEDED, got %s", store.recs["run-1"].Status)
	}
}

func TestReconcile_OtherStatusMovesToFailed(t *testing.T) {
	for _, state := range []string{jobs.StatusFailed, "CANCELED", "TIMEOUT"} {
		objects := newMemObjects("in-process/a.csv")
		store := newMemJobs(jobs.Record{ID: "run-1", Files: []string{"a.csv"}, Status: jobs.StatusInProcess})
		h := New(testConfig, objects, store, zaptest.NewLogger(t))

		if err := h.ReconcileCompletedJob(context.Background(), &event.Detail{JobRunID: "run-1", State: state}); err != nil {
			t.Fatalf("%s: expected reconcile, got error %v", state, err)
		}
		if got := objects.under("failed/"); len(got) != 1 || got[0] != "failed/a.csv" {
			t.Fatalf("%s: expected failed/a.csv, got %v", state, got)
		}
		if store.recs["run-1"].Status != state {
			t.Fatalf("%s: expected status stored verbatim, got %s", state, store.recs["run-1"].Status)
		}
	}
}

func TestReconcile_TickAndUnknownJob(t *testing.T) {
	objects := newMemObjects("in-process/a.csv")
	h := New(testConfig, objects, newMemJobs(), zaptest.NewLogger(t))

	if err := h.ReconcileCompletedJob(context.Background(), nil); err != nil {
		t.Fatalf("expected tick to be a no-op, got error %v", err)
	}
	if err := h.ReconcileCompletedJob(context.Background(), &event.Detail{JobRunID: "ghost", State: "SUCCEEDED"}); err != nil {
		t.Fatalf("expected unknown job to be skipped, got error %v", err)
	}
	if objects.moves != 0 {
		t.Fatalf("expected no moves, got %d", objects.moves)
	}
}

func TestReconcile_MoveErrorKeepsEarlierMoves(t *testing.T) {
	objects := newMemObjects("in-process/a.csv", "in-process/b.csv", "in-process/c.csv")
	objects.failMove = "in-process/b.csv"
	store := newMemJobs(jobs.Record{ID: "run-1", Files: []string{"a.csv", "b.csv", "c.csv"}})
	h := New(testConfig, objects, store, zaptest.NewLogger(t))

	err := h.ReconcileCompletedJob(context.Background(), &event.Detail{JobRunID: "run-1", State: "SUCCEEDED"})
	if err == nil {
		t.Fatalf("expected move error to propagate")
	}
	if got := objects.under("succeeded/"); len(got) != 1 || got[0] != "succeeded/a.csv" {
		t.Fatalf("expected only a.csv moved, got %v", got)
	}
}

func TestPromote_MovesMatchingFilesAndSubmits(t *testing.T) {
	objects := newMemObjects("ready/", "ready/a.csv", "ready/b.csv", "ready/notes.txt", "in-process/")
	store := newMemJobs()
	launcher := &fakeLauncher{runID: "run-2"}
	h := New(testConfig, objects, store, zaptest.NewLogger(t), WithLauncher(launcher))

	p, err := h.PromoteReadyFiles(context.Background())
	if err != nil {
		t.Fatalf("expected promotion, got error %v", err)
	}
	if p.Outcome != OutcomeJobSubmitted || p.JobRunID != "run-2" {
		t.Fatalf("unexpected promotion %+v", p)
	}

	wantMoved := []string{"a.csv", "b.csv"}
	if !reflect.DeepEqual(p.Files, wantMoved) {
		t.Fatalf("expected %v, got %v", wantMoved, p.Files)
	}
	if got := objects.under("in-process/"); !reflect.DeepEqual(got, []string{"in-process/", "in-process/a.csv", "in-process/b.csv"}) {
		t.Fatalf("unexpected in-process keys %v", got)
	}
	if got := objects.under("ready/"); !reflect.DeepEqual(got, []string{"ready/", "ready/notes.txt"}) {
		t.Fatalf("unexpected ready keys %v", got)
	}

	rec, ok := store.recs["run-2"]
	if !ok {
		t.Fatalf("expected job record run-2")
	}
	if rec.Status != jobs.StatusInProcess || !reflect.DeepEqual(rec.Files, wantMoved) {
		t.Fatalf("unexpected record %+v", rec)
	}
	if len(launcher.crawls) != 1 || launcher.crawls[0] != "orders-crawler" {
		t.Fatalf("expected crawler start, got %v", launcher.crawls)
	}
	if len(launcher.jobs) != 1 || launcher.jobs[0] != "orders-etl" {
		t.Fatalf("expected one job start, got %v", launcher.jobs)
	}
}

func TestPromote_InProcessBlocksSubmission(t *testing.T) {
	objects := newMemObjects("ready/a.csv", "ready/b.csv", "in-process/old.csv")
	launcher := &fakeLauncher{runID: "run-3"}
	store := newMemJobs()
	h := New(testConfig, objects, store, zaptest.NewLogger(t), WithLauncher(launcher))

	p, err := h.PromoteReadyFiles(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if p.Outcome != OutcomeJobRunning {
		t.Fatalf("expected JOB_RUNNING, got %s", p.Outcome)
	}
	if len(launcher.jobs) != 0 || len(store.recs) != 0 || objects.moves != 0 {
		t.Fatalf("expected nothing to happen, jobs=%v recs=%d moves=%d", launcher.jobs, len(store.recs), objects.moves)
	}
}

func TestPromote_NothingAnywhere(t *testing.T) {
	objects := newMemObjects("ready/", "in-process/")
	launcher := &fakeLauncher{}
	h := New(testConfig, objects, newMemJobs(), zaptest.NewLogger(t), WithLauncher(launcher))

	p, err := h.PromoteReadyFiles(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if p.Outcome != OutcomeNoFiles {
		t.Fatalf("expected NO_FILES, got %s", p.Outcome)
	}
	if len(launcher.jobs) != 0 || len(launcher.crawls) != 0 || objects.moves != 0 {
		t.Fatalf("expected no side effects")
	}
}

func TestPromote_NoMatchingFiles(t *testing.T) {
	objects := newMemObjects("ready/readme.txt")
	launcher := &fakeLauncher{}
	h := New(testConfig, objects, newMemJobs(), zaptest.NewLogger(t), WithLauncher(launcher))

	p, err := h.PromoteReadyFiles(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if p.Outcome != OutcomeNoMatchingFiles || len(launcher.jobs) != 0 {
		t.Fatalf("unexpected promotion %+v jobs=%v", p, launcher.jobs)
	}
}

func TestPromote_LockHeldElsewhere(t *testing.T) {
	objects := newMemObjects("ready/a.csv")
	launcher := &fakeLauncher{runID: "run-4"}
	locker := &fakeLocker{held: true}
	h := New(testConfig, objects, newMemJobs(), zaptest.NewLogger(t), WithLauncher(launcher), WithLocker(locker))

	p, err := h.PromoteReadyFiles(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if p.Outcome != OutcomeJobRunning || len(launcher.jobs) != 0 {
		t.Fatalf("expected no submission while lock is held, got %+v", p)
	}
}

func TestPromote_ReleasesLock(t *testing.T) {
	objects := newMemObjects("ready/a.csv")
	locker := &fakeLocker{}
	h := New(testConfig, objects, newMemJobs(), zaptest.NewLogger(t), WithLauncher(&fakeLauncher{runID: "run-5"}), WithLocker(locker))

	if _, err := h.PromoteReadyFiles(context.Background()); err != nil {
		t.Fatalf("expected promotion, got error %v", err)
	}
	if locker.acquired != 1 || locker.released != 1 || locker.held {
		t.Fatalf("expected lock to be taken and released, got %+v", locker)
	}
}

func TestPromote_RequiresLauncher(t *testing.T) {
	h := New(testConfig, newMemObjects(), newMemJobs(), zaptest.NewLogger(t))
	if _, err := h.PromoteReadyFiles(context.Background()); err == nil {
		t.Fatalf("expected error without launcher")
	}
}

func TestRunTransition(t *testing.T) {
	objects := newMemObjects("in-process/a.csv", "ready/b.csv")
	store := newMemJobs(jobs.Record{ID: "run-1", Files: []string{"a.csv"}, Status: jobs.StatusInProcess})
	h := New(testConfig, objects, store, zaptest.NewLogger(t), WithLauncher(&fakeLauncher{runID: "run-2"}))

	msg, err := h.RunTransition(context.Background(), event.Scheduled{
		Detail: &event.Detail{JobRunID: "run-1", State: "SUCCEEDED"},
	})
	if err != nil {
		t.Fatalf("expected run, got error %v", err)
	}
	if !strings.Contains(msg, "run-1") || !strings.Contains(msg, "submitted job run-2") {
		t.Fatalf("unexpected message %q", msg)
	}
	if got := objects.under("in-process/"); !reflect.DeepEqual(got, []string{"in-process/b.csv"}) {
		t.Fatalf("expected b.csv promoted after a.csv reconciled, got %v", got)
	}
}

func TestRunNotify(t *testing.T) {
	objects := newMemObjects("in-process/a.csv")
	store := newMemJobs(jobs.Record{ID: "run-1", Files: []string{"a.csv"}})
	n := &fakeNotifier{}
	h := New(testConfig, objects, store, zaptest.NewLogger(t))

	out := notify.NewEvent("notify-downstream", "latest", "ocid1.fnfunc.oc1..f", "call-1", time.Now())
	msg, err := h.RunNotify(context.Background(), event.Scheduled{
		Detail: &event.Detail{JobRunID: "run-1", State: "FAILED"},
	}, n, out)
	if err != nil {
		t.Fatalf("expected run, got error %v", err)
	}
	if len(n.events) != 1 || n.events[0].RequestID != "call-1" {
		t.Fatalf("expected one notification, got %+v", n.events)
	}
	if !strings.Contains(msg, "downstream notified") {
		t.Fatalf("unexpected message %q", msg)
	}
	if got := objects.under("failed/"); len(got) != 1 {
		t.Fatalf("expected a.csv in failed, got %v", got)
	}
}
