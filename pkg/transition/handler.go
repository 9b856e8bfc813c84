// Package transition moves files through the ready, in-process, succeeded and
// failed prefixes and keeps the job records in step with them.
package transition

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"etl-state-mover-oci-serverless/pkg/batch"
	"etl-state-mover-oci-serverless/pkg/config"
	"etl-state-mover-oci-serverless/pkg/event"
	"etl-state-mover-oci-serverless/pkg/jobs"
	"etl-state-mover-oci-serverless/pkg/lock"
	"etl-state-mover-oci-serverless/pkg/storage"
)

// Outcome of a promotion attempt.
type Outcome string

const (
	// OutcomeJobRunning means a job is still in flight; nothing was touched.
	OutcomeJobRunning Outcome = "JOB_RUNNING"
	// OutcomeNoFiles means both ready and in-process were empty.
	OutcomeNoFiles Outcome = "NO_FILES"
	// OutcomeNoMatchingFiles means ready files exist but none carry the file marker.
	OutcomeNoMatchingFiles Outcome = "NO_MATCHING_FILES"
	// OutcomeJobSubmitted means files were promoted and a job was started.
	OutcomeJobSubmitted Outcome = "JOB_SUBMITTED"
)

// Promotion reports what PromoteReadyFiles did.
type Promotion struct {
	Outcome  Outcome
	JobRunID string
	Files    []string
}

// Handler runs the state transitions for one configuration.
type Handler struct {
	cfg      config.Config
	objects  storage.ObjectStore
	jobs     jobs.Store
	launcher batch.Launcher
	locker   lock.Locker
	logger   *zap.Logger
	newToken func() string
}

// Option customizes a Handler.
type Option func(*Handler)

// WithLauncher enables promotion of ready files.
func WithLauncher(l batch.Launcher) Option {
	return func(h *Handler) { h.launcher = l }
}

// WithLocker guards promotion with an in-flight lock.
func WithLocker(l lock.Locker) Option {
	return func(h *Handler) { h.locker = l }
}

// New creates a Handler.
func New(cfg config.Config, objects storage.ObjectStore, store jobs.Store, logger *zap.Logger, opts ...Option) *Handler {
	h := &Handler{
		cfg:      cfg,
		objects:  objects,
		jobs:     store,
		logger:   logger,
		newToken: uuid.NewString,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// WithLogger returns a copy of h that logs to logger.
func (h *Handler) WithLogger(logger *zap.Logger) *Handler {
	c := *h
	c.logger = logger
	return &c
}

// ReconcileCompletedJob records the final state of a job run and moves its
// files out of in-process. A nil detail is a plain tick and does nothing.
// Files moved before a failure stay where they are.
func (h *Handler) ReconcileCompletedJob(ctx context.Context, d *event.Detail) error {
	if d == nil {
		h.logger.Debug("no job completion in event")
		return nil
	}
	log := h.logger.With(zap.String("job_run_id", d.JobRunID), zap.String("state", d.State))

	if err := h.jobs.SetStatus(ctx, d.JobRunID, d.State); err != nil {
		if errors.Is(err, jobs.ErrNotFound) {
			log.Warn("completion for unknown job run, skipping")
			return nil
		}
		return err
	}

	rec, err := h.jobs.Get(ctx, d.JobRunID)
	if err != nil {
		return err
	}

	dstDir := h.cfg.FailedDir
	if d.State == jobs.StatusSucceeded {
		dstDir = h.cfg.SucceededDir
	}

	for _, name := range rec.Files {
		if err := h.objects.Move(ctx, h.cfg.InProcessDir+name, dstDir+name); err != nil {
			return err
		}
		log.Info("file moved", zap.String("file", name), zap.String("to", dstDir))
	}
	log.Info("job reconciled", zap.Int("files", len(rec.Files)))
	return nil
}

// PromoteReadyFiles starts a new job when nothing is in process and ready
// files are waiting.
func (h *Handler) PromoteReadyFiles(ctx context.Context) (Promotion, error) {
	if h.launcher == nil {
		return Promotion{}, errors.New("promotion requires a launcher")
	}

	if h.locker != nil {
		token := h.newToken()
		ok, err := h.locker.Acquire(ctx, token)
		if err != nil {
			return Promotion{}, err
		}
		if !ok {
			h.logger.Info("promotion lock held elsewhere")
			return Promotion{Outcome: OutcomeJobRunning}, nil
		}
		defer func() {
			if err := h.locker.Release(ctx, token); err != nil {
				h.logger.Warn("release promotion lock", zap.Error(err))
			}
		}()
	}

	ready, err := h.objects.List(ctx, h.cfg.ReadyDir)
	if err != nil {
		return Promotion{}, err
	}
	ready = storage.Files(h.cfg.ReadyDir, ready)

	inProcess, err := h.objects.List(ctx, h.cfg.InProcessDir)
	if err != nil {
		return Promotion{}, err
	}
	inProcess = storage.Files(h.cfg.InProcessDir, inProcess)

	h.logger.Info("state prefixes listed",
		zap.Int("ready", len(ready)),
		zap.Int("in_process", len(inProcess)),
		zap.Strings("ready_keys", keys(ready)),
		zap.Strings("in_process_keys", keys(inProcess)),
	)

	switch {
	case len(inProcess) > 0:
		h.logger.Info("job run in progress")
		return Promotion{Outcome: OutcomeJobRunning}, nil
	case len(ready) == 0:
		h.logger.Info("no files to process")
		return Promotion{Outcome: OutcomeNoFiles}, nil
	}

	var moved []string
	for _, o := range ready {
		name := o.Name()
		if !strings.Contains(name, h.cfg.FileMarker) {
			continue
		}
		if err := h.objects.Move(ctx, o.Key, h.cfg.InProcessDir+name); err != nil {
			return Promotion{Files: moved}, err
		}
		h.logger.Info("file moved to in-process", zap.String("file", name))
		moved = append(moved, name)
	}
	if len(moved) == 0 {
		h.logger.Info("no ready files match marker", zap.String("marker", h.cfg.FileMarker))
		return Promotion{Outcome: OutcomeNoMatchingFiles}, nil
	}

	if err := h.launcher.StartCrawler(ctx, h.cfg.Crawler); err != nil {
		return Promotion{Files: moved}, err
	}

	h.logger.Info("starting job", zap.String("job", h.cfg.Job), zap.Strings("files", moved))
	runID, err := h.launcher.StartJob(ctx, h.cfg.Job)
	if err != nil {
		return Promotion{Files: moved}, err
	}

	rec := jobs.Record{ID: runID, Files: moved, Status: jobs.StatusInProcess}
	if err := h.jobs.Create(ctx, rec); err != nil {
		return Promotion{JobRunID: runID, Files: moved}, err
	}
	h.logger.Info("job submitted", zap.String("job_run_id", runID))

	return Promotion{Outcome: OutcomeJobSubmitted, JobRunID: runID, Files: moved}, nil
}

func keys(objects []storage.Object) []string {
	out := make([]string, len(objects))
	for i, o := range objects {
		out[i] = o.Key
	}
	return out
}

func describeReconcile(d *event.Detail) string {
	if d == nil {
		return "no completed job"
	}
	return fmt.Sprintf("job %s marked %s", d.JobRunID, d.State)
}
