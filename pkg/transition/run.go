package transition

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"etl-state-mover-oci-serverless/pkg/event"
	"etl-state-mover-oci-serverless/pkg/notify"
)

// RunTransition reconciles the completed job in ev and then promotes ready files.
func (h *Handler) RunTransition(ctx context.Context, ev event.Scheduled) (string, error) {
	if err := h.ReconcileCompletedJob(ctx, ev.Detail); err != nil {
		return "", fmt.Errorf("reconcile completed job: %w", err)
	}

	p, err := h.PromoteReadyFiles(ctx)
	if err != nil {
		return "", fmt.Errorf("promote ready files: %w", err)
	}

	msg := describeReconcile(ev.Detail) + "; "
	switch p.Outcome {
	case OutcomeJobSubmitted:
		msg += fmt.Sprintf("submitted job %s for %d files", p.JobRunID, len(p.Files))
	case OutcomeJobRunning:
		msg += "job run in progress"
	case OutcomeNoMatchingFiles:
		msg += "no ready files match the file marker"
	default:
		msg += "no files to process"
	}
	return msg, nil
}

// RunNotify reconciles the completed job in ev and then fires out to the
// downstream consumer without waiting for it.
func (h *Handler) RunNotify(ctx context.Context, ev event.Scheduled, n notify.Notifier, out notify.Event) (string, error) {
	if err := h.ReconcileCompletedJob(ctx, ev.Detail); err != nil {
		return "", fmt.Errorf("reconcile completed job: %w", err)
	}

	if err := n.Notify(ctx, out); err != nil {
		return "", fmt.Errorf("notify downstream: %w", err)
	}
	h.logger.Info("downstream notified", zap.String("request_id", out.RequestID))

	return describeReconcile(ev.Detail) + "; downstream notified", nil
}
