package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/fnproject/fdk-go"
	"go.uber.org/zap"

	"etl-state-mover-oci-serverless/pkg/bootstrap"
	"etl-state-mover-oci-serverless/pkg/jobs"
	"etl-state-mover-oci-serverless/pkg/logging"
)

// FnContext represents the context provided by the function invocation,
// including the request path from the API Gateway.
type FnContext struct {
	Path string `json:"path"`
}

// JobStatus is the response body.
type JobStatus struct {
	JobRunID string   `json:"jobRunId"`
	Status   string   `json:"status"`
	Files    []string `json:"files"`
}

var deps = &bootstrap.Lazy{Variant: bootstrap.Status}

func main() {
	fdk.Handle(fdk.HandlerFunc(myHandler))
}

func myHandler(ctx context.Context, in io.Reader, out io.Writer) {
	fnCtx := fdk.GetContext(ctx)

	d, base, err := deps.Get(ctx, fnCtx.Config())
	log := logging.ForInvocation(base, fnCtx.FnName(), fnCtx.CallID())
	if err != nil {
		log.Error("failed to initialize", zap.Error(err))
		writeError(out, http.StatusInternalServerError, "internal error")
		return
	}

	var req FnContext
	if err := json.NewDecoder(in).Decode(&req); err != nil {
		log.Warn("error decoding function context", zap.Error(err))
		writeError(out, http.StatusBadRequest, "bad request")
		return
	}

	jobRunID := extractJobRunID(req.Path)
	if jobRunID == "" {
		log.Warn("could not extract job run id", zap.String("path", req.Path))
		writeError(out, http.StatusBadRequest, "missing job run id")
		return
	}

	rec, err := d.Jobs.Get(ctx, jobRunID)
	if errors.Is(err, jobs.ErrNotFound) {
		writeError(out, http.StatusNotFound, "job not found")
		return
	}
	if err != nil {
		log.Error("read job record", zap.String("job_run_id", jobRunID), zap.Error(err))
		writeError(out, http.StatusInternalServerError, "internal error")
		return
	}

	json.NewEncoder(out).Encode(JobStatus{JobRunID: rec.ID, Status: rec.Status, Files: rec.Files})
}

// extractJobRunID reads the id from a path like /api/v1/jobs/<id>/status.
func extractJobRunID(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) == 5 && parts[2] == "jobs" && parts[4] == "status" {
		return parts[3]
	}
	return ""
}

func writeError(out io.Writer, status int, msg string) {
	fdk.WriteStatus(out, status)
	json.NewEncoder(out).Encode(map[string]string{"error": msg})
}
