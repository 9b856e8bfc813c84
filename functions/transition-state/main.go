package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/fnproject/fdk-go"
	"go.uber.org/zap"

	"etl-state-mover-oci-serverless/pkg/bootstrap"
	"etl-state-mover-oci-serverless/pkg/event"
	"etl-state-mover-oci-serverless/pkg/logging"
)

type depsSource interface {
	Get(ctx context.Context, fnConfig map[string]string) (*bootstrap.Deps, *zap.Logger, error)
}

// deps survive between invocations of a warm container.
var deps depsSource = &bootstrap.Lazy{Variant: bootstrap.Transition}

func main() {
	fdk.Handle(fdk.HandlerFunc(myHandler))
}

func myHandler(ctx context.Context, in io.Reader, out io.Writer) {
	fnCtx := fdk.GetContext(ctx)

	d, base, err := deps.Get(ctx, fnCtx.Config())
	log := logging.ForInvocation(base, fnCtx.FnName(), fnCtx.CallID())
	if err != nil {
		log.Error("failed to initialize", zap.Error(err))
		writeError(out, http.StatusInternalServerError, err)
		return
	}

	// 1. Decode the scheduled event
	ev, err := event.Decode(in)
	if err != nil {
		log.Warn("rejecting event", zap.Error(err))
		writeError(out, http.StatusBadRequest, err)
		return
	}
	log.Info("scheduled event received", zap.String("event_id", ev.ID), zap.String("source", ev.Source))

	// 2. Reconcile the finished job, then promote ready files
	msg, err := d.Handler.WithLogger(log).RunTransition(ctx, ev)
	if err != nil {
		log.Error("state transition failed", zap.Error(err))
		writeError(out, http.StatusInternalServerError, err)
		return
	}

	log.Info(msg)
	json.NewEncoder(out).Encode(map[string]string{"message": msg})
}

func writeError(out io.Writer, status int, err error) {
	fdk.WriteStatus(out, status)
	json.NewEncoder(out).Encode(map[string]string{"error": err.Error()})
}
