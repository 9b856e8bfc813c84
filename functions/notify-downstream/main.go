package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/fnproject/fdk-go"
	"go.uber.org/zap"

	"etl-state-mover-oci-serverless/pkg/bootstrap"
	"etl-state-mover-oci-serverless/pkg/event"
	"etl-state-mover-oci-serverless/pkg/logging"
	"etl-state-mover-oci-serverless/pkg/notify"
)

type depsSource interface {
	Get(ctx context.Context, fnConfig map[string]string) (*bootstrap.Deps, *zap.Logger, error)
}

// deps survive between invocations of a warm container.
var deps depsSource = &bootstrap.Lazy{Variant: bootstrap.Notify}

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

	ev, err := event.Decode(in)
	if err != nil {
		log.Warn("rejecting event", zap.Error(err))
		writeError(out, http.StatusBadRequest, err)
		return
	}

	// The downstream payload identifies this invocation, not the trigger.
	downstream := notify.NewEvent(fnCtx.FnName(), d.Runtime.FunctionVersion, fnCtx.FnID(), fnCtx.CallID(), time.Now())

	msg, err := d.Handler.WithLogger(log).RunNotify(ctx, ev, d.Notifier, downstream)
	if err != nil {
		log.Error("notify run failed", zap.Error(err))
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
