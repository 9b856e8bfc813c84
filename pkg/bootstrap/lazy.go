package bootstrap

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"etl-state-mover-oci-serverless/pkg/config"
	"etl-state-mover-oci-serverless/pkg/logging"
)

// Lazy builds Deps on first use and keeps them for the life of the container.
// A failed build is retried on the next invocation.
type Lazy struct {
	Variant Variant

	mu     sync.Mutex
	deps   *Deps
	logger *zap.Logger
}

// Get returns the container's dependencies and base logger. The logger is
// usable even when err is non-nil.
func (l *Lazy) Get(ctx context.Context, fnConfig map[string]string) (*Deps, *zap.Logger, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.deps != nil {
		return l.deps, l.logger, nil
	}

	rt, err := config.LoadRuntime(fnConfig)
	if err != nil {
		return nil, l.fallbackLogger(), err
	}

	if l.logger == nil {
		logger, err := logging.New(rt.LogLevel)
		if err != nil {
			return nil, l.fallbackLogger(), err
		}
		l.logger = logger
	}

	deps, err := Build(ctx, rt, l.Variant, l.logger)
	if err != nil {
		return nil, l.logger, err
	}
	l.deps = deps
	return deps, l.logger, nil
}

func (l *Lazy) fallbackLogger() *zap.Logger {
	if l.logger != nil {
		return l.logger
	}
	logger, err := zap.NewProduction()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
