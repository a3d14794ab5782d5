package workerpool

import (
	"fmt"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
)

// New creates an ants pool whose logs and recovered panics go to log. The
// pool blocks on Submit unless opts say otherwise.
func New(size int, log *zap.Logger, opts ...ants.Option) (*ants.Pool, error) {
	if size <= 0 {
		return nil, fmt.Errorf("pool size must be positive, got %d", size)
	}
	options := append([]ants.Option{
		ants.WithLogger(newAntsLoggerAdapter(log.Named("ants_pool"))),
		ants.WithPanicHandler(func(p interface{}) {
			log.Error("Worker panic caught", zap.Any("error", p), zap.Stack("stack"))
		}),
	}, opts...)
	pool, err := ants.NewPool(size, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to create ants pool: %w", err)
	}
	return pool, nil
}

// --- Ants Logger Adapter ---

type antsLoggerAdapter struct {
	logger *zap.Logger
}

func newAntsLoggerAdapter(logger *zap.Logger) *antsLoggerAdapter {
	return &antsLoggerAdapter{logger: logger}
}

func (a *antsLoggerAdapter) Printf(format string, args ...interface{}) {
	a.logger.Info(fmt.Sprintf(format, args...))
}
