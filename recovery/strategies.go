package recovery

import (
	"context"
	"fmt"

	"github.com/wudi/docsign/observability"
)

// StrictStrategy fails on the first error.
type StrictStrategy struct{}

func NewStrictStrategy() *StrictStrategy { return &StrictStrategy{} }

func (s *StrictStrategy) OnError(context.Context, error, Location) Action { return ActionFail }

// LenientStrategy records every error, logs it and keeps going.
type LenientStrategy struct {
	Errors []error
	logger observability.Logger
}

func NewLenientStrategy(logger observability.Logger) *LenientStrategy {
	if logger == nil {
		logger = observability.NopLogger{}
	}
	return &LenientStrategy{logger: logger}
}

func (s *LenientStrategy) OnError(_ context.Context, err error, loc Location) Action {
	s.Errors = append(s.Errors, fmt.Errorf("[%s] offset %d: %w", loc.Component, loc.ByteOffset, err))
	s.logger.Warn("recovered from malformed input",
		observability.String("component", loc.Component),
		observability.Int64("offset", loc.ByteOffset),
		observability.Error("error", err))
	return ActionWarn
}
