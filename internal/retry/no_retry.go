package retry

import "context"

// NoRetryStrategy runs every operation exactly once
type NoRetryStrategy struct{}

func NewNoRetryStrategy() *NoRetryStrategy {
	return &NoRetryStrategy{}
}

func (s *NoRetryStrategy) Execute(ctx context.Context, _ string, operation Operation) error {
	return operation(ctx)
}

func (s *NoRetryStrategy) Name() string {
	return "NoRetry"
}
