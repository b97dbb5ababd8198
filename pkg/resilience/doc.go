// Package resilience provides a circuit breaker and retry with exponential
// backoff for calls that compliance-navigator makes to external services.
//
// This package implements the following patterns:
//
// # Circuit Breaker Pattern
//
// The circuit breaker pattern prevents cascading failures by monitoring
// the failure rate of external service calls and temporarily blocking
// requests when the failure rate exceeds a threshold.
//
//	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
//		Name:        "external-service",
//		MaxRequests: 3,
//		Interval:    time.Minute,
//		Timeout:     30 * time.Second,
//	})
//
//	result, err := cb.Execute(ctx, func(ctx context.Context) (interface{}, error) {
//		return externalService.Call(ctx, data)
//	})
//
// # Retry with Exponential Backoff
//
// The retry mechanism automatically retries failed operations with
// exponential backoff and jitter to avoid thundering herd problems.
//
//	retrier := resilience.NewRetrier(resilience.DefaultRetryConfig())
//	err := retrier.Execute(ctx, func(ctx context.Context) error {
//		return riskyOperation(ctx)
//	})
//
// # Combined Usage
//
// RetryableOperation combines the two: every attempt the retrier makes goes
// through the circuit breaker.
//
//	op := resilience.NewRetryableOperation("service-name", cbConfig, retryConfig)
//	result, err := op.Execute(ctx, func(ctx context.Context) (interface{}, error) {
//		return externalService.Call(ctx, data)
//	})
//
// The package is designed to be thread-safe and can handle high-concurrency
// scenarios typical in distributed systems.
package resilience