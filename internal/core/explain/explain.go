// Package explain is the observation hook threaded through indexing and
// query operations. Implementations collect key/values and phase timings;
// a nil Explain is always safe to pass.
package explain

type Explain interface {
	// KV records one fact about the operation.
	KV(key string, value any)
	// Timer starts a named phase and returns its stop func.
	Timer(name string) func()
}
