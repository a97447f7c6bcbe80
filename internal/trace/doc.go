// Package trace records what the compiler is doing: driver phases, per-chunk
// passes, per-function optimization and individual optimization rounds.
//
// Enable it from the command line:
//
//	moonc compile --trace=- --trace-level=detail chunk.mpk
//
// Tracers travel through the pipeline in a context:
//
//	ctx = trace.WithTracer(ctx, tracer)
//	span := trace.Begin(trace.FromContext(ctx), trace.ScopePass, "lower", 0)
//	defer span.End("")
//
// Levels select how deep events go:
//
//   - LevelOff: nothing
//   - LevelError: no live events
//   - LevelPhase: driver and pass boundaries
//   - LevelDetail: adds one span per function
//   - LevelDebug: adds one span per optimization round
package trace
