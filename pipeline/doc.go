// Package pipeline provides lazy, pull-based pipelines over per-chunk work.
//
// No work happens until values are pulled via Collect or ForEach. Each
// stage pulls from the previous one on demand.
//
//   - Map: transform each value on the caller's goroutine
//   - Tap: side effect without altering the value
//   - OrderedParallel: Map with a bounded worker pool; results come out in
//     input order and the first failure cancels the remaining work
//
// The chunk stages use Map for sequential runs and OrderedParallel when
// concurrency is above one, so the merge step always sees chunks in index
// order:
//
//	specs := pipeline.FromSlice(plan)
//	exported := pipeline.OrderedParallel(specs, 4, exportChunk)
//	chunks, err := pipeline.Collect(ctx, exported)
package pipeline
