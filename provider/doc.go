// Package provider is the plumbing around swappable backends.
//
// A backend implements Provider plus one interaction shape:
//   - RequestResponse[I, O]: one call, one answer (transcription backends)
//   - Sink[I]: fire and acknowledge (event publishers)
//
// Backends register a Factory under a name in a Registry and are built from
// typed configuration at startup. Cross-cutting behaviour is layered with
// Middleware and composed with Chain:
//
//	rr := provider.Chain(
//	    provider.WithLogging[Req, *Resp](log),
//	    provider.WithTracing[Req, *Resp]("transcription"),
//	    provider.WithMetrics[Req, *Resp](metrics),
//	    provider.WithResilienceMiddleware[Req, *Resp](resCfg),
//	)(client)
package provider
