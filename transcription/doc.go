// Package transcription sends exported audio chunks to a speech-to-text
// backend and returns caption documents.
//
// Backends live in subpackages and register themselves in a
// provider.Registry keyed by name:
//
//   - transcription/openai: the hosted /audio/transcriptions endpoint
//   - transcription/whisper: a self-hosted faster-whisper sidecar
//
// Client wraps the selected backend. It makes exactly one call per chunk
// under a timeout and reports every failure as EXTERNAL_SERVICE_ERROR
// carrying the chunk index. Retry is layered on top by the caller with
// provider.WithResilience.
//
//	reg := transcription.NewRegistry()
//	openai.Register(reg)
//	whisper.Register(reg)
//	backend, err := reg.Create(cfg.Provider, cfg)
//	client := transcription.NewClient(backend, cfg.Timeout, log)
package transcription
