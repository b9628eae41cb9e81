// Package errors provides the structured error type shared by every stage
// of the transcription pipeline.
//
// Each AppError carries a machine-readable code, a retryable flag used by
// the retry policy, and free-form details (chunk index, step, file path)
// that end up in logs and in the run ledger.
package errors
