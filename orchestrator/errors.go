package orchestrator

import (
	"errors"
	"fmt"

	apperrors "github.com/kbukum/chunkscribe/errors"
)

// NoChunk is StepError.ChunkIndex for failures outside per-chunk work.
const NoChunk = -1

// StepError locates a failed run: the state it failed in and, for
// export and transcription failures, the chunk.
type StepError struct {
	RunID      string
	Step       State
	ChunkIndex int
	Err        error
}

func (e *StepError) Error() string {
	if e.ChunkIndex != NoChunk {
		return fmt.Sprintf("%s chunk %d: %v", e.Step, e.ChunkIndex, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// HasChunk reports whether the failure is tied to a chunk.
func (e *StepError) HasChunk() bool { return e.ChunkIndex != NoChunk }

// Code is the AppError code of the cause, or INTERNAL_ERROR.
func (e *StepError) Code() apperrors.ErrorCode {
	return apperrors.Wrap(e.Err).Code
}

// AsStepError extracts a StepError from err's chain.
func AsStepError(err error) (*StepError, bool) {
	var se *StepError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// stepErr builds a StepError, taking the chunk index from the cause when
// the caller does not know it.
func stepErr(step State, chunkIndex int, err error) *StepError {
	if se, ok := AsStepError(err); ok {
		return se
	}
	if chunkIndex == NoChunk {
		if app, ok := apperrors.AsAppError(err); ok {
			if idx, ok := app.ChunkIndex(); ok {
				chunkIndex = idx
			}
		}
	}
	return &StepError{Step: step, ChunkIndex: chunkIndex, Err: err}
}
