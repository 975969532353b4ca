package service

import (
	"errors"
	"fmt"
)

var (
	ErrValidation       = errors.New("invalid request")
	ErrDuplicateRequest = errors.New("duplicate request")
)

// Stage names the step of a request that failed.
type Stage string

const (
	StageValidate  Stage = "validate"
	StageSummarize Stage = "summarize"
	StageGenerate  Stage = "generate"
	StageSerialize Stage = "serialize"
	StageLoad      Stage = "load"
	StagePersist   Stage = "persist"
)

type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func stageErr(stage Stage, err error) error {
	return &StageError{Stage: stage, Err: err}
}

// StageOf returns the failed stage of err, "" when err carries none.
func StageOf(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}
