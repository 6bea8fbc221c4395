package core

import (
	"errors"
	"fmt"
)

var (
	ErrDetection          = errors.New("detection failure")
	ErrDetectorUnhealthy  = errors.New("detector failure streak exceeded")
	ErrRateLimitExceeded  = errors.New("rate limit exceeded")
	ErrResponseGeneration = errors.New("response generation failed")
	ErrPoolExhausted      = errors.New("connection pool exhausted")
	ErrStoreUnhealthy     = errors.New("store failure streak exceeded")
	ErrDispatch           = errors.New("dispatch failure")
	ErrConfig             = errors.New("invalid configuration")
)

// Stage names used in logs and StageError.
const (
	StageCapture  = "capture"
	StageDetect   = "detect"
	StagePolicy   = "policy"
	StageRespond  = "respond"
	StageDispatch = "dispatch"
	StageLog      = "log"
)

// StageError attaches pipeline context to a failure.
type StageError struct {
	Stage  string
	Sender string
	Err    error
}

func (e *StageError) Error() string {
	if e.Sender == "" {
		return fmt.Sprintf("%s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("%s (sender %q): %v", e.Stage, e.Sender, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
