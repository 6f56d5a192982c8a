package pipeline

import "errors"

// errors
var (
	ErrEmptyPrompt      = errors.New("empty prompt")
	ErrNothingPending   = errors.New("no unanswered user turn")
	ErrPendingTurn      = errors.New("last user turn is unanswered, retry it first")
	ErrContextNotReady  = errors.New("cached context not ready")
	ErrRemoteGeneration = errors.New("remote generation failure")
	ErrEmptyReply       = errors.New("empty reply")
)
