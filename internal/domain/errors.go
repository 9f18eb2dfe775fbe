package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the engine wraps exactly one of these.
var (
	ErrInvalidState     = errors.New("invalid state")
	ErrNotFound         = errors.New("not found")
	ErrExhausted        = errors.New("card pool exhausted")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrValidationFailed = errors.New("validation failed")
	ErrStorage          = errors.New("storage error")
	ErrUnreachable      = errors.New("no eligible czar")
)

// Domain errors
var (
	ErrRoomNotFound      = fmt.Errorf("%w: room", ErrNotFound)
	ErrMemberNotFound    = fmt.Errorf("%w: member", ErrNotFound)
	ErrCardNotFound      = fmt.Errorf("%w: card", ErrNotFound)
	ErrGroupNotFound     = fmt.Errorf("%w: submission group", ErrNotFound)
	ErrInvalidTransition = fmt.Errorf("%w: invalid phase transition", ErrInvalidState)
	ErrNotChoosing       = fmt.Errorf("%w: member is not choosing", ErrInvalidState)
	ErrNotEnoughGroups   = fmt.Errorf("%w: no complete submissions", ErrInvalidState)
	ErrGroupNotRevealed  = fmt.Errorf("%w: submission not revealed", ErrInvalidState)
	ErrWinnerInactive    = fmt.Errorf("%w: submitting member left", ErrInvalidState)
	ErrAlreadyMember     = fmt.Errorf("%w: already in room", ErrInvalidState)
	ErrConflict          = fmt.Errorf("%w: room busy, try again", ErrInvalidState)
	ErrNotCzar           = fmt.Errorf("%w: czar or admin only", ErrUnauthorized)
	ErrNotNextCzar       = fmt.Errorf("%w: next czar or admin only", ErrUnauthorized)
	ErrBadToken          = fmt.Errorf("%w: bad room token", ErrUnauthorized)
	ErrCardCountMismatch = fmt.Errorf("%w: card count does not match prompt", ErrValidationFailed)
	ErrCardNotOwned      = fmt.Errorf("%w: card not in hand", ErrValidationFailed)
	ErrInvalidEdition    = fmt.Errorf("%w: unknown edition", ErrValidationFailed)
	ErrInvalidIcon       = fmt.Errorf("%w: unknown icon", ErrValidationFailed)
	ErrIconTaken         = fmt.Errorf("%w: icon in use", ErrValidationFailed)
	ErrEmptyName         = fmt.Errorf("%w: name cannot be empty", ErrValidationFailed)
	ErrRoomFull          = fmt.Errorf("%w: room is full", ErrInvalidState)
	ErrStaleVersion      = fmt.Errorf("%w: stored room version changed", ErrInvalidState)
)

// Error codes reported to clients.
const (
	CodeInvalidState      = "INVALID_STATE"
	CodeNotFound          = "NOT_FOUND"
	CodeExhausted         = "EXHAUSTED"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeValidationFailed  = "VALIDATION_FAILED"
	CodeCardCountMismatch = "CARD_COUNT_MISMATCH"
	CodeCardNotOwned      = "CARD_NOT_OWNED"
	CodeStorage           = "STORAGE_ERROR"
	CodeUnreachable       = "UNREACHABLE"
	CodeInternal          = "INTERNAL_ERROR"
)

// KindOf maps an error to its client-facing code. The two submission
// validation errors keep their own codes.
func KindOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrCardCountMismatch):
		return CodeCardCountMismatch
	case errors.Is(err, ErrCardNotOwned):
		return CodeCardNotOwned
	case errors.Is(err, ErrInvalidState):
		return CodeInvalidState
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrExhausted):
		return CodeExhausted
	case errors.Is(err, ErrUnauthorized):
		return CodeUnauthorized
	case errors.Is(err, ErrValidationFailed):
		return CodeValidationFailed
	case errors.Is(err, ErrStorage):
		return CodeStorage
	case errors.Is(err, ErrUnreachable):
		return CodeUnreachable
	default:
		return CodeInternal
	}
}
