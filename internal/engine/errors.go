package engine

import (
	"errors"
	"fmt"

	"github.com/heuer/mappa/internal/tm"
)

// MergeError reports a merge that could not complete.
//
// Model violations raised by the construct graph during a merge are
// returned as they are (wrapped); MergeError covers failures that belong
// to the merge algorithm itself.
type MergeError struct {
	// Code identifies the error category.
	Code MergeErrorCode

	// Message is a human-readable description.
	Message string

	// Source and Target are the topics of the merge that failed.
	Source tm.ID
	Target tm.ID
}

// MergeErrorCode categorizes merge errors.
type MergeErrorCode string

const (
	// ErrCodeCascadeLimit indicates a merge cascaded more often than the
	// map has topics.
	ErrCodeCascadeLimit MergeErrorCode = "CASCADE_LIMIT"
)

// Error implements the error interface.
func (e *MergeError) Error() string {
	if e.Source != tm.NoID || e.Target != tm.NoID {
		return fmt.Sprintf("%s: %s (source=%d, target=%d)", e.Code, e.Message, e.Source, e.Target)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsCascadeLimitError reports whether err is a cascade limit error.
// Uses errors.As to handle wrapped errors.
func IsCascadeLimitError(err error) bool {
	var me *MergeError
	if errors.As(err, &me) {
		return me.Code == ErrCodeCascadeLimit
	}
	return false
}

func newCascadeLimitError(source, target tm.ID, limit int) *MergeError {
	return &MergeError{
		Code:    ErrCodeCascadeLimit,
		Message: fmt.Sprintf("merge cascaded beyond %d steps", limit),
		Source:  source,
		Target:  target,
	}
}
