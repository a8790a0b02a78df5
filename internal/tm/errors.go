package tm

import (
	"errors"
	"fmt"
)

// ViolationCode categorizes model constraint violations.
type ViolationCode string

const (
	// CodeNilArgument indicates a required topic or construct argument was nil.
	CodeNilArgument ViolationCode = "NIL_ARGUMENT"

	// CodeAlreadyAttached indicates a child already belongs to another parent.
	CodeAlreadyAttached ViolationCode = "ALREADY_ATTACHED"

	// CodeForeignMap indicates constructs from different topic maps were combined.
	CodeForeignMap ViolationCode = "FOREIGN_MAP"

	// CodeTopicInUse indicates a topic is still referenced as a type, theme,
	// player or reifier and cannot be detached or removed.
	CodeTopicInUse ViolationCode = "TOPIC_IN_USE"

	// CodeReifierConflict indicates a topic would reify two constructs.
	CodeReifierConflict ViolationCode = "REIFIER_CONFLICT"

	// CodeInvalidVariantScope indicates a variant scope adds no theme to its name's scope.
	CodeInvalidVariantScope ViolationCode = "INVALID_VARIANT_SCOPE"

	// CodeRemovedConstruct indicates an operation on a removed or merged-away construct.
	CodeRemovedConstruct ViolationCode = "REMOVED_CONSTRUCT"

	// CodeInvalidIRI indicates an identifier could not be normalized.
	CodeInvalidIRI ViolationCode = "INVALID_IRI"
)

// ModelConstraintViolation reports a structural rule break that is never
// safe to resolve automatically. The graph is left unchanged.
type ModelConstraintViolation struct {
	// Code identifies the rule that was broken.
	Code ViolationCode

	// Message is a human-readable description.
	Message string

	// Construct is the construct the failing operation was applied to, if any.
	Construct Construct

	// Err is the underlying cause (e.g. an IRI parse error).
	Err error
}

// Error implements the error interface.
func (e *ModelConstraintViolation) Error() string {
	if e.Construct != nil {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, Describe(e.Construct))
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *ModelConstraintViolation) Unwrap() error {
	return e.Err
}

// IdentityViolation reports an identity index collision.
//
// It is recoverable: Existing is the construct already holding the
// identifier, and callers following the merge-on-collision policy merge
// Existing with Construct and retry.
type IdentityViolation struct {
	// Kind is the identity kind being registered.
	Kind IdentityKind

	// IRI is the normalized identifier.
	IRI string

	// Construct is the construct whose identity change was rejected.
	Construct Construct

	// Existing is the construct that already holds the identifier.
	Existing Construct
}

// Error implements the error interface.
func (e *IdentityViolation) Error() string {
	return fmt.Sprintf("IDENTITY_VIOLATION: %s <%s> of %s collides with %s",
		e.Kind, e.IRI, Describe(e.Construct), Describe(e.Existing))
}

// IsIdentityViolation reports whether err is or wraps an IdentityViolation.
func IsIdentityViolation(err error) bool {
	var iv *IdentityViolation
	return errors.As(err, &iv)
}

// AsIdentityViolation extracts the IdentityViolation from err.
func AsIdentityViolation(err error) (*IdentityViolation, bool) {
	var iv *IdentityViolation
	if errors.As(err, &iv) {
		return iv, true
	}
	return nil, false
}

// IsViolation reports whether err is a ModelConstraintViolation with the given code.
// Uses errors.As to handle wrapped errors.
func IsViolation(err error, code ViolationCode) bool {
	var mv *ModelConstraintViolation
	if errors.As(err, &mv) {
		return mv.Code == code
	}
	return false
}

// IsModelViolation reports whether err is any ModelConstraintViolation.
func IsModelViolation(err error) bool {
	var mv *ModelConstraintViolation
	return errors.As(err, &mv)
}

func violation(code ViolationCode, c Construct, format string, args ...any) *ModelConstraintViolation {
	return &ModelConstraintViolation{
		Code:      code,
		Message:   fmt.Sprintf(format, args...),
		Construct: c,
	}
}

// Describe renders a construct as "kind#id" for messages and logs.
func Describe(c Construct) string {
	if c == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s#%d", c.Kind(), c.ID())
}
