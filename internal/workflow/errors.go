// internal/workflow/errors.go
package workflow

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindUnauthorized              Kind = "UNAUTHORIZED"
	KindForbidden                 Kind = "FORBIDDEN"
	KindNotFound                  Kind = "NOT_FOUND"
	KindInvalidInput              Kind = "INVALID_INPUT"
	KindInvalidStageForAction     Kind = "INVALID_STAGE_FOR_ACTION"
	KindMissingDocuments          Kind = "MISSING_DOCUMENTS"
	KindInfoRequestPending        Kind = "INFO_REQUEST_PENDING"
	KindInfoRequestAlreadyPending Kind = "INFO_REQUEST_ALREADY_PENDING"
	KindRequestNotPending         Kind = "REQUEST_NOT_PENDING"
	KindClaimNotEditable          Kind = "CLAIM_NOT_EDITABLE"
	KindClaimNotDeletable         Kind = "CLAIM_NOT_DELETABLE"
	KindAllDocumentSlotsExhausted Kind = "ALL_DOCUMENT_SLOTS_EXHAUSTED"
	KindStorageFailure            Kind = "STORAGE_FAILURE"
)

// Error is the single error type returned by the claim workflow.
// errors.Is matches on Kind, so the sentinels below can be used as targets.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrUnauthorized              = &Error{Kind: KindUnauthorized, Message: "authentication required"}
	ErrForbidden                 = &Error{Kind: KindForbidden, Message: "action not permitted for this role"}
	ErrNotFound                  = &Error{Kind: KindNotFound, Message: "resource not found"}
	ErrInvalidInput              = &Error{Kind: KindInvalidInput, Message: "invalid input"}
	ErrInvalidStageForAction     = &Error{Kind: KindInvalidStageForAction, Message: "claim is not in a state that allows this action"}
	ErrMissingDocuments          = &Error{Kind: KindMissingDocuments, Message: "claim has no documents attached"}
	ErrInfoRequestPending        = &Error{Kind: KindInfoRequestPending, Message: "an information request is still pending"}
	ErrInfoRequestAlreadyPending = &Error{Kind: KindInfoRequestAlreadyPending, Message: "an information request is already pending for this claim"}
	ErrRequestNotPending         = &Error{Kind: KindRequestNotPending, Message: "information request is not pending"}
	ErrClaimNotEditable          = &Error{Kind: KindClaimNotEditable, Message: "claim can only be edited while in DRAFT"}
	ErrClaimNotDeletable         = &Error{Kind: KindClaimNotDeletable, Message: "claim can only be deleted while in DRAFT"}
	ErrAllDocumentSlotsExhausted = &Error{Kind: KindAllDocumentSlotsExhausted, Message: "every document type is already used for this claim"}
	ErrStorageFailure            = &Error{Kind: KindStorageFailure, Message: "storage failure"}
)

// Errorf returns an error of the given kind with a formatted message.
func Errorf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// StorageFailure wraps a backend error. Workflow errors pass through untouched.
func StorageFailure(err error) error {
	if err == nil {
		return nil
	}
	var wfErr *Error
	if errors.As(err, &wfErr) {
		return err
	}
	return &Error{Kind: KindStorageFailure, Message: "storage failure", Err: err}
}

// KindOf returns the kind of a workflow error, or StorageFailure for anything else.
func KindOf(err error) Kind {
	var wfErr *Error
	if errors.As(err, &wfErr) {
		return wfErr.Kind
	}
	return KindStorageFailure
}
