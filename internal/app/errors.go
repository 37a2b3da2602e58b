package app

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/komiyamma/imageplan/internal/docrepo"
	"github.com/komiyamma/imageplan/internal/inject"
	"github.com/komiyamma/imageplan/internal/ledger"
)

const (
	CodeAnchorNotFound   = "ANCHOR_NOT_FOUND"
	CodeAnchorAmbiguous  = "ANCHOR_AMBIGUOUS"
	CodeDocumentMissing  = "SOURCE_DOCUMENT_MISSING"
	CodeLedgerUnreadable = "LEDGER_UNREADABLE"
	CodeInvalidRequest   = "INVALID_REQUEST"
	CodeWriteFailed      = "WRITE_FAILED"
)

type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`

	cause error
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *DomainError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

func domainError(code, message string, details any, cause error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Details: details,
		cause:   cause,
	}
}

// asDomainError maps package sentinels onto error codes. fallback is used
// for errors no sentinel matches.
func asDomainError(err error, fallback string) *DomainError {
	if err == nil {
		return nil
	}
	var de *DomainError
	if errors.As(err, &de) {
		return de
	}
	code := fallback
	switch {
	case errors.Is(err, inject.ErrAnchorNotFound):
		code = CodeAnchorNotFound
	case errors.Is(err, inject.ErrAnchorAmbiguous):
		code = CodeAnchorAmbiguous
	case errors.Is(err, inject.ErrEmptyAnchor), errors.Is(err, ledger.ErrInvalidEntry):
		code = CodeInvalidRequest
	case errors.Is(err, ledger.ErrLedgerUnreadable):
		code = CodeLedgerUnreadable
	case errors.Is(err, docrepo.ErrDocumentMissing), errors.Is(err, fs.ErrNotExist):
		code = CodeDocumentMissing
	}
	return domainError(code, err.Error(), nil, err)
}
