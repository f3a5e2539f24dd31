package domain

import (
	"errors"
	"fmt"
)

var (
	ErrDocumentNotFound     = errors.New("document not found")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrInvalidInput         = errors.New("invalid input")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrTemporary            = errors.New("temporary failure")

	ErrFormatConversion       = errors.New("format conversion failed")
	ErrUnsupportedFormat      = errors.New("unsupported format")
	ErrAnalysisBackend        = errors.New("analysis backend failure")
	ErrOCRBackend             = errors.New("ocr backend failure")
	ErrParseRecoveryExhausted = errors.New("parse recovery exhausted")
	ErrPersistence            = errors.New("persistence failure")

	ErrAnalysisInProgress = errors.New("analysis already in progress")
	ErrAnalysisSuperseded = errors.New("analysis superseded by a newer run")
	ErrVersionConflict    = errors.New("version conflict")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
