package models

import "errors"

var (
	// Systemic failure of a collaborator; aborts the whole batch
	ErrEnvironment = errors.New("environment unavailable")

	// Per-file failures
	ErrConversion         = errors.New("document conversion failed")
	ErrImageOnly          = errors.New("document has no text layer")
	ErrDetection          = errors.New("vendor could not be identified")
	ErrVendorNotSupported = errors.New("no extractor for vendor")
	ErrExtraction         = errors.New("invoice extraction failed")
	ErrTimeout            = errors.New("processing timed out")

	// Marks a failure worth retrying, e.g. a rate limited LLM call
	ErrTransient = errors.New("transient failure")
)

// StatusForError maps a per-file error to its processing status
func StatusForError(err error) ProcessingStatus {
	switch {
	case errors.Is(err, ErrTimeout):
		return StatusTimeout
	case errors.Is(err, ErrConversion), errors.Is(err, ErrImageOnly):
		return StatusFailedConversion
	case errors.Is(err, ErrDetection):
		return StatusFailedDetection
	case errors.Is(err, ErrVendorNotSupported):
		return StatusVendorNotSupported
	default:
		return StatusFailedExtraction
	}
}
