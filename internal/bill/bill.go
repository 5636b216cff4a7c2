package bill

import (
	"errors"
	"fmt"

	"github.com/zombor/bill2csv/internal/scanning"
)

// User-facing messages. Technical detail is logged, never shown.
const (
	MsgExtractionFailed = "Failed to process the image. The AI model could not extract the data. Please try a clearer image or a different file."
	MsgNoFileSelected   = "Please select an image file first."
)

var (
	// ErrNoFileSelected is returned when an extraction is started without an image
	ErrNoFileSelected = errors.New("no file selected")
	// ErrExtractionInProgress is returned when an extraction is started while one is running
	ErrExtractionInProgress = errors.New("extraction already in progress")
	// ErrUnsupportedType is returned for uploads that are neither images nor PDFs
	ErrUnsupportedType = errors.New("unsupported file type")
	// ErrEmptyFile is returned for zero-byte uploads
	ErrEmptyFile = errors.New("file is empty")
	// ErrNoResult is returned when exporting before an extraction succeeded
	ErrNoResult = errors.New("no extracted data to export")
	// ErrSessionNotFound is returned for unknown or expired session IDs
	ErrSessionNotFound = errors.New("session not found")
)

// Phase is the stage of a session's extraction workflow
type Phase int

const (
	PhaseEmpty Phase = iota
	PhaseFileSelected
	PhaseExtracting
	PhaseResult
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseEmpty:
		return "empty"
	case PhaseFileSelected:
		return "file_selected"
	case PhaseExtracting:
		return "extracting"
	case PhaseResult:
		return "result"
	case PhaseFailed:
		return "failed"
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// MarshalText encodes the phase by name
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Image is an uploaded bill
type Image struct {
	Filename    string
	ContentType string
	Data        []byte
}

// State is a point-in-time copy of a session.
// Image and Preview are set from FileSelected until Reset; Items only in Result;
// Error only in Failed.
type State struct {
	Phase   Phase
	Image   *Image
	Preview string
	Items   []scanning.LineItem
	Error   string
}
