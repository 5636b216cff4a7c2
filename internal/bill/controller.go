package bill

import (
	"context"
	"log/slog"
	"sync"

	"github.com/zombor/bill2csv/internal/scanning"
)

// PreviewFunc derives a display-ready representation of an upload
type PreviewFunc func(data []byte, contentType string) string

// Request identifies a single extraction attempt
type Request struct {
	Token uint64
	Image Image
}

// Controller owns the extraction state of one session.
//
// Every transition that abandons an extraction (SelectFile, Reset, a new
// StartExtraction) advances the request token, and Complete only commits when
// the session is still Extracting for the same token. A result that lands after
// the user moved on is therefore dropped.
type Controller struct {
	mu        sync.Mutex
	previewer PreviewFunc

	phase   Phase
	image   *Image
	preview string
	items   []scanning.LineItem
	message string
	token   uint64
}

// NewController creates an empty Controller
func NewController(previewer PreviewFunc) *Controller {
	return &Controller{previewer: previewer}
}

// SelectFile records an image, derives its preview and clears any prior result or error.
// It is allowed from every phase.
func (c *Controller) SelectFile(img Image) {
	var preview string
	if c.previewer != nil {
		preview = c.previewer(img.Data, img.ContentType)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.token++
	c.phase = PhaseFileSelected
	c.image = &img
	c.preview = preview
	c.items = nil
	c.message = ""
}

// StartExtraction moves to Extracting and returns the request to run.
// A held image may be extracted again after a failure or a result.
func (c *Controller) StartExtraction() (Request, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.phase {
	case PhaseEmpty:
		return Request{}, ErrNoFileSelected
	case PhaseExtracting:
		return Request{}, ErrExtractionInProgress
	}

	c.token++
	c.phase = PhaseExtracting
	c.items = nil
	c.message = ""
	return Request{Token: c.token, Image: *c.image}, nil
}

// Complete commits the outcome of the request identified by token.
// It reports false and changes nothing when the request is stale.
func (c *Controller) Complete(token uint64, items []scanning.LineItem, err error) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase != PhaseExtracting || c.token != token {
		return false
	}

	if err != nil {
		c.phase = PhaseFailed
		c.message = MsgExtractionFailed
		return true
	}

	// Zero rows is a valid result
	if items == nil {
		items = []scanning.LineItem{}
	}
	c.phase = PhaseResult
	c.items = items
	return true
}

// Reset discards everything and returns to Empty. An in-flight extraction is
// not cancelled; its result is dropped when it arrives.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.token++
	c.phase = PhaseEmpty
	c.image = nil
	c.preview = ""
	c.items = nil
	c.message = ""
}

// Snapshot returns a copy of the current state
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	state := State{
		Phase:   c.phase,
		Preview: c.preview,
		Error:   c.message,
	}
	if c.image != nil {
		img := *c.image
		state.Image = &img
	}
	if c.items != nil {
		state.Items = append([]scanning.LineItem{}, c.items...)
	}
	return state
}

// Run performs the scan for req and commits its outcome.
// The scanner error is returned as-is for the caller's diagnostics.
func (c *Controller) Run(ctx context.Context, req Request, scanner scanning.Scanner) error {
	items, err := scanner.ScanBill(ctx, req.Image.Data, req.Image.ContentType)
	if err != nil {
		slog.Error("Failed to scan bill",
			"filename", req.Image.Filename,
			"content_type", req.Image.ContentType,
			"file_size", len(req.Image.Data),
			"kind", scanning.Kind(err),
			"error", err,
		)
	}

	if !c.Complete(req.Token, items, err) {
		slog.Info("Discarding stale extraction result", "filename", req.Image.Filename, "token", req.Token)
		return err
	}

	if err == nil {
		slog.Info("Extracted bill", "filename", req.Image.Filename, "items", len(items))
	}
	return err
}

// Extract starts an extraction and runs it to completion on the calling goroutine
func (c *Controller) Extract(ctx context.Context, scanner scanning.Scanner) error {
	req, err := c.StartExtraction()
	if err != nil {
		return err
	}
	return c.Run(ctx, req, scanner)
}
