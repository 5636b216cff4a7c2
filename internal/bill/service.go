package bill

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zombor/bill2csv/internal/export"
	"github.com/zombor/bill2csv/internal/preview"
	"github.com/zombor/bill2csv/internal/scanning"
)

// IDGenerator generates unique session IDs
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// uuidGenerator generates random UUIDs
type uuidGenerator struct{}

func (g *uuidGenerator) Generate() string {
	return uuid.NewString()
}

// defaultTimeSource provides the current time
type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Service handles bill sessions: uploads, background extraction and exports
type Service struct {
	scanner        scanning.Scanner
	sessions       SessionStore
	idGenerator    IDGenerator
	timeSource     TimeSource
	previewer      PreviewFunc
	extractTimeout time.Duration

	wg sync.WaitGroup
}

// NewService creates a new Service with default ID generator, time source and previews
func NewService(scanner scanning.Scanner, sessions SessionStore) *Service {
	return NewServiceWithDeps(scanner, sessions, &uuidGenerator{}, &defaultTimeSource{}, preview.Build)
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(scanner scanning.Scanner, sessions SessionStore, idGen IDGenerator, timeSrc TimeSource, previewer PreviewFunc) *Service {
	return &Service{
		scanner:        scanner,
		sessions:       sessions,
		idGenerator:    idGen,
		timeSource:     timeSrc,
		previewer:      previewer,
		extractTimeout: 2 * scanning.DefaultTimeout,
	}
}

// SetExtractTimeout bounds each background extraction
func (s *Service) SetExtractTimeout(d time.Duration) {
	if d > 0 {
		s.extractTimeout = d
	}
}

// NewSession creates an empty session and returns its ID
func (s *Service) NewSession() string {
	id := s.idGenerator.Generate()
	s.sessions.Save(id, NewController(s.previewer))
	return id
}

// HasSession reports whether id names a live session
func (s *Service) HasSession(id string) bool {
	_, ok := s.sessions.Get(id)
	return ok
}

func (s *Service) controller(id string) (*Controller, error) {
	c, ok := s.sessions.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return c, nil
}

// IsAcceptedType reports whether uploads of contentType can be extracted
func IsAcceptedType(contentType string) bool {
	return strings.HasPrefix(contentType, "image/") || contentType == "application/pdf"
}

// SelectFile stores an uploaded bill in the session
func (s *Service) SelectFile(sessionID, filename string, data []byte, contentType string) (State, error) {
	c, err := s.controller(sessionID)
	if err != nil {
		return State{}, err
	}

	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if !IsAcceptedType(contentType) {
		return State{}, fmt.Errorf("%w: %s", ErrUnsupportedType, contentType)
	}
	if len(data) == 0 {
		return State{}, ErrEmptyFile
	}

	c.SelectFile(Image{Filename: filename, ContentType: contentType, Data: data})
	slog.Info("File selected", "session", sessionID, "filename", filename, "content_type", contentType, "file_size", len(data))
	return c.Snapshot(), nil
}

// StartExtraction begins extracting the selected bill in the background.
// The returned state is Extracting; poll State for the outcome.
func (s *Service) StartExtraction(sessionID string) (State, error) {
	c, err := s.controller(sessionID)
	if err != nil {
		return State{}, err
	}

	req, err := c.StartExtraction()
	if err != nil {
		return State{}, fmt.Errorf("starting extraction: %w", err)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.extractTimeout)
		defer cancel()
		// Run logs failures and records them in the session
		_ = c.Run(ctx, req, s.scanner)
	}()

	return c.Snapshot(), nil
}

// State returns the current state of a session
func (s *Service) State(sessionID string) (State, error) {
	c, err := s.controller(sessionID)
	if err != nil {
		return State{}, err
	}
	return c.Snapshot(), nil
}

// Reset returns a session to Empty
func (s *Service) Reset(sessionID string) (State, error) {
	c, err := s.controller(sessionID)
	if err != nil {
		return State{}, err
	}
	c.Reset()
	return c.Snapshot(), nil
}

func (s *Service) result(sessionID string) ([]scanning.LineItem, error) {
	state, err := s.State(sessionID)
	if err != nil {
		return nil, err
	}
	if state.Phase != PhaseResult {
		return nil, ErrNoResult
	}
	return state.Items, nil
}

// ExportCSV returns the download name and CSV content of a session's result
func (s *Service) ExportCSV(sessionID string) (string, []byte, error) {
	items, err := s.result(sessionID)
	if err != nil {
		return "", nil, err
	}
	return export.Filename(s.timeSource.Now()), []byte(export.Serialize(items, export.Columns)), nil
}

// ExportXLSX returns the download name and workbook content of a session's result
func (s *Service) ExportXLSX(sessionID string) (string, []byte, error) {
	items, err := s.result(sessionID)
	if err != nil {
		return "", nil, err
	}
	data, err := export.WriteXLSX(items, export.Columns)
	if err != nil {
		return "", nil, fmt.Errorf("exporting xlsx: %w", err)
	}
	return export.XLSXFilename(s.timeSource.Now()), data, nil
}

// Wait blocks until all background extractions have finished
func (s *Service) Wait() {
	s.wg.Wait()
}
