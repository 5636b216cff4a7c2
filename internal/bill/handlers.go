package bill

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/zombor/bill2csv/internal/scanning"
)

// maxUploadSize allows high-resolution phone photos
const maxUploadSize = int64(50 << 20) // 50MB

// stateResponse is the JSON view of a session. Image bytes are never sent back.
type stateResponse struct {
	Phase       Phase                `json:"phase"`
	Filename    string               `json:"filename,omitempty"`
	ContentType string               `json:"content_type,omitempty"`
	Preview     string               `json:"preview,omitempty"`
	Items       *[]scanning.LineItem `json:"items,omitempty"`
	Error       string               `json:"error,omitempty"`
}

func newStateResponse(state State) stateResponse {
	resp := stateResponse{
		Phase:   state.Phase,
		Preview: state.Preview,
		Error:   state.Error,
	}
	if state.Image != nil {
		resp.Filename = state.Image.Filename
		resp.ContentType = state.Image.ContentType
	}
	if state.Phase == PhaseResult {
		items := state.Items
		if items == nil {
			items = []scanning.LineItem{}
		}
		resp.Items = &items
	}
	return resp
}

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// jsonError writes a JSON error body with CORS headers set
func jsonError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}

func writeState(w http.ResponseWriter, state State, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(newStateResponse(state)); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// handleIndex serves the HTML interface
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(indexHTML)
}

// handleStaticCSS serves the CSS file
func (s *Server) handleStaticCSS(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "text/css")
	w.Write(appCSS)
}

// handleStaticJS serves the JavaScript file
func (s *Server) handleStaticJS(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Write(appJS)
}

// handleGetState returns the caller's session state
func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	state, err := s.service.State(s.session(w, r))
	if err != nil {
		slog.Error("Error reading session state", "error", err)
		jsonError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeState(w, state, http.StatusOK)
}

// detectContentType determines the upload's MIME type from the part header,
// then the file extension, then the content itself
func detectContentType(header string, filename string, data []byte) string {
	contentType := strings.ToLower(strings.TrimSpace(header))
	if contentType != "" && contentType != "application/octet-stream" {
		return contentType
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".pdf":
		return "application/pdf"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	}

	return http.DetectContentType(data)
}

// handleSelectFile handles a bill upload
func (s *Server) handleSelectFile(w http.ResponseWriter, r *http.Request) {
	sessionID := s.session(w, r)

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			jsonError(w, "File is too large. Maximum size is 50MB. Please compress or resize your image.", http.StatusRequestEntityTooLarge)
			return
		}
		jsonError(w, "Error parsing form", http.StatusBadRequest)
		return
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		slog.Error("Error getting file from form", "error", err)
		errorMsg := "No file provided"
		if errors.Is(err, http.ErrMissingFile) {
			errorMsg = "No file was selected. Please choose a file to upload."
		}
		jsonError(w, errorMsg, http.StatusBadRequest)
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		jsonError(w, "Error reading file. Please try again.", http.StatusInternalServerError)
		return
	}

	contentType := detectContentType(header.Header.Get("Content-Type"), header.Filename, data)

	state, err := s.service.SelectFile(sessionID, header.Filename, data, contentType)
	switch {
	case errors.Is(err, ErrUnsupportedType):
		jsonError(w, "Unsupported file type. Please upload an image (JPEG, PNG, GIF, HEIC) or a PDF.", http.StatusUnsupportedMediaType)
		return
	case errors.Is(err, ErrEmptyFile):
		jsonError(w, "The selected file is empty.", http.StatusBadRequest)
		return
	case err != nil:
		slog.Error("Error selecting file", "filename", header.Filename, "error", err)
		jsonError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeState(w, state, http.StatusOK)
}

// handleStartExtraction starts extracting the selected bill
func (s *Server) handleStartExtraction(w http.ResponseWriter, r *http.Request) {
	state, err := s.service.StartExtraction(s.session(w, r))
	switch {
	case errors.Is(err, ErrNoFileSelected):
		jsonError(w, MsgNoFileSelected, http.StatusBadRequest)
		return
	case errors.Is(err, ErrExtractionInProgress):
		jsonError(w, "An extraction is already running.", http.StatusConflict)
		return
	case err != nil:
		slog.Error("Error starting extraction", "error", err)
		jsonError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeState(w, state, http.StatusAccepted)
}

// handleReset clears the session
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	state, err := s.service.Reset(s.session(w, r))
	if err != nil {
		slog.Error("Error resetting session", "error", err)
		jsonError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeState(w, state, http.StatusOK)
}

type exportFunc func(sessionID string) (string, []byte, error)

// serveExport writes an export as a file download
func (s *Server) serveExport(w http.ResponseWriter, r *http.Request, exportFn exportFunc, contentType string) {
	filename, data, err := exportFn(s.session(w, r))
	if errors.Is(err, ErrNoResult) {
		jsonError(w, "There is no extracted data to download yet.", http.StatusConflict)
		return
	}
	if err != nil {
		slog.Error("Error exporting bill data", "error", err)
		jsonError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	setCORSHeaders(w)
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	w.Write(data)
}

// handleExportCSV downloads the result as CSV
func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	s.serveExport(w, r, s.service.ExportCSV, "text/csv; charset=utf-8")
}

// handleExportXLSX downloads the result as an Excel workbook
func (s *Server) handleExportXLSX(w http.ResponseWriter, r *http.Request) {
	s.serveExport(w, r, s.service.ExportXLSX, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
}
