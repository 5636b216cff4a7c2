package scanning

import "errors"

var (
	// ErrConfiguration is returned when the scanner has no API key.
	ErrConfiguration = errors.New("scanner is not configured")
	// ErrEmptyResponse is returned when the model call succeeded but produced no text.
	ErrEmptyResponse = errors.New("model returned no text")
	// ErrParse is returned when the model text is not a JSON array of objects.
	ErrParse = errors.New("model response is not a JSON array of objects")
	// ErrTransport is returned when the model call itself failed.
	ErrTransport = errors.New("model request failed")
)

// Kind returns a short label for the failure class of err, for logging.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrEmptyResponse):
		return "empty_response"
	case errors.Is(err, ErrParse):
		return "parse"
	case errors.Is(err, ErrTransport):
		return "transport"
	}
	return "other"
}
