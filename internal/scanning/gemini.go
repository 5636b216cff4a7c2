package scanning

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const (
	// DefaultGeminiModel is used when no model name is configured
	DefaultGeminiModel = "gemini-2.5-flash"
	// DefaultTimeout bounds a single model call
	DefaultTimeout = 60 * time.Second
)

// contentGenerator is the part of *genai.GenerativeModel the scanner uses
type contentGenerator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// Gemini implements the Scanner interface using Google Gemini structured output
type Gemini struct {
	client  *genai.Client
	model   contentGenerator
	timeout time.Duration
}

// NewGemini creates a new Gemini Scanner instance.
// An empty API key yields a scanner whose every scan fails with ErrConfiguration.
func NewGemini(ctx context.Context, apiKey string, modelName string, timeout time.Duration) (*Gemini, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if apiKey == "" {
		return &Gemini{timeout: timeout}, nil
	}
	if modelName == "" {
		modelName = DefaultGeminiModel
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.ResponseMIMEType = "application/json"
	model.ResponseSchema = responseSchema()
	model.SetTemperature(0)

	return &Gemini{
		client:  client,
		model:   model,
		timeout: timeout,
	}, nil
}

// ScanBill sends the bill image to Gemini and parses the returned line items
func (g *Gemini) ScanBill(ctx context.Context, imageData []byte, contentType string) ([]LineItem, error) {
	if g.model == nil {
		return nil, fmt.Errorf("%w: gemini api key is not set", ErrConfiguration)
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	// Prepare image data (convert to PNG if needed)
	finalImageData, _, err := prepareImageData(imageData, contentType)
	if err != nil {
		return nil, err
	}

	// genai.ImageData expects just the format suffix, not the full MIME type
	parts := []genai.Part{
		genai.Text(billScanPrompt),
		genai.ImageData("png", finalImageData),
	}

	resp, err := g.model.GenerateContent(ctx, parts...)
	if err != nil {
		return nil, fmt.Errorf("%w: generating content: %w", ErrTransport, err)
	}

	text := responseText(resp)
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyResponse
	}

	items, err := parseLineItemsJSON(text)
	if err != nil {
		return nil, fmt.Errorf("parsing bill data: %w", err)
	}
	return items, nil
}

// responseText concatenates the text parts of the first candidate
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	content := resp.Candidates[0].Content
	if content == nil {
		return ""
	}

	var b strings.Builder
	for _, part := range content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	return b.String()
}

// Close closes the Gemini client
func (g *Gemini) Close() error {
	if g.client == nil {
		return nil
	}
	return g.client.Close()
}
