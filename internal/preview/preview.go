// Package preview builds display-ready thumbnails for uploaded bills.
package preview

import (
	"bytes"
	"encoding/base64"
	"log/slog"

	"github.com/disintegration/imaging"

	"github.com/zombor/bill2csv/internal/scanning"
)

const (
	// MaxDimension bounds the width and height of a preview
	MaxDimension = 800
	// MaxFallbackSize is the largest upload embedded as-is when it cannot be decoded
	MaxFallbackSize = 2 << 20 // 2MB
)

// Build returns a data URL showing the upload. Decodable uploads become a
// JPEG thumbnail no larger than MaxDimension; anything else is embedded as-is
// up to MaxFallbackSize. Larger undecodable uploads get no preview.
func Build(data []byte, contentType string) string {
	img, err := scanning.DecodeImage(data, contentType)
	if err != nil {
		slog.Warn("Could not decode upload for preview", "content_type", contentType, "error", err)
		return fallback(contentType, data)
	}

	thumb := imaging.Fit(img, MaxDimension, MaxDimension, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		slog.Warn("Could not encode preview", "error", err)
		return fallback(contentType, data)
	}
	return DataURL("image/jpeg", buf.Bytes())
}

func fallback(contentType string, data []byte) string {
	if len(data) > MaxFallbackSize {
		return ""
	}
	return DataURL(contentType, data)
}

// DataURL embeds data in a base64 data URL
func DataURL(contentType string, data []byte) string {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
