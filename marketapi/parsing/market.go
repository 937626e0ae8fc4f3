// Package parsing reads market graphs from disk and unpacks signed receipts.
package parsing

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cloudx-io/openclearing/core"
	"github.com/cloudx-io/openclearing/marketapi"
)

// Format is an on-disk market encoding.
type Format string

const (
	FormatGML  Format = "gml"
	FormatJSON Format = "json"
)

// IngestionError reports a market file that could not be read or parsed.
type IngestionError struct {
	Path string
	Err  error
}

func (e *IngestionError) Error() string {
	return fmt.Sprintf("ingest %s: %v", e.Path, e.Err)
}

func (e *IngestionError) Unwrap() error {
	return e.Err
}

// FormatForPath picks the format from the file extension.
func FormatForPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gml":
		return FormatGML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported file extension %q (want .gml or .json)", filepath.Ext(path))
	}
}

// ParseJSON reads a marketapi.MarketDescription.
func ParseJSON(r io.Reader) (*core.Market, error) {
	var desc marketapi.MarketDescription
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&desc); err != nil {
		return nil, fmt.Errorf("decode market: %w", err)
	}
	return desc.BuildMarket()
}

// ReadMarket parses r in the given format.
func ReadMarket(r io.Reader, format Format) (*core.Market, error) {
	switch format {
	case FormatGML:
		return ParseGML(r)
	case FormatJSON:
		return ParseJSON(r)
	default:
		return nil, fmt.Errorf("unknown market format %q", format)
	}
}

// LoadMarket reads a market file, choosing the parser by extension. Every
// failure is returned as an *IngestionError.
func LoadMarket(path string) (*core.Market, error) {
	format, err := FormatForPath(path)
	if err != nil {
		return nil, &IngestionError{Path: path, Err: err}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, &IngestionError{Path: path, Err: err}
	}
	defer f.Close()

	m, err := ReadMarket(f, format)
	if err != nil {
		return nil, &IngestionError{Path: path, Err: err}
	}
	return m, nil
}
