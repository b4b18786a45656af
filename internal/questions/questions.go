// Package questions loads batch question files.
package questions

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/forecast-cli/internal/model"
)

// Format is a question file encoding.
type Format string

const (
	JSON  Format = "json"
	JSONL Format = "jsonl"
	CSV   Format = "csv"
	XLSX  Format = "xlsx"
)

// FormatOf infers the format from a file extension.
func FormatOf(path string) (Format, error) {
	switch ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")); ext {
	case "json":
		return JSON, nil
	case "jsonl", "ndjson":
		return JSONL, nil
	case "csv":
		return CSV, nil
	case "xlsx":
		return XLSX, nil
	default:
		return "", eris.Errorf("questions: unsupported file extension %q", ext)
	}
}

// Load reads every question item from path. Items without a non-empty
// "question" field are skipped.
func Load(ctx context.Context, path string) ([]model.BatchItem, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}

	var items []model.BatchItem
	switch format {
	case XLSX:
		items, err = readXLSX(ctx, path)
	default:
		f, oerr := os.Open(path)
		if oerr != nil {
			return nil, eris.Wrapf(oerr, "questions: open %s", path)
		}
		defer f.Close() //nolint:errcheck
		switch format {
		case JSON:
			items, err = readJSON(ctx, f)
		case JSONL:
			items, err = readJSONL(ctx, f)
		case CSV:
			items, err = readCSV(ctx, f)
		}
	}
	if err != nil {
		return nil, eris.Wrapf(err, "questions: load %s", path)
	}
	return keepAnswerable(items), nil
}

func keepAnswerable(items []model.BatchItem) []model.BatchItem {
	out := make([]model.BatchItem, 0, len(items))
	for _, it := range items {
		if q, _ := it["question"].(string); strings.TrimSpace(q) != "" {
			out = append(out, it)
		}
	}
	return out
}

// fromRow maps a row onto header keys. Cells past the header and blank
// header columns are dropped.
func fromRow(header, row []string) model.BatchItem {
	item := make(model.BatchItem, len(header))
	for i, key := range header {
		if key == "" || i >= len(row) {
			continue
		}
		item[key] = row[i]
	}
	return item
}
