package questions

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"

	"github.com/sells-group/forecast-cli/internal/model"
)

// readJSON decodes a top-level array of objects one element at a time.
// Numbers are kept as json.Number so ids and timestamps round-trip exactly.
func readJSON(ctx context.Context, r io.Reader) ([]model.BatchItem, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, eris.Wrap(err, "json: read opening token")
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '[' {
		return nil, eris.Errorf("json: expected '[', got %v", tok)
	}

	var items []model.BatchItem
	for dec.More() {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "json: context cancelled")
		}
		var item model.BatchItem
		if err := dec.Decode(&item); err != nil {
			return nil, eris.Wrapf(err, "json: decode element %d", len(items))
		}
		items = append(items, item)
	}
	if _, err := dec.Token(); err != nil && err != io.EOF {
		return nil, eris.Wrap(err, "json: read closing token")
	}
	return items, nil
}

// readJSONL decodes one object per line. Blank lines are ignored.
func readJSONL(ctx context.Context, r io.Reader) ([]model.BatchItem, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var items []model.BatchItem
	line := 0
	for sc.Scan() {
		line++
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "jsonl: context cancelled")
		}
		b := bytes.TrimSpace(sc.Bytes())
		if len(b) == 0 {
			continue
		}
		dec := json.NewDecoder(bytes.NewReader(b))
		dec.UseNumber()
		var item model.BatchItem
		if err := dec.Decode(&item); err != nil {
			return nil, eris.Wrapf(err, "jsonl: decode line %d", line)
		}
		items = append(items, item)
	}
	if err := sc.Err(); err != nil {
		return nil, eris.Wrap(err, "jsonl: scan")
	}
	return items, nil
}
