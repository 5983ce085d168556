// Package ingest converts raw feedback inputs into the seed text the
// pipeline's first stage analyzes.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrNoRows is returned when the CSV contains a header but no data rows.
var ErrNoRows = errors.New("ingest: csv has no data rows")

// FromCSV formats CSV feedback as numbered "User N: ..." lines. A column
// named feedback or description supplies the body; without one, every
// non-empty column is joined so unrecognized layouts still produce usable
// seed text.
func FromCSV(r io.Reader) (string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return "", fmt.Errorf("ingest: parse csv: %w", err)
	}
	if len(records) == 0 {
		return "", ErrNoRows
	}

	header := records[0]
	rows := records[1:]
	if len(rows) == 0 {
		return "", ErrNoRows
	}

	bodyCol := -1
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "feedback", "description":
			bodyCol = i
		}
	}

	var lines []string
	for n, row := range rows {
		var body string
		if bodyCol >= 0 && bodyCol < len(row) && strings.TrimSpace(row[bodyCol]) != "" {
			body = strings.TrimSpace(row[bodyCol])
		} else {
			var parts []string
			for i, val := range row {
				val = strings.TrimSpace(val)
				if val == "" {
					continue
				}
				name := fmt.Sprintf("column %d", i+1)
				if i < len(header) && strings.TrimSpace(header[i]) != "" {
					name = strings.TrimSpace(header[i])
				}
				parts = append(parts, name+": "+val)
			}
			if len(parts) == 0 {
				continue
			}
			body = strings.Join(parts, " | ")
		}
		lines = append(lines, fmt.Sprintf("User %d: %s", n+1, body))
	}
	if len(lines) == 0 {
		return "", ErrNoRows
	}
	return strings.Join(lines, "\n"), nil
}

// FromFile reads path and formats it as seed text. Files ending in .csv go
// through FromCSV; anything else is used as-is.
func FromFile(path string) (string, error) {
	if strings.HasSuffix(strings.ToLower(path), ".csv") {
		f, err := os.Open(path)
		if err != nil {
			return "", fmt.Errorf("ingest: %w", err)
		}
		defer f.Close()
		return FromCSV(f)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("ingest: %w", err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", errors.New("ingest: file is empty")
	}
	return text, nil
}
