package utils

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// RenderCSV writes the header and rows as RFC 4180 CSV text.
func RenderCSV(header []string, rows [][]string) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(header); err != nil {
		return "", fmt.Errorf("failed to write csv header: %w", err)
	}
	for i, row := range rows {
		if len(row) != len(header) {
			return "", fmt.Errorf("csv row %d has %d fields, want %d", i, len(row), len(header))
		}
		if err := w.Write(row); err != nil {
			return "", fmt.Errorf("failed to write csv row %d: %w", i, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("failed to flush csv: %w", err)
	}
	return buf.String(), nil
}
