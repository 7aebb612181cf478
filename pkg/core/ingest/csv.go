package ingest

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
)

func readCSV(r io.Reader) ([]pair, error) {
	br := bufio.NewReader(r)
	// Spreadsheet exports often lead with a UTF-8 BOM.
	if b, err := br.Peek(3); err == nil && string(b) == "\xef\xbb\xbf" {
		_, _ = br.Discard(3)
	}

	reader := csv.NewReader(br)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return fromRows(rows)
}
