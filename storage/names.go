package storage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// NameColumn is the column of the name source holding artist names.
const NameColumn = "artist_name"

// NameSourceHeader is the header written when the name source is built by ingestion.
var NameSourceHeader = []string{NameColumn}

// LoadNames reads the name column of the name source. Short rows yield an
// empty entry so that the normalizer sees and drops them. Without a
// recognised header the first column is used.
func LoadNames(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("names: open %q: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("names: read header: %w", err)
	}

	col := -1
	for i, h := range header {
		if strings.EqualFold(strings.TrimSpace(h), NameColumn) {
			col = i
			break
		}
	}

	var names []string
	if col < 0 {
		col = 0
		names = append(names, header[0])
	}

	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			return names, nil
		}
		if err != nil {
			return nil, fmt.Errorf("names: read %q: %w", path, err)
		}
		if col < len(row) {
			names = append(names, row[col])
		} else {
			names = append(names, "")
		}
	}
}
