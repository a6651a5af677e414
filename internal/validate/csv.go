package validate

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"
)

// MaxFileSize is the largest upload the backend accepts.
const MaxFileSize = 5 << 20 // 5 MiB

const previewLines = 5

// RequiredColumn must be present in the header or the submission cannot be
// matched against the catalog at all.
const RequiredColumn = "walmart_id"

// AdvisoryColumns are the prediction columns a complete submission carries.
// Their absence is reported as a warning, in this order; the backend still
// decides what it will score.
var AdvisoryColumns = []string{"l0", "l1", "l2", "l3", "l4", "brand"}

var csvContentTypes = []string{
	"text/csv",
	"application/csv",
	"application/vnd.ms-excel",
}

// Report describes a file that passed the blocking checks.
type Report struct {
	Name     string
	Size     int64
	Columns  []string
	Warnings []string
	Preview  []string // First few raw lines, for display before submitting
}

// CheckName accepts files with a .csv extension or a CSV content type.
func CheckName(name, contentType string) error {
	if strings.EqualFold(filepath.Ext(name), ".csv") {
		return nil
	}
	mediaType, _, _ := strings.Cut(contentType, ";")
	mediaType = strings.ToLower(strings.TrimSpace(mediaType))
	if slices.Contains(csvContentTypes, mediaType) {
		return nil
	}
	return fmt.Errorf("%s is not a CSV file (.csv extension or CSV content type required)", name)
}

// CheckSize rejects files over MaxFileSize.
func CheckSize(size int64) error {
	if size > MaxFileSize {
		return fmt.Errorf("file is too large: %s exceeds the %s limit",
			humanize.IBytes(uint64(size)), humanize.IBytes(MaxFileSize))
	}
	return nil
}

// File runs all checks against a file on disk.
func File(path string) (*Report, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Stream(filepath.Base(path), info.Size(), "", f)
}

// Stream runs all checks against file content arriving as a reader: name
// and size first, so oversized or misnamed files are rejected without
// reading a byte, then the header row. A missing walmart_id column is a
// blocking error; missing prediction columns only produce a warning.
func Stream(name string, size int64, contentType string, r io.Reader) (*Report, error) {
	if err := CheckName(name, contentType); err != nil {
		return nil, err
	}
	if err := CheckSize(size); err != nil {
		return nil, err
	}

	rep := &Report{Name: name, Size: size}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for len(rep.Preview) < previewLines && scanner.Scan() {
		rep.Preview = append(rep.Preview, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	if len(rep.Preview) == 0 {
		return nil, fmt.Errorf("%s is empty", name)
	}

	cols, err := parseHeader(rep.Preview[0])
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV header: %w", err)
	}
	rep.Columns = cols

	normalized := make([]string, len(cols))
	for i, col := range cols {
		normalized[i] = normalize(col)
	}
	if !slices.Contains(normalized, RequiredColumn) {
		return nil, errors.New("CSV header is missing the required walmart_id column")
	}

	var missing []string
	for _, col := range AdvisoryColumns {
		if !slices.Contains(normalized, col) {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		rep.Warnings = append(rep.Warnings,
			fmt.Sprintf("missing recommended columns: %s", strings.Join(missing, ", ")))
	}
	return rep, nil
}

func parseHeader(line string) ([]string, error) {
	line = strings.TrimPrefix(line, "﻿")
	return csv.NewReader(strings.NewReader(line)).Read()
}

func normalize(col string) string {
	return strings.ToLower(strings.TrimSpace(col))
}
