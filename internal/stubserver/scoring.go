package stubserver

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/isdelr/datathon-cli/internal/validate"
)

const levelCount = 5

// truthRow is one catalog product's ground-truth labels.
type truthRow struct {
	levels [levelCount]string
	brand  string
}

// Scorer grades prediction files against the ground-truth catalog. A
// product counts as an item match only when every category level and the
// brand agree; per-level accuracy is computed independently. Catalog rows
// the submission never predicts count as misses.
type Scorer struct {
	truth map[string]truthRow
}

// NewScorer loads the ground truth from a CSV file with walmart_id, l0..l4
// and brand columns.
func NewScorer(path string) (*Scorer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ground truth: %w", err)
	}
	defer f.Close()
	return NewScorerFromReader(f)
}

// NewScorerFromReader loads the ground truth from r.
func NewScorerFromReader(r io.Reader) (*Scorer, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read ground truth header: %w", err)
	}

	idx, err := columnIndex(header)
	if err != nil {
		return nil, fmt.Errorf("ground truth: %w", err)
	}
	for _, col := range validate.AdvisoryColumns {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("ground truth is missing the %s column", col)
		}
	}

	truth := make(map[string]truthRow)
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read ground truth row: %w", err)
		}
		id := strings.TrimSpace(row[idx[validate.RequiredColumn]])
		if id == "" {
			continue
		}
		var t truthRow
		for i := 0; i < levelCount; i++ {
			t.levels[i] = normalizeLabel(row[idx[fmt.Sprintf("l%d", i)]])
		}
		t.brand = normalizeLabel(row[idx["brand"]])
		truth[id] = t
	}
	if len(truth) == 0 {
		return nil, errors.New("ground truth has no rows")
	}
	return &Scorer{truth: truth}, nil
}

// Rows reports the catalog size.
func (sc *Scorer) Rows() int {
	return len(sc.truth)
}

// Breakdown is the graded result of one submission.
type Breakdown struct {
	Item    float64
	Brand   float64
	Level   [levelCount]float64
	Matched int // prediction rows that exist in the catalog
}

// Score grades one prediction CSV. When the same walmart_id appears more
// than once, the last prediction wins.
func (sc *Scorer) Score(r io.Reader) (*Breakdown, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "﻿")
	}
	idx, err := columnIndex(header)
	if err != nil {
		return nil, err
	}
	idIdx := idx[validate.RequiredColumn]

	type predRow struct {
		values map[string]string
	}
	preds := make(map[string]predRow)
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("invalid CSV row: %w", err)
		}
		if idIdx >= len(row) {
			continue
		}
		id := strings.TrimSpace(row[idIdx])
		if id == "" {
			continue
		}
		p := predRow{values: make(map[string]string, len(validate.AdvisoryColumns))}
		for _, col := range validate.AdvisoryColumns {
			if i, ok := idx[col]; ok && i < len(row) {
				p.values[col] = normalizeLabel(row[i])
			}
		}
		preds[id] = p
	}

	var bd Breakdown
	var itemHits, brandHits int
	var levelHits [levelCount]int
	for id, t := range sc.truth {
		p, ok := preds[id]
		if !ok {
			continue
		}
		bd.Matched++
		allMatch := true
		for i := 0; i < levelCount; i++ {
			col := fmt.Sprintf("l%d", i)
			if v, ok := p.values[col]; ok && v == t.levels[i] {
				levelHits[i]++
			} else {
				allMatch = false
			}
		}
		if v, ok := p.values["brand"]; ok && v == t.brand {
			brandHits++
		} else {
			allMatch = false
		}
		if allMatch {
			itemHits++
		}
	}

	n := float64(len(sc.truth))
	bd.Item = float64(itemHits) / n
	bd.Brand = float64(brandHits) / n
	for i := 0; i < levelCount; i++ {
		bd.Level[i] = float64(levelHits[i]) / n
	}
	return &bd, nil
}

// columnIndex maps normalized header names to positions, requiring the
// walmart_id column.
func columnIndex(header []string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, col := range header {
		idx[strings.ToLower(strings.TrimSpace(col))] = i
	}
	if _, ok := idx[validate.RequiredColumn]; !ok {
		return nil, errors.New("CSV header is missing the required walmart_id column")
	}
	return idx, nil
}

func normalizeLabel(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
