// Package dataset reads and writes the query metrics CSV and splits it into
// reproducible partitions.
package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"neurocost/pkg/common"
)

// Column names of the metrics CSV.
const (
	ColQueryName        = "query_name"
	ColCategory         = "category"
	ColEstimatedCost    = "estimated_cost"
	ColEstimatedRows    = "estimated_rows"
	ColActualRuntimeMs  = "actual_runtime_ms"
	ColActualRows       = "actual_rows"
	ColJoinCount        = "join_count"
	ColExecutionTimeSec = "execution_time_sec"
	ColPlanJSON         = "plan_json"
)

// RequiredColumns must be present in every metrics CSV header.
var RequiredColumns = []string{
	ColQueryName, ColCategory, ColEstimatedCost, ColEstimatedRows,
	ColActualRuntimeMs, ColActualRows, ColJoinCount,
}

// Header is the column order used when writing.
var Header = []string{
	ColQueryName, ColCategory, ColEstimatedCost, ColEstimatedRows,
	ColActualRuntimeMs, ColActualRows, ColJoinCount, ColExecutionTimeSec, ColPlanJSON,
}

// LoadCSV reads the metrics file at path. A missing file is reported with an
// error satisfying errors.Is(err, os.ErrNotExist).
func LoadCSV(path string) ([]common.QueryRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open metrics csv %q: %w", path, err)
	}
	defer f.Close()

	records, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("read metrics csv %q: %w", path, err)
	}
	return records, nil
}

// ReadCSV parses metrics rows. Empty numeric cells are treated as absent.
func ReadCSV(r io.Reader) ([]common.QueryRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: empty file", ErrMissingColumn)
	}
	if err != nil {
		return nil, err
	}

	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.TrimSpace(h)] = i
	}
	for _, col := range RequiredColumns {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
	}

	var records []common.QueryRecord
	line := 1
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, err
		}

		cell := func(col string) string {
			i, ok := idx[col]
			if !ok || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}
		num := func(col string) (common.Optional, error) {
			v, err := parseOptional(cell(col))
			if err != nil {
				return v, &ParseError{Line: line, Column: col, cause: err}
			}
			return v, nil
		}

		rec := common.QueryRecord{
			QueryName: cell(ColQueryName),
			Category:  common.Category(cell(ColCategory)),
			PlanJSON:  cell(ColPlanJSON),
		}
		for _, f := range []struct {
			col string
			dst *common.Optional
		}{
			{ColJoinCount, &rec.JoinCount},
			{ColEstimatedCost, &rec.EstimatedCost},
			{ColEstimatedRows, &rec.EstimatedRows},
			{ColActualRuntimeMs, &rec.ActualRuntimeMs},
			{ColActualRows, &rec.ActualRows},
			{ColExecutionTimeSec, &rec.ExecutionTimeSec},
		} {
			v, err := num(f.col)
			if err != nil {
				return nil, err
			}
			*f.dst = v
		}
		records = append(records, rec)
	}
	return records, nil
}

func parseOptional(s string) (common.Optional, error) {
	switch strings.ToLower(s) {
	case "", "nan", "null", "none":
		return common.Optional{}, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return common.Optional{}, err
	}
	if math.IsNaN(v) {
		return common.Optional{}, nil
	}
	if math.IsInf(v, 0) || v < 0 {
		return common.Optional{}, fmt.Errorf("%w: %s", ErrInvalidNumber, s)
	}
	return common.Some(v), nil
}

// WriteCSV writes records with Header. Absent numerics are written as empty cells.
func WriteCSV(w io.Writer, records []common.QueryRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for i := range records {
		r := &records[i]
		row := []string{
			r.QueryName,
			string(r.Category),
			FormatOptional(r.EstimatedCost),
			FormatOptional(r.EstimatedRows),
			FormatOptional(r.ActualRuntimeMs),
			FormatOptional(r.ActualRows),
			FormatOptional(r.JoinCount),
			FormatOptional(r.ExecutionTimeSec),
			r.PlanJSON,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// SaveCSV writes records to path, replacing any existing file.
func SaveCSV(path string, records []common.QueryRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteCSV(f, records); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// FormatOptional renders a present value with the shortest exact representation.
func FormatOptional(o common.Optional) string {
	if !o.Valid {
		return ""
	}
	return FormatFloat(o.Value)
}

// FormatFloat renders v with the shortest representation that round-trips.
func FormatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
