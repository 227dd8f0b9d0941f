// Package tabular loads observation sets from CSV and XLSX files. The
// configured outcome and treatment columns are mapped out and every other
// numeric column passes through as a covariate.
package tabular

import (
	"context"
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"gocre/domain/core"
	"gocre/domain/sample"
	"gocre/ports"
)

// Reader implements ports.DatasetReaderPort for delimited and workbook
// sources. The file type is chosen by extension.
type Reader struct{}

func New() *Reader {
	return &Reader{}
}

func (r *Reader) ReadObservations(ctx context.Context, path string, mapping ports.ColumnMapping) (*sample.Observations, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if mapping.Outcome == "" {
		return nil, core.NewInvalidInputError("outcome", "outcome column name is required")
	}
	if mapping.Treatment == "" {
		return nil, core.NewInvalidInputError("treatment", "treatment column name is required")
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, core.NewNotFoundError("dataset", path)
	}

	var rows [][]string
	var err error
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		rows, err = readCSV(path)
	case ".xlsx":
		rows, err = readXLSX(path)
	default:
		return nil, core.NewInvalidInputError("dataset",
			fmt.Sprintf("unsupported file type %q", ext))
	}
	if err != nil {
		return nil, err
	}

	obs, err := buildObservations(rows, mapping)
	if err != nil {
		return nil, err
	}

	log.Printf("[DataReader] Loaded %d rows and %d covariates from %s",
		obs.Covariates.RowCount(), obs.Covariates.ColumnCount(), filepath.Base(path))
	return obs, nil
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV file: %w", err)
	}
	return rows, nil
}

func readXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows("Sheet1")
	if err != nil {
		return nil, fmt.Errorf("failed to read Sheet1: %w", err)
	}
	return rows, nil
}

// buildObservations converts raw string rows into a validated observation
// set. The first row is the header; later rows that are entirely empty are
// skipped, which workbook exports produce routinely.
func buildObservations(rows [][]string, mapping ports.ColumnMapping) (*sample.Observations, error) {
	if len(rows) < 2 {
		return nil, core.NewInvalidInputError("dataset",
			"need a header row and at least one data row")
	}

	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		headers[i] = strings.TrimSpace(h)
	}

	outcomeIdx, ok := columnIndex(headers, mapping.Outcome)
	if !ok {
		return nil, core.NewInvalidInputError("outcome",
			fmt.Sprintf("column %q not found", mapping.Outcome))
	}
	treatmentIdx, ok := columnIndex(headers, mapping.Treatment)
	if !ok {
		return nil, core.NewInvalidInputError("treatment",
			fmt.Sprintf("column %q not found", mapping.Treatment))
	}
	iteIdx := -1
	if mapping.ITE != "" {
		iteIdx, ok = columnIndex(headers, mapping.ITE)
		if !ok {
			return nil, core.NewInvalidInputError("ite",
				fmt.Sprintf("column %q not found", mapping.ITE))
		}
	}

	data := make([][]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if isBlank(row) {
			continue
		}
		data = append(data, row)
	}
	if len(data) == 0 {
		return nil, core.NewInvalidInputError("dataset", "no data rows")
	}

	outcome := make([]float64, len(data))
	treatment := make([]int, len(data))
	var ite []float64
	if iteIdx >= 0 {
		ite = make([]float64, len(data))
	}
	for i, row := range data {
		v, err := parseCell(row, outcomeIdx)
		if err != nil {
			return nil, core.NewInvalidInputError("outcome",
				fmt.Sprintf("row %d: %v", i+2, err))
		}
		outcome[i] = v

		tv, err := parseCell(row, treatmentIdx)
		if err != nil {
			return nil, core.NewInvalidInputError("treatment",
				fmt.Sprintf("row %d: %v", i+2, err))
		}
		if tv != 0 && tv != 1 {
			return nil, core.NewInvalidInputError("treatment",
				fmt.Sprintf("row %d: value %v is not binary", i+2, tv))
		}
		treatment[i] = int(tv)

		if iteIdx >= 0 {
			ev, err := parseCell(row, iteIdx)
			if err != nil {
				return nil, core.NewInvalidInputError("ite",
					fmt.Sprintf("row %d: %v", i+2, err))
			}
			ite[i] = ev
		}
	}

	var names []string
	var cols [][]float64
	for j, name := range headers {
		if j == outcomeIdx || j == treatmentIdx || j == iteIdx || name == "" {
			continue
		}
		col := make([]float64, len(data))
		numeric := true
		for i, row := range data {
			v, err := parseCell(row, j)
			if err != nil {
				numeric = false
				break
			}
			col[i] = v
		}
		if !numeric {
			log.Printf("[DataReader] Skipping non-numeric column %q", name)
			continue
		}
		names = append(names, name)
		cols = append(cols, col)
	}
	if len(names) == 0 {
		return nil, core.NewInvalidInputError("dataset", "no numeric covariate columns")
	}

	cov, err := sample.NewCovariates(names, cols)
	if err != nil {
		return nil, err
	}
	return sample.NewObservations(outcome, treatment, cov, ite)
}

func columnIndex(headers []string, name string) (int, bool) {
	for i, h := range headers {
		if h == name {
			return i, true
		}
	}
	return -1, false
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// parseCell reads one numeric cell. Workbook rows can be shorter than the
// header when trailing cells are empty, so a short row reads as empty.
func parseCell(row []string, idx int) (float64, error) {
	if idx >= len(row) {
		return 0, fmt.Errorf("cell is empty")
	}
	cell := strings.TrimSpace(row[idx])
	if cell == "" {
		return 0, fmt.Errorf("cell is empty")
	}
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return 0, fmt.Errorf("cell %q is not numeric", cell)
	}
	return v, nil
}
