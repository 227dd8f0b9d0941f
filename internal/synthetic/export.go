package synthetic

import (
	"encoding/csv"
	"os"
	"strconv"

	"github.com/xuri/excelize/v2"
)

// tableRows flattens the dataset into headers and formatted string rows,
// covariates first, then the treatment and outcome columns.
func tableRows(ds *Dataset) ([]string, [][]string) {
	cov := ds.Observations.Covariates
	headers := append(append([]string(nil), cov.Names...), "t", "y")

	rows := make([][]string, ds.Observations.RowCount())
	for i := range rows {
		r := make([]string, 0, len(headers))
		for _, col := range cov.Cols {
			r = append(r, strconv.FormatFloat(col[i], 'g', -1, 64))
		}
		r = append(r, strconv.Itoa(ds.Observations.Treatment[i]))
		r = append(r, strconv.FormatFloat(ds.Observations.Outcome[i], 'f', 6, 64))
		rows[i] = r
	}
	return headers, rows
}

func WriteCSV(path string, ds *Dataset) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	headers, rows := tableRows(ds)
	if err := w.Write(headers); err != nil {
		return err
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return w.Error()
}

func WriteXLSX(path string, ds *Dataset) error {
	f := excelize.NewFile()

	sheet := "Sheet1"
	if idx, err := f.GetSheetIndex(sheet); err != nil || idx == -1 {
		idx, err := f.NewSheet(sheet)
		if err != nil {
			return err
		}
		f.SetActiveSheet(idx)
	}

	headers, rows := tableRows(ds)
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}
	for r := 0; r < len(rows); r++ {
		rowIdx := r + 2
		for c, v := range rows[r] {
			cell, _ := excelize.CoordinatesToCellName(c+1, rowIdx)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}
	}

	return f.SaveAs(path)
}
