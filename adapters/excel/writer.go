package excel

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"strconv"

	"github.com/xuri/excelize/v2"

	"gomediate/domain/core"
	"gomediate/domain/mediation"
	"gomediate/domain/table"
	"gomediate/ports"
)

// StudyWriter exports an assembled study as an Excel workbook with one
// sheet per prediction table plus a summary sheet.
type StudyWriter struct{}

// NewStudyWriter creates a study writer
func NewStudyWriter() *StudyWriter {
	return &StudyWriter{}
}

// WriteStudy saves the study to an .xlsx file at path.
func (w *StudyWriter) WriteStudy(study *mediation.Study, path string) error {
	if study == nil {
		return core.ErrEmptyData
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", "study"); err != nil {
		return fmt.Errorf("failed to rename summary sheet: %w", err)
	}
	if err := w.writeSummary(f, "study", study); err != nil {
		return err
	}

	for _, named := range study.Tables {
		if err := w.writeTable(f, named); err != nil {
			return err
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

func (w *StudyWriter) writeSummary(f *excelize.File, sheet string, study *mediation.Study) error {
	rows := [][]interface{}{
		{"id", string(study.ID)},
		{"kind", string(study.Kind)},
		{"dataset", study.DatasetName},
		{"created_at", study.CreatedAt.String()},
		{"exposure", study.Variables.Exposure},
		{"exposure2", study.Variables.Exposure2},
		{"mediator", study.Variables.Mediator},
		{"mediator2", study.Variables.Mediator2},
		{"outcome", study.Variables.Outcome},
		{"group_by", study.Variables.GroupBy},
		{"grid_points", study.Config.Points},
		{"confidence_level", study.Config.ConfidenceLevel},
	}

	for i, row := range rows {
		for j, v := range row {
			cell, err := excelize.CoordinatesToCellName(j+1, i+1)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *StudyWriter) writeTable(f *excelize.File, named table.Named) error {
	sheet := sheetName(named.Name)
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", sheet, err)
	}

	names := named.Table.Names()

	// Header row
	for j, name := range names {
		cell, err := excelize.CoordinatesToCellName(j+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, name); err != nil {
			return err
		}
	}

	// Data rows; NaN cells stay blank
	for i := 0; i < named.Table.NumRows(); i++ {
		for j, name := range names {
			v, err := named.Table.Value(i, name)
			if err != nil {
				return err
			}
			if math.IsNaN(v) {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(j+1, i+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}
	}
	return nil
}

// sheetName clamps table names to the 31-character sheet limit.
func sheetName(name string) string {
	if len(name) > 31 {
		return name[:31]
	}
	return name
}

// WriteDatasetCSV saves a dataset as a comma separated file with one
// header row. NaN cells are written empty so the reader round-trips them.
func WriteDatasetCSV(path string, ds *ports.Dataset) error {
	if ds == nil || ds.Table == nil {
		return core.ErrEmptyData
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create csv file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	names := ds.Table.Names()
	if err := w.Write(names); err != nil {
		return err
	}

	record := make([]string, len(names))
	for i := 0; i < ds.Table.NumRows(); i++ {
		for j, name := range names {
			v, err := ds.Table.Value(i, name)
			if err != nil {
				return err
			}
			if math.IsNaN(v) {
				record[j] = ""
				continue
			}
			record[j] = strconv.FormatFloat(v, 'f', -1, 64)
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

// WriteDatasetXLSX saves a dataset as a single sheet workbook readable
// back through DataReader.
func WriteDatasetXLSX(path string, ds *ports.Dataset) error {
	if ds == nil || ds.Table == nil {
		return core.ErrEmptyData
	}

	f := excelize.NewFile()
	defer f.Close()

	names := ds.Table.Names()
	for j, name := range names {
		cell, err := excelize.CoordinatesToCellName(j+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue("Sheet1", cell, name); err != nil {
			return err
		}
	}

	for i := 0; i < ds.Table.NumRows(); i++ {
		for j, name := range names {
			v, err := ds.Table.Value(i, name)
			if err != nil {
				return err
			}
			if math.IsNaN(v) {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(j+1, i+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue("Sheet1", cell, v); err != nil {
				return err
			}
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}
