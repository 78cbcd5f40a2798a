package sheet

import (
	"fmt"
	"io"

	"github.com/pbaille/workhours/internal/scoring"
	"github.com/xuri/excelize/v2"
)

const (
	scoresSheet     = "Scores"
	efficiencySheet = "Efficiency"
)

var scoreHeader = []string{"Name", "Records", "Hours", "Total Score", "Average Score"}

var efficiencyHeader = []string{"Client", "Records", "Hours", "Ratio", "Over Threshold"}

// ExportScores writes a workbook with one sheet of scores and, when eff is
// not nil, one sheet of client efficiency.
func ExportScores(w io.Writer, scores []scoring.Score, eff *scoring.Efficiency) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", scoresSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	header, err := headerStyle(f)
	if err != nil {
		return err
	}

	if err := writeHeader(f, scoresSheet, scoreHeader, header); err != nil {
		return err
	}
	for i, s := range scores {
		row := []any{s.Name, s.Count, s.Hours, s.TotalScore, s.AverageScore}
		if err := writeRow(f, scoresSheet, i+2, row); err != nil {
			return err
		}
	}

	if eff != nil {
		if _, err := f.NewSheet(efficiencySheet); err != nil {
			return fmt.Errorf("create sheet: %w", err)
		}
		if err := writeHeader(f, efficiencySheet, efficiencyHeader, header); err != nil {
			return err
		}
		for i, c := range eff.Clients {
			flag := "No"
			if c.OverThreshold {
				flag = "Yes"
			}
			row := []any{c.ClientName, c.Count, c.Hours, c.Ratio, flag}
			if err := writeRow(f, efficiencySheet, i+2, row); err != nil {
				return err
			}
		}

		threshold := any("undefined")
		if eff.ThresholdDefined {
			threshold = eff.Threshold
		}
		last := len(eff.Clients) + 3
		if err := writeRow(f, efficiencySheet, last, []any{"Threshold", nil, nil, threshold}); err != nil {
			return err
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func headerStyle(f *excelize.File) (int, error) {
	style, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
		},
	})
	if err != nil {
		return 0, fmt.Errorf("create header style: %w", err)
	}
	return style, nil
}

func writeHeader(f *excelize.File, sheet string, header []string, style int) error {
	cells := make([]any, len(header))
	for i, h := range header {
		cells[i] = h
	}
	if err := writeRow(f, sheet, 1, cells); err != nil {
		return err
	}

	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return fmt.Errorf("header range: %w", err)
	}
	if err := f.SetCellStyle(sheet, "A1", last, style); err != nil {
		return fmt.Errorf("set header style: %w", err)
	}
	if err := f.SetColWidth(sheet, "A", "A", 30); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}
	return f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("row %d: %w", row, err)
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write row %d: %w", row, err)
	}
	return nil
}
