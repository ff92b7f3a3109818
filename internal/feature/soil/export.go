package soil

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"soil-monitor/internal/threshold"
)

const exportSheet = "condicoes_anormais"

var exportHeader = []any{"readingId", "parameter", "direction", "value", "low", "high", "condition", "treatment"}

// WriteXLSX 每个异常参数一行
func WriteXLSX(w io.Writer, reports []threshold.Report) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return err
	}
	if err := f.SetSheetRow(exportSheet, "A1", &exportHeader); err != nil {
		return err
	}
	row := 2
	for _, rep := range reports {
		for _, d := range rep.Deviations {
			cells := []any{rep.ReadingID, d.Parameter, string(d.Direction), d.Value, d.Low, d.High, d.Description, d.Treatment}
			if err := f.SetSheetRow(exportSheet, fmt.Sprintf("A%d", row), &cells); err != nil {
				return err
			}
			row++
		}
	}
	_, err := f.WriteTo(w)
	return err
}
