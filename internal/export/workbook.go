package export

import (
	"bytes"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/Desteles/deli-pwa-app/internal/domain"
)

// Sheet names and download file names.
const (
	ManagerSheet    = "Доставки"
	DriverSheet     = "Мои доставки"
	ManagerFileName = "доставки.xlsx"
	DriverFileName  = "мои_доставки.xlsx"
)

// Header is the column order of both workbooks.
var Header = []string{
	"ID",
	"Поставщик",
	"Плательщик",
	"Счёт",
	"Адрес загрузки",
	"Адрес отгрузки",
	"Габариты/вес",
	"Автор",
	"Водитель",
	"Статус",
	"Дата выполнения",
}

const (
	minColWidth = 12
	timeLayout  = "2006-01-02 15:04:05"
)

// ManagerWorkbook renders every delivery.
func ManagerWorkbook(recs []*domain.DeliveryRecord, loc *time.Location) ([]byte, error) {
	return generateWorkbook(ManagerSheet, recs, loc)
}

// DriverWorkbook renders one driver's deliveries.
func DriverWorkbook(recs []*domain.DeliveryRecord, loc *time.Location) ([]byte, error) {
	return generateWorkbook(DriverSheet, recs, loc)
}

func generateWorkbook(sheetName string, recs []*domain.DeliveryRecord, loc *time.Location) ([]byte, error) {
	if loc == nil {
		loc = time.Local
	}
	f := excelize.NewFile()
	// WriteTo needs the file open, so Close is called explicitly on every path.

	index, err := f.NewSheet(sheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#D9D9D9"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for col, title := range Header {
		if err := setCellValue(f, sheetName, col+1, 1, title); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header cell: %w", err)
		}
		name, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert column number: %w", err)
		}
		if err := f.SetCellStyle(sheetName, name+"1", name+"1", headerStyle); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header style: %w", err)
		}
		width := utf8.RuneCountInString(title) + 2
		if width < minColWidth {
			width = minColWidth
		}
		if err := f.SetColWidth(sheetName, name, name, float64(width)); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set column width: %w", err)
		}
	}

	for i, rec := range recs {
		row := i + 2
		for col, value := range rowValues(rec, loc) {
			if value == "" {
				continue
			}
			if err := setCellValue(f, sheetName, col+1, row, value); err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to set cell value at row %d, col %d: %w", row, col+1, err)
			}
		}
	}

	lastCol, _ := excelize.ColumnNumberToName(len(Header))
	ref := fmt.Sprintf("A1:%s%d", lastCol, len(recs)+1)
	if err := f.AutoFilter(sheetName, ref, nil); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to set auto filter: %w", err)
	}

	if err := f.SetPanes(sheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to freeze panes: %w", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write to buffer: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close file: %w", err)
	}
	return buf.Bytes(), nil
}

// rowValues follows Header. The id is kept numeric.
func rowValues(rec *domain.DeliveryRecord, loc *time.Location) []interface{} {
	completed := ""
	if rec.CompletedAt != nil {
		completed = rec.CompletedAt.In(loc).Format(timeLayout)
	}
	return []interface{}{
		rec.ID,
		rec.Supplier,
		rec.Payer,
		rec.InvoiceNumber,
		text(rec.PickupAddress),
		text(rec.DeliveryAddress),
		text(rec.CargoInfo),
		rec.AuthorName,
		text(rec.DriverName),
		rec.Status.Label(),
		completed,
	}
}

func setCellValue(f *excelize.File, sheet string, col, row int, value interface{}) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	return f.SetCellValue(sheet, cell, value)
}

func text(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
