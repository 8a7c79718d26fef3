package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/Desteles/deli-pwa-app/internal/domain"
)

func strPtr(s string) *string { return &s }

func sampleRecords() []*domain.DeliveryRecord {
	driver := int64(42)
	done := time.Date(2024, 5, 3, 14, 30, 0, 0, time.UTC)
	return []*domain.DeliveryRecord{
		{
			ID: 1, Supplier: "Acme", Payer: "Acme", InvoiceNumber: "INV-1",
			AuthorName: "Olga", Status: domain.StatusDraft,
		},
		{
			ID: 2, Supplier: "Globex", Payer: "Initech", InvoiceNumber: "INV-2",
			PickupAddress: strPtr("Dock 2"), DeliveryAddress: strPtr("Main st 1"), CargoInfo: strPtr("2 pallets"),
			AuthorName: "Olga", DriverID: &driver, DriverName: strPtr("Jane"),
			Status: domain.StatusCompleted, CompletedAt: &done,
		},
	}
}

func openSheet(t *testing.T, data []byte, sheet string) [][]string {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{sheet}, f.GetSheetList())
	rows, err := f.GetRows(sheet)
	require.NoError(t, err)
	return rows
}

func TestManagerWorkbook(t *testing.T) {
	data, err := ManagerWorkbook(sampleRecords(), time.UTC)
	require.NoError(t, err)

	rows := openSheet(t, data, ManagerSheet)
	require.Len(t, rows, 3)
	assert.Equal(t, Header, rows[0])
	assert.Equal(t, []string{"1", "Acme", "Acme", "INV-1", "", "", "", "Olga", "", "черновик"}, rows[1])
	assert.Equal(t, []string{
		"2", "Globex", "Initech", "INV-2", "Dock 2", "Main st 1", "2 pallets",
		"Olga", "Jane", "доставлено", "2024-05-03 14:30:00",
	}, rows[2])
}

func TestDriverWorkbook_Empty(t *testing.T) {
	data, err := DriverWorkbook(nil, nil)
	require.NoError(t, err)

	rows := openSheet(t, data, DriverSheet)
	require.Len(t, rows, 1)
	assert.Equal(t, Header, rows[0])
}

func TestWorkbook_HeaderStyle(t *testing.T) {
	data, err := ManagerWorkbook(sampleRecords(), time.UTC)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	styleID, err := f.GetCellStyle(ManagerSheet, "A1")
	require.NoError(t, err)
	style, err := f.GetStyle(styleID)
	require.NoError(t, err)
	require.NotNil(t, style.Font)
	assert.True(t, style.Font.Bold)
	assert.Equal(t, "center", style.Alignment.Horizontal)

	width, err := f.GetColWidth(ManagerSheet, "K")
	require.NoError(t, err)
	assert.Equal(t, float64(17), width)
}
