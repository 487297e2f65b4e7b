package adjustments

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteWorkbook(t *testing.T) {
	records := []ExportRecord{
		{AdjustmentNumber: "ADJ-1", Date: "2024-01-05", ItemName: "Kopi", ItemCode: "KP-01", Type: "Penambahan", Quantity: 5, Unit: "PCS", Warehouse: "Utama"},
		{AdjustmentNumber: "ADJ-1", Date: "2024-01-05", ItemName: "Teh", ItemCode: "TH-01", Type: "Pengurangan", Quantity: 2, Unit: "BOX"},
	}

	f, err := WriteWorkbook(records)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(exportSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, "Adjustment No", rows[0][0])
	require.Equal(t, "ADJ-1", rows[1][0])
	require.Equal(t, "KP-01", rows[1][3])
	require.Equal(t, "TH-01", rows[2][3])
}
