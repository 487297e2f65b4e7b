package adjustments

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stoklink/stoklink/internal/accurate"
)

type fakeERP struct {
	pages       [][]accurate.InventoryAdjustment
	details     map[int64]accurate.InventoryAdjustmentDetail
	listCalls   int
	detailCalls int

	saves    []accurate.SaveAdjustmentInput
	saveErrs map[int]error // 0-based save call index -> error

	items     map[string]*accurate.Item
	findCalls int
}

func (f *fakeERP) ListInventoryAdjustments(ctx context.Context, creds accurate.Credentials, page, pageSize int, filter accurate.ListFilter) ([]accurate.InventoryAdjustment, accurate.PageInfo, error) {
	f.listCalls++
	info := accurate.PageInfo{Page: page, PageSize: pageSize, PageCount: len(f.pages)}
	if page > len(f.pages) {
		return nil, info, nil
	}
	return f.pages[page-1], info, nil
}

func (f *fakeERP) GetInventoryAdjustmentDetail(ctx context.Context, creds accurate.Credentials, id int64) (accurate.InventoryAdjustmentDetail, error) {
	f.detailCalls++
	detail, ok := f.details[id]
	if !ok {
		return accurate.InventoryAdjustmentDetail{}, fmt.Errorf("no detail for %d", id)
	}
	return detail, nil
}

func (f *fakeERP) SaveInventoryAdjustment(ctx context.Context, creds accurate.Credentials, input accurate.SaveAdjustmentInput) (int64, error) {
	idx := len(f.saves)
	f.saves = append(f.saves, input)
	if err, ok := f.saveErrs[idx]; ok {
		return 0, err
	}
	return int64(1000 + idx), nil
}

func (f *fakeERP) FindItemByCode(ctx context.Context, creds accurate.Credentials, code string) (*accurate.Item, error) {
	f.findCalls++
	return f.items[code], nil
}

// buildPages fabricates page data: counts[i] headers on page i+1, each
// header with two detail lines.
func buildPages(counts ...int) *fakeERP {
	erp := &fakeERP{details: make(map[int64]accurate.InventoryAdjustmentDetail)}
	var nextID int64 = 1
	for _, n := range counts {
		page := make([]accurate.InventoryAdjustment, 0, n)
		for i := 0; i < n; i++ {
			header := accurate.InventoryAdjustment{
				ID:        nextID,
				TransDate: "2024-01-05",
				Number:    fmt.Sprintf("ADJ-%d", nextID),
			}
			page = append(page, header)
			erp.details[nextID] = accurate.InventoryAdjustmentDetail{
				InventoryAdjustment: header,
				DetailItem: []accurate.AdjustmentLine{
					{Item: accurate.Item{Name: "Kopi", No: "KP-01"}, Quantity: 1, Unit: accurate.UnitRef{Name: "PCS"}},
					{Item: accurate.Item{Name: "Teh", No: "TH-01"}, Quantity: 2, Unit: accurate.UnitRef{Name: "BOX"}},
				},
			}
			nextID++
		}
		erp.pages = append(erp.pages, page)
	}
	return erp
}

func TestExportWalksAllPages(t *testing.T) {
	erp := buildPages(100, 100, 37)
	svc := NewService(erp, nil)

	records, err := svc.Export(context.Background(), accurate.Credentials{}, "2024-01-01", "2024-01-31", 0)
	require.NoError(t, err)

	require.Equal(t, 3, erp.listCalls)
	require.Equal(t, 237, erp.detailCalls)
	require.Len(t, records, 237*2)

	// Header-then-line order: records follow list order, two lines each.
	require.Equal(t, "ADJ-1", records[0].AdjustmentNumber)
	require.Equal(t, "KP-01", records[0].ItemCode)
	require.Equal(t, "ADJ-1", records[1].AdjustmentNumber)
	require.Equal(t, "TH-01", records[1].ItemCode)
	require.Equal(t, "ADJ-2", records[2].AdjustmentNumber)
	require.Equal(t, "ADJ-237", records[472].AdjustmentNumber)
}

func TestExportEmptyRangeMakesNoDetailCalls(t *testing.T) {
	erp := &fakeERP{pages: nil, details: map[int64]accurate.InventoryAdjustmentDetail{}}
	svc := NewService(erp, nil)

	records, err := svc.Export(context.Background(), accurate.Credentials{}, "2024-01-01", "2024-01-31", 0)
	require.NoError(t, err)
	require.Empty(t, records)
	require.NotNil(t, records)
	require.Equal(t, 1, erp.listCalls)
	require.Zero(t, erp.detailCalls)
}

func TestExportLimitStopsPagingEagerly(t *testing.T) {
	erp := buildPages(100, 100, 37)
	svc := NewService(erp, nil)

	records, err := svc.Export(context.Background(), accurate.Credentials{}, "2024-01-01", "2024-01-31", 5)
	require.NoError(t, err)
	require.Len(t, records, 5)

	// Two lines per detail: 3 details produce 6 >= 5. No further fetching.
	require.Equal(t, 1, erp.listCalls)
	require.Equal(t, 3, erp.detailCalls)
}

func TestExportDetailFailureAbortsWholeExport(t *testing.T) {
	erp := buildPages(3)
	delete(erp.details, 2)
	svc := NewService(erp, nil)

	_, err := svc.Export(context.Background(), accurate.Credentials{}, "2024-01-01", "2024-01-31", 0)
	require.Error(t, err)
	require.Contains(t, err.Error(), "ADJ-2")
}

func TestExportStopsOnCancelledContext(t *testing.T) {
	erp := buildPages(100)
	svc := NewService(erp, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Export(ctx, accurate.Credentials{}, "2024-01-01", "2024-01-31", 0)
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, erp.detailCalls)
}

func importRows() []ImportRow {
	return []ImportRow{
		{ItemCode: "A", Type: "Penambahan", Quantity: 1, AdjustmentDate: "2024-01-01", ReferenceNumber: "REF1"},
		{ItemCode: "B", Type: "tambah", Quantity: 2, AdjustmentDate: "2024-01-01", ReferenceNumber: "REF1"},
		{ItemCode: "C", Type: "Pengurangan", Quantity: 3, AdjustmentDate: "2024-01-01", ReferenceNumber: "REF1"},
		{ItemCode: "D", Type: "add", Quantity: 4, AdjustmentDate: "2024-01-02"},
		{ItemCode: "E", Type: "kurang", Quantity: 5, AdjustmentDate: "2024-01-02"},
	}
}

func TestImportGroupsByDateAndReference(t *testing.T) {
	erp := &fakeERP{}
	svc := NewService(erp, nil)

	result, err := svc.Import(context.Background(), accurate.Credentials{}, importRows(), ImportOptions{})
	require.NoError(t, err)
	require.Equal(t, 2, result.SuccessCount)
	require.Zero(t, result.FailedCount)
	require.True(t, result.Done())

	require.Len(t, erp.saves, 2)
	require.Len(t, erp.saves[0].DetailItem, 3)
	require.Len(t, erp.saves[1].DetailItem, 2)

	require.Equal(t, "REF1", erp.saves[0].Number)
	require.Equal(t, "2024-01-01", erp.saves[0].TransDate)
	require.Empty(t, erp.saves[1].Number)

	require.Equal(t, accurate.AdjustmentIn, erp.saves[0].DetailItem[0].ItemAdjustmentType)
	require.Equal(t, accurate.AdjustmentIn, erp.saves[0].DetailItem[1].ItemAdjustmentType)
	require.Equal(t, accurate.AdjustmentOut, erp.saves[0].DetailItem[2].ItemAdjustmentType)
	require.Equal(t, accurate.AdjustmentOut, erp.saves[1].DetailItem[1].ItemAdjustmentType)
}

func TestImportAutoNumberingOmitsNumbers(t *testing.T) {
	erp := &fakeERP{}
	svc := NewService(erp, nil)

	_, err := svc.Import(context.Background(), accurate.Credentials{}, importRows(), ImportOptions{UseAutoNumbering: true})
	require.NoError(t, err)
	require.Empty(t, erp.saves[0].Number)
	require.Empty(t, erp.saves[1].Number)
}

func TestImportFailureDoesNotBlockLaterGroups(t *testing.T) {
	rows := []ImportRow{
		{ItemCode: "A", Type: "tambah", Quantity: 1, AdjustmentDate: "2024-01-01", ReferenceNumber: "G1"},
		{ItemCode: "B", Type: "tambah", Quantity: 1, AdjustmentDate: "2024-01-02", ReferenceNumber: "G2"},
		{ItemCode: "C", Type: "tambah", Quantity: 1, AdjustmentDate: "2024-01-03", ReferenceNumber: "G3"},
	}
	erp := &fakeERP{saveErrs: map[int]error{1: errors.New("item not found")}}
	svc := NewService(erp, nil)

	result, err := svc.Import(context.Background(), accurate.Credentials{}, rows, ImportOptions{})
	require.NoError(t, err)

	require.Len(t, erp.saves, 3, "third group must still be attempted")
	require.Equal(t, 2, result.SuccessCount)
	require.Equal(t, 1, result.FailedCount)
	require.False(t, result.Done())
	require.Len(t, result.Errors, 1)
	require.Equal(t, "2024-01-02|G2", result.Errors[0].GroupKey)
	require.Contains(t, result.Errors[0].Message, "item not found")
}

func TestDirectionFor(t *testing.T) {
	cases := map[string]string{
		"Penambahan":  accurate.AdjustmentIn,
		"penambahan":  accurate.AdjustmentIn,
		"PENAMBAHAN":  accurate.AdjustmentIn,
		"tambah":      accurate.AdjustmentIn,
		"Tambah":      accurate.AdjustmentIn,
		"add":         accurate.AdjustmentIn,
		"ADD":         accurate.AdjustmentIn,
		" add ":       accurate.AdjustmentIn,
		"Pengurangan": accurate.AdjustmentOut,
		"kurang":      accurate.AdjustmentOut,
		"remove":      accurate.AdjustmentOut,
		"whatever":    accurate.AdjustmentOut,
	}
	for input, want := range cases {
		require.Equal(t, want, DirectionFor(input), "input %q", input)
	}
}
