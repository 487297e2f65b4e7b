package adjustments

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/stoklink/stoklink/internal/accurate"
)

// exportPageSize is fixed; the ERP caps list pages at 100 anyway.
const exportPageSize = 100

// ERPClient is the slice of the Accurate client the pipelines use.
type ERPClient interface {
	ListInventoryAdjustments(ctx context.Context, creds accurate.Credentials, page, pageSize int, filter accurate.ListFilter) ([]accurate.InventoryAdjustment, accurate.PageInfo, error)
	GetInventoryAdjustmentDetail(ctx context.Context, creds accurate.Credentials, id int64) (accurate.InventoryAdjustmentDetail, error)
	SaveInventoryAdjustment(ctx context.Context, creds accurate.Credentials, input accurate.SaveAdjustmentInput) (int64, error)
	FindItemByCode(ctx context.Context, creds accurate.Credentials, code string) (*accurate.Item, error)
}

// Service runs the export and import pipelines against one set of API
// credentials supplied per call by the refresh-aware executor.
type Service struct {
	erp    ERPClient
	items  *ItemCache
	logger *slog.Logger
}

// NewService constructs the pipeline service.
func NewService(erp ERPClient, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{erp: erp, logger: logger}
}

// UseItemCache installs a lookup cache for FindItem. Optional.
func (s *Service) UseItemCache(cache *ItemCache) {
	s.items = cache
}

// Export walks every page of adjustments in [startDate, endDate], fetches
// each header's detail sequentially and flattens the lines. A limit > 0
// stops paging as soon as that many records exist; the result is truncated
// to exactly limit. Any detail failure aborts the whole export: exports are
// read-only and idempotent, so retrying the operation is safe.
func (s *Service) Export(ctx context.Context, creds accurate.Credentials, startDate, endDate string, limit int) ([]ExportRecord, error) {
	filter := accurate.ListFilter{StartDate: startDate, EndDate: endDate}
	records := make([]ExportRecord, 0)

	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		headers, info, err := s.erp.ListInventoryAdjustments(ctx, creds, page, exportPageSize, filter)
		if err != nil {
			return nil, fmt.Errorf("list adjustments page %d: %w", page, err)
		}
		if len(headers) == 0 {
			break
		}

		for _, header := range headers {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			detail, err := s.erp.GetInventoryAdjustmentDetail(ctx, creds, header.ID)
			if err != nil {
				return nil, fmt.Errorf("fetch detail for %s (id=%d): %w", header.Number, header.ID, err)
			}
			records = append(records, flatten(detail)...)
			if limit > 0 && len(records) >= limit {
				return records[:limit], nil
			}
		}

		if page >= info.PageCount {
			break
		}
	}

	s.logger.Info("adjustment export complete",
		slog.String("start", startDate),
		slog.String("end", endDate),
		slog.Int("records", len(records)),
	)
	return records, nil
}

// flatten emits one record per detail line, carrying the header fields
// onto every line.
func flatten(detail accurate.InventoryAdjustmentDetail) []ExportRecord {
	records := make([]ExportRecord, 0, len(detail.DetailItem))
	for _, line := range detail.DetailItem {
		rec := ExportRecord{
			AdjustmentNumber: detail.Number,
			Date:             detail.TransDate,
			ItemName:         line.Item.Name,
			ItemCode:         line.Item.No,
			Type:             line.Type,
			Quantity:         line.Quantity,
			Unit:             line.Unit.Name,
			Description:      detail.Description,
		}
		if line.Warehouse != nil {
			rec.Warehouse = line.Warehouse.Name
		}
		records = append(records, rec)
	}
	return records
}

// Import groups rows by (adjustmentDate, referenceNumber) in first-seen
// order and persists one document per group, sequentially and
// independently: a failed group is recorded and the rest still run.
func (s *Service) Import(ctx context.Context, creds accurate.Credentials, rows []ImportRow, opts ImportOptions) (ImportResult, error) {
	groups, order := groupRows(rows)

	result := ImportResult{Errors: make([]ImportError, 0)}
	for _, key := range order {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		input := buildDocument(groups[key], opts)
		if _, err := s.erp.SaveInventoryAdjustment(ctx, creds, input); err != nil {
			result.FailedCount++
			result.Errors = append(result.Errors, ImportError{GroupKey: key, Message: err.Error()})
			s.logger.Warn("adjustment group failed",
				slog.String("group", key),
				slog.Any("error", err),
			)
			continue
		}
		result.SuccessCount++
	}
	return result, nil
}

// FindItem looks up one item by code, consulting the cache first when one
// is installed. A nil item means no match; misses are not cached.
func (s *Service) FindItem(ctx context.Context, creds accurate.Credentials, code string) (*accurate.Item, error) {
	if item, ok := s.items.Get(ctx, creds.Host, code); ok {
		return item, nil
	}
	item, err := s.erp.FindItemByCode(ctx, creds, code)
	if err != nil {
		return nil, err
	}
	s.items.Set(ctx, creds.Host, code, item)
	return item, nil
}

func groupRows(rows []ImportRow) (map[string][]ImportRow, []string) {
	groups := make(map[string][]ImportRow)
	order := make([]string, 0)
	for _, row := range rows {
		key := groupKey(row.AdjustmentDate, row.ReferenceNumber)
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], row)
	}
	return groups, order
}

// buildDocument maps one group onto a save payload. Date and description
// come from the group's first row; the document number is the shared
// reference unless auto-numbering is requested.
func buildDocument(rows []ImportRow, opts ImportOptions) accurate.SaveAdjustmentInput {
	first := rows[0]
	input := accurate.SaveAdjustmentInput{
		TransDate:   first.AdjustmentDate,
		Description: first.Description,
		DetailItem:  make([]accurate.SaveDetailItem, 0, len(rows)),
	}
	if !opts.UseAutoNumbering {
		input.Number = first.ReferenceNumber
	}
	for _, row := range rows {
		input.DetailItem = append(input.DetailItem, accurate.SaveDetailItem{
			ItemNo:             row.ItemCode,
			Quantity:           row.Quantity,
			ItemAdjustmentType: DirectionFor(row.Type),
			UnitName:           row.Unit,
			WarehouseName:      row.Warehouse,
		})
	}
	return input
}
