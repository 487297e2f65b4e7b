// Package adjustments implements the bulk export and bulk import pipelines
// for inventory adjustment documents.
package adjustments

import (
	"fmt"
	"strings"

	"github.com/stoklink/stoklink/internal/accurate"
)

// ExportRecord is one flattened adjustment line. Constructed transiently
// during export and written to the generated workbook, never persisted.
type ExportRecord struct {
	AdjustmentNumber string  `json:"adjustmentNumber"`
	Date             string  `json:"date"`
	ItemName         string  `json:"itemName"`
	ItemCode         string  `json:"itemCode"`
	Type             string  `json:"type"`
	Quantity         float64 `json:"quantity"`
	Unit             string  `json:"unit"`
	Warehouse        string  `json:"warehouse,omitempty"`
	Description      string  `json:"description,omitempty"`
}

// ImportRow is one parsed, pre-validated input row. Rows sharing
// (AdjustmentDate, ReferenceNumber) become lines of one document.
type ImportRow struct {
	ItemCode        string  `json:"itemCode" validate:"required"`
	Type            string  `json:"type" validate:"required"`
	Quantity        float64 `json:"quantity" validate:"required,gt=0"`
	Unit            string  `json:"unit"`
	AdjustmentDate  string  `json:"adjustmentDate" validate:"required,datetime=2006-01-02"`
	ReferenceNumber string  `json:"referenceNumber"`
	Warehouse       string  `json:"warehouse"`
	Description     string  `json:"description"`
	ItemName        string  `json:"itemName"`
}

// ImportOptions tunes one import run.
type ImportOptions struct {
	// UseAutoNumbering omits document numbers so the ERP assigns them.
	UseAutoNumbering bool
}

// ImportError records one failed group. Failures are data here, not thrown
// errors; partial success is an expected terminal state.
type ImportError struct {
	GroupKey string `json:"groupKey"`
	Message  string `json:"message"`
}

// ImportResult summarises an import run.
type ImportResult struct {
	SuccessCount int           `json:"successCount"`
	FailedCount  int           `json:"failedCount"`
	Errors       []ImportError `json:"errors"`
}

// Done reports whether every group persisted.
func (r ImportResult) Done() bool {
	return r.FailedCount == 0
}

// DirectionFor maps a free-text adjustment direction onto the structured
// line type. "Penambahan", "tambah" and "add" (any case) mean inbound;
// everything else means outbound. The heuristic is part of the user-facing
// template contract, so spelling variants are matched here and nowhere else.
func DirectionFor(rowType string) string {
	switch strings.ToLower(strings.TrimSpace(rowType)) {
	case "penambahan", "tambah", "add":
		return accurate.AdjustmentIn
	default:
		return accurate.AdjustmentOut
	}
}

// groupKey builds the composite grouping key. Rows without a reference
// share the "none" bucket per date.
func groupKey(date, reference string) string {
	if reference == "" {
		reference = "none"
	}
	return fmt.Sprintf("%s|%s", date, reference)
}
