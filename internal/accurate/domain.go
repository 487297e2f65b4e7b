// Package accurate implements the signed REST protocol of Accurate Online:
// request signing, the account-level token/session lifecycle, a rate-limited
// dispatcher and typed resource operations on top of it.
package accurate

import "time"

// Credentials carries everything a per-database API call needs. Host and
// Session are issued together by open-db and must be refreshed together.
type Credentials struct {
	APIToken        string
	SignatureSecret string
	Host            string
	Session         string
}

// TokenPair is the result of an OAuth refresh-token grant. RefreshToken may
// be empty when the server does not rotate it.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// ResolvedSession pairs a session string with the host it was issued
// against. A session is meaningless without its host.
type ResolvedSession struct {
	Host       string
	Session    string
	ResolvedAt time.Time
}

// PageInfo mirrors the sp block of list envelopes. Pages are 1-based.
type PageInfo struct {
	Page      int `json:"page"`
	PageSize  int `json:"pageSize"`
	PageCount int `json:"pageCount"`
}

// ListFilter bounds an adjustment listing by transaction date, inclusive,
// in YYYY-MM-DD. Either side may be empty.
type ListFilter struct {
	StartDate string
	EndDate   string
}

// InventoryAdjustment is the list-endpoint header record.
type InventoryAdjustment struct {
	ID          int64  `json:"id"`
	TransDate   string `json:"transDate"`
	Number      string `json:"number"`
	Description string `json:"description"`
	Status      string `json:"status"`
}

// Item identifies a stock item within the company database.
type Item struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	No   string `json:"no"`
}

// UnitRef is the unit block embedded in adjustment lines.
type UnitRef struct {
	Name string `json:"name"`
}

// WarehouseRef is the warehouse block embedded in adjustment lines.
type WarehouseRef struct {
	Name string `json:"name"`
}

// AdjustmentLine is one detailItem entry of an adjustment document. Type
// may be free text ("Penambahan"/"Pengurangan") or a structured direction.
type AdjustmentLine struct {
	Item      Item          `json:"item"`
	Quantity  float64       `json:"quantity"`
	Unit      UnitRef       `json:"unit"`
	Warehouse *WarehouseRef `json:"warehouse,omitempty"`
	Type      string        `json:"type,omitempty"`
}

// InventoryAdjustmentDetail is the header plus its full line breakdown.
type InventoryAdjustmentDetail struct {
	InventoryAdjustment
	DetailItem []AdjustmentLine `json:"detailItem"`
}

// Adjustment line directions accepted by save.do.
const (
	AdjustmentIn  = "ADJUSTMENT_IN"
	AdjustmentOut = "ADJUSTMENT_OUT"
)

// SaveDetailItem is one line of a save payload. Items are referenced by
// code; the server resolves them.
type SaveDetailItem struct {
	ItemNo             string  `json:"itemNo"`
	Quantity           float64 `json:"quantity"`
	ItemAdjustmentType string  `json:"itemAdjustmentType"`
	UnitName           string  `json:"unitName,omitempty"`
	WarehouseName      string  `json:"warehouseName,omitempty"`
}

// SaveAdjustmentInput is the payload for creating an adjustment document.
// An empty Number lets the server assign one.
type SaveAdjustmentInput struct {
	TransDate   string           `json:"transDate"`
	Number      string           `json:"number,omitempty"`
	Description string           `json:"description,omitempty"`
	DetailItem  []SaveDetailItem `json:"detailItem"`
}
