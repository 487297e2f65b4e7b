package accurate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// ListInventoryAdjustments returns one page of adjustment headers. Pages
// are 1-based; the filter bounds transDate inclusively.
func (c *Client) ListInventoryAdjustments(ctx context.Context, creds Credentials, page, pageSize int, filter ListFilter) ([]InventoryAdjustment, PageInfo, error) {
	query := url.Values{}
	query.Set("fields", "id,transDate,number,description,status")
	query.Set("sp.page", strconv.Itoa(page))
	query.Set("sp.pageSize", strconv.Itoa(pageSize))
	switch {
	case filter.StartDate != "" && filter.EndDate != "":
		query.Set("filter.transDate.op", "BETWEEN")
		query.Set("filter.transDate.val[0]", filter.StartDate)
		query.Set("filter.transDate.val[1]", filter.EndDate)
	case filter.StartDate != "":
		query.Set("filter.transDate.op", "GREATER_EQUAL")
		query.Set("filter.transDate.val[0]", filter.StartDate)
	case filter.EndDate != "":
		query.Set("filter.transDate.op", "LESS_EQUAL")
		query.Set("filter.transDate.val[0]", filter.EndDate)
	}

	env, err := c.Call(ctx, creds, "/api/item-adjustment/list.do", CallOptions{Query: query})
	if err != nil {
		return nil, PageInfo{}, err
	}

	var items []InventoryAdjustment
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &items); err != nil {
			return nil, PageInfo{}, fmt.Errorf("accurate: decode adjustment list: %w", err)
		}
	}
	info := PageInfo{Page: page, PageSize: pageSize}
	if env.Paging != nil {
		info = *env.Paging
	}
	return items, info, nil
}

// GetInventoryAdjustmentDetail fetches one adjustment with its full line
// breakdown. One call per header by design.
func (c *Client) GetInventoryAdjustmentDetail(ctx context.Context, creds Credentials, id int64) (InventoryAdjustmentDetail, error) {
	query := url.Values{}
	query.Set("id", strconv.FormatInt(id, 10))

	env, err := c.Call(ctx, creds, "/api/item-adjustment/detail.do", CallOptions{Query: query})
	if err != nil {
		return InventoryAdjustmentDetail{}, err
	}

	var detail InventoryAdjustmentDetail
	if err := json.Unmarshal(env.Data, &detail); err != nil {
		return InventoryAdjustmentDetail{}, fmt.Errorf("accurate: decode adjustment detail: %w", err)
	}
	return detail, nil
}

// SaveInventoryAdjustment creates an adjustment document and returns the
// server-assigned id.
func (c *Client) SaveInventoryAdjustment(ctx context.Context, creds Credentials, input SaveAdjustmentInput) (int64, error) {
	env, err := c.Call(ctx, creds, "/api/item-adjustment/save.do", CallOptions{
		Method: http.MethodPost,
		Body:   input,
	})
	if err != nil {
		return 0, err
	}

	var saved struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal(env.Data, &saved); err != nil {
		return 0, fmt.Errorf("accurate: decode save response: %w", err)
	}
	return saved.ID, nil
}

// FindItemByCode looks up an item by exact code. Zero matches return
// (nil, nil); not-found is an expected outcome, not a failure.
func (c *Client) FindItemByCode(ctx context.Context, creds Credentials, code string) (*Item, error) {
	query := url.Values{}
	query.Set("fields", "id,name,no")
	query.Set("filter.no.op", "EQUAL")
	query.Set("filter.no.val", code)

	env, err := c.Call(ctx, creds, "/api/item/list.do", CallOptions{Query: query})
	if err != nil {
		return nil, err
	}

	var items []Item
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &items); err != nil {
			return nil, fmt.Errorf("accurate: decode item list: %w", err)
		}
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0], nil
}
