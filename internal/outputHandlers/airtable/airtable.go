// Package airtable is the hosted remote store: an Airtable table keyed by
// project_name.
package airtable

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/AlfredBerg/rootdata-sync/internal/project"
	"github.com/go-resty/resty/v2"
)

const (
	DefaultBaseURL = "https://api.airtable.com/v0"
	// MaxBatch is the largest number of records Airtable accepts per create call.
	MaxBatch       = 10
	nameField      = "project_name"
)

type Client struct {
	http   *resty.Client
	baseID string
	table  string
}

type Options struct {
	BaseURL string
	APIKey  string
	BaseID  string
	Table   string
	Timeout time.Duration
}

func NewClient(opts Options) *Client {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetAuthToken(opts.APIKey)
	client.SetHeader("Content-Type", "application/json")
	if opts.Timeout > 0 {
		client.SetTimeout(opts.Timeout)
	}
	return &Client{http: client, baseID: opts.BaseID, table: opts.Table}
}

// APIError is a non-2xx response from Airtable.
type APIError struct {
	StatusCode int
	Type       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("airtable: %d %s: %s", e.StatusCode, e.Type, e.Message)
	}
	return fmt.Sprintf("airtable: %d %s", e.StatusCode, e.Type)
}

func (e *APIError) RateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

type record struct {
	ID     string `json:"id,omitempty"`
	Fields fields `json:"fields"`
}

type fields struct {
	Name      string  `json:"project_name"`
	Logo      *string `json:"project_logo,omitempty"`
	Link      *string `json:"project_link,omitempty"`
	Round     *string `json:"project_round,omitempty"`
	Amount    *string `json:"project_amount,omitempty"`
	Valuation *string `json:"project_valuation,omitempty"`
	Date      *string `json:"project_date,omitempty"`
	Investors string  `json:"investors,omitempty"`
}

type listResponse struct {
	Records []record `json:"records"`
	Offset  string   `json:"offset"`
}

// ExistingNames lists every project_name in the table, following pagination.
func (c *Client) ExistingNames(ctx context.Context) (map[string]struct{}, error) {
	names := map[string]struct{}{}
	offset := ""
	for {
		var out listResponse
		req := c.http.R().
			SetContext(ctx).
			SetPathParams(map[string]string{"base": c.baseID, "table": c.table}).
			SetQueryParam("fields[]", nameField).
			SetQueryParam("pageSize", "100").
			SetResult(&out)
		if offset != "" {
			req.SetQueryParam("offset", offset)
		}

		res, err := req.Get("/{base}/{table}")
		if err != nil {
			return nil, fmt.Errorf("list records: %w", err)
		}
		if res.IsError() {
			return nil, decodeError(res)
		}

		for _, r := range out.Records {
			names[r.Fields.Name] = struct{}{}
		}
		if out.Offset == "" {
			return names, nil
		}
		offset = out.Offset
	}
}

// CreateProjects inserts up to MaxBatch records in one call.
func (c *Client) CreateProjects(ctx context.Context, records []project.Record) error {
	if len(records) > MaxBatch {
		return fmt.Errorf("airtable accepts at most %d records per call, got %d", MaxBatch, len(records))
	}

	body := struct {
		Records []record `json:"records"`
	}{Records: make([]record, 0, len(records))}
	for _, r := range records {
		investors, err := json.Marshal(r.Investors)
		if err != nil {
			return fmt.Errorf("encode investors of %q: %w", r.Name, err)
		}
		body.Records = append(body.Records, record{Fields: fields{
			Name:      r.Name,
			Logo:      r.Logo,
			Link:      r.Link,
			Round:     r.Round,
			Amount:    r.Amount,
			Valuation: r.Valuation,
			Date:      r.Date,
			Investors: string(investors),
		}})
	}

	res, err := c.http.R().
		SetContext(ctx).
		SetPathParams(map[string]string{"base": c.baseID, "table": c.table}).
		SetBody(body).
		Post("/{base}/{table}")
	if err != nil {
		return fmt.Errorf("create records: %w", err)
	}
	if res.IsError() {
		return decodeError(res)
	}
	return nil
}

// decodeError handles both {"error":{"type","message"}} and {"error":"TYPE"}.
func decodeError(res *resty.Response) error {
	apiErr := &APIError{StatusCode: res.StatusCode(), Type: http.StatusText(res.StatusCode())}

	var body struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(res.Body(), &body); err != nil || len(body.Error) == 0 {
		return apiErr
	}
	var detail struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body.Error, &detail); err == nil {
		if detail.Type != "" {
			apiErr.Type = detail.Type
		}
		apiErr.Message = detail.Message
		return apiErr
	}
	var typ string
	if err := json.Unmarshal(body.Error, &typ); err == nil && typ != "" {
		apiErr.Type = typ
	}
	return apiErr
}
