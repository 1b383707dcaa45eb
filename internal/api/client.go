// internal/api/client.go
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/wim-maps/engine/pkg/core"
)

// Client reads maps and locations from the WordPress REST API and the
// admin-ajax map data endpoint. It implements storage.Source.
type Client struct {
	baseURL    string
	ajaxURL    string
	nonce      string
	httpClient *http.Client
}

// New creates a new API client. baseURL is the REST namespace root
// (".../wp-json/wim/v1"); ajaxURL may be empty if GetMapData is not used.
func New(baseURL, ajaxURL, nonce string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		ajaxURL:    ajaxURL,
		nonce:      nonce,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("status %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("status %d", e.Code)
}

// Unwrap maps 404 to core.ErrNotFound.
func (e *StatusError) Unwrap() error {
	if e.Code == http.StatusNotFound {
		return core.ErrNotFound
	}
	return nil
}

// flexInt accepts a JSON number or a numeric string; post meta is often stored as text.
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(bytes.TrimSpace(data)), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid dimension %q", s)
	}
	*f = flexInt(v)
	return nil
}

type mapResponse struct {
	ID          uint            `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	ImageURL    string          `json:"image_url"`
	ImageWidth  flexInt         `json:"image_width"`
	ImageHeight flexInt         `json:"image_height"`
	Locations   []core.Location `json:"locations"`
}

// GetMap fetches GET {base}/maps/{id}.
func (c *Client) GetMap(ctx context.Context, id uint) (*core.Map, error) {
	var resp mapResponse
	if err := c.getJSON(ctx, fmt.Sprintf("/maps/%d", id), &resp); err != nil {
		return nil, fmt.Errorf("get map %d: %w", id, err)
	}
	m := &core.Map{
		ID:           resp.ID,
		Title:        resp.Title,
		Description:  resp.Description,
		ImageURL:     resp.ImageURL,
		NativeWidth:  int(resp.ImageWidth),
		NativeHeight: int(resp.ImageHeight),
		Locations:    resp.Locations,
	}
	for i := range m.Locations {
		if m.Locations[i].MapID == 0 {
			m.Locations[i].MapID = m.ID
		}
	}
	return m, nil
}

// GetLocation fetches GET {base}/locations/{id}.
func (c *Client) GetLocation(ctx context.Context, id uint) (*core.Location, error) {
	var l core.Location
	if err := c.getJSON(ctx, fmt.Sprintf("/locations/%d", id), &l); err != nil {
		return nil, fmt.Errorf("get location %d: %w", id, err)
	}
	return &l, nil
}

type ajaxResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

type ajaxMapData struct {
	ImageURL string  `json:"image_url"`
	Width    flexInt `json:"width"`
	Height   flexInt `json:"height"`
}

type ajaxError struct {
	Message string `json:"message"`
}

// GetMapData posts action=wim_get_map_data to the admin-ajax endpoint.
func (c *Client) GetMapData(ctx context.Context, id uint) (core.MapData, error) {
	if c.ajaxURL == "" {
		return core.MapData{}, fmt.Errorf("get map data %d: ajax url not configured", id)
	}

	form := url.Values{}
	form.Set("action", "wim_get_map_data")
	form.Set("map_id", strconv.FormatUint(uint64(id), 10))
	form.Set("nonce", c.nonce)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.ajaxURL, strings.NewReader(form.Encode()))
	if err != nil {
		return core.MapData{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var resp ajaxResponse
	if err := c.do(req, &resp); err != nil {
		return core.MapData{}, fmt.Errorf("get map data %d: %w", id, err)
	}
	if !resp.Success {
		var e ajaxError
		if err := json.Unmarshal(resp.Data, &e); err != nil || e.Message == "" {
			return core.MapData{}, fmt.Errorf("get map data %d: request rejected: %s", id, bodySnippet(resp.Data))
		}
		if e.Message == "Map not found" {
			return core.MapData{}, fmt.Errorf("get map data %d: %w", id, core.ErrNotFound)
		}
		return core.MapData{}, fmt.Errorf("get map data %d: request rejected: %s", id, e.Message)
	}

	var d ajaxMapData
	if err := json.Unmarshal(resp.Data, &d); err != nil {
		return core.MapData{}, fmt.Errorf("get map data %d: decode: %w", id, err)
	}
	return core.MapData{ImageURL: d.ImageURL, Width: int(d.Width), Height: int(d.Height)}, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return c.do(req, out)
}

type restError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e restError
		if err := json.Unmarshal(body, &e); err != nil || e.Message == "" {
			return &StatusError{Code: resp.StatusCode, Message: bodySnippet(body)}
		}
		return &StatusError{Code: resp.StatusCode, Message: e.Message}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// maxBodySnippet bounds how much of an undecodable body is quoted in an error.
const maxBodySnippet = 256

func bodySnippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxBodySnippet {
		s = s[:maxBodySnippet] + "..."
	}
	return s
}
