package chroma

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultBaseURL = "http://localhost:8000"

type Client struct {
	baseURL string
	*http.Client
}

// Collection is the typed listing record for one collection.
type Collection struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type createCollectionRequest struct {
	Name     string         `json:"name"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// UpdateRequest replaces metadata keys on existing entries. A nil value in a
// metadata map removes that key.
type UpdateRequest struct {
	IDs       []string         `json:"ids"`
	Metadatas []map[string]any `json:"metadatas,omitempty"`
	Documents []string         `json:"documents,omitempty"`
}

type DeleteRequest struct {
	IDs           []string       `json:"ids,omitempty"`
	Where         map[string]any `json:"where,omitempty"`
	WhereDocument map[string]any `json:"where_document,omitempty"`
}

type GetRequest struct {
	IDs           []string       `json:"ids,omitempty"`
	Where         map[string]any `json:"where,omitempty"`
	WhereDocument map[string]any `json:"where_document,omitempty"`
	Sort          string         `json:"sort,omitempty"`
	Limit         int            `json:"limit,omitempty"`
	Offset        int            `json:"offset,omitempty"`
	Include       []string       `json:"include,omitempty"`
}

type GetResponse struct {
	IDs        []string         `json:"ids"`
	Documents  []string         `json:"documents"`
	Metadatas  []map[string]any `json:"metadatas"`
	Embeddings [][]float32      `json:"embeddings"`
}

// APIError is returned for any non-2xx response from the server.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("chroma %s %s: %d %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// IsNotFound reports whether err means the addressed collection does not exist.
// Older servers answer with a 500 and a ValueError body instead of a 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.StatusCode == http.StatusNotFound {
		return true
	}
	return strings.Contains(strings.ToLower(apiErr.Body), "does not exist")
}

func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		Client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// EnsureCollection returns the named collection, creating it when the server
// reports it missing.
func (c *Client) EnsureCollection(ctx context.Context, name string) (*Collection, error) {
	col, err := c.GetCollection(ctx, name)
	if err == nil {
		return col, nil
	}
	if !IsNotFound(err) {
		return nil, err
	}
	col, err = c.CreateCollection(ctx, name, nil)
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		return nil, err
	}
	if err == nil {
		return col, nil
	}
	// lost a create race; fetch the winner
	return c.GetCollection(ctx, name)
}

func (c *Client) CreateCollection(ctx context.Context, name string, metadata map[string]any) (*Collection, error) {
	req := createCollectionRequest{Name: name, Metadata: metadata}
	var out Collection
	if err := c.do(ctx, http.MethodPost, "/api/v1/collections", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetCollection(ctx context.Context, name string) (*Collection, error) {
	var out Collection
	if err := c.do(ctx, http.MethodGet, "/api/v1/collections/"+url.PathEscape(name), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteCollection removes the collection's metadata. It does not touch the
// segment directory on disk.
func (c *Client) DeleteCollection(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/collections/"+url.PathEscape(name), nil, nil)
}

func (c *Client) ListCollections(ctx context.Context) ([]Collection, error) {
	var out []Collection
	if err := c.do(ctx, http.MethodGet, "/api/v1/collections", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Update(ctx context.Context, collectionID string, req UpdateRequest) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/api/v1/collections/%s/update", collectionID), req, nil)
}

// Delete removes entries by id or filter. The server returns the deleted ids,
// which are discarded.
func (c *Client) Delete(ctx context.Context, collectionID string, req DeleteRequest) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/api/v1/collections/%s/delete", collectionID), req, nil)
}

func (c *Client) Count(ctx context.Context, collectionID string) (int, error) {
	var count int
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/v1/collections/%s/count", collectionID), nil, &count); err != nil {
		return 0, err
	}
	return count, nil
}

func (c *Client) Get(ctx context.Context, collectionID string, req GetRequest) (*GetResponse, error) {
	var out GetResponse
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/v1/collections/%s/get", collectionID), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, in interface{}, out interface{}) error {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return fmt.Errorf("invalid base url: %w", err)
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	u.RawPath = strings.TrimSuffix(u.EscapedPath(), "/") + path
	u.Path, err = url.PathUnescape(u.RawPath)
	if err != nil {
		return fmt.Errorf("invalid path %q: %w", path, err)
	}

	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(b)),
		}
	}

	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
