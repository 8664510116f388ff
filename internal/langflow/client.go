// Package langflow relays uploads and chat messages to flows running on a
// Langflow server, where splitting, embedding and retrieval happen.
package langflow

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hetulpatel/chroma-auditor/internal/logging"
)

const defaultBaseURL = "http://127.0.0.1:7860"

// Config names the flows and the components whose inputs get tweaked.
type Config struct {
	BaseURL string
	Timeout time.Duration

	IngestionFlowID    string
	FileInputComponent string

	ChatFlowID           string
	ChatInputComponent   string
	ChromaQueryComponent string
	// PersistDir and Collection are passed to the chat flow's Chroma query
	// component so retrieval reads the store this console manages.
	PersistDir string
	Collection string
	NResults   int
}

type Client struct {
	cfg  Config
	http *http.Client
}

func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 300 * time.Second
	}
	if cfg.NResults <= 0 {
		cfg.NResults = 4
	}
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}}
}

// RunRequest is the body of POST /api/v1/run/<flow>.
type RunRequest struct {
	InputValue string         `json:"input_value"`
	InputType  string         `json:"input_type"`
	OutputType string         `json:"output_type"`
	Tweaks     map[string]any `json:"tweaks,omitempty"`
}

type RunResponse struct {
	Outputs []struct {
		Outputs []struct {
			Results map[string]json.RawMessage `json:"results"`
		} `json:"outputs"`
	} `json:"outputs"`
}

// Run executes a flow synchronously.
func (c *Client) Run(ctx context.Context, flowID string, req RunRequest) (*RunResponse, error) {
	if flowID == "" {
		return nil, fmt.Errorf("langflow: flow id is required")
	}
	u, err := url.Parse(c.cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/api/v1/run/" + flowID
	u.RawQuery = "stream=false"

	buf, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(buf))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("langflow run %s: %d - %s", flowID, resp.StatusCode, strings.TrimSpace(string(b)))
	}
	var out RunResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode langflow response: %w", err)
	}
	return &out, nil
}

type fileData struct {
	Path    string `json:"path"`
	Content string `json:"content"`
	Name    string `json:"name"`
}

// IngestFile sends a file, base64 encoded, into the ingestion flow's file
// input component.
func (c *Client) IngestFile(ctx context.Context, name string, content []byte) error {
	fd := fileData{
		Path:    name,
		Content: base64.StdEncoding.EncodeToString(content),
		Name:    name,
	}
	input, err := json.Marshal(fd)
	if err != nil {
		return err
	}
	req := RunRequest{
		InputValue: string(input),
		InputType:  "text",
		OutputType: "text",
		Tweaks:     map[string]any{c.cfg.FileInputComponent: fd},
	}
	logging.Infof("[langflow] sending %s (%d bytes) to flow %s", name, len(content), c.cfg.IngestionFlowID)
	_, err = c.Run(ctx, c.cfg.IngestionFlowID, req)
	return err
}

// ChatFilter limits retrieval to one file or one fileset.
type ChatFilter struct {
	File    string
	Fileset string
}

func (f ChatFilter) where() map[string]any {
	switch {
	case f.File != "":
		return map[string]any{"source_file": f.File}
	case f.Fileset != "":
		return map[string]any{"fileset": map[string]any{"$contains": f.Fileset}}
	default:
		return nil
	}
}

func (f ChatFilter) String() string {
	if f.File != "" {
		return "File: " + f.File
	}
	return "File Set: " + f.Fileset
}

// Chat sends message through the chat flow with retrieval restricted by
// filter and returns the model's reply.
func (c *Client) Chat(ctx context.Context, message string, filter ChatFilter) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", fmt.Errorf("langflow: empty message")
	}
	if filter.File == "" && filter.Fileset == "" {
		return "", fmt.Errorf("please select either a file or a file set to chat with")
	}
	reqID := uuid.NewString()[:8]
	start := time.Now()
	logging.Infof("[langflow %s] chat with %s", reqID, filter)

	req := RunRequest{
		InputValue: message,
		InputType:  "chat",
		OutputType: "chat",
		Tweaks: map[string]any{
			c.cfg.ChatInputComponent: map[string]any{"input": message},
			c.cfg.ChromaQueryComponent: map[string]any{
				"collection_name":   c.cfg.Collection,
				"persist_directory": c.cfg.PersistDir,
				"search_documents": map[string]any{
					"query":       message,
					"where":       filter.where(),
					"n_results":   c.cfg.NResults,
					"search_type": "similarity",
					"include":     []string{"documents", "metadatas", "distances"},
				},
			},
		},
	}
	resp, err := c.Run(ctx, c.cfg.ChatFlowID, req)
	if err != nil {
		return "", err
	}
	logging.Debugf("[langflow %s] response in %s", reqID, time.Since(start).Round(time.Millisecond))

	text := resp.messageText()
	if text == "" {
		return "", fmt.Errorf("no valid response received from the model")
	}
	return text, nil
}

// messageText digs outputs[0].outputs[0].results.message out of a run
// response. The message is either an object with a text field or a bare
// string depending on the flow's output component.
func (r *RunResponse) messageText() string {
	if r == nil || len(r.Outputs) == 0 || len(r.Outputs[0].Outputs) == 0 {
		return ""
	}
	raw, ok := r.Outputs[0].Outputs[0].Results["message"]
	if !ok {
		return ""
	}
	var obj struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Text != "" {
		return obj.Text
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}
