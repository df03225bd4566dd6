package persistence

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"certcanvas/core"
)

const templatesPath = "/templates/simple"

// RemoteClient talks to the remote template store. Responses are run
// through normalization, so the remote side may serve canonical or legacy
// payloads.
type RemoteClient struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewRemoteClient builds a client for the store at baseURL. The bearer
// token may be empty; it is sent as-is either way.
func NewRemoteClient(baseURL, token string, client *http.Client) *RemoteClient {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &RemoteClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  client,
	}
}

func (c *RemoteClient) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.client.Do(req)
}

// Create saves a document and returns the store-confirmed copy.
func (c *RemoteClient) Create(ctx context.Context, doc core.Document) (core.Document, error) {
	payload, err := json.Marshal(doc)
	if err != nil {
		return core.Document{}, fmt.Errorf("marshal document %s: %w", doc.ID, err)
	}

	resp, err := c.do(ctx, http.MethodPost, templatesPath, payload)
	if err != nil {
		return core.Document{}, fmt.Errorf("save document %s: %w", doc.ID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return core.Document{}, fmt.Errorf("save document %s: unexpected status %d", doc.ID, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return core.Document{}, fmt.Errorf("read save response for %s: %w", doc.ID, err)
	}
	saved, err := core.NormalizeRaw(data)
	if err != nil {
		// An unparseable body on a 2xx is still a successful save; the
		// document we sent is the best-known state.
		return doc, nil
	}
	return saved, nil
}

// Get fetches a document by id. A 404 returns (nil, nil): absence on the
// remote is not a failure, the caller falls through to the local cache.
func (c *RemoteClient) Get(ctx context.Context, id string) (*core.Document, error) {
	resp, err := c.do(ctx, http.MethodGet, templatesPath+"/"+id, nil)
	if err != nil {
		return nil, fmt.Errorf("load document %s: %w", id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("load document %s: unexpected status %d", id, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read document %s: %w", id, err)
	}
	doc, err := core.NormalizeRaw(data)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// List fetches the remote collection, tolerating either a bare JSON array
// or an {items} envelope.
func (c *RemoteClient) List(ctx context.Context) ([]core.Document, error) {
	resp, err := c.do(ctx, http.MethodGet, templatesPath, nil)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list documents: unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read document list: %w", err)
	}
	return decodeDocumentList(data)
}

func decodeDocumentList(data []byte) ([]core.Document, error) {
	var entries []map[string]any

	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var envelope struct {
			Items []map[string]any `json:"items"`
		}
		if err := json.Unmarshal(data, &envelope); err != nil {
			return nil, fmt.Errorf("parse document list envelope: %w", err)
		}
		entries = envelope.Items
	} else {
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil, fmt.Errorf("parse document list: %w", err)
		}
	}

	docs := make([]core.Document, 0, len(entries))
	for _, entry := range entries {
		docs = append(docs, core.NormalizeDocument(entry))
	}
	return docs, nil
}
