package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const DefaultSerperBaseURL = "https://google.serper.dev"

type SerperClient struct {
	client  *http.Client
	apiKey  string
	baseURL string
}

// NewSerperClient creates a client for the Serper search, maps and
// autocomplete endpoints
func NewSerperClient(client *http.Client, apiKey, baseURL string) *SerperClient {
	if client == nil {
		client = &http.Client{}
	}
	if baseURL == "" {
		baseURL = DefaultSerperBaseURL
	}
	return &SerperClient{
		client:  client,
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (s *SerperClient) Search(ctx context.Context, req *WebRequest) (*WebResponse, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, ErrEmptyQuery
	}
	var resp WebResponse
	if err := s.post(ctx, "/search", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (s *SerperClient) Maps(ctx context.Context, req *MapsRequest) (*MapsResponse, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, ErrEmptyQuery
	}
	var resp MapsResponse
	if err := s.post(ctx, "/maps", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (s *SerperClient) Autocomplete(ctx context.Context, req *AutocompleteRequest) ([]string, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, ErrEmptyQuery
	}
	var resp struct {
		Suggestions []json.RawMessage `json:"suggestions"`
	}
	if err := s.post(ctx, "/autocomplete", req, &resp); err != nil {
		return nil, err
	}

	suggestions := make([]string, 0, len(resp.Suggestions))
	for _, raw := range resp.Suggestions {
		var item struct {
			Value string `json:"value"`
		}
		if err := json.Unmarshal(raw, &item); err == nil && item.Value != "" {
			suggestions = append(suggestions, item.Value)
			continue
		}
		var plain string
		if err := json.Unmarshal(raw, &plain); err == nil && plain != "" {
			suggestions = append(suggestions, plain)
		}
	}
	return suggestions, nil
}

func (s *SerperClient) post(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("X-API-KEY", s.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{StatusCode: resp.StatusCode, Body: string(msg)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", ErrDecodeResponse, err)
	}
	return nil
}
