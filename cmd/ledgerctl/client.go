package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	collectionhandler "visitledger/internal/collection/handler"
	visitcardhandler "visitledger/internal/visitcard/handler"
	dErrors "visitledger/pkg/domain-errors"
	"visitledger/pkg/platform/httputil"
)

// Client talks to a running visitledger server.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *Client) IssueVisitCard(ctx context.Context, req visitcardhandler.IssueRequest) (string, error) {
	var resp visitcardhandler.IssueResponse
	if err := c.do(ctx, http.MethodPost, "/visit-cards", req, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

func (c *Client) VisitCard(ctx context.Context, credentialID string) (*visitcardhandler.CredentialResponse, error) {
	var resp visitcardhandler.CredentialResponse
	if err := c.do(ctx, http.MethodGet, "/visit-cards/"+credentialID, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Collection(ctx context.Context) (*collectionhandler.CollectionResponse, error) {
	var resp collectionhandler.CollectionResponse
	if err := c.do(ctx, http.MethodGet, "/collection", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Initialize(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/collection/initialize", nil, nil)
}

func (c *Client) Distribute(ctx context.Context, req collectionhandler.BatchRequest) error {
	return c.do(ctx, http.MethodPost, "/collection/distribute", req, nil)
}

func (c *Client) Holdings(ctx context.Context, holder string) (*collectionhandler.HoldingsResponse, error) {
	var resp collectionhandler.HoldingsResponse
	if err := c.do(ctx, http.MethodGet, "/collection/balances/"+holder, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// do sends body as JSON and decodes a 2xx answer into out. Error envelopes
// come back as domain errors carrying the server's code.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var envelope httputil.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil || envelope.Error == "" {
			return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
		}
		return dErrors.New(dErrors.Code(envelope.Error), envelope.ErrorDescription)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
