// Package remote talks to a records gateway over HTTP on behalf of a player.
package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"cosmotablas-service/internal/domain"
	"cosmotablas-service/internal/wire"
	"github.com/goccy/go-json"
)

// StatusError is returned when the gateway answers with a non-success status.
type StatusError struct {
	Status int
	Reason string
}

func (e *StatusError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("gateway returned %d", e.Status)
	}
	return fmt.Sprintf("gateway returned %d: %s", e.Status, e.Reason)
}

// Client implements app.RemoteGateway.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("remote url is empty")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("parse remote url: %w", err)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}, nil
}

func (c *Client) SubmitRecord(ctx context.Context, rec domain.AttemptRecord) error {
	var created wire.RecordCreated
	return c.do(ctx, http.MethodPost, "/records", wire.NewRecordRequest(rec), &created)
}

func (c *Client) SubmitMistakes(ctx context.Context, keys []domain.QuestionKey) error {
	var accepted wire.MistakesAccepted
	return c.do(ctx, http.MethodPost, "/mistakes", wire.NewMistakesRequest(keys), &accepted)
}

func (c *Client) AllTables(ctx context.Context) (domain.TableBoards, error) {
	var out wire.TablesResponse
	if err := c.do(ctx, http.MethodGet, "/leaderboard", nil, &out); err != nil {
		return nil, err
	}
	return out.Boards(), nil
}

func (c *Client) TableBoard(ctx context.Context, tableNumber int, mode domain.BoardMode) ([]domain.AttemptRecord, error) {
	q := url.Values{}
	q.Set("table", strconv.Itoa(tableNumber))
	if mode == domain.BoardModeAll {
		q.Set("mode", string(mode))
	}
	var out wire.RecordsResponse
	if err := c.do(ctx, http.MethodGet, "/leaderboard?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return wire.ToRecords(out.Records), nil
}

func (c *Client) TopMistakes(ctx context.Context) ([]domain.MistakeEntry, error) {
	var out wire.MistakesResponse
	if err := c.do(ctx, http.MethodGet, "/mistakes", nil, &out); err != nil {
		return nil, err
	}
	return out.Mistakes, nil
}

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
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		var e wire.ErrorResponse
		_ = json.NewDecoder(io.LimitReader(res.Body, 4096)).Decode(&e)
		return &StatusError{Status: res.StatusCode, Reason: e.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
