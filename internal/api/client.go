package api

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

	"github.com/DoyleJ11/lol-draft-canvas/internal/canvas"
)

// Route maps an op to its REST endpoint. The request body is always the op.
func Route(canvasID string, op Op) (method, path string) {
	base := "/canvases/" + url.PathEscape(canvasID)
	esc := url.PathEscape
	switch o := op.(type) {
	case RenameCanvas:
		return http.MethodPut, base + "/name"
	case SetViewport:
		return http.MethodPut, base + "/viewport"
	case CreateCard:
		return http.MethodPost, base + "/cards"
	case UpdateCard:
		return http.MethodPut, base + "/cards/" + esc(o.Card.ID)
	case DeleteCard:
		return http.MethodDelete, base + "/cards/" + esc(o.CardID)
	case MoveCard:
		return http.MethodPut, base + "/cards/" + esc(o.CardID) + "/position"
	case SetCardGroup:
		return http.MethodPut, base + "/cards/" + esc(o.CardID) + "/group"
	case CreateConnection:
		return http.MethodPost, base + "/connections"
	case UpdateConnection:
		return http.MethodPut, base + "/connections/" + esc(o.Connection.ID)
	case DeleteConnection:
		return http.MethodDelete, base + "/connections/" + esc(o.ConnectionID)
	case AddSource:
		return http.MethodPost, base + "/connections/" + esc(o.ConnectionID) + "/sources"
	case AddTarget:
		return http.MethodPost, base + "/connections/" + esc(o.ConnectionID) + "/targets"
	case CreateVertex:
		return http.MethodPost, base + "/connections/" + esc(o.ConnectionID) + "/vertices"
	case UpdateVertex:
		return http.MethodPut, base + "/connections/" + esc(o.ConnectionID) + "/vertices/" + esc(o.Vertex.ID)
	case DeleteVertex:
		return http.MethodDelete, base + "/connections/" + esc(o.ConnectionID) + "/vertices/" + esc(o.VertexID)
	case CreateGroup:
		return http.MethodPost, base + "/groups"
	case UpdateGroup:
		return http.MethodPut, base + "/groups/" + esc(o.GroupID)
	case DeleteGroup:
		return http.MethodDelete, base + "/groups/" + esc(o.GroupID)
	case MoveGroup:
		return http.MethodPut, base + "/groups/" + esc(o.GroupID) + "/position"
	case ResizeGroup:
		return http.MethodPut, base + "/groups/" + esc(o.GroupID) + "/size"
	}
	return "", ""
}

// Client is the networked Backend.
type Client struct {
	base string
	http *http.Client
}

func NewClient(baseURL string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{base: strings.TrimRight(baseURL, "/"), http: hc}
}

func (c *Client) CreateCanvas(ctx context.Context, snap canvas.Snapshot) error {
	return c.do(ctx, http.MethodPost, "/canvases", snap, nil)
}

func (c *Client) Snapshot(ctx context.Context, canvasID string) (canvas.Snapshot, error) {
	var snap canvas.Snapshot
	err := c.do(ctx, http.MethodGet, "/canvases/"+url.PathEscape(canvasID), nil, &snap)
	return snap, err
}

func (c *Client) Apply(ctx context.Context, canvasID string, op Op) error {
	method, path := Route(canvasID, op)
	if method == "" {
		return fmt.Errorf("%w: %T has no route", ErrInvalid, op)
	}
	return c.do(ctx, method, path, op, nil)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: %w: %s", method, path, statusErr(resp.StatusCode), strings.TrimSpace(string(msg)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func statusErr(code int) error {
	switch code {
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrConflict
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return ErrInvalid
	}
	return fmt.Errorf("unexpected status %d", code)
}

// StatusFor is the inverse of statusErr for server handlers.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrInvalid):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
