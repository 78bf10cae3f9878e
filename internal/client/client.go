// Package client talks to the generation API and drives the submit, retry and
// cancel flow a front end needs.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

const kindOverloaded = "overloaded"

// APIError is a non-2xx response from the API.
type APIError struct {
	Status  int
	Kind    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: status %d", e.Status)
	}
	return e.Message
}

// IsRetryable reports whether err signals transient model overload. The
// structured error kind wins; older servers only say so in the message.
func IsRetryable(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.Kind != "" {
		return apiErr.Kind == kindOverloaded
	}
	return strings.Contains(strings.ToLower(apiErr.Message), kindOverloaded)
}

type User struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

type Generation struct {
	ID             string    `json:"id"`
	Prompt         string    `json:"prompt"`
	Style          string    `json:"style"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	ImageURL       string    `json:"imageUrl"`
	ResultImageURL *string   `json:"resultImageUrl"`
}

// Terminal reports whether the generation finished.
func (g Generation) Terminal() bool {
	return g.Status == "completed" || g.Status == "failed"
}

type GenerationList struct {
	Generations []Generation `json:"generations"`
	Total       int          `json:"total"`
}

// GenerationInput is the payload of a create call. It is resent unchanged on
// every retry.
type GenerationInput struct {
	Prompt      string
	Style       string
	ImageName   string
	ContentType string
	Image       []byte
}

type envelope struct {
	Success   bool            `json:"success"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data"`
	ErrorKind string          `json:"error_kind"`
}

// Client is an API client. The bearer token from Signup or Login is kept and
// sent on later calls.
type Client struct {
	baseURL string
	http    *http.Client

	mu    sync.RWMutex
	token string
}

// New returns a client for baseURL. A nil httpClient uses a client with a
// 30 second timeout.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

type authData struct {
	User  User   `json:"user"`
	Token string `json:"token"`
}

func (c *Client) Signup(ctx context.Context, email, password string) (*User, error) {
	return c.authenticate(ctx, "/api/auth/signup", email, password)
}

func (c *Client) Login(ctx context.Context, email, password string) (*User, error) {
	return c.authenticate(ctx, "/api/auth/login", email, password)
}

func (c *Client) authenticate(ctx context.Context, path, email, password string) (*User, error) {
	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return nil, err
	}
	var out authData
	if err := c.do(ctx, http.MethodPost, path, "application/json", bytes.NewReader(body), &out); err != nil {
		return nil, err
	}
	c.SetToken(out.Token)
	return &out.User, nil
}

func (c *Client) Me(ctx context.Context) (*User, error) {
	var out struct {
		User User `json:"user"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/auth/me", "", nil, &out); err != nil {
		return nil, err
	}
	return &out.User, nil
}

// CreateGeneration uploads the image and prompt. Cancelling ctx aborts the
// request in flight.
func (c *Client) CreateGeneration(ctx context.Context, in GenerationInput) (*Generation, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("prompt", in.Prompt); err != nil {
		return nil, err
	}
	if err := mw.WriteField("style", in.Style); err != nil {
		return nil, err
	}
	name := in.ImageName
	if name == "" {
		name = "image"
	}
	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename=%q`, name))
	h.Set("Content-Type", in.ContentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(in.Image); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	var out struct {
		Generation Generation `json:"generation"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/generations", mw.FormDataContentType(), &buf, &out); err != nil {
		return nil, err
	}
	return &out.Generation, nil
}

func (c *Client) ListGenerations(ctx context.Context, limit int) (*GenerationList, error) {
	path := "/api/generations"
	if limit > 0 {
		path += "?" + url.Values{"limit": {strconv.Itoa(limit)}}.Encode()
	}
	var out GenerationList
	if err := c.do(ctx, http.MethodGet, path, "", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetGeneration(ctx context.Context, id string) (*Generation, error) {
	var out struct {
		Generation Generation `json:"generation"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/generations/"+url.PathEscape(id), "", nil, &out); err != nil {
		return nil, err
	}
	return &out.Generation, nil
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env envelope
	decodeErr := json.NewDecoder(io.LimitReader(resp.Body, 4<<20)).Decode(&env)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode, Kind: env.ErrorKind, Message: env.Message}
		if decodeErr != nil {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}
	if decodeErr != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, decodeErr)
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode %s %s data: %w", method, path, err)
		}
	}
	return nil
}
