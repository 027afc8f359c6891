package restapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const APIPrefix = "/api/v1"

var (
	ErrValidation         = errors.New("validation failed")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrDuplicate          = errors.New("resource already exists")
	ErrNotFound           = errors.New("resource not found")
	ErrServer             = errors.New("server error")
)

type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// APIError carries the status and message the backend answered with. It
// unwraps to one of the package sentinels.
type APIError struct {
	Status  int
	Message string
	kind    error
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%v (status %d)", e.kind, e.Status)
	}
	return fmt.Sprintf("%v (status %d): %s", e.kind, e.Status, e.Message)
}

func (e *APIError) Unwrap() error { return e.kind }

// BaseURL picks the local API origin when running on a loopback host and the
// deployed origin otherwise.
func BaseURL(hostname, local, deployed string) string {
	origin := deployed
	if isLoopback(hostname) {
		origin = local
	}
	return strings.TrimRight(origin, "/") + APIPrefix
}

func isLoopback(hostname string) bool {
	host := hostname
	if h, _, err := net.SplitHostPort(hostname); err == nil {
		host = h
	}
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(strings.Trim(host, "[]"))
	return ip != nil && ip.IsLoopback()
}

// NewHTTPClient returns a client that keeps the session cookies the backend
// sets on login.
func NewHTTPClient(timeout time.Duration) (*http.Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return &http.Client{Jar: jar, Timeout: timeout}, nil
}

type Client struct {
	baseURL  string
	client   HTTPClient
	validate *validator.Validate
}

func NewClient(baseURL string, client HTTPClient) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   client,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (c *Client) check(v any) error {
	if err := c.validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		log.Printf("Error calling %s %s: %v", method, path, err)
		return fmt.Errorf("%w: %v", ErrServer, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return statusError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s %s: %v", ErrServer, method, path, err)
	}
	return nil
}

func statusError(resp *http.Response) error {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(raw, &body); err != nil {
		body.Message = strings.TrimSpace(string(raw))
	}
	if body.Message == "" {
		body.Message = body.Error
	}

	apiErr := &APIError{Status: resp.StatusCode, Message: body.Message}
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		apiErr.kind = ErrInvalidCredentials
	case resp.StatusCode == http.StatusConflict:
		apiErr.kind = ErrDuplicate
	case resp.StatusCode == http.StatusNotFound:
		apiErr.kind = ErrNotFound
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity:
		apiErr.kind = ErrValidation
	default:
		apiErr.kind = ErrServer
	}
	return apiErr
}
