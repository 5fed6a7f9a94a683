// Package client implements the IntegreSQL lifecycle protocol (templates and test databases).
// Every response is translated deterministically into either a success payload or an *Error
// of a well-known ErrorKind, the client itself never retries.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/allaboutapps/integresql-client-go/pkg/db"
	"github.com/allaboutapps/integresql-client-go/pkg/util"
)

// statusKinds maps the non-2xx statuses an operation knows about to their outcome.
// Statuses missing from the map are reported as KindUnexpectedProtocolState.
type statusKinds map[int]ErrorKind

var (
	initializeTemplateStatus = statusKinds{
		http.StatusServiceUnavailable:  KindBackendUnavailable,
		http.StatusInternalServerError: KindBackendUnavailable,
	}
	templateStatus = statusKinds{
		http.StatusNotFound:            KindTemplateNotFound,
		http.StatusServiceUnavailable:  KindBackendUnavailable,
		http.StatusInternalServerError: KindBackendUnavailable,
	}
	getTestDatabaseStatus = statusKinds{
		http.StatusNotFound:            KindTemplateNotFound,
		http.StatusGone:                KindTemplateDiscarded,
		http.StatusServiceUnavailable:  KindBackendUnavailable,
		http.StatusInternalServerError: KindBackendUnavailable,
	}
	testDatabaseStatus = statusKinds{
		http.StatusNotFound:           KindTemplateNotFound,
		http.StatusServiceUnavailable: KindBackendUnavailable,
	}
	adminStatus = statusKinds{
		http.StatusServiceUnavailable: KindBackendUnavailable,
	}
)

type Client struct {
	baseURL *url.URL
	client  *http.Client
	config  ClientConfig
}

func New(config ClientConfig) (*Client, error) {
	c := &Client{
		baseURL: nil,
		client:  nil,
		config:  config,
	}

	defaultConfig := DefaultClientConfigFromEnv()

	if len(c.config.BaseURL) == 0 {
		c.config.BaseURL = defaultConfig.BaseURL
	}

	if len(c.config.APIVersion) == 0 {
		c.config.APIVersion = defaultConfig.APIVersion
	}

	u, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid integresql base URL %q: %w", c.config.BaseURL, err)
	}

	if len(u.Scheme) == 0 || len(u.Host) == 0 {
		return nil, fmt.Errorf("invalid integresql base URL %q: scheme and host are required", c.config.BaseURL)
	}

	// accept base URLs which already include the version, e.g. http://localhost:5000/api/v1/
	p := strings.TrimSuffix(u.Path, "/")
	if path.Base(p) != c.config.APIVersion {
		p = path.Join(p, c.config.APIVersion)
	}
	c.baseURL = u.ResolveReference(&url.URL{Path: p})

	if c.config.HTTPClient != nil {
		c.client = c.config.HTTPClient
	} else {
		c.client = &http.Client{Timeout: c.config.Timeout}
	}

	return c, nil
}

func DefaultClientFromEnv() (*Client, error) {
	return New(DefaultClientConfigFromEnv())
}

// BaseURL returns the versioned API root all requests are sent to.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// InitializeTemplate reserves the template for hash. If the caller now owns the template,
// the template database is returned with owned=true and the caller is expected to seed it and
// call FinalizeTemplate (or DiscardTemplate on failure).
// If another builder already owns (or finished) the template, owned=false and no error is returned.
func (c *Client) InitializeTemplate(ctx context.Context, hash string) (template db.TemplateDatabase, owned bool, err error) {
	const op = "initialize template"

	payload := map[string]string{"hash": hash}

	req, err := c.newRequest(ctx, http.MethodPost, payload, "templates")
	if err != nil {
		return template, false, err
	}

	resp, body, err := c.do(req, op, hash)
	if err != nil {
		return template, false, err
	}

	if resp.StatusCode == http.StatusLocked {
		return template, false, nil
	}

	if err := c.checkStatus(op, hash, resp, body, initializeTemplateStatus); err != nil {
		return template, false, err
	}

	if err := c.decode(op, hash, resp, body, &template); err != nil {
		return template, false, err
	}

	return template, true, nil
}

// FinalizeTemplate marks the template as ready, test databases may be requested afterwards.
func (c *Client) FinalizeTemplate(ctx context.Context, hash string) error {
	return c.call(ctx, "finalize template", hash, http.MethodPut, templateStatus, "templates", url.PathEscape(hash))
}

// DiscardTemplate drops the template (and all test databases based on it).
func (c *Client) DiscardTemplate(ctx context.Context, hash string) error {
	return c.call(ctx, "discard template", hash, http.MethodDelete, templateStatus, "templates", url.PathEscape(hash))
}

// GetTestDatabase returns a fresh, isolated copy of a finalized template.
func (c *Client) GetTestDatabase(ctx context.Context, hash string) (db.TestDatabase, error) {
	const op = "get test database"

	var test db.TestDatabase

	req, err := c.newRequest(ctx, http.MethodGet, nil, "templates", url.PathEscape(hash), "tests")
	if err != nil {
		return test, err
	}

	resp, body, err := c.do(req, op, hash)
	if err != nil {
		return test, err
	}

	if err := c.checkStatus(op, hash, resp, body, getTestDatabaseStatus); err != nil {
		return test, err
	}

	if err := c.decode(op, hash, resp, body, &test); err != nil {
		return test, err
	}

	return test, nil
}

// ReturnTestDatabase returns the test database to the pool without any cleanup, so it will be
// handed out again as is. Callers must leave the database in the state they received it.
func (c *Client) ReturnTestDatabase(ctx context.Context, hash string, id int) error {
	return c.call(ctx, "return test database", hash, http.MethodDelete, testDatabaseStatus, "templates", url.PathEscape(hash), "tests", strconv.Itoa(id))
}

// RecreateTestDatabase returns the test database to the pool and has integresql recreate it
// from the template before it is handed out again.
func (c *Client) RecreateTestDatabase(ctx context.Context, hash string, id int) error {
	return c.call(ctx, "recreate test database", hash, http.MethodPost, testDatabaseStatus, "templates", url.PathEscape(hash), "tests", strconv.Itoa(id), "recreate")
}

// ResetAllTracking drops all templates and test databases tracked by integresql.
func (c *Client) ResetAllTracking(ctx context.Context) error {
	return c.call(ctx, "reset all tracking", "", http.MethodDelete, adminStatus, "admin", "templates")
}

func (c *Client) call(ctx context.Context, op string, hash string, method string, kinds statusKinds, endpoint ...string) error {
	req, err := c.newRequest(ctx, method, nil, endpoint...)
	if err != nil {
		return err
	}

	resp, body, err := c.do(req, op, hash)
	if err != nil {
		return err
	}

	return c.checkStatus(op, hash, resp, body, kinds)
}

// newRequest builds a request against the versioned API root. endpoint elements must already be path escaped.
func (c *Client) newRequest(ctx context.Context, method string, body interface{}, endpoint ...string) (*http.Request, error) {
	u := c.baseURL.JoinPath(endpoint...)

	var buf io.ReadWriter
	if body != nil {
		buf = new(bytes.Buffer)
		if err := json.NewEncoder(buf).Encode(body); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), buf)
	if err != nil {
		return nil, err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json; charset=UTF-8")
	}

	req.Header.Set("Accept", "application/json")

	return req, nil
}

// do sends the request and reads the whole body, so it can be decoded or captured for errors.
func (c *Client) do(req *http.Request, op string, hash string) (*http.Response, []byte, error) {
	log := util.LogFromContext(req.Context()).With().
		Str("op", op).
		Str("method", req.Method).
		Str("url", req.URL.String()).
		Logger()

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		// cancellation by the caller is not an outage of the service
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, nil, fmt.Errorf("%s: %w", op, ctxErr)
		}

		log.Debug().Err(err).Msg("integresql request failed")

		return nil, nil, &Error{
			Kind:    KindServiceUnreachable,
			Op:      op,
			Hash:    hash,
			BaseURL: c.BaseURL(),
			Err:     err,
		}
	}

	// body must always be closed
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, &Error{
			Kind:       KindServiceUnreachable,
			Op:         op,
			Hash:       hash,
			BaseURL:    c.BaseURL(),
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("failed to read response body: %w", err),
		}
	}

	log.Debug().
		Int("status", resp.StatusCode).
		Dur("duration_ms", time.Since(start)).
		Msg("integresql request completed")

	return resp, body, nil
}

func (c *Client) checkStatus(op string, hash string, resp *http.Response, body []byte, kinds statusKinds) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	kind, ok := kinds[resp.StatusCode]
	if !ok {
		kind = KindUnexpectedProtocolState
	}

	return &Error{
		Kind:       kind,
		Op:         op,
		Hash:       hash,
		BaseURL:    c.BaseURL(),
		StatusCode: resp.StatusCode,
		Body:       string(bytes.TrimSpace(body)),
	}
}

func (c *Client) decode(op string, hash string, resp *http.Response, body []byte, v interface{}) error {
	err := json.Unmarshal(body, v)
	if err == nil && len(body) > 0 {
		return nil
	}

	if err == nil {
		err = errors.New("empty response body")
	}

	return &Error{
		Kind:       KindUnexpectedProtocolState,
		Op:         op,
		Hash:       hash,
		BaseURL:    c.BaseURL(),
		StatusCode: resp.StatusCode,
		Body:       string(body),
		Err:        fmt.Errorf("failed to decode response: %w", err),
	}
}
