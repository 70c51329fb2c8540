// Package client provides the bearer-token HTTP transport for the remote
// file store API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ayxkaddd/FilesBoard/internal/logging"
	"github.com/ayxkaddd/FilesBoard/internal/metrics"
	"github.com/ayxkaddd/FilesBoard/pkg/protocol"
)

// TokenSource supplies the bearer token. It is consulted on every request,
// so a token change affects every request dispatched afterwards.
type TokenSource interface {
	Token() string
}

// StaticToken is a TokenSource that always returns the same token.
type StaticToken string

// Token implements TokenSource.
func (s StaticToken) Token() string { return string(s) }

// Client performs authenticated API calls. It never retries.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	tokens         TokenSource
	onUnauthorized func()
}

// Config holds client configuration.
type Config struct {
	BaseURL string
	// Timeout bounds a whole request. Zero means no timeout.
	Timeout time.Duration
	Tokens  TokenSource
	// OnUnauthorized runs before a 401 error is returned to the caller.
	OnUnauthorized func()
	// Transport overrides the underlying round tripper (tests).
	Transport http.RoundTripper
}

// New creates a new client.
func New(cfg Config) *Client {
	if cfg.Tokens == nil {
		cfg.Tokens = StaticToken("")
	}

	next := cfg.Transport
	if next == nil {
		next = &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:        100,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		}
	}

	return &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: logging.NewRoundTripper(next),
		},
		tokens:         cfg.Tokens,
		onUnauthorized: cfg.OnUnauthorized,
	}
}

// BaseURL returns the server base URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Multipart is a multipart/form-data request body. It is sent as-is with
// the content type produced by its writer.
type Multipart struct {
	contentType string
	body        io.ReadCloser
	done        chan struct{}
}

// NewFileUpload streams r as a single file field named field.
func NewFileUpload(field, filename string, r io.Reader) *Multipart {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	done := make(chan struct{})

	go func() {
		defer close(done)
		part, err := mw.CreateFormFile(field, filename)
		if err == nil {
			_, err = io.Copy(part, r)
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	return &Multipart{contentType: mw.FormDataContentType(), body: pr, done: done}
}

// Close stops the writer and waits until it no longer reads from the
// source, which the caller may then close.
func (m *Multipart) Close() error {
	err := m.body.Close()
	<-m.done
	return err
}

// Request issues method against path and decodes a JSON response into out
// (when out is non-nil). A *Multipart body is sent unmodified; any other
// non-nil body is JSON-encoded. Non-2xx responses return *HTTPError; a 401
// runs the OnUnauthorized hook first.
func (c *Client) Request(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	return c.do(ctx, method, path, query, body, out, true)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, out any, authHook bool) error {
	req, err := c.newRequest(ctx, method, path, query, body)
	if err != nil {
		return err
	}

	resp, err := c.send(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		he := newHTTPError(resp, method, path)
		if he.Status == http.StatusUnauthorized && authHook {
			c.unauthorized(method, path)
		}
		return he
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body any) (*http.Request, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var (
		reader      io.Reader
		contentType string
	)
	switch b := body.(type) {
	case nil:
	case *Multipart:
		reader = b.body
		contentType = b.contentType
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		if m, ok := body.(*Multipart); ok {
			m.body.Close()
		}
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	c.applyAuth(req)
	return req, nil
}

// unauthorized runs the re-authentication hook for a rejected request.
func (c *Client) unauthorized(method, path string) {
	metrics.RecordUnauthorized()
	logging.Warn("authentication rejected, login required",
		logging.String("method", method),
		logging.String("path", path),
	)
	if c.onUnauthorized != nil {
		c.onUnauthorized()
	}
}

// applyAuth adds the auth header to a request if a token is set.
func (c *Client) applyAuth(req *http.Request) {
	if token := c.tokens.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

func (c *Client) send(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordHTTPRequest(req.Method, req.URL.Path, 0, time.Since(start))
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	metrics.RecordHTTPRequest(req.Method, req.URL.Path, resp.StatusCode, time.Since(start))
	return resp, nil
}

// folderQuery returns query values scoped to folder.
func folderQuery(folder string) url.Values {
	q := url.Values{}
	q.Set("folder", folder)
	return q
}

// ListFiles returns the raw entry names of folder.
func (c *Client) ListFiles(ctx context.Context, folder string) ([]string, error) {
	var resp protocol.ListResponse
	if err := c.Request(ctx, http.MethodGet, protocol.PathFiles, folderQuery(folder), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Files, nil
}

// Preview returns the head of a text file.
func (c *Client) Preview(ctx context.Context, name, folder string) ([]string, error) {
	var resp protocol.PreviewResponse
	path := protocol.PathPreview + url.PathEscape(name)
	if err := c.Request(ctx, http.MethodGet, path, folderQuery(folder), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Preview, nil
}

// Upload sends one file into folder as a multipart form.
func (c *Client) Upload(ctx context.Context, folder, name string, r io.Reader) (*protocol.UploadResponse, error) {
	var resp protocol.UploadResponse
	body := NewFileUpload(protocol.UploadField, name, r)
	defer body.Close()
	if err := c.Request(ctx, http.MethodPost, protocol.PathUpload, folderQuery(folder), body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Delete removes a file or folder.
func (c *Client) Delete(ctx context.Context, folder, name string) error {
	path := protocol.PathFiles + "/" + url.PathEscape(name)
	return c.Request(ctx, http.MethodDelete, path, folderQuery(folder), nil, nil)
}

// Rename renames oldName to newName inside folder.
func (c *Client) Rename(ctx context.Context, folder, oldName, newName string) error {
	q := folderQuery(folder)
	q.Set("new_name", newName)
	path := protocol.PathRename + url.PathEscape(oldName)
	return c.Request(ctx, http.MethodPut, path, q, nil, nil)
}

// CreateFolder creates name inside folder.
func (c *Client) CreateFolder(ctx context.Context, folder, name string) error {
	q := folderQuery(folder)
	q.Set("folder_name", name)
	return c.Request(ctx, http.MethodPost, protocol.PathCreateFolder, q, nil, nil)
}

// GenerateTempToken mints a short-lived token scoped to one file.
func (c *Client) GenerateTempToken(ctx context.Context, folder, name string) (string, error) {
	var resp protocol.TempTokenResponse
	path := protocol.PathTempToken + url.PathEscape(name)
	if err := c.Request(ctx, http.MethodPost, path, folderQuery(folder), nil, &resp); err != nil {
		return "", err
	}
	if resp.TempToken == "" {
		return "", errors.New("server returned an empty temp token")
	}
	return resp.TempToken, nil
}

// MakeShort asks the server to shorten target. The result is a
// server-relative path.
func (c *Client) MakeShort(ctx context.Context, target string) (string, error) {
	var resp protocol.ShortURLResponse
	q := url.Values{}
	q.Set("url", target)
	if err := c.Request(ctx, http.MethodGet, protocol.PathMakeShort, q, nil, &resp); err != nil {
		return "", err
	}
	if resp.ShortURL == "" {
		return "", errors.New("server returned an empty short url")
	}
	return resp.ShortURL, nil
}

// RawFileURL returns the token-bearing URL of a file's raw content.
func (c *Client) RawFileURL(name, folder string) string {
	q := folderQuery(folder)
	q.Set("t", c.tokens.Token())
	return c.baseURL + protocol.PathPrivate + url.PathEscape(name) + "?" + q.Encode()
}

// PublicFileURL returns the public URL of a file, valid while tempToken is.
func PublicFileURL(origin, name, folder, tempToken string) string {
	q := folderQuery(folder)
	q.Set("t", tempToken)
	return strings.TrimSuffix(origin, "/") + protocol.PathPublic + url.PathEscape(name) + "?" + q.Encode()
}

// Download fetches a file's raw content. The caller must close the reader.
func (c *Client) Download(ctx context.Context, name, folder string) (io.ReadCloser, int64, error) {
	q := folderQuery(folder)
	q.Set("t", c.tokens.Token())
	req, err := c.newRequest(ctx, http.MethodGet, protocol.PathPrivate+url.PathEscape(name), q, nil)
	if err != nil {
		return nil, 0, err
	}

	resp, err := c.send(req)
	if err != nil {
		return nil, 0, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		he := newHTTPError(resp, req.Method, req.URL.Path)
		if he.Status == http.StatusUnauthorized {
			c.unauthorized(req.Method, req.URL.Path)
		}
		return nil, 0, he
	}
	return resp.Body, resp.ContentLength, nil
}
