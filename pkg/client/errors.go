package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ayxkaddd/FilesBoard/pkg/protocol"
)

// ErrUnauthorized matches any HTTPError with status 401.
var ErrUnauthorized = errors.New("unauthorized")

// HTTPError is returned for every non-2xx response.
type HTTPError struct {
	Status int
	Method string
	Path   string
	Detail string
}

func (e *HTTPError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("http error! status: %d (%s)", e.Status, e.Detail)
	}
	return fmt.Sprintf("http error! status: %d", e.Status)
}

// Is lets errors.Is(err, ErrUnauthorized) match 401 responses.
func (e *HTTPError) Is(target error) bool {
	return target == ErrUnauthorized && e.Status == http.StatusUnauthorized
}

// AsHTTPError checks if an error is an HTTPError and returns it.
func AsHTTPError(err error) (*HTTPError, bool) {
	var he *HTTPError
	if errors.As(err, &he) {
		return he, true
	}
	return nil, false
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	if he, ok := AsHTTPError(err); ok {
		return he.Status
	}
	return 0
}

// newHTTPError builds an HTTPError from a failed response, reading the
// FastAPI-style {"detail": ...} body when there is one.
func newHTTPError(resp *http.Response, method, path string) *HTTPError {
	he := &HTTPError{Status: resp.StatusCode, Method: method, Path: path}

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var errResp protocol.ErrorResponse
	if json.Unmarshal(data, &errResp) == nil && errResp.Detail != "" {
		he.Detail = errResp.Detail
	} else if ct := resp.Header.Get("Content-Type"); strings.HasPrefix(ct, "text/plain") {
		he.Detail = strings.TrimSpace(string(data))
	}
	return he
}
