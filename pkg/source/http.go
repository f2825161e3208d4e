package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/oakwood-commons/ccs/pkg/loader"
	"github.com/oakwood-commons/ccs/pkg/tree"
)

const (
	defaultHTTPTimeout = 30 * time.Second
	maxBodyBytes       = 16 << 20
)

// HTTP fetches a state document from a remote endpoint using a bearer token.
// It is read-only.
type HTTP struct {
	name      string
	url       string
	tokenFile string
	client    *http.Client
	maxBody   int64
}

// HTTPOption configures an HTTP source.
type HTTPOption func(*HTTP)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(h *HTTP) {
		h.client = c
	}
}

// WithMaxBodyBytes limits the accepted response size. Larger bodies fail
// the fetch.
func WithMaxBodyBytes(n int64) HTTPOption {
	return func(h *HTTP) {
		h.maxBody = n
	}
}

// NewHTTP returns an HTTP source. An empty tokenFile, or one that does not
// exist yet, sends no Authorization header.
func NewHTTP(name, url, tokenFile string, opts ...HTTPOption) *HTTP {
	h := &HTTP{
		name:      name,
		url:       url,
		tokenFile: tokenFile,
		client:    &http.Client{Timeout: defaultHTTPTimeout},
		maxBody:   maxBodyBytes,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *HTTP) Name() string { return h.name }

// Fetch performs a GET and returns the body with the format announced by
// Content-Type, falling back to sniffing the payload.
func (h *HTTP) Fetch(ctx context.Context) ([]byte, loader.Format, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url, nil)
	if err != nil {
		return nil, "", &tree.RetrievalError{Source: h.name, Err: err}
	}
	token, err := h.token()
	if err != nil {
		return nil, "", &tree.AuthenticationError{Source: h.name, Err: err}
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Accept", "application/json, application/yaml;q=0.9, */*;q=0.5")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, "", &tree.RetrievalError{Source: h.name, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, h.maxBody+1))
	if err != nil {
		return nil, "", &tree.RetrievalError{Source: h.name, Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, "", &tree.AuthenticationError{Source: h.name, Err: statusError(resp)}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, "", &tree.RetrievalError{Source: h.name, Err: statusError(resp)}
	}
	if int64(len(body)) > h.maxBody {
		return nil, "", &tree.RetrievalError{Source: h.name, Err: fmt.Errorf("response body exceeds %d bytes", h.maxBody)}
	}
	return body, formatFromContentType(resp.Header.Get("Content-Type"), body), nil
}

func (h *HTTP) token() (string, error) {
	if h.tokenFile == "" {
		return "", nil
	}
	data, err := os.ReadFile(h.tokenFile)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading token file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

func statusError(resp *http.Response) error {
	return fmt.Errorf("unexpected status %s", resp.Status)
}

func formatFromContentType(ct string, body []byte) loader.Format {
	mt, _, err := mime.ParseMediaType(ct)
	if err == nil {
		switch {
		case mt == "application/json" || strings.HasSuffix(mt, "+json"):
			return loader.FormatJSON
		case mt == "application/yaml" || mt == "application/x-yaml" || mt == "text/yaml":
			return loader.FormatYAML
		case mt == "application/toml":
			return loader.FormatTOML
		case mt == "application/cbor":
			return loader.FormatCBOR
		}
	}
	return loader.Sniff(body)
}
