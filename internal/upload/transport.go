package upload

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rbright/shutter/internal/apperror"
)

// Request describes one transfer handed to a Transport.
type Request struct {
	Body     io.Reader
	Size     int64
	Name     string
	Category string
	MimeType string
}

// Result is the outcome of a successful transfer.
type Result struct {
	Location string
}

// Exchange performs a prepared transfer. It runs off the control loop.
type Exchange func() (Result, error)

// Transport builds authenticated transfers. Prepare runs on the control loop
// and must not block; the returned Exchange does the network work.
type Transport interface {
	Prepare(ctx context.Context, req Request) (Exchange, error)
}

const maxResponseBody = 64 << 10

// defaultClient has no overall deadline so large recordings on slow links
// are bounded only by the upload's cancel context. A silent server still
// times out once the body is sent.
var defaultClient = &http.Client{Transport: newClientTransport()}

func newClientTransport() *http.Transport {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = 2 * time.Minute
	return transport
}

// HTTPTransport posts files to `{BaseURL}/upload?category=`.
type HTTPTransport struct {
	BaseURL  string
	UserName string
	Password string
	Client   *http.Client
}

// Prepare builds the POST request with Basic authorization.
func (t HTTPTransport) Prepare(ctx context.Context, req Request) (Exchange, error) {
	base := strings.TrimRight(strings.TrimSpace(t.BaseURL), "/")
	if base == "" {
		return nil, apperror.Configuration.SetMessage("upload service url is empty")
	}
	endpoint := base + "/upload?category=" + url.QueryEscape(req.Category)

	var body io.Reader = http.NoBody
	if req.Size > 0 {
		body = io.NopCloser(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return nil, apperror.Configuration.SetMessage("build upload request").Wrap(err)
	}
	httpReq.ContentLength = req.Size
	httpReq.Header.Set("Content-Type", req.MimeType)
	httpReq.SetBasicAuth(t.UserName, t.Password)

	client := t.Client
	if client == nil {
		client = defaultClient
	}

	return func() (Result, error) {
		resp, err := client.Do(httpReq)
		if err != nil {
			return Result{}, apperror.Remote.SetMessage("upload request failed").Wrap(err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
		if err != nil {
			return Result{}, apperror.Remote.SetMessage("read upload response").Wrap(err)
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return Result{}, apperror.Remote.SetMessage(fmt.Sprintf(
				"upload rejected: %s (%s)", resp.Status, strings.TrimSpace(string(body)),
			))
		}
		return Result{Location: responseLocation(resp, body)}, nil
	}, nil
}

// responseLocation prefers the Location header, then a JSON url/location
// field, then a plain-text URL body.
func responseLocation(resp *http.Response, body []byte) string {
	if location := strings.TrimSpace(resp.Header.Get("Location")); location != "" {
		return location
	}

	var payload struct {
		URL      string `json:"url"`
		Location string `json:"location"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.URL != "" {
			return payload.URL
		}
		return payload.Location
	}

	text := strings.TrimSpace(string(body))
	if line, _, _ := strings.Cut(text, "\n"); strings.HasPrefix(line, "http://") || strings.HasPrefix(line, "https://") {
		return strings.TrimSpace(line)
	}
	return ""
}
