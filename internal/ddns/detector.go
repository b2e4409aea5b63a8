package ddns

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/clbanning/mxj/v2"
)

// maxEchoBody caps how much of an echo response is read.
const maxEchoBody = 4 << 10

var (
	errBadStatus      = errors.New("unexpected http status")
	errUnexpectedBody = errors.New("unexpected response body")
)

// Detector resolves the caller's current public address.
type Detector interface {
	Detect(ctx context.Context) (string, error)
}

// HTTPClient defines the http.Client subset required by the detector and publisher.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Endpoint is an address-echo service. When Field is set the response is
// decoded as JSON (or XML) and the value at that dotted path is the address.
type Endpoint struct {
	URL   string `json:"url" yaml:"url"`
	Field string `json:"field,omitempty" yaml:"field,omitempty"`
}

// DefaultEndpoints is the fixed default query order.
var DefaultEndpoints = []Endpoint{
	{URL: "https://api.ipify.org"},
	{URL: "https://icanhazip.com"},
	{URL: "https://ifconfig.me/ip"},
}

// WebDetector queries echo endpoints in order; the first usable body wins.
type WebDetector struct {
	Endpoints []Endpoint
	Client    HTTPClient
}

// NewWebDetector returns a detector over endpoints, falling back to
// DefaultEndpoints when none are given.
func NewWebDetector(client HTTPClient, endpoints ...Endpoint) *WebDetector {
	if len(endpoints) == 0 {
		endpoints = append([]Endpoint(nil), DefaultEndpoints...)
	}
	return &WebDetector{Endpoints: endpoints, Client: client}
}

// Detect tries each endpoint exactly once, in order.
func (d *WebDetector) Detect(ctx context.Context) (string, error) {
	var errs []error
	for _, ep := range d.Endpoints {
		addr, err := d.query(ctx, ep)
		if err == nil {
			return addr, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", ep.URL, err))
		if ctx.Err() != nil {
			break
		}
	}
	if len(errs) == 0 {
		return "", fmt.Errorf("%w: no endpoints configured", ErrDetectionFailed)
	}
	return "", fmt.Errorf("%w: %w", ErrDetectionFailed, errors.Join(errs...))
}

func (d *WebDetector) query(ctx context.Context, ep Endpoint) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ep.URL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := d.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: %d", errBadStatus, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxEchoBody))
	if err != nil {
		return "", err
	}
	if !utf8.Valid(body) {
		return "", fmt.Errorf("%w: not utf-8", errUnexpectedBody)
	}

	var addr string
	if ep.Field == "" {
		addr = strings.TrimSpace(string(body))
	} else {
		addr, err = extractField(body, resp.Header.Get("Content-Type"), ep.Field)
		if err != nil {
			return "", err
		}
	}
	if addr == "" {
		return "", fmt.Errorf("%w: empty", errUnexpectedBody)
	}
	return addr, nil
}

// extractField pulls a string at a dotted path out of a JSON or XML document.
func extractField(body []byte, contentType, field string) (string, error) {
	var (
		m   mxj.Map
		err error
	)
	mediaType, _, _ := mime.ParseMediaType(contentType)
	if strings.HasSuffix(mediaType, "xml") {
		m, err = mxj.NewMapXml(body)
	} else {
		m, err = mxj.NewMapJson(body)
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", errUnexpectedBody, err)
	}
	v, err := m.ValueForPathString(field)
	if err != nil {
		return "", fmt.Errorf("%w: field %q: %v", errUnexpectedBody, field, err)
	}
	return strings.TrimSpace(v), nil
}
