package ddns

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// DefaultUpdateURL is the DuckDNS update endpoint.
const DefaultUpdateURL = "https://www.duckdns.org/update"

const userAgent = "NightGard-DDNS/1.0"

// Publisher pushes an address to the provider. It reports a boolean outcome;
// the error only carries the reason for logs and history.
type Publisher interface {
	Publish(ctx context.Context, domain, token, address string) (bool, error)
}

// DuckDNSPublisher speaks the DuckDNS GET update protocol.
type DuckDNSPublisher struct {
	UpdateURL string
	Client    HTTPClient
}

// NewDuckDNSPublisher returns a publisher for updateURL (DefaultUpdateURL if empty).
func NewDuckDNSPublisher(client HTTPClient, updateURL string) *DuckDNSPublisher {
	if updateURL == "" {
		updateURL = DefaultUpdateURL
	}
	return &DuckDNSPublisher{UpdateURL: updateURL, Client: client}
}

// Publish sends one update request. Success iff the trimmed body is "OK".
func (p *DuckDNSPublisher) Publish(ctx context.Context, domain, token, address string) (bool, error) {
	endpoint, err := p.buildURL(domain, token, address)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrPublishFailed, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrPublishFailed, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := p.Client.Do(req)
	if err != nil {
		// keep the token out of logs and history
		var ue *url.Error
		if errors.As(err, &ue) {
			ue.URL = p.UpdateURL
		}
		return false, fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxEchoBody))
	if err != nil {
		return false, fmt.Errorf("%w: read body: %w", ErrPublishFailed, err)
	}
	if got := strings.TrimSpace(string(body)); got != "OK" {
		return false, fmt.Errorf("%w: %w: status %d body %q", ErrPublishFailed, errUnexpectedBody, resp.StatusCode, got)
	}
	return true, nil
}

func (p *DuckDNSPublisher) buildURL(domain, token, address string) (string, error) {
	u, err := url.Parse(p.UpdateURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("domains", domain)
	q.Set("token", token)
	q.Set("ip", address)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
