// Package pdns is a client for the PowerDNS authoritative HTTP API.
//
// Only the endpoints needed for DNSSEC management are covered. Errors
// returned by the server are surfaced verbatim and requests are never
// retried.
package pdns

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/jroosing/pdnsadmin/internal/config"
	"github.com/jroosing/pdnsadmin/internal/metrics"
	"github.com/jroosing/pdnsadmin/internal/pool"
	"github.com/miekg/dns"
)

// maxErrorBody bounds how much of an error response is kept.
const maxErrorBody = 4096

// APIError is a non-2xx response from the PowerDNS API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return e.Message
}

// IsNotFound reports whether err is a 404 from the PowerDNS API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Zone is the subset of a PowerDNS zone object used here.
type Zone struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Kind    string   `json:"kind"`
	Serial  int64    `json:"serial"`
	DNSSEC  bool     `json:"dnssec"`
	Masters []string `json:"masters,omitempty"`
}

// Cryptokey is a DNSSEC key as returned by the cryptokeys endpoint.
type Cryptokey struct {
	ID        int      `json:"id,omitempty"`
	KeyType   string   `json:"keytype"`
	Active    bool     `json:"active"`
	Published bool     `json:"published"`
	DNSKey    string   `json:"dnskey,omitempty"`
	DS        []string `json:"ds,omitempty"`
	Algorithm string   `json:"algorithm,omitempty"`
	Bits      int      `json:"bits,omitempty"`
}

// Metadata is a domain metadata kind with its values.
type Metadata struct {
	Kind     string   `json:"kind"`
	Metadata []string `json:"metadata"`
}

// Client talks to one PowerDNS server.
type Client struct {
	baseURL    string
	serverID   string
	apiKey     string
	httpClient *http.Client
	buffers    *pool.Buffers
	logger     *slog.Logger
}

// NewClient creates a client from configuration. logger may be nil.
func NewClient(cfg config.PdnsAPIConfig, logger *slog.Logger) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid pdns api url %q", cfg.URL)
	}
	serverID := cfg.ServerID
	if serverID == "" {
		serverID = "localhost"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:  base,
		serverID: serverID,
		apiKey:   cfg.Key,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		buffers: pool.NewBuffers(),
		logger:  logger,
	}, nil
}

// ZonePath returns the escaped FQDN of zone as used in API paths, so
// "0/26.1.168.192.in-addr.arpa" becomes "0%2F26.1.168.192.in-addr.arpa.".
func ZonePath(zone string) string {
	return url.PathEscape(dns.Fqdn(zone))
}

func (c *Client) zoneURL(zone string, parts ...string) string {
	u := c.baseURL + "/api/v1/servers/" + url.PathEscape(c.serverID) + "/zones/" + ZonePath(zone)
	for _, p := range parts {
		u += "/" + p
	}
	return u
}

// do sends a request and decodes a JSON response into out when out is
// non-nil.
func (c *Client) do(ctx context.Context, method, rawURL string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.PdnsAPIRequests.WithLabelValues(method, "error").Inc()
		return fmt.Errorf("pdns api request: %w", err)
	}
	defer resp.Body.Close()
	metrics.PdnsAPIRequests.WithLabelValues(method, strconv.Itoa(resp.StatusCode)).Inc()

	buf := c.buffers.Get()
	defer c.buffers.Put(buf)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(buf, io.LimitReader(resp.Body, maxErrorBody))
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: errorMessage(resp.StatusCode, buf.Bytes())}
		c.logger.Debug("pdns api error", "method", method, "url", rawURL, "status", resp.StatusCode, "err", apiErr.Message)
		return apiErr
	}

	if out == nil {
		return nil
	}
	if _, err := io.Copy(buf, resp.Body); err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if buf.Len() == 0 {
		return nil
	}
	if err := json.Unmarshal(buf.Bytes(), out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// errorMessage extracts the "error" field of a PowerDNS error body, falling
// back to the raw body text and then to the status text.
func errorMessage(status int, body []byte) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	if text := strings.TrimSpace(string(body)); text != "" {
		return text
	}
	return fmt.Sprintf("%d %s", status, http.StatusText(status))
}

// GetZone fetches zone without its rrsets.
func (c *Client) GetZone(ctx context.Context, zone string) (*Zone, error) {
	var z Zone
	if err := c.do(ctx, http.MethodGet, c.zoneURL(zone)+"?rrsets=false", nil, &z); err != nil {
		return nil, err
	}
	return &z, nil
}

// SetDNSSEC turns DNSSEC signing of zone on or off.
func (c *Client) SetDNSSEC(ctx context.Context, zone string, enabled bool) error {
	return c.do(ctx, http.MethodPut, c.zoneURL(zone), map[string]bool{"dnssec": enabled}, nil)
}

// RectifyZone recalculates ordername and auth fields of zone.
func (c *Client) RectifyZone(ctx context.Context, zone string) error {
	return c.do(ctx, http.MethodPut, c.zoneURL(zone, "rectify"), nil, nil)
}

// ListCryptokeys returns all keys of zone.
func (c *Client) ListCryptokeys(ctx context.Context, zone string) ([]Cryptokey, error) {
	keys := []Cryptokey{}
	if err := c.do(ctx, http.MethodGet, c.zoneURL(zone, "cryptokeys"), nil, &keys); err != nil {
		return nil, err
	}
	return keys, nil
}

// GetCryptokey returns one key of zone.
func (c *Client) GetCryptokey(ctx context.Context, zone string, id int) (*Cryptokey, error) {
	var k Cryptokey
	if err := c.do(ctx, http.MethodGet, c.zoneURL(zone, "cryptokeys", strconv.Itoa(id)), nil, &k); err != nil {
		return nil, err
	}
	return &k, nil
}

// CreateCryptokey generates a key on the server and returns it.
func (c *Client) CreateCryptokey(ctx context.Context, zone string, key Cryptokey) (*Cryptokey, error) {
	var created Cryptokey
	if err := c.do(ctx, http.MethodPost, c.zoneURL(zone, "cryptokeys"), key, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// SetCryptokeyActive activates or deactivates a key.
func (c *Client) SetCryptokeyActive(ctx context.Context, zone string, id int, active bool) error {
	return c.do(ctx, http.MethodPut, c.zoneURL(zone, "cryptokeys", strconv.Itoa(id)),
		map[string]bool{"active": active}, nil)
}

// DeleteCryptokey removes a key.
func (c *Client) DeleteCryptokey(ctx context.Context, zone string, id int) error {
	return c.do(ctx, http.MethodDelete, c.zoneURL(zone, "cryptokeys", strconv.Itoa(id)), nil, nil)
}

// GetMetadata returns one metadata kind of zone.
func (c *Client) GetMetadata(ctx context.Context, zone, kind string) (*Metadata, error) {
	var md Metadata
	if err := c.do(ctx, http.MethodGet, c.zoneURL(zone, "metadata", url.PathEscape(kind)), nil, &md); err != nil {
		return nil, err
	}
	return &md, nil
}
