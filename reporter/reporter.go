package reporter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-logr/logr"
)

type Resolver interface {
	Resolve(context.Context) ([]netip.Addr, error)
}

// ResolverFunc adapts a function to a Resolver.
type ResolverFunc func(context.Context) ([]netip.Addr, error)

func (f ResolverFunc) Resolve(ctx context.Context) ([]netip.Addr, error) { return f(ctx) }

type DDNSClient interface {
	RunDDNS(ctx context.Context) error
}

// New returns a client that asks the relay at endpoint to update domain.
//
// Without a resolver every run calls the relay.
// With one, the relay is only called when the resolved IPv4 address differs from the last one reported.
func New(endpoint, domain string, options ...clientOption) (*Client, error) {
	if domain == "" {
		return nil, fmt.Errorf("reporter.New: domain cannot be empty")
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("reporter.New: error parsing endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("reporter.New: endpoint must be an http or https URL; got %q", endpoint)
	}
	c := &Client{
		endpoint:   u,
		domain:     domain,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logr.Discard(),
	}
	for i, opt := range options {
		if err := opt(c); err != nil {
			return nil, fmt.Errorf("reporter.New: option %d returned an error: %s", i, err)
		}
	}

	// propagate the http client to a web resolver whatever order the options came in
	if wr, ok := c.resolver.(*webResolver); ok && wr.httpClient == nil {
		wr.httpClient = c.httpClient
	}
	return c, nil
}

type clientOption func(*Client) error

// WithCredentials sets the basic-auth pair sent to the relay.
func WithCredentials(username, password string) clientOption {
	return func(c *Client) error {
		c.username, c.password = username, password
		return nil
	}
}

func UsingResolver(resolver Resolver) clientOption {
	return func(c *Client) error {
		c.resolver = resolver
		return nil
	}
}

func UsingWebResolver(serviceURL ...string) clientOption {
	return func(c *Client) error {
		r, err := WebResolver(serviceURL...)
		if err != nil {
			return err
		}
		c.resolver = r
		return nil
	}
}

func WithLogger(logger logr.Logger) clientOption {
	return func(c *Client) error {
		if logger.GetSink() == nil {
			logger = logr.Discard()
		}
		c.logger = logger
		return nil
	}
}

// UsingHTTPClient sets the client used for the relay and, when it is one, the web resolver.
func UsingHTTPClient(httpclient *http.Client) clientOption {
	return func(c *Client) error {
		if httpclient == nil {
			httpclient = http.DefaultClient
		}
		c.httpClient = httpclient
		return nil
	}
}

// Client reports the machine's address to a relay.
//
// It should be constructed using New.
type Client struct {
	endpoint           *url.URL
	domain             string
	username, password string
	resolver           Resolver
	httpClient         *http.Client
	logger             logr.Logger

	mu   sync.Mutex
	last netip.Addr // last address the relay accepted
}

// RunDDNS implements DDNSClient.
func (c *Client) RunDDNS(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var current netip.Addr
	if c.resolver != nil {
		addrs, err := onlyIPv4(c.resolver.Resolve(ctx))
		if err != nil {
			return fmt.Errorf("error getting IPs: %w", err)
		}
		if len(addrs) == 0 {
			return errors.New("no IPv4 address was resolved")
		}
		current = addrs[0]
		c.logger.V(1).Info("resolved public IP", "ip", current)
		if current == c.last {
			c.logger.V(1).Info("IP unchanged, skipping update", "ip", current)
			return nil
		}
	}

	msg, err := c.report(ctx)
	if err != nil {
		return fmt.Errorf("error updating %s: %w", c.domain, err)
	}
	c.logger.Info("relay accepted update", "domain", c.domain, "response", msg)
	c.last = current
	return nil
}

func (c *Client) report(ctx context.Context) (string, error) {
	u := *c.endpoint
	q := u.Query()
	q.Set("domain", c.domain)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("error creating request: %w", err)
	}
	if c.username != "" || c.password != "" {
		req.SetBasicAuth(c.username, c.password)
	}
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", fmt.Errorf("error reading response body: %w", err)
	}
	msg := strings.TrimSpace(string(body))
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("relay returned %s: %s", resp.Status, msg)
	}
	return msg, nil
}

// RunDaemon runs ddnsClient every interval in a goroutine until ctx is done.
//
// Intervals under one minute are raised to one minute.
// Errors are sent to logger and do not stop the daemon.
func RunDaemon(ctx context.Context, ddnsClient DDNSClient, interval time.Duration, logger logr.Logger) {
	if interval < 1*time.Minute {
		interval = 1 * time.Minute
	}
	if logger.GetSink() == nil {
		if c, ok := ddnsClient.(*Client); ok {
			logger = c.logger
		} else {
			logger = logr.Discard()
		}
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := ddnsClient.RunDDNS(ctx); err != nil {
					logger.Error(err, "reporter.RunDaemon: update failed")
				}
			}
		}
	}()
}

func onlyIPv4(addrs []netip.Addr, e error) (filtered []netip.Addr, err error) {
	if e != nil {
		return nil, e
	}

	for _, a := range addrs {
		if a.Unmap().Is4() {
			filtered = append(filtered, a.Unmap())
		}
	}
	return filtered, nil
}
