package ddnsrelay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cloudflare/cloudflare-go"
	"github.com/go-logr/logr"
)

// CloudflareConfig holds the settings for NewCloudflare.
type CloudflareConfig struct {
	APIToken string
	ZoneID   string
	// ZoneName is used to look up the zone ID when ZoneID is empty.
	ZoneName string

	// BaseURL overrides the API endpoint. Mostly useful for tests.
	BaseURL    string
	HTTPClient *http.Client
	Logger     logr.Logger
}

// Cloudflare implements Provider on top of the Cloudflare v4 API.
//
// It should be constructed using NewCloudflare.
type Cloudflare struct {
	api    *cloudflare.API
	zoneID string
	logger logr.Logger
}

// NewCloudflare creates a Cloudflare provider.
//
// A missing token or zone is not an error here.
// The provider is still returned and every call on it fails with ErrNotConfigured,
// so a relay can start and report the problem per request.
func NewCloudflare(cfg CloudflareConfig) (*Cloudflare, error) {
	cf := &Cloudflare{
		zoneID: cfg.ZoneID,
		logger: cfg.Logger,
	}
	if cf.logger.GetSink() == nil {
		cf.logger = logr.Discard()
	}
	if cfg.APIToken == "" {
		return cf, nil
	}

	httpclient := cfg.HTTPClient
	if httpclient == nil {
		httpclient = &http.Client{Timeout: 30 * time.Second}
	}
	hc := *httpclient
	hc.Transport = &envelopeTransport{next: hc.Transport}

	opts := []cloudflare.Option{
		cloudflare.HTTPClient(&hc),
		cloudflare.UsingRetryPolicy(0, 0, 0),
		cloudflare.UserAgent("ddnsrelay"),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, cloudflare.BaseURL(cfg.BaseURL))
	}

	var err error
	cf.api, err = cloudflare.NewWithAPIToken(cfg.APIToken, opts...)
	if err != nil {
		return nil, fmt.Errorf("error creating cloudflare api client: %w", err)
	}

	if cf.zoneID == "" && cfg.ZoneName != "" {
		cf.logger.Info("looking up zone ID", "zone", cfg.ZoneName)
		cf.zoneID, err = cf.api.ZoneIDByName(cfg.ZoneName)
		if err != nil {
			return nil, fmt.Errorf("unable to get zone ID for %s: %w", cfg.ZoneName, err)
		}
		cf.logger.Info("got zone ID", "zone", cfg.ZoneName, "zoneID", cf.zoneID)
	}
	return cf, nil
}

func (cf *Cloudflare) configured() bool {
	return cf.api != nil && cf.zoneID != ""
}

// LookupRecord implements Provider.
func (cf *Cloudflare) LookupRecord(ctx context.Context, domain string) (*Record, error) {
	if !cf.configured() {
		return nil, ErrNotConfigured
	}
	cf.logger.V(1).Info("looking up records", "zoneID", cf.zoneID, "name", domain)

	// A non-zero page disables auto-pagination: only the first match matters.
	records, _, err := cf.api.ListDNSRecords(ctx, cloudflare.ZoneIdentifier(cf.zoneID), cloudflare.ListDNSRecordsParams{
		Name:       domain,
		ResultInfo: cloudflare.ResultInfo{Page: 1, PerPage: 100},
	})
	if err != nil {
		return nil, fmt.Errorf("error listing DNS records: %w", err)
	}
	cf.logger.V(1).Info("found existing records", "count", len(records))
	if len(records) == 0 {
		return nil, nil
	}

	r := records[0]
	rec := &Record{
		ID:      r.ID,
		Type:    r.Type,
		Name:    r.Name,
		Content: r.Content,
		TTL:     r.TTL,
	}
	if r.Proxied != nil {
		rec.Proxied = *r.Proxied
	}
	return rec, nil
}

// UpsertRecord implements Provider.
func (cf *Cloudflare) UpsertRecord(ctx context.Context, r Record) error {
	if !cf.configured() {
		return ErrNotConfigured
	}
	records := "/zones/" + cf.zoneID + "/dns_records"
	body := recordBody{
		Type:    r.Type,
		Name:    r.Name,
		Content: r.Content,
		TTL:     r.TTL,
		Proxied: r.Proxied,
	}

	// Both writes send exactly the fields in recordBody.
	// PUT replaces the whole record, where UpdateDNSRecord would PATCH it.
	if r.ID != "" {
		cf.logger.V(1).Info("updating record", "id", r.ID, "name", r.Name, "content", r.Content)
		if _, err := cf.api.Raw(ctx, http.MethodPut, records+"/"+r.ID, body, nil); err != nil {
			return fmt.Errorf("unable to update DNS record %s: %w", r.ID, err)
		}
		return nil
	}

	cf.logger.V(1).Info("creating record", "name", r.Name, "content", r.Content)
	if _, err := cf.api.Raw(ctx, http.MethodPost, records, body, nil); err != nil {
		return fmt.Errorf("error creating DNS record: %w", err)
	}
	return nil
}

// recordBody is the field set written on create and update.
type recordBody struct {
	Type    string `json:"type"`
	Name    string `json:"name"`
	Content string `json:"content"`
	TTL     int    `json:"ttl"`
	Proxied bool   `json:"proxied"`
}

// envelopeTransport fails any API response whose JSON envelope reports success=false,
// whatever its HTTP status,
// and keeps the raw body in a *ProviderError.
type envelopeTransport struct {
	next http.RoundTripper
}

func (t *envelopeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	next := t.next
	if next == nil {
		next = http.DefaultTransport
	}
	resp, err := next.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("error reading response body: %w", err)
	}

	var envelope struct {
		Success *bool `json:"success"`
	}
	if json.Unmarshal(body, &envelope) == nil && envelope.Success != nil && !*envelope.Success {
		return nil, &ProviderError{StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(body))}
	}

	resp.Body = io.NopCloser(bytes.NewReader(body))
	return resp, nil
}
