package ddnsrelay_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Travis-Britz/ddnsrelay"
	"github.com/go-logr/logr/testr"
)

type fakeProvider struct {
	mu        sync.Mutex
	records   map[string]ddnsrelay.Record // keyed by full domain
	lookups   []string
	upserts   []ddnsrelay.Record
	lookupErr error
	upsertErr error
	delay     time.Duration
	inFlight  int
	maxFlight int
}

func (p *fakeProvider) LookupRecord(ctx context.Context, domain string) (*ddnsrelay.Record, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lookups = append(p.lookups, domain)
	if p.lookupErr != nil {
		return nil, p.lookupErr
	}
	if r, ok := p.records[domain]; ok {
		return &r, nil
	}
	return nil, nil
}

func (p *fakeProvider) UpsertRecord(ctx context.Context, r ddnsrelay.Record) error {
	p.mu.Lock()
	p.inFlight++
	if p.inFlight > p.maxFlight {
		p.maxFlight = p.inFlight
	}
	p.mu.Unlock()

	time.Sleep(p.delay)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.inFlight--
	p.upserts = append(p.upserts, r)
	return p.upsertErr
}

func TestUpdaterUpdatesExistingRecord(t *testing.T) {
	p := &fakeProvider{records: map[string]ddnsrelay.Record{
		"sub.example.com": {ID: "rec-1", Type: "A", Name: "sub.example.com", Content: "192.0.2.1", TTL: 60},
	}}
	u := ddnsrelay.NewUpdater(p, testr.New(t))

	msg, err := u.Update(context.Background(), "sub.example.com", "203.0.113.9")
	if err != nil {
		t.Fatalf("Update failed: %s", err)
	}
	if expected := "DNS record for sub.example.com updated to 203.0.113.9"; msg != expected {
		t.Fatalf("Expected %q; got %q", expected, msg)
	}
	if len(p.upserts) != 1 {
		t.Fatalf("Expected 1 upsert; got %d", len(p.upserts))
	}
	expected := ddnsrelay.Record{ID: "rec-1", Type: "A", Name: "sub", Content: "203.0.113.9", TTL: 60, Proxied: false}
	if got := p.upserts[0]; got != expected {
		t.Fatalf("Expected %+v; got %+v", expected, got)
	}
}

func TestUpdaterCreatesMissingRecord(t *testing.T) {
	p := &fakeProvider{}
	u := ddnsrelay.NewUpdater(p, testr.New(t))

	msg, err := u.Update(context.Background(), "example.com", "203.0.113.9")
	if err != nil {
		t.Fatalf("Update failed: %s", err)
	}
	if expected := "DNS record for example.com created with IP 203.0.113.9"; msg != expected {
		t.Fatalf("Expected %q; got %q", expected, msg)
	}
	if expected, got := []string{"example.com"}, p.lookups; len(got) != 1 || got[0] != expected[0] {
		t.Fatalf("Expected lookups %q; got %q", expected, got)
	}
	expected := ddnsrelay.Record{Type: "A", Name: "example.com", Content: "203.0.113.9", TTL: 60}
	if len(p.upserts) != 1 || p.upserts[0] != expected {
		t.Fatalf("Expected one upsert of %+v; got %+v", expected, p.upserts)
	}
}

func TestUpdaterLookupFailure(t *testing.T) {
	p := &fakeProvider{lookupErr: errors.New("dial tcp: connection refused")}
	u := ddnsrelay.NewUpdater(p, testr.New(t))

	_, err := u.Update(context.Background(), "sub.example.com", "203.0.113.9")
	if err == nil {
		t.Fatalf("Expected an error; got err == nil")
	}
	var ue *ddnsrelay.UpdateError
	if !errors.As(err, &ue) || ue.Op != "lookup" {
		t.Fatalf("Expected a lookup UpdateError; got %#v", err)
	}
	if !strings.HasPrefix(err.Error(), "Error communicating with Cloudflare API: ") || !strings.Contains(err.Error(), "connection refused") {
		t.Fatalf("Expected the cause in %q", err)
	}
	if len(p.upserts) != 0 {
		t.Fatalf("Expected no upserts after a failed lookup; got %d", len(p.upserts))
	}
}

func TestUpdaterUpsertFailure(t *testing.T) {
	provErr := &ddnsrelay.ProviderError{StatusCode: 400, Body: `{"success":false,"errors":[{"code":9005,"message":"Content for A record is invalid."}]}`}
	tests := []struct {
		name    string
		records map[string]ddnsrelay.Record
		op      string
		prefix  string
	}{
		{"update", map[string]ddnsrelay.Record{"sub.example.com": {ID: "rec-1"}}, "update", "Failed to update DNS record: "},
		{"create", nil, "create", "Failed to create DNS record: "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &fakeProvider{records: tt.records, upsertErr: provErr}
			u := ddnsrelay.NewUpdater(p, testr.New(t))

			_, err := u.Update(context.Background(), "sub.example.com", "203.0.113.9")
			var ue *ddnsrelay.UpdateError
			if !errors.As(err, &ue) || ue.Op != tt.op {
				t.Fatalf("Expected a %s UpdateError; got %#v", tt.op, err)
			}
			var pe *ddnsrelay.ProviderError
			if !errors.As(err, &pe) {
				t.Fatalf("Expected a wrapped ProviderError; got %#v", err)
			}
			if !strings.HasPrefix(err.Error(), tt.prefix) || !strings.Contains(err.Error(), "9005") {
				t.Fatalf("Expected message starting with %q and carrying the raw response; got %q", tt.prefix, err)
			}
		})
	}
}

func TestUpdaterNotConfigured(t *testing.T) {
	u := ddnsrelay.NewUpdater(&fakeProvider{lookupErr: ddnsrelay.ErrNotConfigured}, testr.New(t))
	_, err := u.Update(context.Background(), "sub.example.com", "203.0.113.9")
	if !errors.Is(err, ddnsrelay.ErrNotConfigured) {
		t.Fatalf("Expected ErrNotConfigured; got %v", err)
	}
	if expected, got := ddnsrelay.ErrNotConfigured.Error(), err.Error(); expected != got {
		t.Fatalf("Expected %q; got %q", expected, got)
	}

	u = ddnsrelay.NewUpdater(nil, testr.New(t))
	if _, err := u.Update(context.Background(), "sub.example.com", "203.0.113.9"); !errors.Is(err, ddnsrelay.ErrNotConfigured) {
		t.Fatalf("Expected ErrNotConfigured for a nil provider; got %v", err)
	}
}

func TestUpdaterRejectsNonIPv4(t *testing.T) {
	for _, ip := range []string{"", "not-an-ip", "2001:db8::1"} {
		p := &fakeProvider{}
		u := ddnsrelay.NewUpdater(p, testr.New(t))
		if _, err := u.Update(context.Background(), "sub.example.com", ip); err == nil {
			t.Fatalf("Expected an error for %q; got err == nil", ip)
		}
		if len(p.lookups) != 0 {
			t.Fatalf("Expected no provider calls for %q; got %d lookups", ip, len(p.lookups))
		}
	}
}

func TestUpdaterRepeatedUpdateIsStable(t *testing.T) {
	p := &fakeProvider{records: map[string]ddnsrelay.Record{
		"sub.example.com": {ID: "rec-1", Type: "A", Name: "sub.example.com", Content: "203.0.113.9", TTL: 60},
	}}
	u := ddnsrelay.NewUpdater(p, testr.New(t))

	first, err := u.Update(context.Background(), "sub.example.com", "203.0.113.9")
	if err != nil {
		t.Fatalf("Update failed: %s", err)
	}
	second, err := u.Update(context.Background(), "sub.example.com", "203.0.113.9")
	if err != nil {
		t.Fatalf("Update failed: %s", err)
	}
	if first != second {
		t.Fatalf("Expected identical messages; got %q and %q", first, second)
	}
	if len(p.upserts) != 2 || p.upserts[0] != p.upserts[1] || p.upserts[1].ID != "rec-1" {
		t.Fatalf("Expected two identical updates of rec-1; got %+v", p.upserts)
	}
}

func TestUpdaterSerializesSameDomain(t *testing.T) {
	p := &fakeProvider{delay: 20 * time.Millisecond}
	u := ddnsrelay.NewUpdater(p, testr.New(t))

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := u.Update(context.Background(), "sub.example.com", "203.0.113.9"); err != nil {
				t.Errorf("Update failed: %s", err)
			}
		}()
	}
	wg.Wait()

	if p.maxFlight != 1 {
		t.Fatalf("Expected same-domain upserts to run one at a time; got %d concurrently", p.maxFlight)
	}
	if len(p.upserts) != 4 {
		t.Fatalf("Expected 4 upserts; got %d", len(p.upserts))
	}
}

func TestUpdaterParallelDifferentDomains(t *testing.T) {
	p := &fakeProvider{delay: 50 * time.Millisecond}
	u := ddnsrelay.NewUpdater(p, testr.New(t))

	var wg sync.WaitGroup
	for _, d := range []string{"a.example.com", "b.example.com", "c.example.com"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := u.Update(context.Background(), d, "203.0.113.9"); err != nil {
				t.Errorf("Update failed: %s", err)
			}
		}()
	}
	wg.Wait()

	if p.maxFlight < 2 {
		t.Fatalf("Expected different domains to update concurrently; max in flight was %d", p.maxFlight)
	}
}
