package ddnsrelay

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"sync"

	"github.com/go-logr/logr"
)

// DNSUpdater implements Updater by looking up the domain's record and then updating or creating it.
//
// Updates for the same domain are serialized.
type DNSUpdater struct {
	provider Provider
	logger   logr.Logger
	locks    domainLocks
}

// NewUpdater returns a DNSUpdater writing through p.
func NewUpdater(p Provider, logger logr.Logger) *DNSUpdater {
	if logger.GetSink() == nil {
		logger = logr.Discard()
	}
	return &DNSUpdater{provider: p, logger: logger}
}

// Update implements Updater.
func (u *DNSUpdater) Update(ctx context.Context, domain, ip string) (string, error) {
	if u.provider == nil {
		recordUpdate("failed")
		return "", &UpdateError{Op: "validate", Domain: domain, Err: ErrNotConfigured}
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil || !addr.Is4() {
		recordUpdate("failed")
		return "", &UpdateError{Op: "validate", Domain: domain, Err: fmt.Errorf("%q is not an IPv4 address", ip)}
	}

	unlock := u.locks.lock(domain)
	defer unlock()

	existing, err := u.provider.LookupRecord(ctx, domain)
	if err != nil {
		recordUpdate("failed")
		if errors.Is(err, ErrNotConfigured) {
			u.logger.Error(err, "provider is not configured")
			return "", &UpdateError{Op: "validate", Domain: domain, Err: err}
		}
		u.logger.Error(err, "record lookup failed", "domain", domain)
		return "", &UpdateError{Op: "lookup", Domain: domain, Err: err}
	}

	rec := Record{
		Type:    "A",
		Name:    RecordName(domain),
		Content: addr.String(),
		TTL:     recordTTL,
		Proxied: false,
	}
	op := "create"
	if existing != nil {
		rec.ID = existing.ID
		op = "update"
	}

	if err := u.provider.UpsertRecord(ctx, rec); err != nil {
		recordUpdate("failed")
		u.logger.Error(err, "record upsert failed", "domain", domain, "op", op)
		return "", &UpdateError{Op: op, Domain: domain, Err: err}
	}

	var msg string
	if op == "update" {
		recordUpdate("updated")
		msg = fmt.Sprintf("DNS record for %s updated to %s", domain, rec.Content)
	} else {
		recordUpdate("created")
		msg = fmt.Sprintf("DNS record for %s created with IP %s", domain, rec.Content)
	}
	u.logger.Info(msg, "domain", domain, "ip", rec.Content, "recordID", rec.ID)
	return msg, nil
}

// domainLocks hands out one mutex per domain and forgets it once nobody holds it.
type domainLocks struct {
	mu    sync.Mutex
	locks map[string]*domainLock
}

type domainLock struct {
	sync.Mutex
	refs int
}

func (d *domainLocks) lock(domain string) (unlock func()) {
	d.mu.Lock()
	if d.locks == nil {
		d.locks = make(map[string]*domainLock)
	}
	l, ok := d.locks[domain]
	if !ok {
		l = &domainLock{}
		d.locks[domain] = l
	}
	l.refs++
	d.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		d.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(d.locks, domain)
		}
		d.mu.Unlock()
	}
}
