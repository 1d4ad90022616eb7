package ddnsrelay

import "context"

// Provider reads and writes DNS records for a single zone.
type Provider interface {
	// LookupRecord returns the first record whose name exactly matches domain,
	// or nil when there is none.
	LookupRecord(ctx context.Context, domain string) (*Record, error)
	// UpsertRecord updates the record addressed by r.ID,
	// or creates a new one when r.ID is empty.
	UpsertRecord(ctx context.Context, r Record) error
}

// Updater points domain at ip.
// A nil error means the update succeeded and message describes it.
type Updater interface {
	Update(ctx context.Context, domain, ip string) (message string, err error)
}

// Authenticator decides whether a basic-auth username and password pair may update records.
type Authenticator interface {
	Authenticate(username, password string) bool
}
