package ddnsrelay

import "strings"

const (
	// recordTTL is kept short so clients see a new address quickly.
	recordTTL = 60

	// placeholderDomain is the literal left in the example client URL.
	placeholderDomain = "[DOMAIN]"
)

// Record is a DNS record as seen through a Provider.
type Record struct {
	ID      string
	Type    string
	Name    string
	Content string
	TTL     int
	Proxied bool
}

// RecordName returns the record name sent to the provider for domain.
//
// Domains with more than two labels are reduced to their first label ("sub.example.com" becomes "sub"),
// relying on the provider to scope the name to the zone.
// Anything else is used as is.
// This does not understand multi-label public suffixes: "foo.co.uk" becomes "foo".
func RecordName(domain string) string {
	labels := strings.Split(domain, ".")
	if len(labels) > 2 {
		return labels[0]
	}
	return domain
}
