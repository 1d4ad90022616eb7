package reporter

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"sync"
	"time"
)

// WebResolver constructs a resolver which uses external web services to look up a "public" IP address.
//
// Each serviceURL must speak http and return status "200 OK",
// with a valid IP address as the first line of the response body.
// All other responses are considered an error.
//
// If only one serviceURL is given,
// then the resolver will simply return its response.
// If more are given,
// then the resolver will request from up to three of them and only return successfully if the first two non-error responses agree on the IP.
// Pointing the client at a wrong address hands the domain to someone else,
// so a single misbehaving service should not be enough to do it.
//
// The relay only writes A records.
// Prefer IPv4-only endpoints (e.g. https://ipv4.icanhazip.com/) on dual-stack hosts.
func WebResolver(serviceURL ...string) (Resolver, error) {
	if len(serviceURL) == 0 {
		return nil, errors.New("no external IP lookup services were provided")
	}
	var URLs []*url.URL
	for _, u := range serviceURL {
		pu, err := url.Parse(u)
		if err != nil {
			return nil, fmt.Errorf("error parsing URL: %w", err)
		}
		URLs = append(URLs, pu)
	}
	return &webResolver{serviceURLs: URLs}, nil
}

type webResolver struct {
	httpClient  *http.Client
	serviceURLs []*url.URL
}

// Resolve implements Resolver.
func (wr *webResolver) Resolve(ctx context.Context) ([]netip.Addr, error) {
	if len(wr.serviceURLs) == 0 {
		return nil, errors.New("no external IP lookup services were provided")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		addr netip.Addr
		err  error
	}

	useCount := min(3, len(wr.serviceURLs))
	agree := min(2, useCount)

	// buffered so that late lookups never block after we've returned
	results := make(chan result, useCount)
	var wg sync.WaitGroup
	wg.Add(useCount)
	for _, u := range wr.serviceURLs[:useCount] {
		go func() {
			defer wg.Done()
			r := result{}
			r.addr, r.err = wr.lookup(ctx, u)
			results <- r
		}()
	}
	go func() { wg.Wait(); close(results) }()

	var errs []error
	seen := map[netip.Addr]int{}
	for r := range results {
		if r.err != nil {
			errs = append(errs, r.err)
			continue
		}
		seen[r.addr]++
		if seen[r.addr] >= agree {
			return []netip.Addr{r.addr}, nil
		}
	}

	if len(errs) > useCount-agree {
		return nil, fmt.Errorf("not enough resolvers responded without errors: %w", errors.Join(errs...))
	}
	return nil, errors.New("IP resolvers did not agree on our IP")
}

func (wr *webResolver) lookup(ctx context.Context, url *url.URL) (netip.Addr, error) {
	// bounds the lookup even when the caller passed context.Background and the client has no timeout
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url.String(), nil)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-cache")

	httpclient := wr.httpClient
	if httpclient == nil {
		httpclient = http.DefaultClient
	}

	resp, err := httpclient.Do(req)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return netip.Addr{}, fmt.Errorf("http request returned %s", resp.Status)
	}

	scanner := bufio.NewReader(resp.Body)
	ipstring, _ := scanner.ReadString('\n')
	ip, err := netip.ParseAddr(strings.TrimSpace(ipstring))
	if err != nil {
		return netip.Addr{}, fmt.Errorf("error parsing IP address from response body: %w", err)
	}
	return ip, nil
}
