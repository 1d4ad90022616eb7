package reporter

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
)

// InterfaceResolver constructs a resolver that returns the global unicast addresses of the named interfaces.
// It suits hosts that hold their public address directly, such as a VPS.
// If no interfaces are provided then all interfaces are used.
func InterfaceResolver(iface ...string) Resolver {
	return interfaceResolver{ifaces: iface}
}

type interfaceResolver struct {
	ifaces []string
}

func (r interfaceResolver) Resolve(ctx context.Context) (addrs []netip.Addr, err error) {
	if len(r.ifaces) == 0 {
		a, err := net.InterfaceAddrs()
		if err != nil {
			return nil, fmt.Errorf("error getting addresses for interface: %w", err)
		}
		return globalUnicast(a, "")
	}

	var errs []error
	for _, name := range r.ifaces {
		iface, err := net.InterfaceByName(name)
		if err != nil {
			errs = append(errs, fmt.Errorf("error getting interface %s by name: %w", name, err))
			continue
		}
		a, err := iface.Addrs()
		if err != nil {
			errs = append(errs, fmt.Errorf("error looking up addresses for interface %s: %w", name, err))
			continue
		}
		found, err := globalUnicast(a, name)
		addrs = append(addrs, found...)
		if err != nil {
			errs = append(errs, err)
		}
	}
	return addrs, errors.Join(errs...)
}

// globalUnicast keeps the addresses worth publishing.
// Interface addresses look like ip+net:192.168.86.253/24.
func globalUnicast(netAddrs []net.Addr, iface string) (addrs []netip.Addr, err error) {
	var parseErrors []error
	for _, a := range netAddrs {
		p, err := netip.ParsePrefix(a.String())
		if err != nil {
			parseErrors = append(parseErrors, fmt.Errorf("error parsing local ip %s for interface %q: %w", a.String(), iface, err))
			continue
		}
		ip := p.Addr()
		if !ip.IsGlobalUnicast() || ip.IsPrivate() {
			continue
		}
		addrs = append(addrs, ip)
	}
	return addrs, errors.Join(parseErrors...)
}
