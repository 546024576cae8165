package rulefile

import (
	"fmt"
	"net/netip"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/miekg/dns"
)

// Resolver looks rule file host names up against a single DNS server
// rather than the system stub resolver, so plan and apply see the same
// addresses the installed filters will match. Successful lookups are
// memoized for the resolver's lifetime; a resolver is meant to live for
// one command invocation.
type Resolver struct {
	// Server is "host" or "host:port"; port 53 is assumed when absent.
	Server string

	// Timeout bounds each query. Zero means 2 seconds.
	Timeout time.Duration

	// Net is "udp" or "tcp". Empty means "udp".
	Net string

	mu   sync.Mutex
	memo map[string][]netip.Addr
}

// NewResolver returns a resolver querying the given server over UDP.
func NewResolver(server string) *Resolver {
	return &Resolver{Server: server, Timeout: 2 * time.Second, Net: "udp"}
}

// Lookup resolves host to its A and AAAA addresses, sorted and
// de-duplicated. It fails when the server is unreachable, answers with an
// error other than name-not-found, or the name yields no addresses at all.
func (r *Resolver) Lookup(host string) ([]netip.Addr, error) {
	fqdn := dns.Fqdn(strings.ToLower(host))

	r.mu.Lock()
	addrs, ok := r.memo[fqdn]
	r.mu.Unlock()
	if ok {
		return addrs, nil
	}

	c := new(dns.Client)
	c.Timeout = r.Timeout
	if c.Timeout == 0 {
		c.Timeout = 2 * time.Second
	}
	c.Net = r.Net

	server := r.Server
	if !strings.Contains(server, ":") {
		server += ":53"
	}

	var out []netip.Addr
	for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
		m := new(dns.Msg)
		m.SetQuestion(fqdn, qtype)
		resp, _, err := c.Exchange(m, server)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", host, err)
		}
		if resp.Rcode != dns.RcodeSuccess && resp.Rcode != dns.RcodeNameError {
			return nil, fmt.Errorf("resolve %s: server answered %s", host, dns.RcodeToString[resp.Rcode])
		}
		for _, rr := range resp.Answer {
			switch rec := rr.(type) {
			case *dns.A:
				if a, ok := netip.AddrFromSlice(rec.A.To4()); ok {
					out = append(out, a)
				}
			case *dns.AAAA:
				if a, ok := netip.AddrFromSlice(rec.AAAA.To16()); ok {
					out = append(out, a.Unmap())
				}
			}
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("resolve %s: no addresses", host)
	}

	// Stable order keeps rendered conditions and plan output reproducible
	// across runs.
	sort.Slice(out, func(i, j int) bool { return out[i].Compare(out[j]) < 0 })
	uniq := out[:1]
	for _, a := range out[1:] {
		if a != uniq[len(uniq)-1] {
			uniq = append(uniq, a)
		}
	}
	out = uniq

	r.mu.Lock()
	if r.memo == nil {
		r.memo = make(map[string][]netip.Addr)
	}
	r.memo[fqdn] = out
	r.mu.Unlock()
	return out, nil
}
