package rulefile

import (
	"errors"
	"net/netip"
	"strings"
	"testing"

	"grimm.is/serac"
)

type stubResolver struct {
	addrs map[string][]netip.Addr
	err   error
	calls int
}

func (s *stubResolver) Lookup(host string) ([]netip.Addr, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	addrs, ok := s.addrs[host]
	if !ok {
		return nil, errors.New("resolve " + host + ": no addresses")
	}
	return addrs, nil
}

func mustParse(t *testing.T, body string) *Document {
	t.Helper()
	doc, err := Parse("rules.hcl", []byte(body))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return doc
}

func TestRender(t *testing.T) {
	doc := mustParse(t, `
provider = "corp"

sublayer "inspection" {
  weight = 200
}

filter "block-http" {
  layer        = "ale_auth_connect_v4"
  action       = "block"
  sublayer     = "inspection"
  protocols    = ["tcp"]
  remote_ports = ["80", "6000-6063"]
  local_ports  = ["1024"]
  remote       = ["10.0.0.0/8", "192.0.2.7", "198.51.100.1-198.51.100.9"]
  local        = ["172.16.0.0/12"]
  apps         = ["c:\\tools\\scan.exe"]
  weight       = 10
  description  = "no plain http"
}
`)

	r, err := doc.Render(nil)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	if r.Provider.Name != "corp" {
		t.Errorf("Provider.Name = %q, want %q", r.Provider.Name, "corp")
	}
	if r.Provider.Key != ManagedKey("provider", "corp") {
		t.Errorf("Provider.Key = %s, want derived key", r.Provider.Key)
	}

	if len(r.SubLayers) != 1 {
		t.Fatalf("len(SubLayers) = %d, want 1", len(r.SubLayers))
	}
	sl := r.SubLayers[0]
	if sl.Key != ManagedKey("sublayer", "inspection") {
		t.Errorf("sublayer key = %s, want derived key", sl.Key)
	}
	if sl.Provider != r.Provider.Key {
		t.Errorf("sublayer provider = %s, want %s", sl.Provider, r.Provider.Key)
	}
	if sl.Weight != 200 {
		t.Errorf("sublayer weight = %d, want 200", sl.Weight)
	}

	if len(r.Filters) != 1 {
		t.Fatalf("len(Filters) = %d, want 1", len(r.Filters))
	}
	f := r.Filters[0]
	if f.Key != ManagedKey("filter", "block-http") {
		t.Errorf("filter key = %s, want derived key", f.Key)
	}
	if f.Provider != r.Provider.Key {
		t.Errorf("filter provider = %s, want %s", f.Provider, r.Provider.Key)
	}
	if f.SubLayer != sl.Key {
		t.Errorf("filter sublayer = %s, want %s", f.SubLayer, sl.Key)
	}
	if f.Layer != serac.LayerALEAuthConnectV4 || f.Action != serac.ActionBlock {
		t.Errorf("layer/action = %s/%s, want ale_auth_connect_v4/block", f.Layer, f.Action)
	}
	if f.Weight != 10 {
		t.Errorf("weight = %d, want 10", f.Weight)
	}
	if f.Description != "no plain http" {
		t.Errorf("description = %q", f.Description)
	}

	want := []string{
		"ip_protocol == tcp",
		"ip_remote_port == 80",
		"ip_remote_port in 6000-6063",
		"ip_local_port == 1024",
		"ip_remote_address == 10.0.0.0/8",
		"ip_remote_address == 192.0.2.7/32",
		"ip_remote_address in 198.51.100.1-198.51.100.9",
		"ip_local_address == 172.16.0.0/12",
		`ale_app_id == c:\tools\scan.exe`,
	}
	if len(f.Conditions) != len(want) {
		t.Fatalf("len(Conditions) = %d, want %d", len(f.Conditions), len(want))
	}
	for i, c := range f.Conditions {
		if c.String() != want[i] {
			t.Errorf("Conditions[%d] = %q, want %q", i, c.String(), want[i])
		}
	}
}

func TestRender_DefaultProvider(t *testing.T) {
	doc := mustParse(t, `
filter "a" {
  layer  = "ale_auth_connect_v4"
  action = "permit"
}
`)
	r, err := doc.Render(nil)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if r.Provider.Name != DefaultProvider {
		t.Errorf("Provider.Name = %q, want %q", r.Provider.Name, DefaultProvider)
	}
	if r.Provider.Key != ManagedKey("provider", DefaultProvider) {
		t.Errorf("Provider.Key = %s, want derived key", r.Provider.Key)
	}
}

func TestRender_HostsBecomeRemoteAddresses(t *testing.T) {
	doc := mustParse(t, `
filter "block-updates" {
  layer  = "ale_auth_connect_v4"
  action = "block"
  hosts  = ["updates.example.com"]
}
`)
	res := &stubResolver{addrs: map[string][]netip.Addr{
		"updates.example.com": {
			netip.MustParseAddr("192.0.2.10"),
			netip.MustParseAddr("192.0.2.11"),
			netip.MustParseAddr("2001:db8::10"),
		},
	}}

	r, err := doc.Render(res)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	conds := r.Filters[0].Conditions
	if len(conds) != 2 {
		t.Fatalf("len(Conditions) = %d, want 2 (IPv6 address dropped at a v4 layer)", len(conds))
	}
	if got := conds[0].String(); got != "ip_remote_address == 192.0.2.10/32" {
		t.Errorf("Conditions[0] = %q", got)
	}
	if got := conds[1].String(); got != "ip_remote_address == 192.0.2.11/32" {
		t.Errorf("Conditions[1] = %q", got)
	}
}

func TestRender_HostsOnV6Layer(t *testing.T) {
	doc := mustParse(t, `
filter "block-updates" {
  layer  = "ale_auth_connect_v6"
  action = "block"
  hosts  = ["updates.example.com"]
}
`)
	res := &stubResolver{addrs: map[string][]netip.Addr{
		"updates.example.com": {
			netip.MustParseAddr("192.0.2.10"),
			netip.MustParseAddr("2001:db8::10"),
		},
	}}

	r, err := doc.Render(res)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	conds := r.Filters[0].Conditions
	if len(conds) != 1 {
		t.Fatalf("len(Conditions) = %d, want 1", len(conds))
	}
	if got := conds[0].String(); got != "ip_remote_address == 2001:db8::10/128" {
		t.Errorf("Conditions[0] = %q", got)
	}
}

func TestRender_HostWithoutMatchingFamily(t *testing.T) {
	doc := mustParse(t, `
filter "a" {
  layer  = "ale_auth_connect_v4"
  action = "block"
  hosts  = ["v6only.example.com"]
}
`)
	res := &stubResolver{addrs: map[string][]netip.Addr{
		"v6only.example.com": {netip.MustParseAddr("2001:db8::1")},
	}}

	_, err := doc.Render(res)
	if err == nil {
		t.Fatal("Render() succeeded, want error")
	}
	if !strings.Contains(err.Error(), "no IPv4 addresses") {
		t.Errorf("Render() error = %v, want substring %q", err, "no IPv4 addresses")
	}
}

func TestRender_NilResolverWithHosts(t *testing.T) {
	doc := mustParse(t, `
filter "a" {
  layer  = "ale_auth_connect_v4"
  action = "block"
  hosts  = ["example.com"]
}
`)
	_, err := doc.Render(nil)
	if err == nil {
		t.Fatal("Render() succeeded, want error")
	}
	if !strings.Contains(err.Error(), "no resolver") {
		t.Errorf("Render() error = %v, want substring %q", err, "no resolver")
	}
}

func TestRender_ResolverErrorCarriesFilterName(t *testing.T) {
	doc := mustParse(t, `
filter "block-updates" {
  layer  = "ale_auth_connect_v4"
  action = "block"
  hosts  = ["gone.example.com"]
}
`)
	res := &stubResolver{err: errors.New("server unreachable")}

	_, err := doc.Render(res)
	if err == nil {
		t.Fatal("Render() succeeded, want error")
	}
	if !strings.Contains(err.Error(), `filter "block-updates"`) {
		t.Errorf("Render() error = %v, want filter name context", err)
	}
	if !strings.Contains(err.Error(), "server unreachable") {
		t.Errorf("Render() error = %v, want resolver error", err)
	}
}
