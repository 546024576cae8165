package rulefile

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/serac"
	"grimm.is/serac/enginetest"
)

const docFull = `
provider = "corp"

sublayer "inspection" {
  description = "managed inspection order"
  weight      = 100
}

filter "dns-local" {
  description = "allow local resolver"
  layer       = "ale_auth_connect_v6"
  action      = "permit"
  protocols   = ["udp"]
  local_ports = ["53"]
  local       = ["2001:db8::/32"]
  weight      = 7
}

filter "web-block" {
  layer        = "ale_auth_connect_v4"
  action       = "block"
  sublayer     = "inspection"
  protocols    = ["tcp"]
  remote_ports = ["80", "6000-6063"]
  remote       = ["10.0.0.0/8", "198.51.100.1-198.51.100.9"]
  apps         = ["c:\\windows\\system32\\curl.exe"]
  weight       = 12
}
`

func TestExport_RoundTrip(t *testing.T) {
	eng := enginetest.New()
	s := newSession(t, eng)

	_, err := Apply(s, renderDoc(t, docFull))
	require.NoError(t, err)

	doc, err := Export(s, "corp")
	require.NoError(t, err)

	data := doc.EncodeHCL()
	assert.Contains(t, string(data), `provider = "corp"`)
	assert.Contains(t, string(data), `filter "web-block"`)

	doc2, err := Parse("export.hcl", data)
	require.NoError(t, err)
	r2, err := doc2.Render(nil)
	require.NoError(t, err)

	assert.Equal(t, renderedText(renderDoc(t, docFull)), renderedText(r2))

	plan, err := Plan(s, r2)
	require.NoError(t, err)
	assert.True(t, plan.InSync, "re-applying an export must be a no-op")
}

func TestExport_DocumentShape(t *testing.T) {
	eng := enginetest.New()
	s := newSession(t, eng)

	_, err := Apply(s, renderDoc(t, docFull))
	require.NoError(t, err)

	doc, err := Export(s, "corp")
	require.NoError(t, err)

	assert.Equal(t, "corp", doc.Provider)
	require.Len(t, doc.SubLayers, 1)
	assert.Equal(t, SubLayerRule{
		Name:        "inspection",
		Description: "managed inspection order",
		Weight:      100,
	}, doc.SubLayers[0])

	require.Len(t, doc.Filters, 2)
	assert.Equal(t, "dns-local", doc.Filters[0].Name, "filters export sorted by name")

	web := doc.Filters[1]
	assert.Equal(t, "web-block", web.Name)
	assert.Equal(t, "ale_auth_connect_v4", web.Layer)
	assert.Equal(t, "block", web.Action)
	assert.Equal(t, "inspection", web.SubLayer)
	assert.Equal(t, []string{"tcp"}, web.Protocols)
	assert.Equal(t, []string{"80", "6000-6063"}, web.RemotePorts)
	assert.Equal(t, []string{"10.0.0.0/8", "198.51.100.1-198.51.100.9"}, web.Remote)
	assert.Equal(t, []string{`c:\windows\system32\curl.exe`}, web.Apps)
	assert.Equal(t, 12, web.Weight)
}

func TestExport_DefaultProviderOmitted(t *testing.T) {
	eng := enginetest.New()
	s := newSession(t, eng)

	_, err := Apply(s, renderDoc(t, `
filter "plain" {
  layer  = "ale_auth_connect_v4"
  action = "permit"
}
`))
	require.NoError(t, err)

	doc, err := Export(s, "")
	require.NoError(t, err)
	assert.Empty(t, doc.Provider)

	data := doc.EncodeHCL()
	assert.NotContains(t, string(data), "provider =")

	doc2, err := Parse("export.hcl", data)
	require.NoError(t, err)
	r2, err := doc2.Render(nil)
	require.NoError(t, err)
	plan, err := Plan(s, r2)
	require.NoError(t, err)
	assert.True(t, plan.InSync)
}

func TestExport_HostConditionsBecomeAddresses(t *testing.T) {
	eng := enginetest.New()
	s := newSession(t, eng)

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
		},
	}}
	r, err := doc.Render(res)
	require.NoError(t, err)
	_, err = Apply(s, r)
	require.NoError(t, err)

	out, err := Export(s, "")
	require.NoError(t, err)
	require.Len(t, out.Filters, 1)
	assert.Empty(t, out.Filters[0].Hosts)
	assert.Equal(t, []string{"192.0.2.10/32", "192.0.2.11/32"}, out.Filters[0].Remote)
}

func TestExport_EmptySet(t *testing.T) {
	eng := enginetest.New()
	s := newSession(t, eng)

	doc, err := Export(s, "corp")
	require.NoError(t, err)
	assert.Empty(t, doc.SubLayers)
	assert.Empty(t, doc.Filters)

	_, err = Parse("export.hcl", doc.EncodeHCL())
	require.NoError(t, err)
}

func TestExport_NumericProtocol(t *testing.T) {
	eng := enginetest.New()
	s := newSession(t, eng)

	prov, err := serac.NewProvider().
		Key(ManagedKey("provider", "corp")).
		Name("corp").
		Build()
	require.NoError(t, err)
	require.NoError(t, s.AddProvider(prov))

	f, err := serac.NewFilter().
		Name("gre").
		Provider(prov.Key).
		Layer(serac.LayerOutboundTransportV4).
		Action(serac.ActionPermit).
		Condition(serac.TransportProtocol(47)).
		Build()
	require.NoError(t, err)
	_, err = s.AddFilter(f)
	require.NoError(t, err)

	doc, err := Export(s, "corp")
	require.NoError(t, err)
	require.Len(t, doc.Filters, 1)
	assert.Equal(t, []string{"47"}, doc.Filters[0].Protocols)

	doc2, err := Parse("export.hcl", doc.EncodeHCL())
	require.NoError(t, err)
	_, err = doc2.Render(nil)
	require.NoError(t, err)
}

func TestExport_ForeignSublayerReference(t *testing.T) {
	eng := enginetest.New()
	s := newSession(t, eng)

	shared, err := serac.NewSubLayer().Name("shared").Weight(10).Build()
	require.NoError(t, err)
	require.NoError(t, s.AddSubLayer(shared))

	prov, err := serac.NewProvider().
		Key(ManagedKey("provider", "corp")).
		Name("corp").
		Build()
	require.NoError(t, err)
	require.NoError(t, s.AddProvider(prov))

	f, err := serac.NewFilter().
		Name("pinned").
		Provider(prov.Key).
		Layer(serac.LayerALEAuthConnectV4).
		SubLayer(shared.Key).
		Action(serac.ActionPermit).
		Build()
	require.NoError(t, err)
	_, err = s.AddFilter(f)
	require.NoError(t, err)

	_, err = Export(s, "corp")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pinned")
	assert.Contains(t, err.Error(), "not managed by this provider")
}

func TestExport_InexpressibleCondition(t *testing.T) {
	eng := enginetest.New()
	s := newSession(t, eng)

	prov, err := serac.NewProvider().
		Key(ManagedKey("provider", "corp")).
		Name("corp").
		Build()
	require.NoError(t, err)
	require.NoError(t, s.AddProvider(prov))

	f, err := serac.NewFilter().
		Name("ephemeral").
		Provider(prov.Key).
		Layer(serac.LayerALEAuthConnectV4).
		Action(serac.ActionBlock).
		Condition(serac.RemotePort(serac.MatchGreater, 1024)).
		Build()
	require.NoError(t, err)
	_, err = s.AddFilter(f)
	require.NoError(t, err)

	_, err = Export(s, "corp")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ephemeral")
	assert.Contains(t, err.Error(), "cannot be expressed in a rule file")
}
