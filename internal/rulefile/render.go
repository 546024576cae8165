package rulefile

import (
	"fmt"
	"net/netip"
	"strings"

	"github.com/miekg/dns"

	"grimm.is/serac"
)

// HostResolver is the part of Resolver the renderer needs. Lookup returns
// every address a host name resolves to, both families.
type HostResolver interface {
	Lookup(host string) ([]netip.Addr, error)
}

// Rendered is the complete object set a document denotes once host names
// are resolved: one provider, the document's sublayers, and its filters.
// Every object carries a ManagedKey and references the provider.
type Rendered struct {
	Provider  *serac.Provider
	SubLayers []*serac.SubLayer
	Filters   []*serac.Filter

	// Source is the rule file path, when known.
	Source string
}

// Render resolves host names through r and builds the document's objects.
// Documents without hosts accept a nil resolver.
func (d *Document) Render(r HostResolver) (*Rendered, error) {
	if r == nil {
		for _, f := range d.Filters {
			if len(f.Hosts) > 0 {
				return nil, fmt.Errorf("filter %q lists hosts but no resolver is configured", f.Name)
			}
		}
	}
	return d.render(r)
}

// render does the actual work. A nil resolver checks host syntax but adds
// no host conditions, which is what Validate wants.
func (d *Document) render(r HostResolver) (*Rendered, error) {
	seen := make(map[string]bool, len(d.SubLayers))
	for _, sl := range d.SubLayers {
		if seen[sl.Name] {
			return nil, fmt.Errorf("duplicate sublayer %q", sl.Name)
		}
		seen[sl.Name] = true
	}
	seen = make(map[string]bool, len(d.Filters))
	for _, f := range d.Filters {
		if seen[f.Name] {
			return nil, fmt.Errorf("duplicate filter %q", f.Name)
		}
		seen[f.Name] = true
	}

	name := d.providerName()
	pKey := ManagedKey("provider", name)
	prov, err := serac.NewProvider().
		Key(pKey).
		Name(name).
		Description("managed by rule file").
		Build()
	if err != nil {
		return nil, fmt.Errorf("provider %q: %w", name, err)
	}

	out := &Rendered{Provider: prov, Source: d.source}
	for _, sl := range d.SubLayers {
		if err := checkSubLayerWeight(sl.Weight); err != nil {
			return nil, fmt.Errorf("sublayer %q: %w", sl.Name, err)
		}
		obj, err := serac.NewSubLayer().
			Key(ManagedKey("sublayer", sl.Name)).
			Name(sl.Name).
			Description(sl.Description).
			Provider(pKey).
			Weight(uint16(sl.Weight)).
			Build()
		if err != nil {
			return nil, fmt.Errorf("sublayer %q: %w", sl.Name, err)
		}
		out.SubLayers = append(out.SubLayers, obj)
	}
	for _, f := range d.Filters {
		obj, err := d.renderFilter(f, pKey, r)
		if err != nil {
			return nil, fmt.Errorf("filter %q: %w", f.Name, err)
		}
		out.Filters = append(out.Filters, obj)
	}
	return out, nil
}

func (d *Document) renderFilter(f FilterRule, provider serac.GUID, r HostResolver) (*serac.Filter, error) {
	layer, err := serac.ParseLayer(f.Layer)
	if err != nil {
		return nil, err
	}
	action, err := serac.ParseAction(f.Action)
	if err != nil {
		return nil, err
	}
	switch action {
	case serac.ActionBlock, serac.ActionPermit:
	default:
		return nil, fmt.Errorf("action %s needs a callout key, which rule files cannot express", action)
	}
	if f.Weight < 0 {
		return nil, fmt.Errorf("negative weight %d", f.Weight)
	}

	b := serac.NewFilter().
		Key(ManagedKey("filter", f.Name)).
		Name(f.Name).
		Description(f.Description).
		Provider(provider).
		Layer(layer).
		Action(action).
		Weight(uint64(f.Weight))
	if f.SubLayer != "" {
		if !d.hasSubLayer(f.SubLayer) {
			return nil, fmt.Errorf("unknown sublayer %q", f.SubLayer)
		}
		b.SubLayer(ManagedKey("sublayer", f.SubLayer))
	}

	for _, p := range f.Protocols {
		proto, err := serac.ParseProtocol(strings.ToLower(p))
		if err != nil {
			return nil, err
		}
		b.Condition(serac.TransportProtocol(proto))
	}
	for _, spec := range f.RemotePorts {
		c, err := PortCondition(spec, true)
		if err != nil {
			return nil, err
		}
		b.Condition(c)
	}
	for _, spec := range f.LocalPorts {
		c, err := PortCondition(spec, false)
		if err != nil {
			return nil, err
		}
		b.Condition(c)
	}
	for _, spec := range f.Remote {
		c, err := AddressCondition(spec, true)
		if err != nil {
			return nil, err
		}
		b.Condition(c)
	}
	for _, spec := range f.Local {
		c, err := AddressCondition(spec, false)
		if err != nil {
			return nil, err
		}
		b.Condition(c)
	}
	for _, h := range f.Hosts {
		if _, ok := dns.IsDomainName(h); !ok || h == "" {
			return nil, fmt.Errorf("bad host name %q", h)
		}
		if r == nil {
			continue
		}
		addrs, err := r.Lookup(h)
		if err != nil {
			return nil, err
		}
		matched := 0
		for _, a := range addrs {
			if a.Is4() != (layer.IPVersion() == 4) {
				continue
			}
			b.Condition(serac.RemoteAddress(netip.PrefixFrom(a, a.BitLen())))
			matched++
		}
		if matched == 0 {
			return nil, fmt.Errorf("host %q has no IPv%d addresses", h, layer.IPVersion())
		}
	}
	for _, app := range f.Apps {
		if app == "" {
			return nil, fmt.Errorf("empty application path")
		}
		b.Condition(serac.Application(app))
	}

	return b.Build()
}
