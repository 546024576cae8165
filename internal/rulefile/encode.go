package rulefile

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/zclconf/go-cty/cty"

	"grimm.is/serac"
)

// Export reconstructs a document from the objects installed under a
// provider, the inverse of Apply. Provider defaults to DefaultProvider.
// Host conditions come back as the literal addresses they resolved to at
// apply time, listed under remote.
//
// Only the condition shapes a rule file can express survive the trip:
// equality and range matches on protocol, port, address, and application
// fields. A filter carrying anything else fails the export by name.
func Export(s *serac.Session, provider string) (*Document, error) {
	if provider == "" {
		provider = DefaultProvider
	}
	filters, subs, err := installedObjects(s, ManagedKey("provider", provider))
	if err != nil {
		return nil, err
	}

	doc := &Document{}
	if provider != DefaultProvider {
		doc.Provider = provider
	}

	sort.Slice(subs, func(i, j int) bool { return subs[i].Name < subs[j].Name })
	subNames := make(map[serac.GUID]string, len(subs))
	for _, sl := range subs {
		subNames[sl.Key] = sl.Name
		doc.SubLayers = append(doc.SubLayers, SubLayerRule{
			Name:        sl.Name,
			Description: sl.Description,
			Weight:      int(sl.Weight),
		})
	}

	sort.Slice(filters, func(i, j int) bool { return filters[i].Name < filters[j].Name })
	for _, f := range filters {
		rule, err := exportFilter(f, subNames)
		if err != nil {
			return nil, err
		}
		doc.Filters = append(doc.Filters, rule)
	}
	return doc, nil
}

func exportFilter(f serac.FilterInfo, subNames map[serac.GUID]string) (FilterRule, error) {
	switch f.Action {
	case serac.ActionBlock, serac.ActionPermit:
	default:
		return FilterRule{}, fmt.Errorf("filter %q: action %s cannot be expressed in a rule file", f.Name, f.Action)
	}
	if f.Weight > math.MaxInt32 {
		return FilterRule{}, fmt.Errorf("filter %q: weight %d cannot be expressed in a rule file", f.Name, f.Weight)
	}

	rule := FilterRule{
		Name:        f.Name,
		Description: f.Description,
		Layer:       f.Layer.String(),
		Action:      f.Action.String(),
		Weight:      int(f.Weight),
	}
	if !f.SubLayer.IsZero() {
		name, ok := subNames[f.SubLayer]
		if !ok {
			return FilterRule{}, fmt.Errorf("filter %q: sublayer %s is not managed by this provider", f.Name, f.SubLayer)
		}
		rule.SubLayer = name
	}
	for _, c := range f.Conditions {
		if err := exportCondition(&rule, c); err != nil {
			return FilterRule{}, fmt.Errorf("filter %q: %w", f.Name, err)
		}
	}
	return rule, nil
}

// exportCondition appends c to the rule list that re-renders to it.
func exportCondition(rule *FilterRule, c serac.Condition) error {
	rangeOK := c.Match == serac.MatchEqual || c.Match == serac.MatchRange
	switch {
	case c.Field == serac.FieldIPProtocol && c.Match == serac.MatchEqual:
		p, ok := c.Value.(serac.ProtocolValue)
		if !ok {
			break
		}
		rule.Protocols = append(rule.Protocols, protocolSpec(serac.Protocol(p)))
		return nil
	case c.Field == serac.FieldIPRemotePort && rangeOK:
		rule.RemotePorts = append(rule.RemotePorts, c.Value.String())
		return nil
	case c.Field == serac.FieldIPLocalPort && rangeOK:
		rule.LocalPorts = append(rule.LocalPorts, c.Value.String())
		return nil
	case c.Field == serac.FieldIPRemoteAddress && rangeOK:
		rule.Remote = append(rule.Remote, c.Value.String())
		return nil
	case c.Field == serac.FieldIPLocalAddress && rangeOK:
		rule.Local = append(rule.Local, c.Value.String())
		return nil
	case c.Field == serac.FieldALEAppID && c.Match == serac.MatchEqual:
		rule.Apps = append(rule.Apps, c.Value.String())
		return nil
	}
	return fmt.Errorf("condition %q cannot be expressed in a rule file", c.String())
}

// protocolSpec spells a protocol the way ParseProtocol reads it back:
// by name when it has one, by decimal number otherwise.
func protocolSpec(p serac.Protocol) string {
	if s := p.String(); s == "icmp" || s == "tcp" || s == "udp" || s == "icmpv6" {
		return s
	}
	return strconv.Itoa(int(p))
}

// EncodeHCL renders the document as HCL source that Parse reads back.
func (d *Document) EncodeHCL() []byte {
	f := hclwrite.NewEmptyFile()
	body := f.Body()

	if d.Provider != "" {
		body.SetAttributeValue("provider", cty.StringVal(d.Provider))
	}

	for _, sl := range d.SubLayers {
		body.AppendNewline()
		b := body.AppendNewBlock("sublayer", []string{sl.Name}).Body()
		if sl.Description != "" {
			b.SetAttributeValue("description", cty.StringVal(sl.Description))
		}
		if sl.Weight != 0 {
			b.SetAttributeValue("weight", cty.NumberIntVal(int64(sl.Weight)))
		}
	}

	for _, fr := range d.Filters {
		body.AppendNewline()
		b := body.AppendNewBlock("filter", []string{fr.Name}).Body()
		if fr.Description != "" {
			b.SetAttributeValue("description", cty.StringVal(fr.Description))
		}
		b.SetAttributeValue("layer", cty.StringVal(fr.Layer))
		b.SetAttributeValue("action", cty.StringVal(fr.Action))
		if fr.SubLayer != "" {
			b.SetAttributeValue("sublayer", cty.StringVal(fr.SubLayer))
		}
		setStringList(b, "protocols", fr.Protocols)
		setStringList(b, "remote_ports", fr.RemotePorts)
		setStringList(b, "local_ports", fr.LocalPorts)
		setStringList(b, "remote", fr.Remote)
		setStringList(b, "local", fr.Local)
		setStringList(b, "hosts", fr.Hosts)
		setStringList(b, "apps", fr.Apps)
		if fr.Weight != 0 {
			b.SetAttributeValue("weight", cty.NumberIntVal(int64(fr.Weight)))
		}
	}

	return f.Bytes()
}

func setStringList(b *hclwrite.Body, name string, vals []string) {
	if len(vals) == 0 {
		return
	}
	list := make([]cty.Value, len(vals))
	for i, v := range vals {
		list[i] = cty.StringVal(v)
	}
	b.SetAttributeValue(name, cty.ListVal(list))
}
