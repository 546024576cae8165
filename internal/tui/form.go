package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"

	"grimm.is/serac"
	"grimm.is/serac/internal/rulefile"
)

// FilterDraft collects the answers from the interactive add form. Every
// field is a string so the CLI can bind the same struct to flags; Filter
// does the parsing either way.
type FilterDraft struct {
	Name        string
	Description string
	Layer       string
	Action      string
	SubLayer    string // GUID, empty targets the default sublayer
	Protocol    string // empty matches any transport
	RemotePorts string // comma-separated "80" or "6000-6063" specs
	LocalPorts  string
	Remote      string // comma-separated prefixes, addresses, or ranges
	Local       string
	App         string // application path
	Weight      string // decimal, empty lets the engine pick
}

// NewFilterForm builds the interactive form for a single filter add.
func NewFilterForm(d *FilterDraft) *huh.Form {
	var layerOpts []huh.Option[string]
	for _, l := range serac.Layers() {
		layerOpts = append(layerOpts, huh.NewOption(l.String(), l.String()))
	}

	actionOpts := []huh.Option[string]{
		huh.NewOption("block", "block"),
		huh.NewOption("permit", "permit"),
	}

	protocolOpts := []huh.Option[string]{
		huh.NewOption("any", ""),
		huh.NewOption("tcp", "tcp"),
		huh.NewOption("udp", "udp"),
		huh.NewOption("icmp", "icmp"),
		huh.NewOption("icmpv6", "icmpv6"),
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Name").
				Validate(required).
				Value(&d.Name),
			huh.NewInput().
				Title("Description").
				Value(&d.Description),
			huh.NewSelect[string]().
				Title("Layer").
				Options(layerOpts...).
				Value(&d.Layer),
			huh.NewSelect[string]().
				Title("Action").
				Options(actionOpts...).
				Value(&d.Action),
			huh.NewInput().
				Title("Sublayer key").
				Description("Optional GUID; empty targets the default sublayer").
				Validate(optionalGUID).
				Value(&d.SubLayer),
			huh.NewSelect[string]().
				Title("Protocol").
				Options(protocolOpts...).
				Value(&d.Protocol),
			huh.NewInput().
				Title("Remote ports").
				Placeholder("80, 6000-6063").
				Validate(validPorts).
				Value(&d.RemotePorts),
			huh.NewInput().
				Title("Local ports").
				Validate(validPorts).
				Value(&d.LocalPorts),
			huh.NewInput().
				Title("Remote addresses").
				Placeholder("10.0.0.0/8, 192.0.2.7").
				Validate(validAddrs).
				Value(&d.Remote),
			huh.NewInput().
				Title("Local addresses").
				Validate(validAddrs).
				Value(&d.Local),
			huh.NewInput().
				Title("Application path").
				Value(&d.App),
			huh.NewInput().
				Title("Weight").
				Description("Empty lets the engine pick").
				Validate(validWeight).
				Value(&d.Weight),
		),
	).WithTheme(huh.ThemeBase16())
}

// Filter converts the draft into an engine filter. The builder re-checks
// everything the form validators checked, so flag-driven drafts that never
// saw the form get the same errors.
func (d *FilterDraft) Filter() (*serac.Filter, error) {
	layer, err := serac.ParseLayer(strings.TrimSpace(d.Layer))
	if err != nil {
		return nil, err
	}
	action, err := serac.ParseAction(strings.TrimSpace(d.Action))
	if err != nil {
		return nil, err
	}

	b := serac.NewFilter().
		Name(strings.TrimSpace(d.Name)).
		Layer(layer).
		Action(action)

	if desc := strings.TrimSpace(d.Description); desc != "" {
		b.Description(desc)
	}
	if sub := strings.TrimSpace(d.SubLayer); sub != "" {
		key, err := serac.ParseGUID(sub)
		if err != nil {
			return nil, fmt.Errorf("sublayer key: %w", err)
		}
		b.SubLayer(key)
	}
	if proto := strings.TrimSpace(d.Protocol); proto != "" {
		p, err := serac.ParseProtocol(strings.ToLower(proto))
		if err != nil {
			return nil, err
		}
		b.Condition(serac.TransportProtocol(p))
	}
	for _, spec := range splitList(d.RemotePorts) {
		c, err := rulefile.PortCondition(spec, true)
		if err != nil {
			return nil, err
		}
		b.Condition(c)
	}
	for _, spec := range splitList(d.LocalPorts) {
		c, err := rulefile.PortCondition(spec, false)
		if err != nil {
			return nil, err
		}
		b.Condition(c)
	}
	for _, spec := range splitList(d.Remote) {
		c, err := rulefile.AddressCondition(spec, true)
		if err != nil {
			return nil, err
		}
		b.Condition(c)
	}
	for _, spec := range splitList(d.Local) {
		c, err := rulefile.AddressCondition(spec, false)
		if err != nil {
			return nil, err
		}
		b.Condition(c)
	}
	if app := strings.TrimSpace(d.App); app != "" {
		b.Condition(serac.Application(app))
	}
	if w := strings.TrimSpace(d.Weight); w != "" {
		n, err := strconv.ParseUint(w, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("weight must be a non-negative integer")
		}
		b.Weight(n)
	}

	return b.Build()
}

// splitList splits a comma-separated field, dropping empty entries.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Form input validators.

func required(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("this field is required")
	}
	return nil
}

func optionalGUID(s string) error {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	_, err := serac.ParseGUID(strings.TrimSpace(s))
	return err
}

func validPorts(s string) error {
	for _, spec := range splitList(s) {
		if _, err := rulefile.PortCondition(spec, true); err != nil {
			return err
		}
	}
	return nil
}

func validAddrs(s string) error {
	for _, spec := range splitList(s) {
		if _, err := rulefile.AddressCondition(spec, true); err != nil {
			return err
		}
	}
	return nil
}

func validWeight(s string) error {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	if _, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64); err != nil {
		return fmt.Errorf("weight must be a non-negative integer")
	}
	return nil
}
