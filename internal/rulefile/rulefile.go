// Package rulefile loads declarative filter rule files and renders them
// into engine objects with stable identities, so re-applying a file
// replaces exactly the objects it created last time.
//
// Files are HCL by default; YAML and JSON carrying the same schema are
// accepted by extension:
//
//	sublayer "inspection" {
//	  weight = 200
//	}
//
//	filter "block-http" {
//	  layer        = "ale_auth_connect_v4"
//	  action       = "block"
//	  sublayer     = "inspection"
//	  protocols    = ["tcp"]
//	  remote_ports = ["80", "8080"]
//	}
package rulefile

import (
	"encoding/json"
	"fmt"
	"math"
	"net/netip"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/hashicorp/hcl/v2/hclsimple"
	"gopkg.in/yaml.v2"

	"grimm.is/serac"
)

// DefaultProvider names the provider that owns a document's objects when
// the document does not set one.
const DefaultProvider = "serac"

// managedNamespace scopes the name-derived keys of managed objects. Two
// documents naming an object the same way produce the same key.
var managedNamespace = uuid.MustParse("2f2e9a3b-66cd-4f44-8295-0d7c3bd01e6f")

// ManagedKey derives the engine key for a managed object from its kind
// ("provider", "sublayer", "filter") and name. The derivation is what
// makes applying a rule file idempotent: the same name always maps to the
// same key, so a re-apply replaces rather than accumulates.
func ManagedKey(kind, name string) serac.GUID {
	return serac.KeyFromUUID(uuid.NewSHA1(managedNamespace, fmt.Appendf(nil, "%s/%s", kind, name)))
}

// Document is the parsed form of a rule file.
type Document struct {
	// Provider labels the provider that owns every object the document
	// renders. Empty means DefaultProvider.
	Provider string `hcl:"provider,optional" json:"provider,omitempty" yaml:"provider,omitempty"`

	SubLayers []SubLayerRule `hcl:"sublayer,block" json:"sublayers,omitempty" yaml:"sublayers,omitempty"`
	Filters   []FilterRule   `hcl:"filter,block" json:"filters,omitempty" yaml:"filters,omitempty"`

	source string
}

// Source returns the path the document was loaded from, when known.
func (d *Document) Source() string { return d.source }

// SubLayerRule declares one ordering sublayer.
type SubLayerRule struct {
	Name        string `hcl:"name,label" json:"name" yaml:"name"`
	Description string `hcl:"description,optional" json:"description,omitempty" yaml:"description,omitempty"`
	Weight      int    `hcl:"weight,optional" json:"weight,omitempty" yaml:"weight,omitempty"`
}

// FilterRule declares one filter. Entries within one list are alternatives
// (the engine ORs conditions on the same field); separate lists must all
// match. Ports are single values or "lo-hi" ranges; addresses are CIDR
// prefixes, single addresses, or "lo-hi" ranges. Hosts become remote
// address conditions once resolved.
type FilterRule struct {
	Name        string   `hcl:"name,label" json:"name" yaml:"name"`
	Description string   `hcl:"description,optional" json:"description,omitempty" yaml:"description,omitempty"`
	Layer       string   `hcl:"layer" json:"layer" yaml:"layer"`
	Action      string   `hcl:"action" json:"action" yaml:"action"`
	SubLayer    string   `hcl:"sublayer,optional" json:"sublayer,omitempty" yaml:"sublayer,omitempty"`
	Protocols   []string `hcl:"protocols,optional" json:"protocols,omitempty" yaml:"protocols,omitempty"`
	RemotePorts []string `hcl:"remote_ports,optional" json:"remote_ports,omitempty" yaml:"remote_ports,omitempty"`
	LocalPorts  []string `hcl:"local_ports,optional" json:"local_ports,omitempty" yaml:"local_ports,omitempty"`
	Remote      []string `hcl:"remote,optional" json:"remote,omitempty" yaml:"remote,omitempty"`
	Local       []string `hcl:"local,optional" json:"local,omitempty" yaml:"local,omitempty"`
	Hosts       []string `hcl:"hosts,optional" json:"hosts,omitempty" yaml:"hosts,omitempty"`
	Apps        []string `hcl:"apps,optional" json:"apps,omitempty" yaml:"apps,omitempty"`
	Weight      int      `hcl:"weight,optional" json:"weight,omitempty" yaml:"weight,omitempty"`
}

// Load reads and validates a rule file. The extension picks the format:
// ".hcl" and ".json" decode as written, ".yaml"/".yml" as YAML, and
// anything else tries HCL first and falls back to YAML.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rule file: %w", err)
	}
	return Parse(path, data)
}

// Parse decodes and validates rule file bytes. The filename is used for
// format selection and diagnostics only.
func Parse(filename string, data []byte) (*Document, error) {
	var doc Document
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		if err := yaml.UnmarshalStrict(data, &doc); err != nil {
			return nil, fmt.Errorf("decode rule file: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("decode rule file: %w", err)
		}
	case ".hcl":
		if err := hclsimple.Decode(filename, data, nil, &doc); err != nil {
			return nil, fmt.Errorf("decode rule file: %w", err)
		}
	default:
		if hclErr := hclsimple.Decode(filename+".hcl", data, nil, &doc); hclErr != nil {
			doc = Document{}
			if err := yaml.UnmarshalStrict(data, &doc); err != nil {
				return nil, fmt.Errorf("decode rule file: %w", hclErr)
			}
		}
	}
	doc.source = filename
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Validate checks everything about the document that does not require
// hostname resolution: names, references, layer and action spellings,
// port, protocol, and address syntax, and per-layer condition
// compatibility.
func (d *Document) Validate() error {
	_, err := d.render(nil)
	return err
}

func (d *Document) providerName() string {
	if d.Provider != "" {
		return d.Provider
	}
	return DefaultProvider
}

func (d *Document) hasSubLayer(name string) bool {
	for _, sl := range d.SubLayers {
		if sl.Name == name {
			return true
		}
	}
	return false
}

// parsePort parses a single decimal port.
func parsePort(s string) (uint16, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 16)
	if err != nil {
		return 0, fmt.Errorf("bad port %q", s)
	}
	return uint16(n), nil
}

// PortCondition turns "80" or "6000-6063" into a port condition for the
// remote or local side. The CLI's add form parses its port fields with it
// too, so flag-driven and file-driven rules accept the same spellings.
func PortCondition(spec string, remote bool) (serac.Condition, error) {
	if lo, hi, ok := strings.Cut(spec, "-"); ok {
		l, err := parsePort(lo)
		if err != nil {
			return serac.Condition{}, err
		}
		h, err := parsePort(hi)
		if err != nil {
			return serac.Condition{}, err
		}
		if remote {
			return serac.RemotePortRange(l, h), nil
		}
		return serac.LocalPortRange(l, h), nil
	}
	p, err := parsePort(spec)
	if err != nil {
		return serac.Condition{}, err
	}
	if remote {
		return serac.RemotePort(serac.MatchEqual, p), nil
	}
	return serac.LocalPort(serac.MatchEqual, p), nil
}

// AddressCondition turns "10.0.0.0/8", "192.0.2.7", or "10.0.0.1-10.0.0.9"
// into an address condition for the remote or local side. A bare address
// becomes a full-length prefix.
func AddressCondition(spec string, remote bool) (serac.Condition, error) {
	switch {
	case strings.Contains(spec, "/"):
		p, err := netip.ParsePrefix(spec)
		if err != nil {
			return serac.Condition{}, fmt.Errorf("bad address %q: %w", spec, err)
		}
		if remote {
			return serac.RemoteAddress(p), nil
		}
		return serac.LocalAddress(p), nil
	case strings.Contains(spec, "-"):
		lo, hi, _ := strings.Cut(spec, "-")
		loA, err := netip.ParseAddr(strings.TrimSpace(lo))
		if err != nil {
			return serac.Condition{}, fmt.Errorf("bad address %q: %w", spec, err)
		}
		hiA, err := netip.ParseAddr(strings.TrimSpace(hi))
		if err != nil {
			return serac.Condition{}, fmt.Errorf("bad address %q: %w", spec, err)
		}
		if remote {
			return serac.RemoteAddressRange(loA, hiA), nil
		}
		return serac.LocalAddressRange(loA, hiA), nil
	default:
		a, err := netip.ParseAddr(spec)
		if err != nil {
			return serac.Condition{}, fmt.Errorf("bad address %q: %w", spec, err)
		}
		p := netip.PrefixFrom(a, a.BitLen())
		if remote {
			return serac.RemoteAddress(p), nil
		}
		return serac.LocalAddress(p), nil
	}
}

func checkSubLayerWeight(w int) error {
	if w < 0 || w > math.MaxUint16 {
		return fmt.Errorf("weight %d out of range 0-%d", w, math.MaxUint16)
	}
	return nil
}
