package serac

import (
	"fmt"
	"net/netip"
	"strconv"
	"unicode/utf16"
)

// Field identifies the traffic property a condition tests.
type Field uint8

const (
	FieldIPRemoteAddress Field = iota + 1
	FieldIPLocalAddress
	FieldIPRemotePort
	FieldIPLocalPort
	FieldIPProtocol
	FieldALEAppID
)

var fieldNames = map[Field]string{
	FieldIPRemoteAddress: "ip_remote_address",
	FieldIPLocalAddress:  "ip_local_address",
	FieldIPRemotePort:    "ip_remote_port",
	FieldIPLocalPort:     "ip_local_port",
	FieldIPProtocol:      "ip_protocol",
	FieldALEAppID:        "ale_app_id",
}

// Valid reports whether f is one of the supported fields.
func (f Field) Valid() bool {
	_, ok := fieldNames[f]
	return ok
}

func (f Field) String() string {
	if name, ok := fieldNames[f]; ok {
		return name
	}
	return fmt.Sprintf("field(%d)", uint8(f))
}

// Match is the comparison a condition applies. Values are the native match
// type codes.
type Match uint8

const (
	MatchEqual          Match = 0
	MatchGreater        Match = 1
	MatchLess           Match = 2
	MatchGreaterOrEqual Match = 3
	MatchLessOrEqual    Match = 4
	MatchRange          Match = 5
	MatchNotEqual       Match = 10
)

var matchSymbols = map[Match]string{
	MatchEqual:          "==",
	MatchGreater:        ">",
	MatchLess:           "<",
	MatchGreaterOrEqual: ">=",
	MatchLessOrEqual:    "<=",
	MatchRange:          "in",
	MatchNotEqual:       "!=",
}

// Valid reports whether m is one of the supported comparators.
func (m Match) Valid() bool {
	_, ok := matchSymbols[m]
	return ok
}

func (m Match) String() string {
	if sym, ok := matchSymbols[m]; ok {
		return sym
	}
	return fmt.Sprintf("match(%d)", uint8(m))
}

// scalar reports whether m orders or compares single numeric values.
func (m Match) scalar() bool {
	switch m {
	case MatchEqual, MatchNotEqual, MatchGreater, MatchLess, MatchGreaterOrEqual, MatchLessOrEqual:
		return true
	}
	return false
}

// Protocol is an IP transport protocol number.
type Protocol uint8

const (
	ProtocolICMP   Protocol = 1
	ProtocolTCP    Protocol = 6
	ProtocolUDP    Protocol = 17
	ProtocolICMPv6 Protocol = 58
)

var protocolNames = map[Protocol]string{
	ProtocolICMP:   "icmp",
	ProtocolTCP:    "tcp",
	ProtocolUDP:    "udp",
	ProtocolICMPv6: "icmpv6",
}

// ParseProtocol parses a protocol by name or decimal number.
func ParseProtocol(s string) (Protocol, error) {
	for p, name := range protocolNames {
		if name == s {
			return p, nil
		}
	}
	if n, err := strconv.ParseUint(s, 10, 8); err == nil {
		return Protocol(n), nil
	}
	return 0, fmt.Errorf("unknown protocol %q", s)
}

func (p Protocol) String() string {
	if name, ok := protocolNames[p]; ok {
		return name
	}
	return fmt.Sprintf("proto(%d)", uint8(p))
}

// Value is the test operand of a Condition. It is a sealed set: PortValue,
// PortRangeValue, ProtocolValue, PrefixValue, AddrRangeValue, AppPathValue,
// AppIDValue.
type Value interface {
	fmt.Stringer
	isValue()
}

// PortValue is a single TCP/UDP port.
type PortValue uint16

func (PortValue) isValue() {}

func (v PortValue) String() string { return strconv.Itoa(int(v)) }

// PortRangeValue is an inclusive port range.
type PortRangeValue struct {
	Lo, Hi uint16
}

func (PortRangeValue) isValue() {}

func (v PortRangeValue) String() string { return fmt.Sprintf("%d-%d", v.Lo, v.Hi) }

// ProtocolValue is an IP transport protocol number.
type ProtocolValue Protocol

func (ProtocolValue) isValue() {}

func (v ProtocolValue) String() string { return Protocol(v).String() }

// PrefixValue is an address prefix matched by equality under its mask.
type PrefixValue netip.Prefix

func (PrefixValue) isValue() {}

func (v PrefixValue) String() string { return netip.Prefix(v).String() }

// AddrRangeValue is an inclusive address range within one family.
type AddrRangeValue struct {
	Lo, Hi netip.Addr
}

func (AddrRangeValue) isValue() {}

func (v AddrRangeValue) String() string { return fmt.Sprintf("%s-%s", v.Lo, v.Hi) }

// AppPathValue is an application path awaiting canonicalization by the
// driver when the filter is staged.
type AppPathValue string

func (AppPathValue) isValue() {}

func (v AppPathValue) String() string { return string(v) }

// AppIDValue is the engine's canonical application identifier, a
// NUL-terminated UTF-16LE byte string.
type AppIDValue []byte

func (AppIDValue) isValue() {}

func (v AppIDValue) String() string { return decodeUTF16LE(v) }

func decodeUTF16LE(b []byte) string {
	u := make([]uint16, 0, len(b)/2)
	for i := 0; i+1 < len(b); i += 2 {
		u = append(u, uint16(b[i])|uint16(b[i+1])<<8)
	}
	for len(u) > 0 && u[len(u)-1] == 0 {
		u = u[:len(u)-1]
	}
	return string(utf16.Decode(u))
}

// Condition is one (field, comparator, value) test on a filter. Conditions
// on the same field OR together; conditions across fields AND. Build them
// with the constructors below; hand-assembled values are validated when the
// filter is staged.
type Condition struct {
	Field Field
	Match Match
	Value Value
}

func (c Condition) String() string {
	return fmt.Sprintf("%s %s %s", c.Field, c.Match, c.Value)
}

// RemotePort tests the remote transport port.
func RemotePort(m Match, port uint16) Condition {
	return Condition{Field: FieldIPRemotePort, Match: m, Value: PortValue(port)}
}

// LocalPort tests the local transport port.
func LocalPort(m Match, port uint16) Condition {
	return Condition{Field: FieldIPLocalPort, Match: m, Value: PortValue(port)}
}

// RemotePortRange tests the remote port against an inclusive range.
func RemotePortRange(lo, hi uint16) Condition {
	return Condition{Field: FieldIPRemotePort, Match: MatchRange, Value: PortRangeValue{Lo: lo, Hi: hi}}
}

// LocalPortRange tests the local port against an inclusive range.
func LocalPortRange(lo, hi uint16) Condition {
	return Condition{Field: FieldIPLocalPort, Match: MatchRange, Value: PortRangeValue{Lo: lo, Hi: hi}}
}

// RemoteAddress tests the remote address against a prefix. Host addresses
// are /32 or /128 prefixes.
func RemoteAddress(p netip.Prefix) Condition {
	return Condition{Field: FieldIPRemoteAddress, Match: MatchEqual, Value: PrefixValue(p.Masked())}
}

// LocalAddress tests the local address against a prefix.
func LocalAddress(p netip.Prefix) Condition {
	return Condition{Field: FieldIPLocalAddress, Match: MatchEqual, Value: PrefixValue(p.Masked())}
}

// RemoteAddressRange tests the remote address against an inclusive range.
func RemoteAddressRange(lo, hi netip.Addr) Condition {
	return Condition{Field: FieldIPRemoteAddress, Match: MatchRange, Value: AddrRangeValue{Lo: lo, Hi: hi}}
}

// LocalAddressRange tests the local address against an inclusive range.
func LocalAddressRange(lo, hi netip.Addr) Condition {
	return Condition{Field: FieldIPLocalAddress, Match: MatchRange, Value: AddrRangeValue{Lo: lo, Hi: hi}}
}

// TransportProtocol tests the IP protocol number.
func TransportProtocol(p Protocol) Condition {
	return Condition{Field: FieldIPProtocol, Match: MatchEqual, Value: ProtocolValue(p)}
}

// Application tests the identity of the application owning the traffic. The
// path is canonicalized by the driver when the filter is staged.
func Application(path string) Condition {
	return Condition{Field: FieldALEAppID, Match: MatchEqual, Value: AppPathValue(path)}
}

// validate checks the comparator and value shape against the field. Layer
// compatibility is checked separately by Filter validation, which knows the
// target layer.
func (c Condition) validate() error {
	if !c.Field.Valid() {
		return fmt.Errorf("condition field: %w", ErrMissingField)
	}
	if c.Value == nil {
		return fmt.Errorf("condition value: %w", ErrMissingField)
	}
	if !c.Match.Valid() {
		return fmt.Errorf("%s: match(%d): %w", c.Field, uint8(c.Match), ErrInvalidComparator)
	}

	switch v := c.Value.(type) {
	case PortValue:
		if c.Field != FieldIPRemotePort && c.Field != FieldIPLocalPort {
			return fmt.Errorf("%s: port value: %w", c.Field, ErrInvalidComparator)
		}
		if !c.Match.scalar() {
			return fmt.Errorf("%s: %s on single port: %w", c.Field, c.Match, ErrInvalidComparator)
		}
	case PortRangeValue:
		if c.Field != FieldIPRemotePort && c.Field != FieldIPLocalPort {
			return fmt.Errorf("%s: port range value: %w", c.Field, ErrInvalidComparator)
		}
		if c.Match != MatchRange {
			return fmt.Errorf("%s: %s on port range: %w", c.Field, c.Match, ErrInvalidComparator)
		}
		if v.Lo > v.Hi {
			return fmt.Errorf("%s: port range %d-%d reversed: %w", c.Field, v.Lo, v.Hi, ErrInvalidComparator)
		}
	case ProtocolValue:
		if c.Field != FieldIPProtocol {
			return fmt.Errorf("%s: protocol value: %w", c.Field, ErrInvalidComparator)
		}
		if !c.Match.scalar() {
			return fmt.Errorf("%s: %s on protocol: %w", c.Field, c.Match, ErrInvalidComparator)
		}
	case PrefixValue:
		if c.Field != FieldIPRemoteAddress && c.Field != FieldIPLocalAddress {
			return fmt.Errorf("%s: address prefix value: %w", c.Field, ErrInvalidComparator)
		}
		if c.Match != MatchEqual {
			return fmt.Errorf("%s: %s on address prefix: %w", c.Field, c.Match, ErrInvalidComparator)
		}
		if !netip.Prefix(v).IsValid() {
			return fmt.Errorf("%s: invalid prefix: %w", c.Field, ErrInvalidComparator)
		}
	case AddrRangeValue:
		if c.Field != FieldIPRemoteAddress && c.Field != FieldIPLocalAddress {
			return fmt.Errorf("%s: address range value: %w", c.Field, ErrInvalidComparator)
		}
		if c.Match != MatchRange {
			return fmt.Errorf("%s: %s on address range: %w", c.Field, c.Match, ErrInvalidComparator)
		}
		if !v.Lo.IsValid() || !v.Hi.IsValid() {
			return fmt.Errorf("%s: address range endpoint missing: %w", c.Field, ErrInvalidComparator)
		}
		if v.Lo.Is4() != v.Hi.Is4() {
			return fmt.Errorf("%s: address range mixes families: %w", c.Field, ErrInvalidComparator)
		}
		if v.Lo.Compare(v.Hi) > 0 {
			return fmt.Errorf("%s: address range %s reversed: %w", c.Field, v, ErrInvalidComparator)
		}
	case AppPathValue:
		if c.Field != FieldALEAppID {
			return fmt.Errorf("%s: application value: %w", c.Field, ErrInvalidComparator)
		}
		if c.Match != MatchEqual {
			return fmt.Errorf("%s: %s on application: %w", c.Field, c.Match, ErrInvalidComparator)
		}
		if v == "" {
			return fmt.Errorf("application path: %w", ErrMissingField)
		}
	case AppIDValue:
		if c.Field != FieldALEAppID {
			return fmt.Errorf("%s: application id value: %w", c.Field, ErrInvalidComparator)
		}
		if c.Match != MatchEqual {
			return fmt.Errorf("%s: %s on application id: %w", c.Field, c.Match, ErrInvalidComparator)
		}
		if len(v) == 0 || len(v)%2 != 0 {
			return fmt.Errorf("%s: malformed application id: %w", c.Field, ErrInvalidComparator)
		}
	default:
		return fmt.Errorf("%s: unsupported value %T: %w", c.Field, c.Value, ErrInvalidComparator)
	}
	return nil
}

// ipFamily returns 4 or 6 when the condition carries address values, else 0.
func (c Condition) ipFamily() int {
	switch v := c.Value.(type) {
	case PrefixValue:
		if netip.Prefix(v).Addr().Is4() {
			return 4
		}
		return 6
	case AddrRangeValue:
		if v.Lo.Is4() {
			return 4
		}
		return 6
	}
	return 0
}
