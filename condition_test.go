package serac

import (
	"errors"
	"net/netip"
	"testing"
)

func TestParseProtocol(t *testing.T) {
	tests := []struct {
		in      string
		want    Protocol
		wantErr bool
	}{
		{"tcp", ProtocolTCP, false},
		{"udp", ProtocolUDP, false},
		{"icmp", ProtocolICMP, false},
		{"icmpv6", ProtocolICMPv6, false},
		{"6", ProtocolTCP, false},
		{"47", Protocol(47), false},
		{"gre", 0, true},
		{"300", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseProtocol(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseProtocol(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseProtocol(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestCondition_Constructors(t *testing.T) {
	c := RemotePort(MatchEqual, 443)
	if c.Field != FieldIPRemotePort || c.Match != MatchEqual {
		t.Errorf("RemotePort built %+v", c)
	}
	if v, ok := c.Value.(PortValue); !ok || v != 443 {
		t.Errorf("RemotePort value = %v", c.Value)
	}

	c = LocalPortRange(1024, 65535)
	if v, ok := c.Value.(PortRangeValue); !ok || v.Lo != 1024 || v.Hi != 65535 {
		t.Errorf("LocalPortRange value = %v", c.Value)
	}

	// Prefixes are canonicalized to their masked form.
	c = RemoteAddress(netip.MustParsePrefix("10.1.2.3/16"))
	if v, ok := c.Value.(PrefixValue); !ok || netip.Prefix(v).String() != "10.1.0.0/16" {
		t.Errorf("RemoteAddress value = %v", c.Value)
	}

	c = TransportProtocol(ProtocolUDP)
	if v, ok := c.Value.(ProtocolValue); !ok || Protocol(v) != ProtocolUDP {
		t.Errorf("TransportProtocol value = %v", c.Value)
	}

	c = Application(`C:\Windows\System32\svchost.exe`)
	if c.Field != FieldALEAppID || c.Match != MatchEqual {
		t.Errorf("Application built %+v", c)
	}
}

func TestCondition_String(t *testing.T) {
	tests := []struct {
		cond Condition
		want string
	}{
		{RemotePort(MatchEqual, 80), "ip_remote_port == 80"},
		{LocalPort(MatchGreaterOrEqual, 1024), "ip_local_port >= 1024"},
		{RemotePortRange(6000, 6063), "ip_remote_port in 6000-6063"},
		{TransportProtocol(ProtocolTCP), "ip_protocol == tcp"},
		{RemoteAddress(netip.MustParsePrefix("192.168.0.0/24")), "ip_remote_address == 192.168.0.0/24"},
		{RemotePort(MatchNotEqual, 53), "ip_remote_port != 53"},
	}
	for _, tt := range tests {
		if got := tt.cond.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestCondition_Validate(t *testing.T) {
	v4 := netip.MustParseAddr("10.0.0.1")
	v6 := netip.MustParseAddr("fd00::1")

	tests := []struct {
		name    string
		cond    Condition
		wantErr error
	}{
		{"port equal", RemotePort(MatchEqual, 443), nil},
		{"port ordered", LocalPort(MatchLess, 1024), nil},
		{"port not equal", RemotePort(MatchNotEqual, 53), nil},
		{"port range", RemotePortRange(1000, 2000), nil},
		{"protocol", TransportProtocol(ProtocolTCP), nil},
		{"prefix v4", RemoteAddress(netip.MustParsePrefix("10.0.0.0/8")), nil},
		{"prefix v6", LocalAddress(netip.MustParsePrefix("fd00::/8")), nil},
		{"addr range", RemoteAddressRange(v4, netip.MustParseAddr("10.0.0.9")), nil},
		{"application", Application(`C:\app.exe`), nil},

		{"missing field", Condition{Match: MatchEqual, Value: PortValue(1)}, ErrMissingField},
		{"missing value", Condition{Field: FieldIPRemotePort, Match: MatchEqual}, ErrMissingField},
		{"bad match code", Condition{Field: FieldIPRemotePort, Match: Match(7), Value: PortValue(1)}, ErrInvalidComparator},
		{"range match on single port", Condition{Field: FieldIPRemotePort, Match: MatchRange, Value: PortValue(1)}, ErrInvalidComparator},
		{"equal match on port range", Condition{Field: FieldIPRemotePort, Match: MatchEqual, Value: PortRangeValue{1, 2}}, ErrInvalidComparator},
		{"reversed port range", RemotePortRange(2000, 1000), ErrInvalidComparator},
		{"port value on protocol field", Condition{Field: FieldIPProtocol, Match: MatchEqual, Value: PortValue(6)}, ErrInvalidComparator},
		{"ordered match on prefix", Condition{Field: FieldIPRemoteAddress, Match: MatchGreater, Value: PrefixValue(netip.MustParsePrefix("10.0.0.0/8"))}, ErrInvalidComparator},
		{"invalid prefix", Condition{Field: FieldIPRemoteAddress, Match: MatchEqual, Value: PrefixValue{}}, ErrInvalidComparator},
		{"mixed family range", Condition{Field: FieldIPRemoteAddress, Match: MatchRange, Value: AddrRangeValue{Lo: v4, Hi: v6}}, ErrInvalidComparator},
		{"reversed addr range", RemoteAddressRange(netip.MustParseAddr("10.0.0.9"), v4), ErrInvalidComparator},
		{"missing range endpoint", Condition{Field: FieldIPRemoteAddress, Match: MatchRange, Value: AddrRangeValue{Lo: v4}}, ErrInvalidComparator},
		{"empty application path", Application(""), ErrMissingField},
		{"odd length app id", Condition{Field: FieldALEAppID, Match: MatchEqual, Value: AppIDValue{0x61}}, ErrInvalidComparator},
		{"app id on port field", Condition{Field: FieldIPRemotePort, Match: MatchEqual, Value: AppIDValue{0x61, 0}}, ErrInvalidComparator},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cond.validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestAppIDValue_String(t *testing.T) {
	// "c:\x.exe" as NUL-terminated UTF-16LE.
	raw := AppIDValue{'c', 0, ':', 0, '\\', 0, 'x', 0, '.', 0, 'e', 0, 'x', 0, 'e', 0, 0, 0}
	if got := raw.String(); got != `c:\x.exe` {
		t.Errorf("String() = %q", got)
	}
}

func TestCondition_IPFamily(t *testing.T) {
	if fam := RemoteAddress(netip.MustParsePrefix("10.0.0.0/8")).ipFamily(); fam != 4 {
		t.Errorf("v4 prefix family = %d", fam)
	}
	if fam := LocalAddress(netip.MustParsePrefix("fd00::/8")).ipFamily(); fam != 6 {
		t.Errorf("v6 prefix family = %d", fam)
	}
	if fam := RemotePort(MatchEqual, 80).ipFamily(); fam != 0 {
		t.Errorf("port condition family = %d", fam)
	}
}
