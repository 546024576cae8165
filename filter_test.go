package serac

import (
	"errors"
	"net/netip"
	"testing"
)

func TestFilterBuilder_Build(t *testing.T) {
	f, err := NewFilter().
		Name("block http").
		Description("drop plaintext web").
		Layer(LayerALEAuthConnectV4).
		Action(ActionBlock).
		Weight(10).
		Condition(RemotePort(MatchEqual, 80)).
		Condition(TransportProtocol(ProtocolTCP)).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if f.Name != "block http" || f.Layer != LayerALEAuthConnectV4 || f.Action != ActionBlock {
		t.Errorf("built %+v", f)
	}
	if f.Weight != 10 {
		t.Errorf("weight = %d", f.Weight)
	}
	if len(f.Conditions) != 2 {
		t.Errorf("conditions = %d", len(f.Conditions))
	}
	if f.Key.IsZero() {
		t.Error("Build should stamp a key when none was set")
	}
}

func TestFilterBuilder_ExplicitKeyKept(t *testing.T) {
	key := NewKey()
	f, err := NewFilter().
		Key(key).
		Name("keyed").
		Layer(LayerALEAuthConnectV4).
		Action(ActionPermit).
		Build()
	if err != nil {
		t.Fatal(err)
	}
	if f.Key != key {
		t.Errorf("key = %s, want %s", f.Key, key)
	}
}

func TestFilterBuilder_LastWriteWins(t *testing.T) {
	f, err := NewFilter().
		Name("first").
		Name("second").
		Layer(LayerALEAuthConnectV4).
		Layer(LayerALEAuthConnectV6).
		Action(ActionBlock).
		Action(ActionPermit).
		Build()
	if err != nil {
		t.Fatal(err)
	}
	if f.Name != "second" || f.Layer != LayerALEAuthConnectV6 || f.Action != ActionPermit {
		t.Errorf("setters should replace earlier values, built %+v", f)
	}
}

func TestFilterBuilder_SingleUse(t *testing.T) {
	b := NewFilter().
		Name("once").
		Layer(LayerALEAuthConnectV4).
		Action(ActionBlock)
	if _, err := b.Build(); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Build(); !errors.Is(err, ErrBuilderUsed) {
		t.Errorf("second Build = %v, want ErrBuilderUsed", err)
	}
}

func TestFilterBuilder_RequiredFields(t *testing.T) {
	tests := []struct {
		name  string
		build func() (*Filter, error)
	}{
		{"missing name", func() (*Filter, error) {
			return NewFilter().Layer(LayerALEAuthConnectV4).Action(ActionBlock).Build()
		}},
		{"missing layer", func() (*Filter, error) {
			return NewFilter().Name("x").Action(ActionBlock).Build()
		}},
		{"missing action", func() (*Filter, error) {
			return NewFilter().Name("x").Layer(LayerALEAuthConnectV4).Build()
		}},
		{"callout action without callout key", func() (*Filter, error) {
			return NewFilter().Name("x").Layer(LayerALEAuthConnectV4).Action(ActionCalloutTerminating).Build()
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.build(); !errors.Is(err, ErrMissingField) {
				t.Errorf("Build = %v, want ErrMissingField", err)
			}
		})
	}
}

func TestFilterBuilder_CalloutAction(t *testing.T) {
	f, err := NewFilter().
		Name("inspect dns").
		Layer(LayerALEAuthConnectV4).
		Action(ActionCalloutInspection).
		Callout(NewKey()).
		Condition(RemotePort(MatchEqual, 53)).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if f.Callout.IsZero() {
		t.Error("callout key lost")
	}
}

func TestFilter_Validate_ConditionCompat(t *testing.T) {
	// Application identity is not classifiable at a packet layer.
	_, err := NewFilter().
		Name("bad").
		Layer(LayerInboundIPPacketV4).
		Action(ActionBlock).
		Condition(Application(`C:\app.exe`)).
		Build()
	if !errors.Is(err, ErrIncompatibleCondition) {
		t.Errorf("packet layer with app condition = %v, want ErrIncompatibleCondition", err)
	}

	// IPv6 value at an IPv4 layer.
	_, err = NewFilter().
		Name("bad").
		Layer(LayerALEAuthConnectV4).
		Action(ActionBlock).
		Condition(RemoteAddress(netip.MustParsePrefix("fd00::/8"))).
		Build()
	if !errors.Is(err, ErrIncompatibleCondition) {
		t.Errorf("v6 value at v4 layer = %v, want ErrIncompatibleCondition", err)
	}

	// IPv4 value at an IPv6 layer.
	_, err = NewFilter().
		Name("bad").
		Layer(LayerALEAuthConnectV6).
		Action(ActionBlock).
		Condition(RemoteAddress(netip.MustParsePrefix("10.0.0.0/8"))).
		Build()
	if !errors.Is(err, ErrIncompatibleCondition) {
		t.Errorf("v4 value at v6 layer = %v, want ErrIncompatibleCondition", err)
	}

	// Malformed condition surfaces its own usage error.
	_, err = NewFilter().
		Name("bad").
		Layer(LayerALEAuthConnectV4).
		Action(ActionBlock).
		Condition(RemotePortRange(9000, 80)).
		Build()
	if !errors.Is(err, ErrInvalidComparator) {
		t.Errorf("reversed range = %v, want ErrInvalidComparator", err)
	}
}

func TestFilterBuilder_ConditionsCloned(t *testing.T) {
	b := NewFilter().
		Name("clone").
		Layer(LayerALEAuthConnectV4).
		Action(ActionBlock).
		Condition(RemotePort(MatchEqual, 80))
	f, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}
	b.f.Conditions[0] = RemotePort(MatchEqual, 443)
	if v := f.Conditions[0].Value.(PortValue); v != 80 {
		t.Errorf("built filter shares the builder's condition slice")
	}
}

func TestSubLayerBuilder(t *testing.T) {
	sl, err := NewSubLayer().
		Name("my rules").
		Description("application scope").
		Weight(400).
		Build()
	if err != nil {
		t.Fatal(err)
	}
	if sl.Name != "my rules" || sl.Weight != 400 {
		t.Errorf("built %+v", sl)
	}
	if sl.Key.IsZero() {
		t.Error("Build should stamp a key")
	}

	if _, err := NewSubLayer().Weight(1).Build(); !errors.Is(err, ErrMissingField) {
		t.Errorf("nameless sublayer = %v, want ErrMissingField", err)
	}

	b := NewSubLayer().Name("once")
	if _, err := b.Build(); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Build(); !errors.Is(err, ErrBuilderUsed) {
		t.Errorf("second Build = %v, want ErrBuilderUsed", err)
	}
}

func TestProviderBuilder(t *testing.T) {
	p, err := NewProvider().
		Name("acme endpoint agent").
		ServiceName("acmeagent").
		Build()
	if err != nil {
		t.Fatal(err)
	}
	if p.Name != "acme endpoint agent" || p.ServiceName != "acmeagent" {
		t.Errorf("built %+v", p)
	}
	if p.Key.IsZero() {
		t.Error("Build should stamp a key")
	}

	if _, err := NewProvider().Build(); !errors.Is(err, ErrMissingField) {
		t.Errorf("nameless provider = %v, want ErrMissingField", err)
	}
}
