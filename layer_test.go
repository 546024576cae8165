package serac

import "testing"

func TestLayers_Complete(t *testing.T) {
	ls := Layers()
	if len(ls) != 14 {
		t.Fatalf("expected 14 layers, got %d", len(ls))
	}
	for _, l := range ls {
		if !l.Valid() {
			t.Errorf("Layers() returned invalid layer %d", l)
		}
	}
	if Layer(0).Valid() {
		t.Error("zero layer should be invalid")
	}
	if Layer(200).Valid() {
		t.Error("out-of-range layer should be invalid")
	}
}

func TestLayer_ParseRoundTrip(t *testing.T) {
	for _, l := range Layers() {
		parsed, err := ParseLayer(l.String())
		if err != nil {
			t.Errorf("ParseLayer(%q): %v", l.String(), err)
			continue
		}
		if parsed != l {
			t.Errorf("ParseLayer(%q) = %v, want %v", l.String(), parsed, l)
		}
	}
	if _, err := ParseLayer("nonsense"); err == nil {
		t.Error("expected error for unknown layer name")
	}
}

func TestLayer_IPVersion(t *testing.T) {
	tests := []struct {
		layer Layer
		want  int
	}{
		{LayerALEAuthConnectV4, 4},
		{LayerALEAuthConnectV6, 6},
		{LayerInboundIPPacketV4, 4},
		{LayerOutboundIPPacketV6, 6},
		{LayerInboundTransportV4, 4},
		{LayerOutboundTransportV6, 6},
	}
	for _, tt := range tests {
		if got := tt.layer.IPVersion(); got != tt.want {
			t.Errorf("%s.IPVersion() = %d, want %d", tt.layer, got, tt.want)
		}
	}
}

func TestLayer_Supports(t *testing.T) {
	allFields := []Field{
		FieldIPRemoteAddress, FieldIPLocalAddress,
		FieldIPRemotePort, FieldIPLocalPort,
		FieldIPProtocol, FieldALEAppID,
	}

	// ALE layers accept every field.
	for _, f := range allFields {
		if !LayerALEAuthConnectV4.Supports(f) {
			t.Errorf("ALE layer should support %s", f)
		}
	}

	// Transport layers accept everything but the application identifier.
	for _, f := range allFields {
		got := LayerOutboundTransportV4.Supports(f)
		want := f != FieldALEAppID
		if got != want {
			t.Errorf("transport layer Supports(%s) = %v, want %v", f, got, want)
		}
	}

	// Packet layers accept addresses only.
	for _, f := range allFields {
		got := LayerInboundIPPacketV6.Supports(f)
		want := f == FieldIPRemoteAddress || f == FieldIPLocalAddress
		if got != want {
			t.Errorf("packet layer Supports(%s) = %v, want %v", f, got, want)
		}
	}

	if Layer(0).Supports(FieldIPRemotePort) {
		t.Error("invalid layer should support nothing")
	}
	if LayerALEAuthConnectV4.Supports(Field(99)) {
		t.Error("invalid field should be unsupported everywhere")
	}
}

func TestAction_ParseRoundTrip(t *testing.T) {
	for _, a := range []Action{
		ActionBlock, ActionPermit,
		ActionCalloutTerminating, ActionCalloutInspection, ActionCalloutUnknown,
	} {
		parsed, err := ParseAction(a.String())
		if err != nil {
			t.Errorf("ParseAction(%q): %v", a.String(), err)
			continue
		}
		if parsed != a {
			t.Errorf("ParseAction(%q) = %v, want %v", a.String(), parsed, a)
		}
	}
	if _, err := ParseAction("drop"); err == nil {
		t.Error("expected error for unknown action name")
	}
	if Action(0).Valid() {
		t.Error("zero action should be invalid")
	}
}
