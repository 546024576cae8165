package serac

import "fmt"

// Layer identifies the engine layer a filter classifies traffic at. The
// zero value means "not set".
type Layer uint8

const (
	LayerALEAuthRecvAcceptV4 Layer = iota + 1
	LayerALEAuthRecvAcceptV6
	LayerALEAuthConnectV4
	LayerALEAuthConnectV6
	LayerALEFlowEstablishedV4
	LayerALEFlowEstablishedV6
	LayerInboundIPPacketV4
	LayerInboundIPPacketV6
	LayerOutboundIPPacketV4
	LayerOutboundIPPacketV6
	LayerInboundTransportV4
	LayerInboundTransportV6
	LayerOutboundTransportV4
	LayerOutboundTransportV6
)

// layerClass groups layers by the condition fields the engine accepts there.
type layerClass uint8

const (
	classALE layerClass = iota
	classPacket
	classTransport
)

var layerInfo = map[Layer]struct {
	name  string
	class layerClass
	v6    bool
}{
	LayerALEAuthRecvAcceptV4:  {"ale_auth_recv_accept_v4", classALE, false},
	LayerALEAuthRecvAcceptV6:  {"ale_auth_recv_accept_v6", classALE, true},
	LayerALEAuthConnectV4:     {"ale_auth_connect_v4", classALE, false},
	LayerALEAuthConnectV6:     {"ale_auth_connect_v6", classALE, true},
	LayerALEFlowEstablishedV4: {"ale_flow_established_v4", classALE, false},
	LayerALEFlowEstablishedV6: {"ale_flow_established_v6", classALE, true},
	LayerInboundIPPacketV4:    {"inbound_ippacket_v4", classPacket, false},
	LayerInboundIPPacketV6:    {"inbound_ippacket_v6", classPacket, true},
	LayerOutboundIPPacketV4:   {"outbound_ippacket_v4", classPacket, false},
	LayerOutboundIPPacketV6:   {"outbound_ippacket_v6", classPacket, true},
	LayerInboundTransportV4:   {"inbound_transport_v4", classTransport, false},
	LayerInboundTransportV6:   {"inbound_transport_v6", classTransport, true},
	LayerOutboundTransportV4:  {"outbound_transport_v4", classTransport, false},
	LayerOutboundTransportV6:  {"outbound_transport_v6", classTransport, true},
}

// Layers returns every supported layer in declaration order.
func Layers() []Layer {
	ls := make([]Layer, 0, len(layerInfo))
	for l := LayerALEAuthRecvAcceptV4; l <= LayerOutboundTransportV6; l++ {
		ls = append(ls, l)
	}
	return ls
}

// ParseLayer parses the name form produced by String.
func ParseLayer(s string) (Layer, error) {
	for l, info := range layerInfo {
		if info.name == s {
			return l, nil
		}
	}
	return 0, fmt.Errorf("unknown layer %q", s)
}

// Valid reports whether l is one of the supported layers.
func (l Layer) Valid() bool {
	_, ok := layerInfo[l]
	return ok
}

func (l Layer) String() string {
	if info, ok := layerInfo[l]; ok {
		return info.name
	}
	return fmt.Sprintf("layer(%d)", uint8(l))
}

// IPVersion returns 4 or 6 for the address family the layer classifies.
func (l Layer) IPVersion() int {
	if layerInfo[l].v6 {
		return 6
	}
	return 4
}

// Supports reports whether the engine accepts conditions on field f at this
// layer. ALE layers carry every field; transport layers everything except
// the application identifier; IP packet layers only addresses.
func (l Layer) Supports(f Field) bool {
	info, ok := layerInfo[l]
	if !ok || !f.Valid() {
		return false
	}
	switch info.class {
	case classALE:
		return true
	case classTransport:
		return f != FieldALEAppID
	case classPacket:
		return f == FieldIPLocalAddress || f == FieldIPRemoteAddress
	}
	return false
}
