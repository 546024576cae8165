//go:build windows

package serac

// Well-known layer and condition field identifiers from fwpmu.h.

var (
	guidLayerALEAuthRecvAcceptV4  = GUID{0xe1cd9fe7, 0xf4b5, 0x4273, [8]byte{0x96, 0xc0, 0x59, 0x2e, 0x48, 0x7b, 0x86, 0x50}}
	guidLayerALEAuthRecvAcceptV6  = GUID{0xa3b42c97, 0x9f04, 0x4672, [8]byte{0xb8, 0x7e, 0xce, 0xe9, 0xc4, 0x83, 0x25, 0x7f}}
	guidLayerALEAuthConnectV4     = GUID{0xc38d57d1, 0x05a7, 0x4c33, [8]byte{0x90, 0x4f, 0x7f, 0xbc, 0xee, 0xe6, 0x0e, 0x82}}
	guidLayerALEAuthConnectV6     = GUID{0x4a72393b, 0x319f, 0x44bc, [8]byte{0x84, 0xc3, 0xba, 0x54, 0xdc, 0xb3, 0xb6, 0xb4}}
	guidLayerALEFlowEstablishedV4 = GUID{0xaf80470a, 0x5b7c, 0x4e18, [8]byte{0x8f, 0xd4, 0x83, 0xf2, 0xe3, 0xab, 0xe6, 0x26}}
	guidLayerALEFlowEstablishedV6 = GUID{0x7021d2b3, 0xdfa4, 0x406e, [8]byte{0xaf, 0xeb, 0x6a, 0xfa, 0xf7, 0xe7, 0x0e, 0xfd}}
	guidLayerInboundIPPacketV4    = GUID{0xc86fd1bf, 0x21cd, 0x497e, [8]byte{0xa0, 0xbb, 0x17, 0x42, 0x5c, 0x88, 0x5c, 0x58}}
	guidLayerInboundIPPacketV6    = GUID{0xf52032cb, 0x991c, 0x46e7, [8]byte{0x97, 0x1d, 0x26, 0x01, 0x45, 0x9a, 0x91, 0xca}}
	guidLayerOutboundIPPacketV4   = GUID{0x1e5c9fae, 0x8a84, 0x4135, [8]byte{0xa3, 0x31, 0x95, 0x0b, 0x54, 0x22, 0x9e, 0xcd}}
	guidLayerOutboundIPPacketV6   = GUID{0xa3b3ab6b, 0x3564, 0x488c, [8]byte{0x91, 0x17, 0xf3, 0x4e, 0x82, 0x14, 0x2a, 0xb2}}
	guidLayerInboundTransportV4   = GUID{0x5926dfc8, 0xe3cf, 0x4426, [8]byte{0xa2, 0x83, 0xdc, 0x39, 0x3f, 0x5d, 0x0f, 0x9d}}
	guidLayerInboundTransportV6   = GUID{0x634a869f, 0xfc23, 0x4b90, [8]byte{0xb0, 0xc1, 0xbf, 0x62, 0x0a, 0x36, 0xae, 0x6f}}
	guidLayerOutboundTransportV4  = GUID{0x09e61aea, 0xd214, 0x46e2, [8]byte{0x9b, 0x21, 0xb2, 0x6b, 0x0b, 0x2f, 0x28, 0xc8}}
	guidLayerOutboundTransportV6  = GUID{0xe1735bde, 0x013f, 0x4655, [8]byte{0xb3, 0x51, 0xa4, 0x9e, 0x15, 0x76, 0x2d, 0xf0}}

	guidConditionIPLocalAddress  = GUID{0xd9ee00de, 0xc1ef, 0x4617, [8]byte{0xbf, 0xe3, 0xff, 0xd8, 0xf5, 0xa0, 0x89, 0x57}}
	guidConditionIPRemoteAddress = GUID{0xb235ae9a, 0x1d64, 0x49b8, [8]byte{0xa4, 0x4c, 0x5f, 0xf3, 0xd9, 0x09, 0x50, 0x45}}
	guidConditionIPLocalPort     = GUID{0x0c1ba1af, 0x5765, 0x453f, [8]byte{0xaf, 0x22, 0xa8, 0xf7, 0x91, 0xac, 0x77, 0x5b}}
	guidConditionIPRemotePort    = GUID{0xc35a604d, 0xd22b, 0x482a, [8]byte{0xbd, 0x82, 0xaf, 0xb6, 0x5c, 0x68, 0xf4, 0x9d}}
	guidConditionIPProtocol      = GUID{0x3971ef2b, 0x623e, 0x4f9a, [8]byte{0x8c, 0xb1, 0x6e, 0x79, 0xb8, 0x06, 0xb9, 0xa7}}
	guidConditionALEAppID        = GUID{0xd78e1e87, 0x8644, 0x4ea5, [8]byte{0x94, 0x37, 0xd8, 0x09, 0xec, 0xef, 0xc9, 0x71}}
)

var layerGUIDs = map[Layer]GUID{
	LayerALEAuthRecvAcceptV4:   guidLayerALEAuthRecvAcceptV4,
	LayerALEAuthRecvAcceptV6:   guidLayerALEAuthRecvAcceptV6,
	LayerALEAuthConnectV4:      guidLayerALEAuthConnectV4,
	LayerALEAuthConnectV6:      guidLayerALEAuthConnectV6,
	LayerALEFlowEstablishedV4:  guidLayerALEFlowEstablishedV4,
	LayerALEFlowEstablishedV6:  guidLayerALEFlowEstablishedV6,
	LayerInboundIPPacketV4:     guidLayerInboundIPPacketV4,
	LayerInboundIPPacketV6:     guidLayerInboundIPPacketV6,
	LayerOutboundIPPacketV4:    guidLayerOutboundIPPacketV4,
	LayerOutboundIPPacketV6:    guidLayerOutboundIPPacketV6,
	LayerInboundTransportV4:    guidLayerInboundTransportV4,
	LayerInboundTransportV6:    guidLayerInboundTransportV6,
	LayerOutboundTransportV4:   guidLayerOutboundTransportV4,
	LayerOutboundTransportV6:   guidLayerOutboundTransportV6,
}

var fieldGUIDs = map[Field]GUID{
	FieldIPLocalAddress:  guidConditionIPLocalAddress,
	FieldIPRemoteAddress: guidConditionIPRemoteAddress,
	FieldIPLocalPort:     guidConditionIPLocalPort,
	FieldIPRemotePort:    guidConditionIPRemotePort,
	FieldIPProtocol:      guidConditionIPProtocol,
	FieldALEAppID:        guidConditionALEAppID,
}

func layerKeyOf(l Layer) GUID { return layerGUIDs[l] }

func layerFromKey(key GUID) Layer {
	for l, g := range layerGUIDs {
		if g == key {
			return l
		}
	}
	return 0
}

func fieldKeyOf(f Field) GUID { return fieldGUIDs[f] }

func fieldFromKey(key GUID) Field {
	for f, g := range fieldGUIDs {
		if g == key {
			return f
		}
	}
	return 0
}
