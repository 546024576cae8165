//go:build windows

package serac

import (
	"encoding/binary"
	"fmt"
	"math/bits"
	"net/netip"
	"runtime"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	modfwpuclnt = windows.NewLazySystemDLL("fwpuclnt.dll")

	procFwpmEngineOpen0                = modfwpuclnt.NewProc("FwpmEngineOpen0")
	procFwpmEngineClose0               = modfwpuclnt.NewProc("FwpmEngineClose0")
	procFwpmTransactionBegin0          = modfwpuclnt.NewProc("FwpmTransactionBegin0")
	procFwpmTransactionCommit0         = modfwpuclnt.NewProc("FwpmTransactionCommit0")
	procFwpmTransactionAbort0          = modfwpuclnt.NewProc("FwpmTransactionAbort0")
	procFwpmFilterAdd0                 = modfwpuclnt.NewProc("FwpmFilterAdd0")
	procFwpmFilterDeleteById0          = modfwpuclnt.NewProc("FwpmFilterDeleteById0")
	procFwpmFilterDeleteByKey0         = modfwpuclnt.NewProc("FwpmFilterDeleteByKey0")
	procFwpmSubLayerAdd0               = modfwpuclnt.NewProc("FwpmSubLayerAdd0")
	procFwpmSubLayerDeleteByKey0       = modfwpuclnt.NewProc("FwpmSubLayerDeleteByKey0")
	procFwpmProviderAdd0               = modfwpuclnt.NewProc("FwpmProviderAdd0")
	procFwpmProviderDeleteByKey0       = modfwpuclnt.NewProc("FwpmProviderDeleteByKey0")
	procFwpmFilterCreateEnumHandle0    = modfwpuclnt.NewProc("FwpmFilterCreateEnumHandle0")
	procFwpmFilterEnum0                = modfwpuclnt.NewProc("FwpmFilterEnum0")
	procFwpmFilterDestroyEnumHandle0   = modfwpuclnt.NewProc("FwpmFilterDestroyEnumHandle0")
	procFwpmSubLayerCreateEnumHandle0  = modfwpuclnt.NewProc("FwpmSubLayerCreateEnumHandle0")
	procFwpmSubLayerEnum0              = modfwpuclnt.NewProc("FwpmSubLayerEnum0")
	procFwpmSubLayerDestroyEnumHandle0 = modfwpuclnt.NewProc("FwpmSubLayerDestroyEnumHandle0")
	procFwpmGetAppIdFromFileName0      = modfwpuclnt.NewProc("FwpmGetAppIdFromFileName0")
	procFwpmFreeMemory0                = modfwpuclnt.NewProc("FwpmFreeMemory0")
)

// fwpCall invokes proc and converts its DWORD result into an *EngineError.
func fwpCall(proc *windows.LazyProc, args ...uintptr) error {
	r1, _, _ := proc.Call(args...)
	if r1 != 0 {
		return &EngineError{Op: proc.Name, Code: uint32(r1)}
	}
	return nil
}

func fwpmFree(p unsafe.Pointer) {
	procFwpmFreeMemory0.Call(uintptr(p))
}

// fwpArena pins Go allocations referenced from native structs until the
// engine call that consumes them returns.
type fwpArena struct {
	refs []any
}

func (a *fwpArena) keep(v any) {
	a.refs = append(a.refs, v)
}

func utf16Ptr(s string) (*uint16, error) {
	if s == "" {
		return nil, nil
	}
	return windows.UTF16PtrFromString(s)
}

func displayData(name, desc string, a *fwpArena) (fwpmDisplayData0, error) {
	var dd fwpmDisplayData0
	p, err := utf16Ptr(name)
	if err != nil {
		return dd, fmt.Errorf("name: %w", err)
	}
	dd.name = p
	a.keep(p)
	p, err = utf16Ptr(desc)
	if err != nil {
		return dd, fmt.Errorf("description: %w", err)
	}
	dd.description = p
	a.keep(p)
	return dd, nil
}

// fwpClient is the production driver over fwpuclnt.dll.
type fwpClient struct {
	handle uintptr
}

func (c *fwpClient) Open(cfg SessionConfig) error {
	if c.handle != 0 {
		return ErrAlreadyOpen
	}
	if err := modfwpuclnt.Load(); err != nil {
		return fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
	}
	a := &fwpArena{}
	var session fwpmSession0
	dd, err := displayData(cfg.Name, cfg.Description, a)
	if err != nil {
		return err
	}
	session.displayData = dd
	if cfg.Dynamic {
		session.flags = fwpmSessionFlagDynamic
	}
	if cfg.TxWaitTimeout > 0 {
		session.txnWaitTimeoutInMSec = uint32(cfg.TxWaitTimeout.Milliseconds())
	}
	err = fwpCall(procFwpmEngineOpen0,
		0, // local engine
		uintptr(rpcCAuthnDefault),
		0,
		uintptr(unsafe.Pointer(&session)),
		uintptr(unsafe.Pointer(&c.handle)),
	)
	runtime.KeepAlive(&session)
	runtime.KeepAlive(a)
	return err
}

func (c *fwpClient) Close() error {
	if c.handle == 0 {
		return nil
	}
	err := fwpCall(procFwpmEngineClose0, c.handle)
	c.handle = 0
	return err
}

func (c *fwpClient) BeginTransaction() error {
	return fwpCall(procFwpmTransactionBegin0, c.handle, 0)
}

func (c *fwpClient) CommitTransaction() error {
	return fwpCall(procFwpmTransactionCommit0, c.handle)
}

func (c *fwpClient) AbortTransaction() error {
	return fwpCall(procFwpmTransactionAbort0, c.handle)
}

func (c *fwpClient) AddFilter(f *Filter) (uint64, error) {
	nf, a, err := c.convertFilter(f)
	if err != nil {
		return 0, err
	}
	var id uint64
	err = fwpCall(procFwpmFilterAdd0,
		c.handle,
		uintptr(unsafe.Pointer(nf)),
		0,
		uintptr(unsafe.Pointer(&id)),
	)
	runtime.KeepAlive(nf)
	runtime.KeepAlive(a)
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (c *fwpClient) AddSubLayer(s *SubLayer) error {
	a := &fwpArena{}
	ns := fwpmSubLayer0{subLayerKey: s.Key, weight: s.Weight}
	dd, err := displayData(s.Name, s.Description, a)
	if err != nil {
		return err
	}
	ns.displayData = dd
	if !s.Provider.IsZero() {
		pk := s.Provider
		a.keep(&pk)
		ns.providerKey = &pk
	}
	err = fwpCall(procFwpmSubLayerAdd0, c.handle, uintptr(unsafe.Pointer(&ns)), 0)
	runtime.KeepAlive(&ns)
	runtime.KeepAlive(a)
	return err
}

func (c *fwpClient) AddProvider(p *Provider) error {
	a := &fwpArena{}
	np := fwpmProvider0{providerKey: p.Key}
	dd, err := displayData(p.Name, p.Description, a)
	if err != nil {
		return err
	}
	np.displayData = dd
	sn, err := utf16Ptr(p.ServiceName)
	if err != nil {
		return fmt.Errorf("service name: %w", err)
	}
	np.serviceName = sn
	a.keep(sn)
	err = fwpCall(procFwpmProviderAdd0, c.handle, uintptr(unsafe.Pointer(&np)), 0)
	runtime.KeepAlive(&np)
	runtime.KeepAlive(a)
	return err
}

func (c *fwpClient) RemoveFilterByID(id uint64) error {
	return fwpCall(procFwpmFilterDeleteById0, c.handle, uintptr(id))
}

func (c *fwpClient) RemoveFilterByKey(key GUID) error {
	err := fwpCall(procFwpmFilterDeleteByKey0, c.handle, uintptr(unsafe.Pointer(&key)))
	runtime.KeepAlive(&key)
	return err
}

func (c *fwpClient) RemoveSubLayer(key GUID) error {
	err := fwpCall(procFwpmSubLayerDeleteByKey0, c.handle, uintptr(unsafe.Pointer(&key)))
	runtime.KeepAlive(&key)
	return err
}

func (c *fwpClient) RemoveProvider(key GUID) error {
	err := fwpCall(procFwpmProviderDeleteByKey0, c.handle, uintptr(unsafe.Pointer(&key)))
	runtime.KeepAlive(&key)
	return err
}

func (c *fwpClient) OpenFilterEnum(q FilterQuery) (EnumHandle, error) {
	var tmpl *fwpmFilterEnumTemplate0
	if q.Layer != 0 {
		tmpl = &fwpmFilterEnumTemplate0{
			layerKey:   layerKeyOf(q.Layer),
			enumType:   fwpFilterEnumOverlapping,
			actionMask: 0xFFFFFFFF,
		}
	}
	var h uintptr
	err := fwpCall(procFwpmFilterCreateEnumHandle0,
		c.handle,
		uintptr(unsafe.Pointer(tmpl)),
		uintptr(unsafe.Pointer(&h)),
	)
	runtime.KeepAlive(tmpl)
	if err != nil {
		return 0, err
	}
	return EnumHandle(h), nil
}

func (c *fwpClient) EnumFilters(h EnumHandle, max int) ([]FilterInfo, error) {
	var entries **fwpmFilter0
	var n uint32
	r1, _, _ := procFwpmFilterEnum0.Call(
		c.handle,
		uintptr(h),
		uintptr(uint32(max)),
		uintptr(unsafe.Pointer(&entries)),
		uintptr(unsafe.Pointer(&n)),
	)
	switch r1 {
	case 0:
	case errorNoMoreItems:
		return nil, nil
	default:
		return nil, &EngineError{Op: procFwpmFilterEnum0.Name, Code: uint32(r1)}
	}
	if n == 0 || entries == nil {
		return nil, nil
	}
	defer fwpmFree(unsafe.Pointer(&entries))
	out := make([]FilterInfo, 0, n)
	for _, p := range unsafe.Slice(entries, int(n)) {
		out = append(out, decodeFilter(p))
	}
	return out, nil
}

func (c *fwpClient) CloseFilterEnum(h EnumHandle) error {
	return fwpCall(procFwpmFilterDestroyEnumHandle0, c.handle, uintptr(h))
}

func (c *fwpClient) OpenSubLayerEnum() (EnumHandle, error) {
	var h uintptr
	err := fwpCall(procFwpmSubLayerCreateEnumHandle0, c.handle, 0, uintptr(unsafe.Pointer(&h)))
	if err != nil {
		return 0, err
	}
	return EnumHandle(h), nil
}

func (c *fwpClient) EnumSubLayers(h EnumHandle, max int) ([]SubLayer, error) {
	var entries **fwpmSubLayer0
	var n uint32
	r1, _, _ := procFwpmSubLayerEnum0.Call(
		c.handle,
		uintptr(h),
		uintptr(uint32(max)),
		uintptr(unsafe.Pointer(&entries)),
		uintptr(unsafe.Pointer(&n)),
	)
	switch r1 {
	case 0:
	case errorNoMoreItems:
		return nil, nil
	default:
		return nil, &EngineError{Op: procFwpmSubLayerEnum0.Name, Code: uint32(r1)}
	}
	if n == 0 || entries == nil {
		return nil, nil
	}
	defer fwpmFree(unsafe.Pointer(&entries))
	out := make([]SubLayer, 0, n)
	for _, p := range unsafe.Slice(entries, int(n)) {
		s := SubLayer{
			Key:         p.subLayerKey,
			Name:        windows.UTF16PtrToString(p.displayData.name),
			Description: windows.UTF16PtrToString(p.displayData.description),
			Weight:      p.weight,
		}
		if p.providerKey != nil {
			s.Provider = *p.providerKey
		}
		out = append(out, s)
	}
	return out, nil
}

func (c *fwpClient) CloseSubLayerEnum(h EnumHandle) error {
	return fwpCall(procFwpmSubLayerDestroyEnumHandle0, c.handle, uintptr(h))
}

func (c *fwpClient) AppID(path string) ([]byte, error) {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return nil, fmt.Errorf("application path: %w", err)
	}
	var blob *fwpByteBlob
	err = fwpCall(procFwpmGetAppIdFromFileName0,
		uintptr(unsafe.Pointer(p)),
		uintptr(unsafe.Pointer(&blob)),
	)
	runtime.KeepAlive(p)
	if err != nil {
		return nil, err
	}
	defer fwpmFree(unsafe.Pointer(&blob))
	b := make([]byte, blob.size)
	copy(b, unsafe.Slice(blob.data, int(blob.size)))
	return b, nil
}

func (c *fwpClient) convertFilter(f *Filter) (*fwpmFilter0, *fwpArena, error) {
	a := &fwpArena{}
	nf := &fwpmFilter0{
		filterKey:   f.Key,
		layerKey:    layerKeyOf(f.Layer),
		subLayerKey: f.SubLayer,
		action:      fwpmAction0{actionType: uint32(f.Action), calloutKey: f.Callout},
	}
	dd, err := displayData(f.Name, f.Description, a)
	if err != nil {
		return nil, nil, err
	}
	nf.displayData = dd
	if !f.Provider.IsZero() {
		pk := f.Provider
		a.keep(&pk)
		nf.providerKey = &pk
	}
	if f.Weight > 0 {
		w := f.Weight
		a.keep(&w)
		nf.weight = fwpValue0{valueType: fwpUint64, value: uintptr(unsafe.Pointer(&w))}
	}
	if n := len(f.Conditions); n > 0 {
		conds := make([]fwpmFilterCondition0, n)
		for i, cond := range f.Conditions {
			nc, err := c.convertCondition(cond, a)
			if err != nil {
				return nil, nil, fmt.Errorf("condition %d: %w", i, err)
			}
			conds[i] = nc
		}
		a.keep(conds)
		nf.numFilterConditions = uint32(n)
		nf.filterCondition = &conds[0]
	}
	return nf, a, nil
}

func (c *fwpClient) convertCondition(cond Condition, a *fwpArena) (fwpmFilterCondition0, error) {
	nc := fwpmFilterCondition0{
		fieldKey:  fieldKeyOf(cond.Field),
		matchType: uint32(cond.Match),
	}
	switch v := cond.Value.(type) {
	case PortValue:
		nc.conditionValue = fwpValue0{valueType: fwpUint16, value: uintptr(v)}
	case PortRangeValue:
		r := &fwpRange0{
			valueLow:  fwpValue0{valueType: fwpUint16, value: uintptr(v.Lo)},
			valueHigh: fwpValue0{valueType: fwpUint16, value: uintptr(v.Hi)},
		}
		a.keep(r)
		nc.conditionValue = fwpValue0{valueType: fwpRangeType, value: uintptr(unsafe.Pointer(r))}
	case ProtocolValue:
		nc.conditionValue = fwpValue0{valueType: fwpUint8, value: uintptr(v)}
	case PrefixValue:
		p := netip.Prefix(v)
		if p.Addr().Is4() {
			m := &fwpV4AddrAndMask{addr: v4Uint32(p.Addr()), mask: v4Mask(p.Bits())}
			a.keep(m)
			nc.conditionValue = fwpValue0{valueType: fwpV4AddrMask, value: uintptr(unsafe.Pointer(m))}
		} else {
			m := &fwpV6AddrAndMask{addr: p.Addr().As16(), prefixLength: uint8(p.Bits())}
			a.keep(m)
			nc.conditionValue = fwpValue0{valueType: fwpV6AddrMask, value: uintptr(unsafe.Pointer(m))}
		}
	case AddrRangeValue:
		r := &fwpRange0{}
		if v.Lo.Is4() {
			r.valueLow = fwpValue0{valueType: fwpUint32, value: uintptr(v4Uint32(v.Lo))}
			r.valueHigh = fwpValue0{valueType: fwpUint32, value: uintptr(v4Uint32(v.Hi))}
		} else {
			lo, hi := v.Lo.As16(), v.Hi.As16()
			a.keep(&lo)
			a.keep(&hi)
			r.valueLow = fwpValue0{valueType: fwpByteArray16Type, value: uintptr(unsafe.Pointer(&lo))}
			r.valueHigh = fwpValue0{valueType: fwpByteArray16Type, value: uintptr(unsafe.Pointer(&hi))}
		}
		a.keep(r)
		nc.conditionValue = fwpValue0{valueType: fwpRangeType, value: uintptr(unsafe.Pointer(r))}
	case AppPathValue:
		id, err := c.AppID(string(v))
		if err != nil {
			return fwpmFilterCondition0{}, err
		}
		nc.conditionValue = blobValue(id, a)
	case AppIDValue:
		nc.conditionValue = blobValue(v, a)
	default:
		return fwpmFilterCondition0{}, fmt.Errorf("unsupported condition value %T", cond.Value)
	}
	return nc, nil
}

func blobValue(b []byte, a *fwpArena) fwpValue0 {
	c := append([]byte(nil), b...)
	blob := &fwpByteBlob{size: uint32(len(c))}
	if len(c) > 0 {
		blob.data = &c[0]
	}
	a.keep(c)
	a.keep(blob)
	return fwpValue0{valueType: fwpByteBlobType, value: uintptr(unsafe.Pointer(blob))}
}

// v4Uint32 renders an IPv4 address in the host byte order the engine
// expects for FWP_UINT32 address values.
func v4Uint32(addr netip.Addr) uint32 {
	b := addr.As4()
	return binary.BigEndian.Uint32(b[:])
}

func v4Mask(prefixBits int) uint32 {
	return ^uint32(0) << (32 - uint(prefixBits))
}

func decodeFilter(p *fwpmFilter0) FilterInfo {
	info := FilterInfo{
		ID:              p.filterId,
		Key:             p.filterKey,
		Name:            windows.UTF16PtrToString(p.displayData.name),
		Description:     windows.UTF16PtrToString(p.displayData.description),
		Layer:           layerFromKey(p.layerKey),
		SubLayer:        p.subLayerKey,
		Action:          Action(p.action.actionType),
		Weight:          decodeValueUint64(p.weight),
		EffectiveWeight: decodeValueUint64(p.effectiveWeight),
	}
	if p.providerKey != nil {
		info.Provider = *p.providerKey
	}
	if p.numFilterConditions > 0 && p.filterCondition != nil {
		for _, nc := range unsafe.Slice(p.filterCondition, int(p.numFilterConditions)) {
			if c, ok := decodeCondition(nc); ok {
				info.Conditions = append(info.Conditions, c)
			}
		}
	}
	return info
}

func decodeValueUint64(v fwpValue0) uint64 {
	switch v.valueType {
	case fwpUint8, fwpUint16, fwpUint32:
		return uint64(v.value)
	case fwpUint64:
		if v.value != 0 {
			return *(*uint64)(unsafe.Pointer(v.value))
		}
	}
	return 0
}

// decodeCondition maps a native condition back to the portable form.
// Conditions on fields or value types this package does not model are
// reported absent rather than mangled.
func decodeCondition(nc fwpmFilterCondition0) (Condition, bool) {
	f := fieldFromKey(nc.fieldKey)
	if f == 0 {
		return Condition{}, false
	}
	c := Condition{Field: f, Match: Match(nc.matchType)}
	v := nc.conditionValue
	switch v.valueType {
	case fwpUint8:
		if f != FieldIPProtocol {
			return Condition{}, false
		}
		c.Value = ProtocolValue(uint8(v.value))
	case fwpUint16:
		c.Value = PortValue(uint16(v.value))
	case fwpUint32:
		c.Value = PrefixValue(netip.PrefixFrom(v4Addr(uint32(v.value)), 32))
	case fwpByteArray16Type:
		arr := *(*[16]byte)(unsafe.Pointer(v.value))
		c.Value = PrefixValue(netip.PrefixFrom(netip.AddrFrom16(arr), 128))
	case fwpV4AddrMask:
		m := (*fwpV4AddrAndMask)(unsafe.Pointer(v.value))
		c.Value = PrefixValue(netip.PrefixFrom(v4Addr(m.addr), bits.OnesCount32(m.mask)))
	case fwpV6AddrMask:
		m := (*fwpV6AddrAndMask)(unsafe.Pointer(v.value))
		c.Value = PrefixValue(netip.PrefixFrom(netip.AddrFrom16(m.addr), int(m.prefixLength)))
	case fwpRangeType:
		r := (*fwpRange0)(unsafe.Pointer(v.value))
		switch r.valueLow.valueType {
		case fwpUint16:
			c.Value = PortRangeValue{Lo: uint16(r.valueLow.value), Hi: uint16(r.valueHigh.value)}
		case fwpUint32:
			c.Value = AddrRangeValue{Lo: v4Addr(uint32(r.valueLow.value)), Hi: v4Addr(uint32(r.valueHigh.value))}
		case fwpByteArray16Type:
			lo := *(*[16]byte)(unsafe.Pointer(r.valueLow.value))
			hi := *(*[16]byte)(unsafe.Pointer(r.valueHigh.value))
			c.Value = AddrRangeValue{Lo: netip.AddrFrom16(lo), Hi: netip.AddrFrom16(hi)}
		default:
			return Condition{}, false
		}
	case fwpByteBlobType:
		blob := (*fwpByteBlob)(unsafe.Pointer(v.value))
		b := make([]byte, blob.size)
		copy(b, unsafe.Slice(blob.data, int(blob.size)))
		c.Value = AppIDValue(b)
	default:
		return Condition{}, false
	}
	return c, true
}

func v4Addr(hostOrder uint32) netip.Addr {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], hostOrder)
	return netip.AddrFrom4(b)
}
