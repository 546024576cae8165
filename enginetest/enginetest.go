// Package enginetest provides an in-memory filter engine for exercising
// sessions, transactions, and enumeration on any platform.
//
// An Engine holds the installed object store; Connect returns an unbound
// Conn implementing serac.Driver, ready for serac.OpenWith. The fake
// mirrors the native engine's observable semantics: one transaction
// engine-wide, staged changes visible only to their owner until commit,
// duplicate and dangling-reference rejection with native status codes, and
// erasure of a dynamic session's objects when its connection closes.
//
// Application identities are canonicalized by lowercasing the path and
// encoding it as NUL-terminated UTF-16LE, so tests can predict the bytes a
// path resolves to.
package enginetest

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode/utf16"

	"github.com/google/uuid"

	"grimm.is/serac"
)

var _ serac.Driver = (*Conn)(nil)

const codeInvalidParameter = 87

type filterRec struct {
	info    serac.FilterInfo
	owner   int
	dynamic bool
}

type sublayerRec struct {
	sl      serac.SubLayer
	owner   int
	dynamic bool
}

type providerRec struct {
	p       serac.Provider
	owner   int
	dynamic bool
}

// Engine is the shared installed-object store behind one or more
// connections. The zero value is not usable; call New.
type Engine struct {
	mu         sync.Mutex
	nextID     uint64
	nextSerial int
	maxFilters int
	failCommit uint32

	filters   map[uint64]filterRec
	sublayers map[serac.GUID]sublayerRec
	providers map[serac.GUID]providerRec

	txOwner *Conn
}

// Option configures an Engine.
type Option func(*Engine)

// WithMaxFilters caps installed plus staged filters. Adds beyond the cap
// fail with serac.CodeOutOfMemory, the way a real engine reports
// exhaustion.
func WithMaxFilters(n int) Option {
	return func(e *Engine) { e.maxFilters = n }
}

// New returns an empty engine. Runtime IDs start above the range the
// native engine reserves for built-in objects.
func New(opts ...Option) *Engine {
	e := &Engine{
		nextID:    66000,
		filters:   make(map[uint64]filterRec),
		sublayers: make(map[serac.GUID]sublayerRec),
		providers: make(map[serac.GUID]providerRec),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Connect returns an unbound connection to the engine. Open binds it.
func (e *Engine) Connect() *Conn {
	return &Conn{eng: e}
}

// FailNextCommit arms a one-shot commit rejection with the given native
// code. The rejected transaction's staged changes are discarded, leaving
// the engine at its pre-transaction state.
func (e *Engine) FailNextCommit(code uint32) {
	e.mu.Lock()
	e.failCommit = code
	e.mu.Unlock()
}

// FilterCount reports how many filters are installed (committed).
func (e *Engine) FilterCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.filters)
}

// SubLayerCount reports how many sublayers are installed.
func (e *Engine) SubLayerCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.sublayers)
}

// ProviderCount reports how many providers are installed.
func (e *Engine) ProviderCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.providers)
}

// Filter returns the installed filter with the given runtime ID.
func (e *Engine) Filter(id uint64) (serac.FilterInfo, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.filters[id]
	return r.info, ok
}

// FilterByKey returns the installed filter with the given key.
func (e *Engine) FilterByKey(key serac.GUID) (serac.FilterInfo, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range e.filters {
		if r.info.Key == key {
			return r.info, true
		}
	}
	return serac.FilterInfo{}, false
}

// SubLayer returns the installed sublayer with the given key.
func (e *Engine) SubLayer(key serac.GUID) (serac.SubLayer, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.sublayers[key]
	return r.sl, ok
}

// Provider returns the installed provider with the given key.
func (e *Engine) Provider(key serac.GUID) (serac.Provider, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.providers[key]
	return r.p, ok
}

// Conn is one connection to the engine. It implements serac.Driver.
type Conn struct {
	eng *Engine

	mu       sync.Mutex
	serial   int
	open     bool
	dynamic  bool
	tx       *txState
	nextEnum serac.EnumHandle

	filterEnums   map[serac.EnumHandle]*filterEnum
	sublayerEnums map[serac.EnumHandle]*sublayerEnum
}

type txState struct {
	filters   []filterRec
	sublayers []sublayerRec
	providers []providerRec

	removedFilterIDs map[uint64]bool
	removedSubLayers map[serac.GUID]bool
	removedProviders map[serac.GUID]bool
}

func newTxState() *txState {
	return &txState{
		removedFilterIDs: make(map[uint64]bool),
		removedSubLayers: make(map[serac.GUID]bool),
		removedProviders: make(map[serac.GUID]bool),
	}
}

type filterEnum struct {
	snapshot []serac.FilterInfo
	pos      int
}

type sublayerEnum struct {
	snapshot []serac.SubLayer
	pos      int
}

func engineErr(op string, code uint32) error {
	return &serac.EngineError{Op: op, Code: code}
}

// Open binds the connection. A second Open on the same connection fails
// with serac.ErrAlreadyOpen.
func (c *Conn) Open(cfg serac.SessionConfig) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.open {
		return serac.ErrAlreadyOpen
	}
	c.eng.mu.Lock()
	c.eng.nextSerial++
	c.serial = c.eng.nextSerial
	c.eng.mu.Unlock()
	c.open = true
	c.dynamic = cfg.Dynamic
	c.filterEnums = make(map[serac.EnumHandle]*filterEnum)
	c.sublayerEnums = make(map[serac.EnumHandle]*sublayerEnum)
	return nil
}

// Close releases the binding. A pending transaction is discarded, and a
// dynamic connection's objects are erased from the engine.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.open {
		return nil
	}
	c.eng.mu.Lock()
	if c.eng.txOwner == c {
		c.eng.txOwner = nil
	}
	c.tx = nil
	if c.dynamic {
		for id, r := range c.eng.filters {
			if r.owner == c.serial {
				delete(c.eng.filters, id)
			}
		}
		for k, r := range c.eng.sublayers {
			if r.owner == c.serial {
				delete(c.eng.sublayers, k)
			}
		}
		for k, r := range c.eng.providers {
			if r.owner == c.serial {
				delete(c.eng.providers, k)
			}
		}
	}
	c.eng.mu.Unlock()
	c.open = false
	c.filterEnums = nil
	c.sublayerEnums = nil
	return nil
}

func (c *Conn) BeginTransaction() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.open {
		return engineErr("begin transaction", serac.CodeSessionAborted)
	}
	c.eng.mu.Lock()
	defer c.eng.mu.Unlock()
	if c.eng.txOwner != nil {
		return engineErr("begin transaction", serac.CodeTxnInProgress)
	}
	c.eng.txOwner = c
	c.tx = newTxState()
	return nil
}

func (c *Conn) CommitTransaction() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.open {
		return engineErr("commit transaction", serac.CodeSessionAborted)
	}
	c.eng.mu.Lock()
	defer c.eng.mu.Unlock()
	if c.eng.txOwner != c || c.tx == nil {
		return engineErr("commit transaction", serac.CodeNoTxnInProgress)
	}
	tx := c.tx
	c.tx = nil
	c.eng.txOwner = nil
	if code := c.eng.failCommit; code != 0 {
		c.eng.failCommit = 0
		return engineErr("commit transaction", code)
	}
	// Removals name committed records only (removing a staged add erases
	// it from the staged lists instead), so they apply first: a
	// transaction that removes a key and re-adds it must end with the new
	// record installed.
	for id := range tx.removedFilterIDs {
		delete(c.eng.filters, id)
	}
	for k := range tx.removedSubLayers {
		delete(c.eng.sublayers, k)
	}
	for k := range tx.removedProviders {
		delete(c.eng.providers, k)
	}
	for _, r := range tx.sublayers {
		c.eng.sublayers[r.sl.Key] = r
	}
	for _, r := range tx.providers {
		c.eng.providers[r.p.Key] = r
	}
	for _, r := range tx.filters {
		c.eng.filters[r.info.ID] = r
	}
	return nil
}

func (c *Conn) AbortTransaction() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.open {
		return engineErr("abort transaction", serac.CodeSessionAborted)
	}
	c.eng.mu.Lock()
	defer c.eng.mu.Unlock()
	if c.eng.txOwner != c || c.tx == nil {
		return engineErr("abort transaction", serac.CodeNoTxnInProgress)
	}
	c.tx = nil
	c.eng.txOwner = nil
	return nil
}

// AddFilter stages or installs a filter, enforcing the checks the native
// engine makes after the library's own validation: duplicate keys,
// dangling sublayer and provider references, condition fields foreign to
// the layer, and the filter quota. Application paths are canonicalized at
// add time.
func (c *Conn) AddFilter(f *serac.Filter) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.open {
		return 0, engineErr("add filter", serac.CodeSessionAborted)
	}
	c.eng.mu.Lock()
	defer c.eng.mu.Unlock()

	if !f.Key.IsZero() && c.filterKeyVisibleLocked(f.Key) {
		return 0, engineErr("add filter", serac.CodeAlreadyExists)
	}
	if !f.SubLayer.IsZero() && !c.subLayerVisibleLocked(f.SubLayer) {
		return 0, engineErr("add filter", serac.CodeSubLayerNotFound)
	}
	if !f.Provider.IsZero() && !c.providerVisibleLocked(f.Provider) {
		return 0, engineErr("add filter", serac.CodeProviderNotFound)
	}
	for _, cond := range f.Conditions {
		if !f.Layer.Supports(cond.Field) {
			return 0, engineErr("add filter", serac.CodeIncompatibleLayer)
		}
	}
	if c.eng.maxFilters > 0 && c.visibleFilterCountLocked() >= c.eng.maxFilters {
		return 0, engineErr("add filter", serac.CodeOutOfMemory)
	}

	c.eng.nextID++
	id := c.eng.nextID
	key := f.Key
	if key.IsZero() {
		key = generatedKey("filter", id)
	}
	eff := f.Weight
	if eff == 0 {
		eff = id
	}
	info := serac.FilterInfo{
		ID:              id,
		Key:             key,
		Name:            f.Name,
		Description:     f.Description,
		Provider:        f.Provider,
		Layer:           f.Layer,
		SubLayer:        f.SubLayer,
		Action:          f.Action,
		Weight:          f.Weight,
		EffectiveWeight: eff,
		Conditions:      canonConditions(f.Conditions),
	}
	rec := filterRec{info: info, owner: c.serial, dynamic: c.dynamic}
	if c.tx != nil {
		c.tx.filters = append(c.tx.filters, rec)
	} else {
		c.eng.filters[id] = rec
	}
	return id, nil
}

func (c *Conn) AddSubLayer(sl *serac.SubLayer) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.open {
		return engineErr("add sublayer", serac.CodeSessionAborted)
	}
	c.eng.mu.Lock()
	defer c.eng.mu.Unlock()

	s := *sl
	if s.Key.IsZero() {
		c.eng.nextID++
		s.Key = generatedKey("sublayer", c.eng.nextID)
	} else if c.subLayerVisibleLocked(s.Key) {
		return engineErr("add sublayer", serac.CodeAlreadyExists)
	}
	if !s.Provider.IsZero() && !c.providerVisibleLocked(s.Provider) {
		return engineErr("add sublayer", serac.CodeProviderNotFound)
	}
	rec := sublayerRec{sl: s, owner: c.serial, dynamic: c.dynamic}
	if c.tx != nil {
		c.tx.sublayers = append(c.tx.sublayers, rec)
	} else {
		c.eng.sublayers[s.Key] = rec
	}
	return nil
}

func (c *Conn) AddProvider(p *serac.Provider) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.open {
		return engineErr("add provider", serac.CodeSessionAborted)
	}
	c.eng.mu.Lock()
	defer c.eng.mu.Unlock()

	pr := *p
	if pr.Key.IsZero() {
		c.eng.nextID++
		pr.Key = generatedKey("provider", c.eng.nextID)
	} else if c.providerVisibleLocked(pr.Key) {
		return engineErr("add provider", serac.CodeAlreadyExists)
	}
	rec := providerRec{p: pr, owner: c.serial, dynamic: c.dynamic}
	if c.tx != nil {
		c.tx.providers = append(c.tx.providers, rec)
	} else {
		c.eng.providers[pr.Key] = rec
	}
	return nil
}

func (c *Conn) RemoveFilterByID(id uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.open {
		return engineErr("remove filter", serac.CodeSessionAborted)
	}
	c.eng.mu.Lock()
	defer c.eng.mu.Unlock()
	return c.removeFilterLocked("remove filter", func(r filterRec) bool { return r.info.ID == id })
}

func (c *Conn) RemoveFilterByKey(key serac.GUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.open {
		return engineErr("remove filter", serac.CodeSessionAborted)
	}
	c.eng.mu.Lock()
	defer c.eng.mu.Unlock()
	return c.removeFilterLocked("remove filter", func(r filterRec) bool { return r.info.Key == key })
}

// removeFilterLocked stages or applies removal of the first visible filter
// matching want. Both mutexes are held.
func (c *Conn) removeFilterLocked(op string, want func(filterRec) bool) error {
	if c.tx != nil {
		for i, r := range c.tx.filters {
			if want(r) {
				c.tx.filters = append(c.tx.filters[:i], c.tx.filters[i+1:]...)
				return nil
			}
		}
	}
	for id, r := range c.eng.filters {
		if !want(r) {
			continue
		}
		if c.tx != nil {
			if c.tx.removedFilterIDs[id] {
				continue
			}
			c.tx.removedFilterIDs[id] = true
		} else {
			delete(c.eng.filters, id)
		}
		return nil
	}
	return engineErr(op, serac.CodeFilterNotFound)
}

func (c *Conn) RemoveSubLayer(key serac.GUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.open {
		return engineErr("remove sublayer", serac.CodeSessionAborted)
	}
	c.eng.mu.Lock()
	defer c.eng.mu.Unlock()
	if c.tx != nil {
		for i, r := range c.tx.sublayers {
			if r.sl.Key == key {
				c.tx.sublayers = append(c.tx.sublayers[:i], c.tx.sublayers[i+1:]...)
				return nil
			}
		}
	}
	if _, ok := c.eng.sublayers[key]; ok {
		if c.tx != nil {
			if !c.tx.removedSubLayers[key] {
				c.tx.removedSubLayers[key] = true
				return nil
			}
		} else {
			delete(c.eng.sublayers, key)
			return nil
		}
	}
	return engineErr("remove sublayer", serac.CodeSubLayerNotFound)
}

func (c *Conn) RemoveProvider(key serac.GUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.open {
		return engineErr("remove provider", serac.CodeSessionAborted)
	}
	c.eng.mu.Lock()
	defer c.eng.mu.Unlock()
	if c.tx != nil {
		for i, r := range c.tx.providers {
			if r.p.Key == key {
				c.tx.providers = append(c.tx.providers[:i], c.tx.providers[i+1:]...)
				return nil
			}
		}
	}
	if _, ok := c.eng.providers[key]; ok {
		if c.tx != nil {
			if !c.tx.removedProviders[key] {
				c.tx.removedProviders[key] = true
				return nil
			}
		} else {
			delete(c.eng.providers, key)
			return nil
		}
	}
	return engineErr("remove provider", serac.CodeProviderNotFound)
}

// OpenFilterEnum snapshots the filters visible to this connection, so a
// pass is unaffected by changes made while it runs. Ordering follows
// classification precedence: layer, then effective weight descending,
// then runtime ID.
func (c *Conn) OpenFilterEnum(q serac.FilterQuery) (serac.EnumHandle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.open {
		return 0, engineErr("open filter enum", serac.CodeSessionAborted)
	}
	c.eng.mu.Lock()
	snap := c.filterSnapshotLocked(q)
	c.eng.mu.Unlock()
	c.nextEnum++
	h := c.nextEnum
	c.filterEnums[h] = &filterEnum{snapshot: snap}
	return h, nil
}

func (c *Conn) EnumFilters(h serac.EnumHandle, max int) ([]serac.FilterInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.open {
		return nil, engineErr("enum filters", serac.CodeSessionAborted)
	}
	st, ok := c.filterEnums[h]
	if !ok {
		return nil, engineErr("enum filters", codeInvalidParameter)
	}
	n := len(st.snapshot) - st.pos
	if n == 0 {
		return nil, nil
	}
	if max > 0 && max < n {
		n = max
	}
	batch := make([]serac.FilterInfo, n)
	copy(batch, st.snapshot[st.pos:st.pos+n])
	st.pos += n
	return batch, nil
}

func (c *Conn) CloseFilterEnum(h serac.EnumHandle) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.open {
		return engineErr("close filter enum", serac.CodeSessionAborted)
	}
	if _, ok := c.filterEnums[h]; !ok {
		return engineErr("close filter enum", codeInvalidParameter)
	}
	delete(c.filterEnums, h)
	return nil
}

func (c *Conn) OpenSubLayerEnum() (serac.EnumHandle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.open {
		return 0, engineErr("open sublayer enum", serac.CodeSessionAborted)
	}
	c.eng.mu.Lock()
	snap := c.sublayerSnapshotLocked()
	c.eng.mu.Unlock()
	c.nextEnum++
	h := c.nextEnum
	c.sublayerEnums[h] = &sublayerEnum{snapshot: snap}
	return h, nil
}

func (c *Conn) EnumSubLayers(h serac.EnumHandle, max int) ([]serac.SubLayer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.open {
		return nil, engineErr("enum sublayers", serac.CodeSessionAborted)
	}
	st, ok := c.sublayerEnums[h]
	if !ok {
		return nil, engineErr("enum sublayers", codeInvalidParameter)
	}
	n := len(st.snapshot) - st.pos
	if n == 0 {
		return nil, nil
	}
	if max > 0 && max < n {
		n = max
	}
	batch := make([]serac.SubLayer, n)
	copy(batch, st.snapshot[st.pos:st.pos+n])
	st.pos += n
	return batch, nil
}

func (c *Conn) CloseSubLayerEnum(h serac.EnumHandle) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.open {
		return engineErr("close sublayer enum", serac.CodeSessionAborted)
	}
	if _, ok := c.sublayerEnums[h]; !ok {
		return engineErr("close sublayer enum", codeInvalidParameter)
	}
	delete(c.sublayerEnums, h)
	return nil
}

// AppID canonicalizes an application path.
func (c *Conn) AppID(path string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.open {
		return nil, engineErr("app id", serac.CodeSessionAborted)
	}
	if path == "" {
		return nil, engineErr("app id", codeInvalidParameter)
	}
	return encodeAppID(path), nil
}

// filterKeyVisibleLocked reports whether key names a filter this
// connection can see: committed and not staged for removal, or staged for
// addition in its own transaction. Both mutexes are held.
func (c *Conn) filterKeyVisibleLocked(key serac.GUID) bool {
	for id, r := range c.eng.filters {
		if r.info.Key != key {
			continue
		}
		if c.tx != nil && c.tx.removedFilterIDs[id] {
			continue
		}
		return true
	}
	if c.tx != nil {
		for _, r := range c.tx.filters {
			if r.info.Key == key {
				return true
			}
		}
	}
	return false
}

func (c *Conn) subLayerVisibleLocked(key serac.GUID) bool {
	if _, ok := c.eng.sublayers[key]; ok {
		if c.tx == nil || !c.tx.removedSubLayers[key] {
			return true
		}
	}
	if c.tx != nil {
		for _, r := range c.tx.sublayers {
			if r.sl.Key == key {
				return true
			}
		}
	}
	return false
}

func (c *Conn) providerVisibleLocked(key serac.GUID) bool {
	if _, ok := c.eng.providers[key]; ok {
		if c.tx == nil || !c.tx.removedProviders[key] {
			return true
		}
	}
	if c.tx != nil {
		for _, r := range c.tx.providers {
			if r.p.Key == key {
				return true
			}
		}
	}
	return false
}

func (c *Conn) visibleFilterCountLocked() int {
	n := 0
	for id := range c.eng.filters {
		if c.tx != nil && c.tx.removedFilterIDs[id] {
			continue
		}
		n++
	}
	if c.tx != nil {
		n += len(c.tx.filters)
	}
	return n
}

func (c *Conn) filterSnapshotLocked(q serac.FilterQuery) []serac.FilterInfo {
	var snap []serac.FilterInfo
	add := func(r filterRec) {
		if q.Layer != 0 && r.info.Layer != q.Layer {
			return
		}
		snap = append(snap, r.info)
	}
	for id, r := range c.eng.filters {
		if c.tx != nil && c.tx.removedFilterIDs[id] {
			continue
		}
		add(r)
	}
	if c.tx != nil {
		for _, r := range c.tx.filters {
			add(r)
		}
	}
	sort.Slice(snap, func(i, j int) bool {
		a, b := snap[i], snap[j]
		if a.Layer != b.Layer {
			return a.Layer < b.Layer
		}
		if a.EffectiveWeight != b.EffectiveWeight {
			return a.EffectiveWeight > b.EffectiveWeight
		}
		return a.ID < b.ID
	})
	return snap
}

func (c *Conn) sublayerSnapshotLocked() []serac.SubLayer {
	var snap []serac.SubLayer
	for key, r := range c.eng.sublayers {
		if c.tx != nil && c.tx.removedSubLayers[key] {
			continue
		}
		snap = append(snap, r.sl)
	}
	if c.tx != nil {
		for _, r := range c.tx.sublayers {
			snap = append(snap, r.sl)
		}
	}
	sort.Slice(snap, func(i, j int) bool {
		a, b := snap[i], snap[j]
		if a.Weight != b.Weight {
			return a.Weight > b.Weight
		}
		return a.Name < b.Name
	})
	return snap
}

// canonConditions copies conditions, resolving application paths to the
// canonical identity the engine stores.
func canonConditions(conds []serac.Condition) []serac.Condition {
	if len(conds) == 0 {
		return nil
	}
	out := make([]serac.Condition, len(conds))
	copy(out, conds)
	for i, cond := range out {
		if p, ok := cond.Value.(serac.AppPathValue); ok {
			out[i].Value = serac.AppIDValue(encodeAppID(string(p)))
		}
	}
	return out
}

func encodeAppID(path string) []byte {
	u := utf16.Encode([]rune(strings.ToLower(path)))
	b := make([]byte, 0, 2*len(u)+2)
	for _, r := range u {
		b = append(b, byte(r), byte(r>>8))
	}
	return append(b, 0, 0)
}

func generatedKey(kind string, n uint64) serac.GUID {
	return serac.KeyFromUUID(uuid.NewSHA1(uuid.NameSpaceOID, fmt.Appendf(nil, "%s/%d", kind, n)))
}
