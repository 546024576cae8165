package serac

import (
	"fmt"
	"log/slog"
	"sync"

	"grimm.is/serac/internal/logging"
	"grimm.is/serac/internal/metrics"
)

// Session owns one open engine binding. It is safe for concurrent use; a
// mutex serializes driver calls and transaction bookkeeping.
type Session struct {
	mu      sync.Mutex
	drv     Driver
	log     *slog.Logger
	name    string
	dynamic bool
	closed  bool
	tx      *Tx
}

// Open opens a session against the platform's filter engine. On systems
// without one it fails with ErrUnsupported.
func Open(opts Options) (*Session, error) {
	return OpenWith(newPlatformDriver(), opts)
}

// OpenWith opens a session over an explicit driver, the seam tests use to
// substitute enginetest.
func OpenWith(d Driver, opts Options) (*Session, error) {
	if d == nil {
		return nil, fmt.Errorf("open session: %w", ErrEngineUnavailable)
	}
	log := opts.Logger
	if log == nil {
		log = logging.Default().Logger
	}
	log = log.With("component", "session")

	cfg := SessionConfig{
		Name:          opts.Name,
		Description:   opts.Description,
		Dynamic:       opts.Dynamic,
		TxWaitTimeout: opts.TxWaitTimeout,
	}
	if err := d.Open(cfg); err != nil {
		return nil, mapEngineError("open session", err)
	}
	metrics.RecordSessionOpened()
	log.Debug("session opened", "name", opts.Name, "dynamic", opts.Dynamic)

	return &Session{
		drv:     d,
		log:     log,
		name:    opts.Name,
		dynamic: opts.Dynamic,
	}, nil
}

// Close releases the engine binding. It is idempotent. A pending
// transaction is aborted first; for a dynamic session the engine then
// erases every object added under it.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	if s.tx != nil {
		s.log.Warn("closing session with pending transaction, aborting")
		_ = s.drv.AbortTransaction()
		s.tx.state = TxAborted
		s.tx = nil
		metrics.RecordTransaction("aborted")
	}
	s.closed = true
	err := s.drv.Close()
	metrics.RecordSessionClosed()
	s.log.Debug("session closed", "name", s.name)
	return mapEngineError("close session", err)
}

// Begin starts a transaction. It fails fast with ErrTransactionInProgress
// while another transaction is pending; it never blocks.
func (s *Session) Begin() (*Tx, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("begin transaction: %w", ErrSessionClosed)
	}
	if s.tx != nil {
		return nil, fmt.Errorf("begin transaction: %w", ErrTransactionInProgress)
	}
	if err := s.drv.BeginTransaction(); err != nil {
		return nil, mapEngineError("begin transaction", err)
	}
	t := &Tx{s: s}
	s.tx = t
	metrics.RecordTransaction("begun")
	s.log.Debug("transaction begun")
	return t, nil
}

// Update runs fn inside a transaction, committing when it returns nil and
// aborting otherwise.
func (s *Session) Update(fn func(*Tx) error) error {
	tx, err := s.Begin()
	if err != nil {
		return err
	}
	defer tx.Close()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// AddFilter installs one filter in its own transaction and returns the
// engine-assigned runtime ID.
func (s *Session) AddFilter(f *Filter) (uint64, error) {
	var id uint64
	err := s.Update(func(tx *Tx) error {
		var err error
		id, err = tx.AddFilter(f)
		return err
	})
	return id, err
}

// AddSubLayer installs one sublayer in its own transaction.
func (s *Session) AddSubLayer(sl *SubLayer) error {
	return s.Update(func(tx *Tx) error { return tx.AddSubLayer(sl) })
}

// AddProvider installs one provider in its own transaction.
func (s *Session) AddProvider(p *Provider) error {
	return s.Update(func(tx *Tx) error { return tx.AddProvider(p) })
}

// RemoveFilter removes one filter by runtime ID in its own transaction.
func (s *Session) RemoveFilter(id uint64) error {
	return s.Update(func(tx *Tx) error { return tx.RemoveFilter(id) })
}

// RemoveFilterByKey removes one filter by key in its own transaction.
func (s *Session) RemoveFilterByKey(key GUID) error {
	return s.Update(func(tx *Tx) error { return tx.RemoveFilterByKey(key) })
}

// RemoveSubLayer removes one sublayer by key in its own transaction.
func (s *Session) RemoveSubLayer(key GUID) error {
	return s.Update(func(tx *Tx) error { return tx.RemoveSubLayer(key) })
}

// RemoveProvider removes one provider by key in its own transaction.
func (s *Session) RemoveProvider(key GUID) error {
	return s.Update(func(tx *Tx) error { return tx.RemoveProvider(key) })
}

// AppID canonicalizes an application path into the identifier the engine
// matches FieldALEAppID conditions against.
func (s *Session) AppID(path string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("app id: %w", ErrSessionClosed)
	}
	id, err := s.drv.AppID(path)
	if err != nil {
		return nil, mapEngineError("app id", err)
	}
	return id, nil
}

// Filters returns a lazy iterator over installed filters. Enumeration does
// not require a transaction and may run while one is pending; it reflects
// a point-in-time snapshot. Call Filters again for a fresh pass.
func (s *Session) Filters(q FilterQuery) *FilterIterator {
	metrics.RecordEnumeration("filter")
	return &FilterIterator{s: s, q: q}
}

// SubLayers returns a lazy iterator over installed sublayers.
func (s *Session) SubLayers() *SubLayerIterator {
	metrics.RecordEnumeration("sublayer")
	return &SubLayerIterator{s: s}
}
