package serac

import (
	"fmt"

	"grimm.is/serac/internal/metrics"
)

// TxState is a transaction's outcome state.
type TxState uint8

const (
	TxPending TxState = iota
	TxCommitted
	TxAborted
)

func (s TxState) String() string {
	switch s {
	case TxPending:
		return "pending"
	case TxCommitted:
		return "committed"
	case TxAborted:
		return "aborted"
	}
	return fmt.Sprintf("txstate(%d)", uint8(s))
}

// Tx batches object additions and removals into one atomic commit. At most
// one transaction is pending per session. Always arrange for Close to run:
//
//	tx, err := s.Begin()
//	if err != nil { ... }
//	defer tx.Close()
//
// Close aborts a transaction that was neither committed nor aborted, so an
// early return or panic cannot leave the engine's transactional context
// open.
//
// A failed add or remove leaves the transaction pending and earlier staged
// operations intact; the caller decides whether to continue, commit, or
// abort.
type Tx struct {
	s     *Session
	state TxState // guarded by s.mu
}

// State reports the transaction's outcome state.
func (t *Tx) State() TxState {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	return t.state
}

// usable is called with s.mu held.
func (t *Tx) usable() error {
	if t.state != TxPending {
		return ErrTransactionFinished
	}
	if t.s.closed {
		return ErrSessionClosed
	}
	return nil
}

// AddFilter validates f, stages it, and returns the engine-assigned runtime
// ID. Validation failures never reach the engine.
func (t *Tx) AddFilter(f *Filter) (uint64, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if err := t.usable(); err != nil {
		return 0, fmt.Errorf("add filter: %w", err)
	}
	if err := f.validate(); err != nil {
		return 0, fmt.Errorf("add filter %q: %w", f.Name, err)
	}
	id, err := t.s.drv.AddFilter(f)
	if err != nil {
		return 0, mapEngineError(fmt.Sprintf("add filter %q", f.Name), err)
	}
	metrics.RecordObject("filter", "added")
	t.s.log.Debug("filter staged", "name", f.Name, "key", f.Key, "id", id)
	return id, nil
}

// AddSubLayer validates sl and stages it.
func (t *Tx) AddSubLayer(sl *SubLayer) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if err := t.usable(); err != nil {
		return fmt.Errorf("add sublayer: %w", err)
	}
	if err := sl.validate(); err != nil {
		return fmt.Errorf("add sublayer %q: %w", sl.Name, err)
	}
	if err := t.s.drv.AddSubLayer(sl); err != nil {
		return mapEngineError(fmt.Sprintf("add sublayer %q", sl.Name), err)
	}
	metrics.RecordObject("sublayer", "added")
	t.s.log.Debug("sublayer staged", "name", sl.Name, "key", sl.Key)
	return nil
}

// AddProvider validates p and stages it.
func (t *Tx) AddProvider(p *Provider) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if err := t.usable(); err != nil {
		return fmt.Errorf("add provider: %w", err)
	}
	if err := p.validate(); err != nil {
		return fmt.Errorf("add provider %q: %w", p.Name, err)
	}
	if err := t.s.drv.AddProvider(p); err != nil {
		return mapEngineError(fmt.Sprintf("add provider %q", p.Name), err)
	}
	metrics.RecordObject("provider", "added")
	t.s.log.Debug("provider staged", "name", p.Name, "key", p.Key)
	return nil
}

// RemoveFilter stages removal of the filter with the given runtime ID.
func (t *Tx) RemoveFilter(id uint64) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if err := t.usable(); err != nil {
		return fmt.Errorf("remove filter: %w", err)
	}
	if err := t.s.drv.RemoveFilterByID(id); err != nil {
		return mapEngineError(fmt.Sprintf("remove filter %d", id), err)
	}
	metrics.RecordObject("filter", "removed")
	t.s.log.Debug("filter removal staged", "id", id)
	return nil
}

// RemoveFilterByKey stages removal of the filter with the given key.
func (t *Tx) RemoveFilterByKey(key GUID) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if err := t.usable(); err != nil {
		return fmt.Errorf("remove filter: %w", err)
	}
	if err := t.s.drv.RemoveFilterByKey(key); err != nil {
		return mapEngineError(fmt.Sprintf("remove filter %s", key), err)
	}
	metrics.RecordObject("filter", "removed")
	t.s.log.Debug("filter removal staged", "key", key)
	return nil
}

// RemoveSubLayer stages removal of the sublayer with the given key.
func (t *Tx) RemoveSubLayer(key GUID) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if err := t.usable(); err != nil {
		return fmt.Errorf("remove sublayer: %w", err)
	}
	if err := t.s.drv.RemoveSubLayer(key); err != nil {
		return mapEngineError(fmt.Sprintf("remove sublayer %s", key), err)
	}
	metrics.RecordObject("sublayer", "removed")
	t.s.log.Debug("sublayer removal staged", "key", key)
	return nil
}

// RemoveProvider stages removal of the provider with the given key.
func (t *Tx) RemoveProvider(key GUID) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if err := t.usable(); err != nil {
		return fmt.Errorf("remove provider: %w", err)
	}
	if err := t.s.drv.RemoveProvider(key); err != nil {
		return mapEngineError(fmt.Sprintf("remove provider %s", key), err)
	}
	metrics.RecordObject("provider", "removed")
	t.s.log.Debug("provider removal staged", "key", key)
	return nil
}

// Commit asks the engine to apply every staged operation atomically. On
// rejection the engine reverts to the pre-transaction state, the
// transaction becomes terminal, and the error wraps ErrCommitFailed. After
// a terminal state Commit fails with ErrTransactionFinished.
func (t *Tx) Commit() error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if err := t.usable(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	if err := t.s.drv.CommitTransaction(); err != nil {
		t.state = TxAborted
		t.s.tx = nil
		metrics.RecordTransaction("aborted")
		t.s.log.Warn("commit rejected, engine state reverted")
		return fmt.Errorf("commit transaction: %w: %w", ErrCommitFailed, wrapEngineError(err))
	}
	t.state = TxCommitted
	t.s.tx = nil
	metrics.RecordTransaction("committed")
	t.s.log.Debug("transaction committed")
	return nil
}

// Abort discards every staged operation. After a terminal state it fails
// with ErrTransactionFinished.
func (t *Tx) Abort() error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if err := t.usable(); err != nil {
		return fmt.Errorf("abort transaction: %w", err)
	}
	return t.abortLocked()
}

// abortLocked is called with s.mu held and the transaction pending.
func (t *Tx) abortLocked() error {
	err := t.s.drv.AbortTransaction()
	t.state = TxAborted
	t.s.tx = nil
	metrics.RecordTransaction("aborted")
	t.s.log.Debug("transaction aborted")
	return mapEngineError("abort transaction", err)
}

// Close aborts the transaction when it is still pending and is a no-op
// afterwards. It exists so defer can guarantee the engine's transactional
// context is released on every exit path.
func (t *Tx) Close() error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if t.state != TxPending {
		return nil
	}
	t.s.log.Warn("transaction neither committed nor aborted, aborting")
	return t.abortLocked()
}
