package serac_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/serac"
	"grimm.is/serac/enginetest"
)

func buildBlock(t *testing.T, name string) *serac.Filter {
	t.Helper()
	f, err := serac.NewFilter().
		Name(name).
		Layer(serac.LayerALEAuthConnectV4).
		Action(serac.ActionBlock).
		Build()
	require.NoError(t, err)
	return f
}

func TestUpdate_CommitsAtomically(t *testing.T) {
	eng := enginetest.New()
	s := newSession(t, eng, serac.Options{})

	err := s.Update(func(tx *serac.Tx) error {
		if err := tx.AddSubLayer(&serac.SubLayer{Key: serac.NewKey(), Name: "batch"}); err != nil {
			return err
		}
		for _, name := range []string{"one", "two", "three"} {
			if _, err := tx.AddFilter(buildBlock(t, name)); err != nil {
				return err
			}
		}
		// Nothing is installed while the transaction is pending.
		assert.Equal(t, 0, eng.FilterCount())
		assert.Equal(t, 0, eng.SubLayerCount())
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, 3, eng.FilterCount())
	assert.Equal(t, 1, eng.SubLayerCount())
}

func TestUpdate_AbortsOnError(t *testing.T) {
	eng := enginetest.New()
	s := newSession(t, eng, serac.Options{})

	boom := errors.New("boom")
	err := s.Update(func(tx *serac.Tx) error {
		if _, err := tx.AddFilter(buildBlock(t, "doomed")); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, eng.FilterCount())

	// The session is immediately usable again.
	require.NoError(t, s.Update(func(tx *serac.Tx) error {
		_, err := tx.AddFilter(buildBlock(t, "kept"))
		return err
	}))
	assert.Equal(t, 1, eng.FilterCount())
}

func TestTx_FailedAddLeavesTransactionPending(t *testing.T) {
	eng := enginetest.New()
	s := newSession(t, eng, serac.Options{})

	tx, err := s.Begin()
	require.NoError(t, err)
	defer tx.Close()

	key := serac.NewKey()
	first := buildBlock(t, "first")
	first.Key = key
	_, err = tx.AddFilter(first)
	require.NoError(t, err)

	dup := buildBlock(t, "dup")
	dup.Key = key
	_, err = tx.AddFilter(dup)
	assert.ErrorIs(t, err, serac.ErrDuplicateIdentity)

	// Earlier staged work is intact and the transaction still commits.
	assert.Equal(t, serac.TxPending, tx.State())
	require.NoError(t, tx.Commit())
	assert.Equal(t, 1, eng.FilterCount())
}

func TestTx_TerminalAfterCommit(t *testing.T) {
	eng := enginetest.New()
	s := newSession(t, eng, serac.Options{})

	tx, err := s.Begin()
	require.NoError(t, err)
	_, err = tx.AddFilter(buildBlock(t, "done"))
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	assert.Equal(t, serac.TxCommitted, tx.State())

	_, err = tx.AddFilter(buildBlock(t, "late"))
	assert.ErrorIs(t, err, serac.ErrTransactionFinished)
	assert.ErrorIs(t, tx.Commit(), serac.ErrTransactionFinished)
	assert.ErrorIs(t, tx.Abort(), serac.ErrTransactionFinished)
	assert.NoError(t, tx.Close())
}

func TestTx_AbortDiscardsStagedWork(t *testing.T) {
	eng := enginetest.New()
	s := newSession(t, eng, serac.Options{})

	tx, err := s.Begin()
	require.NoError(t, err)
	_, err = tx.AddFilter(buildBlock(t, "discarded"))
	require.NoError(t, err)
	require.NoError(t, tx.Abort())

	assert.Equal(t, serac.TxAborted, tx.State())
	assert.Equal(t, 0, eng.FilterCount())
	assert.ErrorIs(t, tx.Commit(), serac.ErrTransactionFinished)
}

func TestTx_CloseAbortsPending(t *testing.T) {
	eng := enginetest.New()
	s := newSession(t, eng, serac.Options{})

	tx, err := s.Begin()
	require.NoError(t, err)
	_, err = tx.AddFilter(buildBlock(t, "dropped"))
	require.NoError(t, err)

	require.NoError(t, tx.Close())
	assert.Equal(t, serac.TxAborted, tx.State())
	assert.Equal(t, 0, eng.FilterCount())
	require.NoError(t, tx.Close())
}

func TestSession_SingleTransaction(t *testing.T) {
	eng := enginetest.New()
	s := newSession(t, eng, serac.Options{})

	tx, err := s.Begin()
	require.NoError(t, err)
	defer tx.Close()

	_, err = s.Begin()
	assert.ErrorIs(t, err, serac.ErrTransactionInProgress)

	require.NoError(t, tx.Abort())
	tx2, err := s.Begin()
	require.NoError(t, err)
	require.NoError(t, tx2.Abort())
}

func TestTransactions_SerializedAcrossSessions(t *testing.T) {
	eng := enginetest.New()
	a := newSession(t, eng, serac.Options{Name: "a"})
	b := newSession(t, eng, serac.Options{Name: "b"})

	tx, err := a.Begin()
	require.NoError(t, err)
	defer tx.Close()

	// The engine serializes transactions across sessions; Begin fails
	// fast rather than blocking.
	_, err = b.Begin()
	assert.ErrorIs(t, err, serac.ErrTransactionInProgress)
	var ee *serac.EngineError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, serac.CodeTxnInProgress, ee.Code)

	require.NoError(t, tx.Commit())
	tx2, err := b.Begin()
	require.NoError(t, err)
	require.NoError(t, tx2.Abort())
}

func TestTx_CommitRejectionRevertsEngine(t *testing.T) {
	eng := enginetest.New()
	s := newSession(t, eng, serac.Options{})
	eng.FailNextCommit(serac.CodeActionIncompatibleWithLayer)

	tx, err := s.Begin()
	require.NoError(t, err)
	_, err = tx.AddFilter(buildBlock(t, "rejected"))
	require.NoError(t, err)

	err = tx.Commit()
	assert.ErrorIs(t, err, serac.ErrCommitFailed)
	assert.ErrorIs(t, err, serac.ErrLayerIncompatible)
	assert.Equal(t, serac.TxAborted, tx.State())
	assert.Equal(t, 0, eng.FilterCount())

	// The session can begin a fresh transaction afterwards.
	require.NoError(t, s.Update(func(tx *serac.Tx) error {
		_, err := tx.AddFilter(buildBlock(t, "retried"))
		return err
	}))
	assert.Equal(t, 1, eng.FilterCount())
}

func TestTx_EngineErrorMapping(t *testing.T) {
	t.Run("duplicate identity", func(t *testing.T) {
		eng := enginetest.New()
		s := newSession(t, eng, serac.Options{})

		key := serac.NewKey()
		f := buildBlock(t, "one")
		f.Key = key
		_, err := s.AddFilter(f)
		require.NoError(t, err)

		dup := buildBlock(t, "two")
		dup.Key = key
		_, err = s.AddFilter(dup)
		assert.ErrorIs(t, err, serac.ErrDuplicateIdentity)
		var ee *serac.EngineError
		require.ErrorAs(t, err, &ee)
		assert.Equal(t, serac.CodeAlreadyExists, ee.Code)
	})

	t.Run("quota exceeded", func(t *testing.T) {
		eng := enginetest.New(enginetest.WithMaxFilters(1))
		s := newSession(t, eng, serac.Options{})

		_, err := s.AddFilter(buildBlock(t, "fits"))
		require.NoError(t, err)
		_, err = s.AddFilter(buildBlock(t, "overflow"))
		assert.ErrorIs(t, err, serac.ErrQuotaExceeded)
	})

	t.Run("unrecognized code surfaces bare", func(t *testing.T) {
		eng := enginetest.New()
		s := newSession(t, eng, serac.Options{})

		orphan := buildBlock(t, "orphan")
		orphan.SubLayer = serac.NewKey()
		_, err := s.AddFilter(orphan)
		require.Error(t, err)
		var ee *serac.EngineError
		require.ErrorAs(t, err, &ee)
		assert.Equal(t, serac.CodeSubLayerNotFound, ee.Code)
		assert.NotErrorIs(t, err, serac.ErrDuplicateIdentity)
	})
}

func TestTx_ValidationNeverReachesEngine(t *testing.T) {
	eng := enginetest.New()
	s := newSession(t, eng, serac.Options{})

	tx, err := s.Begin()
	require.NoError(t, err)
	defer tx.Close()

	_, err = tx.AddFilter(&serac.Filter{Name: "no action", Layer: serac.LayerALEAuthConnectV4})
	assert.ErrorIs(t, err, serac.ErrMissingField)

	_, err = tx.AddFilter(&serac.Filter{
		Name:       "range on single port",
		Layer:      serac.LayerALEAuthConnectV6,
		Action:     serac.ActionBlock,
		Conditions: []serac.Condition{serac.RemotePort(serac.MatchRange, 80)},
	})
	assert.ErrorIs(t, err, serac.ErrInvalidComparator)

	assert.Equal(t, serac.TxPending, tx.State())
	require.NoError(t, tx.Commit())
	assert.Equal(t, 0, eng.FilterCount())
}
