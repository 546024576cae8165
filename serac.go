// Package serac installs and manages network traffic filters through the
// Windows Filtering Platform, wrapping the engine's flat handle-and-struct
// API in transactional, type-checked operations.
//
// A Session owns one open engine binding. Filters, sublayers, and
// providers are described by plain structs or assembled with fluent
// builders, then staged inside a transaction and committed atomically:
//
//	s, err := serac.Open(serac.Options{Name: "my app", Dynamic: true})
//	if err != nil {
//		return err
//	}
//	defer s.Close()
//
//	err = s.Update(func(tx *serac.Tx) error {
//		_, err := serac.NewFilter().
//			Name("block http").
//			Layer(serac.LayerALEAuthConnectV4).
//			Action(serac.ActionBlock).
//			Condition(serac.RemotePort(serac.MatchEqual, 80)).
//			Add(tx)
//		return err
//	})
//
// A Dynamic session's objects are erased by the engine when the session
// closes; a persistent session's objects survive it. Everything validated
// locally (missing fields, comparator misuse, layer compatibility) fails
// before reaching the engine; engine rejections surface as typed errors.
//
// On non-Windows systems Open fails with ErrUnsupported. Tests substitute
// the in-memory engine from the enginetest package via OpenWith.
package serac

import (
	"log/slog"
	"time"
)

// Options configures an engine session.
type Options struct {
	// Name and Description label the session for engine diagnostics.
	Name        string
	Description string

	// Dynamic sessions have every object added under them erased when the
	// session closes.
	Dynamic bool

	// TxWaitTimeout bounds how long the engine lets a transaction wait on
	// another session's transaction before failing it. Zero uses the
	// engine default.
	TxWaitTimeout time.Duration

	// Logger receives session lifecycle logs. Nil uses the package
	// default logger.
	Logger *slog.Logger
}
