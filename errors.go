package serac

import (
	"errors"
	"fmt"
	"runtime"

	"grimm.is/serac/internal/metrics"
)

// Usage errors, detected locally before anything reaches the engine.
var (
	ErrMissingField          = errors.New("required field not set")
	ErrInvalidComparator     = errors.New("comparator not valid for field")
	ErrIncompatibleCondition = errors.New("condition field not valid at layer")
	ErrBuilderUsed           = errors.New("builder already consumed")
	ErrTransactionInProgress = errors.New("transaction already in progress")
	ErrTransactionFinished   = errors.New("transaction already finished")
)

// Engine-surfaced errors, mapped from recognized native status codes.
var (
	ErrDuplicateIdentity = errors.New("object identity already exists")
	ErrLayerIncompatible = errors.New("object incompatible with layer")
	ErrQuotaExceeded     = errors.New("engine object quota exceeded")
	ErrCommitFailed      = errors.New("transaction commit rejected")
)

// Resource errors, fatal to the current session.
var (
	ErrEngineUnavailable = errors.New("filter engine unavailable")
	ErrPermissionDenied  = errors.New("permission denied by filter engine")
	ErrSessionClosed     = errors.New("session closed")
	ErrAlreadyOpen       = errors.New("engine binding already open")
)

// ErrUnsupported is returned by Open on platforms without a native filter
// engine binding.
var ErrUnsupported = fmt.Errorf("traffic filtering not supported on %s", runtime.GOOS)

// Native status codes recognized across the driver boundary. Drivers report
// failures as *EngineError values carrying one of these (or any other)
// codes; the session maps the recognized subset onto the sentinel errors
// above and passes everything else through untouched.
const (
	CodeAccessDenied                uint32 = 0x00000005
	CodeRPCServerUnavailable        uint32 = 0x000006BA
	CodeOutOfMemory                 uint32 = 0x8007000E
	CodeAccessDeniedHR              uint32 = 0x80070005
	CodeRPCServerUnavailableHR      uint32 = 0x800706BA
	CodeFilterNotFound              uint32 = 0x80320003
	CodeProviderNotFound            uint32 = 0x80320005
	CodeSubLayerNotFound            uint32 = 0x80320007
	CodeAlreadyExists               uint32 = 0x80320009
	CodeNoTxnInProgress             uint32 = 0x8032000D
	CodeTxnInProgress               uint32 = 0x8032000E
	CodeTxnAborted                  uint32 = 0x8032000F
	CodeSessionAborted              uint32 = 0x80320010
	CodeIncompatibleLayer           uint32 = 0x80320014
	CodeActionIncompatibleWithLayer uint32 = 0x80320028
	CodeTooManySubLayers            uint32 = 0x80320036
)

// EngineError carries a native status code crossing the driver boundary.
// Codes the library recognizes are additionally wrapped in their sentinel
// error; unrecognized codes surface as a bare *EngineError.
type EngineError struct {
	Op   string // native routine or driver operation that failed
	Code uint32
}

func (e *EngineError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s returned 0x%08X", e.Op, e.Code)
	}
	return fmt.Sprintf("engine status 0x%08X", e.Code)
}

func sentinelForCode(code uint32) error {
	switch code {
	case CodeAlreadyExists:
		return ErrDuplicateIdentity
	case CodeIncompatibleLayer, CodeActionIncompatibleWithLayer:
		return ErrLayerIncompatible
	case CodeOutOfMemory, CodeTooManySubLayers:
		return ErrQuotaExceeded
	case CodeAccessDenied, CodeAccessDeniedHR:
		return ErrPermissionDenied
	case CodeRPCServerUnavailable, CodeRPCServerUnavailableHR:
		return ErrEngineUnavailable
	case CodeTxnInProgress:
		return ErrTransactionInProgress
	case CodeSessionAborted:
		return ErrSessionClosed
	}
	return nil
}

// wrapEngineError attaches the sentinel for a recognized native code while
// keeping the *EngineError in the chain for errors.As.
func wrapEngineError(err error) error {
	var ee *EngineError
	if !errors.As(err, &ee) {
		return err
	}
	metrics.RecordEngineError(ee.Code)
	if s := sentinelForCode(ee.Code); s != nil {
		return fmt.Errorf("%w: %w", s, ee)
	}
	return ee
}

// mapEngineError adds operation context on top of wrapEngineError.
func mapEngineError(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, wrapEngineError(err))
}
