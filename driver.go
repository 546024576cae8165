package serac

import "time"

// SessionConfig carries the session options a driver needs to open its
// engine binding.
type SessionConfig struct {
	Name          string
	Description   string
	Dynamic       bool
	TxWaitTimeout time.Duration
}

// EnumHandle identifies an open enumeration on a driver.
type EnumHandle uintptr

// FilterInfo describes one installed filter returned by enumeration.
// Conditions is populated by drivers able to decode them and may be nil
// otherwise.
type FilterInfo struct {
	ID              uint64
	Key             GUID
	Name            string
	Description     string
	Provider        GUID
	Layer           Layer
	SubLayer        GUID
	Action          Action
	Weight          uint64
	EffectiveWeight uint64
	Conditions      []Condition
}

// Driver is the native engine binding a Session drives. The Windows client
// behind Open and enginetest.Conn both implement it. Native failures cross
// the boundary as *EngineError values; Open returns ErrAlreadyOpen when the
// binding is already serving a session.
//
// A Driver is not safe for concurrent use; the Session serializes calls.
type Driver interface {
	Open(SessionConfig) error
	Close() error

	BeginTransaction() error
	CommitTransaction() error
	AbortTransaction() error

	AddFilter(*Filter) (uint64, error)
	AddSubLayer(*SubLayer) error
	AddProvider(*Provider) error
	RemoveFilterByID(uint64) error
	RemoveFilterByKey(GUID) error
	RemoveSubLayer(GUID) error
	RemoveProvider(GUID) error

	OpenFilterEnum(FilterQuery) (EnumHandle, error)
	EnumFilters(h EnumHandle, max int) ([]FilterInfo, error)
	CloseFilterEnum(h EnumHandle) error
	OpenSubLayerEnum() (EnumHandle, error)
	EnumSubLayers(h EnumHandle, max int) ([]SubLayer, error)
	CloseSubLayerEnum(h EnumHandle) error

	AppID(path string) ([]byte, error)
}
