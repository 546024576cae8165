package serac

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
)

// GUID is the 128-bit identity carried by every engine object. The field
// layout matches the native GUID, so keys cross the driver boundary without
// conversion.
type GUID struct {
	Data1 uint32
	Data2 uint16
	Data3 uint16
	Data4 [8]byte
}

// NewKey returns a fresh random object key.
func NewKey() GUID {
	return KeyFromUUID(uuid.New())
}

// KeyFromUUID converts a UUID into a GUID. Useful for deterministic keys
// derived with uuid.NewSHA1.
func KeyFromUUID(u uuid.UUID) GUID {
	return GUID{
		Data1: binary.BigEndian.Uint32(u[0:4]),
		Data2: binary.BigEndian.Uint16(u[4:6]),
		Data3: binary.BigEndian.Uint16(u[6:8]),
		Data4: [8]byte(u[8:16]),
	}
}

// ParseGUID parses the canonical form produced by String. The braced
// registry form is accepted as well.
func ParseGUID(s string) (GUID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return GUID{}, fmt.Errorf("parse guid: %w", err)
	}
	return KeyFromUUID(u), nil
}

// IsZero reports whether g is the all-zero GUID, the "not set" value in
// every descriptor field that holds one.
func (g GUID) IsZero() bool {
	return g == GUID{}
}

func (g GUID) String() string {
	var u uuid.UUID
	binary.BigEndian.PutUint32(u[0:4], g.Data1)
	binary.BigEndian.PutUint16(u[4:6], g.Data2)
	binary.BigEndian.PutUint16(u[6:8], g.Data3)
	copy(u[8:16], g.Data4[:])
	return u.String()
}

// MarshalText implements encoding.TextMarshaler.
func (g GUID) MarshalText() ([]byte, error) {
	return []byte(g.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (g *GUID) UnmarshalText(text []byte) error {
	parsed, err := ParseGUID(string(text))
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}
