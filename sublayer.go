package serac

import "fmt"

// SubLayer describes an ordering scope for filters. Required: Name. Weight
// orders sublayers during classification; higher is consulted first.
type SubLayer struct {
	Key         GUID
	Name        string
	Description string
	Provider    GUID
	Weight      uint16
}

func (s *SubLayer) validate() error {
	if s.Name == "" {
		return fmt.Errorf("name: %w", ErrMissingField)
	}
	return nil
}

// SubLayerBuilder assembles a SubLayer fluently. Single-use, like
// FilterBuilder.
type SubLayerBuilder struct {
	s    SubLayer
	used bool
}

// NewSubLayer returns an empty sublayer builder.
func NewSubLayer() *SubLayerBuilder {
	return &SubLayerBuilder{}
}

// Key sets the object key. Unset, Build stamps a fresh one.
func (b *SubLayerBuilder) Key(k GUID) *SubLayerBuilder {
	b.s.Key = k
	return b
}

// Name sets the display name. Required.
func (b *SubLayerBuilder) Name(name string) *SubLayerBuilder {
	b.s.Name = name
	return b
}

// Description sets the display description.
func (b *SubLayerBuilder) Description(desc string) *SubLayerBuilder {
	b.s.Description = desc
	return b
}

// Provider associates the sublayer with a provider key.
func (b *SubLayerBuilder) Provider(key GUID) *SubLayerBuilder {
	b.s.Provider = key
	return b
}

// Weight sets the sublayer ordering priority; higher wins.
func (b *SubLayerBuilder) Weight(w uint16) *SubLayerBuilder {
	b.s.Weight = w
	return b
}

// Build validates the accumulated fields, stamps a fresh key when none was
// set, and consumes the builder.
func (b *SubLayerBuilder) Build() (*SubLayer, error) {
	if b.used {
		return nil, fmt.Errorf("build sublayer: %w", ErrBuilderUsed)
	}
	b.used = true
	s := b.s
	if s.Key.IsZero() {
		s.Key = NewKey()
	}
	if err := s.validate(); err != nil {
		return nil, fmt.Errorf("build sublayer: %w", err)
	}
	return &s, nil
}

// Add builds the sublayer and stages it on tx.
func (b *SubLayerBuilder) Add(tx *Tx) error {
	s, err := b.Build()
	if err != nil {
		return err
	}
	return tx.AddSubLayer(s)
}
