package serac

import "fmt"

// Filter describes one traffic filter. Required: Name, Layer, Action. A
// zero Key is assigned by the engine; a zero SubLayer places the filter in
// the engine's default sublayer; a zero Weight lets the engine pick one.
type Filter struct {
	Key         GUID
	Name        string
	Description string
	Provider    GUID
	Layer       Layer
	SubLayer    GUID
	Action      Action
	Callout     GUID
	Weight      uint64
	Conditions  []Condition
}

func (f *Filter) validate() error {
	if f.Name == "" {
		return fmt.Errorf("name: %w", ErrMissingField)
	}
	if !f.Layer.Valid() {
		return fmt.Errorf("layer: %w", ErrMissingField)
	}
	if !f.Action.Valid() {
		return fmt.Errorf("action: %w", ErrMissingField)
	}
	if f.Action.requiresCallout() && f.Callout.IsZero() {
		return fmt.Errorf("callout key for %s: %w", f.Action, ErrMissingField)
	}
	for i, c := range f.Conditions {
		if err := c.validate(); err != nil {
			return fmt.Errorf("condition %d: %w", i, err)
		}
		if !f.Layer.Supports(c.Field) {
			return fmt.Errorf("condition %d: %s at %s: %w", i, c.Field, f.Layer, ErrIncompatibleCondition)
		}
		if fam := c.ipFamily(); fam != 0 && fam != f.Layer.IPVersion() {
			return fmt.Errorf("condition %d: IPv%d value at %s: %w", i, fam, f.Layer, ErrIncompatibleCondition)
		}
	}
	return nil
}

// FilterBuilder assembles a Filter fluently. Setters replace earlier values
// for the same field; Condition appends. A builder is single-use: Build or
// Add consumes it.
type FilterBuilder struct {
	f    Filter
	used bool
}

// NewFilter returns an empty filter builder.
func NewFilter() *FilterBuilder {
	return &FilterBuilder{}
}

// Key sets the object key. Unset, Build stamps a fresh one.
func (b *FilterBuilder) Key(k GUID) *FilterBuilder {
	b.f.Key = k
	return b
}

// Name sets the display name. Required.
func (b *FilterBuilder) Name(name string) *FilterBuilder {
	b.f.Name = name
	return b
}

// Description sets the display description.
func (b *FilterBuilder) Description(desc string) *FilterBuilder {
	b.f.Description = desc
	return b
}

// Provider associates the filter with a provider key.
func (b *FilterBuilder) Provider(key GUID) *FilterBuilder {
	b.f.Provider = key
	return b
}

// Layer sets the layer the filter classifies at. Required.
func (b *FilterBuilder) Layer(l Layer) *FilterBuilder {
	b.f.Layer = l
	return b
}

// SubLayer places the filter in a sublayer.
func (b *FilterBuilder) SubLayer(key GUID) *FilterBuilder {
	b.f.SubLayer = key
	return b
}

// Action sets what the filter does with matching traffic. Required.
func (b *FilterBuilder) Action(a Action) *FilterBuilder {
	b.f.Action = a
	return b
}

// Callout names the installed callout for callout actions.
func (b *FilterBuilder) Callout(key GUID) *FilterBuilder {
	b.f.Callout = key
	return b
}

// Weight sets the filter weight within its sublayer; higher wins. Zero lets
// the engine assign one.
func (b *FilterBuilder) Weight(w uint64) *FilterBuilder {
	b.f.Weight = w
	return b
}

// Condition appends one condition.
func (b *FilterBuilder) Condition(c Condition) *FilterBuilder {
	b.f.Conditions = append(b.f.Conditions, c)
	return b
}

// Build validates the accumulated fields, stamps a fresh key when none was
// set, and consumes the builder.
func (b *FilterBuilder) Build() (*Filter, error) {
	if b.used {
		return nil, fmt.Errorf("build filter: %w", ErrBuilderUsed)
	}
	b.used = true
	f := b.f
	f.Conditions = append([]Condition(nil), b.f.Conditions...)
	if f.Key.IsZero() {
		f.Key = NewKey()
	}
	if err := f.validate(); err != nil {
		return nil, fmt.Errorf("build filter: %w", err)
	}
	return &f, nil
}

// Add builds the filter and stages it on tx, returning the engine-assigned
// runtime ID.
func (b *FilterBuilder) Add(tx *Tx) (uint64, error) {
	f, err := b.Build()
	if err != nil {
		return 0, err
	}
	return tx.AddFilter(f)
}
