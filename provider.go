package serac

import "fmt"

// Provider groups filters and sublayers for management and enumeration. It
// has no effect on classification. Required: Name. ServiceName optionally
// ties the provider's objects to a service the engine can consider
// disabled when the service is.
type Provider struct {
	Key         GUID
	Name        string
	Description string
	ServiceName string
}

func (p *Provider) validate() error {
	if p.Name == "" {
		return fmt.Errorf("name: %w", ErrMissingField)
	}
	return nil
}

// ProviderBuilder assembles a Provider fluently. Single-use, like
// FilterBuilder.
type ProviderBuilder struct {
	p    Provider
	used bool
}

// NewProvider returns an empty provider builder.
func NewProvider() *ProviderBuilder {
	return &ProviderBuilder{}
}

// Key sets the object key. Unset, Build stamps a fresh one.
func (b *ProviderBuilder) Key(k GUID) *ProviderBuilder {
	b.p.Key = k
	return b
}

// Name sets the display name. Required.
func (b *ProviderBuilder) Name(name string) *ProviderBuilder {
	b.p.Name = name
	return b
}

// Description sets the display description.
func (b *ProviderBuilder) Description(desc string) *ProviderBuilder {
	b.p.Description = desc
	return b
}

// ServiceName associates the provider with a system service.
func (b *ProviderBuilder) ServiceName(name string) *ProviderBuilder {
	b.p.ServiceName = name
	return b
}

// Build validates the accumulated fields, stamps a fresh key when none was
// set, and consumes the builder.
func (b *ProviderBuilder) Build() (*Provider, error) {
	if b.used {
		return nil, fmt.Errorf("build provider: %w", ErrBuilderUsed)
	}
	b.used = true
	p := b.p
	if p.Key.IsZero() {
		p.Key = NewKey()
	}
	if err := p.validate(); err != nil {
		return nil, fmt.Errorf("build provider: %w", err)
	}
	return &p, nil
}

// Add builds the provider and stages it on tx.
func (b *ProviderBuilder) Add(tx *Tx) error {
	p, err := b.Build()
	if err != nil {
		return err
	}
	return tx.AddProvider(p)
}
