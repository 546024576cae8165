package rulefile

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"grimm.is/serac"
)

// PlanResult reports whether the engine already holds what a document
// renders to. Diff is a unified diff from the running state to the
// desired state, empty when in sync.
type PlanResult struct {
	InSync bool
	Diff   string
}

// ApplyResult counts what Apply changed.
type ApplyResult struct {
	FiltersAdded     int
	FiltersRemoved   int
	SubLayersAdded   int
	SubLayersRemoved int
}

// Plan compares the rendered object set against what is installed under
// the same provider key. Objects belonging to other providers are ignored
// on both sides.
func Plan(s *serac.Session, r *Rendered) (*PlanResult, error) {
	curFilters, curSubs, err := installedObjects(s, r.Provider.Key)
	if err != nil {
		return nil, err
	}
	running := installedText(curFilters, curSubs)
	desired := renderedText(r)
	if running == desired {
		return &PlanResult{InSync: true}, nil
	}
	name := r.Source
	if name == "" {
		name = "rules"
	}
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(running),
		B:        difflib.SplitLines(desired),
		FromFile: "running",
		ToFile:   name,
		Context:  3,
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return nil, fmt.Errorf("render diff: %w", err)
	}
	return &PlanResult{Diff: text}, nil
}

// Apply replaces the provider's installed objects with the rendered set in
// one transaction: current filters and sublayers under the provider are
// removed, then the rendered sublayers and filters are added. Objects
// under other providers are untouched. Re-applying an unchanged document
// ends in the same state because every object key derives from its name.
func Apply(s *serac.Session, r *Rendered) (*ApplyResult, error) {
	curFilters, curSubs, err := installedObjects(s, r.Provider.Key)
	if err != nil {
		return nil, err
	}
	err = s.Update(func(tx *serac.Tx) error {
		for _, f := range curFilters {
			if err := tx.RemoveFilterByKey(f.Key); err != nil {
				return err
			}
		}
		for _, sl := range curSubs {
			if err := tx.RemoveSubLayer(sl.Key); err != nil {
				return err
			}
		}
		if err := tx.AddProvider(r.Provider); err != nil && !errors.Is(err, serac.ErrDuplicateIdentity) {
			return err
		}
		for _, sl := range r.SubLayers {
			if err := tx.AddSubLayer(sl); err != nil {
				return err
			}
		}
		for _, f := range r.Filters {
			if _, err := tx.AddFilter(f); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &ApplyResult{
		FiltersAdded:     len(r.Filters),
		FiltersRemoved:   len(curFilters),
		SubLayersAdded:   len(r.SubLayers),
		SubLayersRemoved: len(curSubs),
	}, nil
}

// installedObjects enumerates the session's filters and sublayers and
// keeps those owned by the given provider.
func installedObjects(s *serac.Session, provider serac.GUID) ([]serac.FilterInfo, []serac.SubLayer, error) {
	it := s.Filters(serac.FilterQuery{})
	defer it.Close()
	var filters []serac.FilterInfo
	for it.Next() {
		if info := it.Item(); info.Provider == provider {
			filters = append(filters, *info)
		}
	}
	if err := it.Err(); err != nil {
		return nil, nil, fmt.Errorf("enumerate filters: %w", err)
	}

	sit := s.SubLayers()
	defer sit.Close()
	var subs []serac.SubLayer
	for sit.Next() {
		if sl := sit.Item(); sl.Provider == provider {
			subs = append(subs, *sl)
		}
	}
	if err := sit.Err(); err != nil {
		return nil, nil, fmt.Errorf("enumerate sublayers: %w", err)
	}
	return filters, subs, nil
}

// renderedText and installedText produce the same canonical text for
// equivalent object sets, so Plan can diff them line by line. Objects are
// ordered by name, conditions lexically; engine-assigned values (IDs,
// effective weights) are left out.

func renderedText(r *Rendered) string {
	subs := make([]*serac.SubLayer, len(r.SubLayers))
	copy(subs, r.SubLayers)
	sort.Slice(subs, func(i, j int) bool { return subs[i].Name < subs[j].Name })
	filters := make([]*serac.Filter, len(r.Filters))
	copy(filters, r.Filters)
	sort.Slice(filters, func(i, j int) bool { return filters[i].Name < filters[j].Name })

	var b strings.Builder
	for _, sl := range subs {
		b.WriteString(sublayerBlock(sl.Name, sl.Key, sl.Description, sl.Weight))
	}
	for _, f := range filters {
		b.WriteString(filterBlock(f.Name, f.Key, f.Layer, f.SubLayer, f.Action, f.Weight, f.Description, f.Conditions))
	}
	return b.String()
}

func installedText(filters []serac.FilterInfo, subs []serac.SubLayer) string {
	sort.Slice(subs, func(i, j int) bool { return subs[i].Name < subs[j].Name })
	sort.Slice(filters, func(i, j int) bool { return filters[i].Name < filters[j].Name })

	var b strings.Builder
	for _, sl := range subs {
		b.WriteString(sublayerBlock(sl.Name, sl.Key, sl.Description, sl.Weight))
	}
	for _, f := range filters {
		b.WriteString(filterBlock(f.Name, f.Key, f.Layer, f.SubLayer, f.Action, f.Weight, f.Description, f.Conditions))
	}
	return b.String()
}

func sublayerBlock(name string, key serac.GUID, desc string, weight uint16) string {
	var b strings.Builder
	fmt.Fprintf(&b, "sublayer %q key=%s weight=%d", name, key, weight)
	if desc != "" {
		fmt.Fprintf(&b, " description=%q", desc)
	}
	b.WriteByte('\n')
	return b.String()
}

func filterBlock(name string, key serac.GUID, layer serac.Layer, sub serac.GUID, action serac.Action, weight uint64, desc string, conds []serac.Condition) string {
	subText := "default"
	if !sub.IsZero() {
		subText = sub.String()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "filter %q key=%s layer=%s sublayer=%s action=%s weight=%d", name, key, layer, subText, action, weight)
	if desc != "" {
		fmt.Fprintf(&b, " description=%q", desc)
	}
	b.WriteByte('\n')
	lines := make([]string, 0, len(conds))
	for _, c := range conds {
		lines = append(lines, conditionText(c))
	}
	sort.Strings(lines)
	for _, l := range lines {
		b.WriteString("  " + l + "\n")
	}
	return b.String()
}

// conditionText renders a condition the same way whether it came from a
// document or from enumeration. The engine stores application identities
// case-folded, so application paths compare lowercased.
func conditionText(c serac.Condition) string {
	v := c.Value.String()
	if c.Field == serac.FieldALEAppID {
		v = strings.ToLower(v)
	}
	return fmt.Sprintf("%s %s %s", c.Field, c.Match, v)
}
