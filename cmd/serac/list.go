package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v2"

	"grimm.is/serac"
)

// listEntry is one filter in list output. Machine formats get the full
// record; the table keeps to what fits a terminal row.
type listEntry struct {
	ID              uint64   `json:"id" yaml:"id"`
	Key             string   `json:"key" yaml:"key"`
	Name            string   `json:"name" yaml:"name"`
	Description     string   `json:"description,omitempty" yaml:"description,omitempty"`
	Layer           string   `json:"layer" yaml:"layer"`
	SubLayer        string   `json:"sublayer,omitempty" yaml:"sublayer,omitempty"`
	Action          string   `json:"action" yaml:"action"`
	Weight          uint64   `json:"weight" yaml:"weight"`
	EffectiveWeight uint64   `json:"effective_weight" yaml:"effective_weight"`
	Conditions      []string `json:"conditions,omitempty" yaml:"conditions,omitempty"`
}

// RunList enumerates installed filters in the requested format.
func RunList(layerName, output string) error {
	var q serac.FilterQuery
	if layerName != "" {
		l, err := serac.ParseLayer(layerName)
		if err != nil {
			return err
		}
		q.Layer = l
	}

	s, err := openSession(false)
	if err != nil {
		return err
	}
	defer s.Close()

	it := s.Filters(q)
	defer it.Close()

	var entries []listEntry
	for it.Next() {
		f := it.Item()
		e := listEntry{
			ID:              f.ID,
			Key:             f.Key.String(),
			Name:            f.Name,
			Description:     f.Description,
			Layer:           f.Layer.String(),
			Action:          f.Action.String(),
			Weight:          f.Weight,
			EffectiveWeight: f.EffectiveWeight,
		}
		if !f.SubLayer.IsZero() {
			e.SubLayer = f.SubLayer.String()
		}
		for _, c := range f.Conditions {
			e.Conditions = append(e.Conditions, c.String())
		}
		entries = append(entries, e)
	}
	if err := it.Err(); err != nil {
		return err
	}

	switch output {
	case "table":
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tLAYER\tACTION\tWEIGHT\tCONDITIONS")
		for _, e := range entries {
			conds := "-"
			if len(e.Conditions) > 0 {
				conds = strings.Join(e.Conditions, "; ")
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%s\n",
				e.ID, e.Name, e.Layer, e.Action, e.EffectiveWeight, conds)
		}
		return w.Flush()

	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)

	case "yaml":
		out, err := yaml.Marshal(entries)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(out)
		return err
	}
	return fmt.Errorf("unknown output format %q", output)
}
