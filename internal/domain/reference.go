package domain

import (
	"context"
	"fmt"
	"regexp"
)

// descriptionRe splits reference text such as "Temperature [K]" into a
// description and a bracketed unit. The first match anywhere in the text wins.
var descriptionRe = regexp.MustCompile(`(.+?) \[(.+?)\]`)

// VariableDescription is the human-readable description of a variable code.
type VariableDescription struct {
	Variable    string `json:"variable"`
	Description string `json:"description"`
	Unit        string `json:"unit"`
}

// ParseDescription extracts the description and unit from reference text.
// ok is false when the text has no bracketed unit.
func ParseDescription(text string) (description, unit string, ok bool) {
	m := descriptionRe.FindStringSubmatch(text)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// NewVariableDescription builds a description from a reference table row.
func NewVariableDescription(code, text string) VariableDescription {
	desc, unit, _ := ParseDescription(text)
	return VariableDescription{Variable: code, Description: desc, Unit: unit}
}

// ReferenceSource returns the variable descriptions published for one
// (region, product, forecast hour set). Duplicates may be present.
type ReferenceSource interface {
	Descriptions(ctx context.Context, key ReferenceKey) ([]VariableDescription, error)
}

// DedupeDescriptions indexes descs by variable code. Identical duplicates
// collapse to the first occurrence; duplicates that disagree on description
// or unit are a *ReferenceIntegrityError.
func DedupeDescriptions(key ReferenceKey, descs []VariableDescription) (map[string]VariableDescription, error) {
	out := make(map[string]VariableDescription, len(descs))
	for _, d := range descs {
		prev, ok := out[d.Variable]
		if !ok {
			out[d.Variable] = d
			continue
		}
		if prev != d {
			return nil, &ReferenceIntegrityError{
				Key:      key,
				Variable: d.Variable,
				Reason: fmt.Sprintf("conflicting descriptions %q [%s] and %q [%s]",
					prev.Description, prev.Unit, d.Description, d.Unit),
			}
		}
	}
	return out, nil
}

// EnrichedRow is an inventory row joined with its variable description.
// Described is false when the reference has no usable entry for the variable.
type EnrichedRow struct {
	InventoryRow
	Description string `json:"description,omitempty"`
	Unit        string `json:"unit,omitempty"`
	Described   bool   `json:"-"`
}

// Enrich left-joins inv against descs on variable code. The output has
// exactly one row per input row, in input order.
func Enrich(inv Inventory, descs []VariableDescription) ([]EnrichedRow, error) {
	ref := inv.Key.ReferenceKey()
	lookup, err := DedupeDescriptions(ref, descs)
	if err != nil {
		return nil, err
	}

	out := make([]EnrichedRow, len(inv.Rows))
	for i, r := range inv.Rows {
		out[i] = EnrichedRow{InventoryRow: r}
		if d, ok := lookup[r.Variable]; ok && (d.Description != "" || d.Unit != "") {
			out[i].Description = d.Description
			out[i].Unit = d.Unit
			out[i].Described = true
		}
	}

	if len(out) != len(inv.Rows) {
		return nil, &ReferenceIntegrityError{
			Key:    ref,
			Reason: fmt.Sprintf("enrichment changed row count from %d to %d", len(inv.Rows), len(out)),
		}
	}
	return out, nil
}

// SubsetEnriched returns the rows indexed at hour, or *MissingForecastHourError.
func SubsetEnriched(key InventoryKey, rows []EnrichedRow, hour int) ([]EnrichedRow, error) {
	var out []EnrichedRow
	for _, r := range rows {
		if r.ForecastHour == hour {
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		return nil, &MissingForecastHourError{Key: key, Hour: hour}
	}
	return out, nil
}
