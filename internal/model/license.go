package model

import (
	"bytes"
	"encoding/json"
	"strings"
)

// LicenseShape tags how a license was represented in its source document.
type LicenseShape int

const (
	LicenseAbsent LicenseShape = iota
	LicenseString
	LicenseList
	LicenseObject
	LicenseOther
)

// RawLicense is a license exactly as a manifest declared it: a bare string,
// an array of alternatives, or an object carrying a name. It is collapsed to
// a single string once, at ingestion, through Collapse.
type RawLicense struct {
	Shape LicenseShape
	Value string
	List  []RawLicense
}

// LicenseText wraps a plain string license.
func LicenseText(s string) RawLicense {
	if strings.TrimSpace(s) == "" {
		return RawLicense{}
	}
	return RawLicense{Shape: LicenseString, Value: s}
}

func (r *RawLicense) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*r = RawLicense{}
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*r = LicenseText(s)
	case '[':
		var items []RawLicense
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		r.Shape = LicenseList
		for _, it := range items {
			if it.Shape != LicenseAbsent {
				r.List = append(r.List, it)
			}
		}
	case '{':
		var obj map[string]any
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		r.Shape = LicenseObject
		for _, key := range []string{"name", "type", "spdx_id", "id"} {
			if s, ok := obj[key].(string); ok && strings.TrimSpace(s) != "" {
				r.Value = s
				break
			}
		}
	default:
		r.Shape = LicenseOther
		r.Value = string(data)
	}
	return nil
}

// IsZero reports whether no license was declared.
func (r RawLicense) IsZero() bool {
	return r.Collapse() == NoAssertion
}

// Collapse reduces any shape to one string: first element of a list, the
// name of an object, the text otherwise. Absent or blank becomes NOASSERTION.
func (r RawLicense) Collapse() string {
	var s string
	switch r.Shape {
	case LicenseList:
		if len(r.List) > 0 {
			return r.List[0].Collapse()
		}
	case LicenseString, LicenseObject, LicenseOther:
		s = strings.TrimSpace(r.Value)
	}
	if s == "" {
		return NoAssertion
	}
	return s
}

// String renders the declaration for display, keeping every alternative.
func (r RawLicense) String() string {
	if r.Shape != LicenseList {
		if s := strings.TrimSpace(r.Value); s != "" {
			return s
		}
		return ""
	}
	var parts []string
	for _, it := range r.List {
		if s := it.String(); s != "" {
			parts = append(parts, s)
		}
	}
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	default:
		return "(" + strings.Join(parts, " OR ") + ")"
	}
}
