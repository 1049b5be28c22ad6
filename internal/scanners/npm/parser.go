package npm

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"depcompliance/internal/model"
)

// outdatedEntry is one value of the `npm outdated --json` object.
type outdatedEntry struct {
	Current   string `json:"current"`
	Wanted    string `json:"wanted"`
	Latest    string `json:"latest"`
	Location  string `json:"location"`
	Dependent string `json:"dependent"`
	Type      string `json:"type"`
}

// ParseOutdated parses `npm outdated --json`. The value for a package is an
// object, or an array of objects when it is outdated in several locations; in
// that case the first one wins. An empty document means nothing is outdated.
func ParseOutdated(jsonOutput string) ([]model.OutdatedEntry, error) {
	jsonOutput = strings.TrimSpace(jsonOutput)
	if jsonOutput == "" {
		return []model.OutdatedEntry{}, nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(jsonOutput), &raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal npm outdated json: %w", err)
	}

	// npm reports its own failures as {"error": {...}}.
	if errRaw, ok := raw["error"]; ok {
		var e struct {
			Code    string `json:"code"`
			Summary string `json:"summary"`
		}
		if json.Unmarshal(errRaw, &e) == nil && (e.Code != "" || e.Summary != "") {
			return nil, fmt.Errorf("npm outdated: %s %s", e.Code, e.Summary)
		}
	}

	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]model.OutdatedEntry, 0, len(names))
	for _, name := range names {
		entry, ok := decodeEntry(raw[name])
		if !ok {
			continue
		}
		out = append(out, model.OutdatedEntry{
			Name:     name,
			Current:  entry.Current,
			Wanted:   entry.Wanted,
			Latest:   entry.Latest,
			Location: entry.Location,
		})
	}
	return out, nil
}

func decodeEntry(raw json.RawMessage) (outdatedEntry, bool) {
	var e outdatedEntry
	if err := json.Unmarshal(raw, &e); err == nil {
		return e, true
	}
	var many []outdatedEntry
	if err := json.Unmarshal(raw, &many); err == nil && len(many) > 0 {
		return many[0], true
	}
	return outdatedEntry{}, false
}
