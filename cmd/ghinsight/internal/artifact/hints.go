// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package artifact

import (
	"fmt"
	"sort"
)

// Scope says what shape a hint's query returns.
type Scope string

const (
	ScopeSingleItem  Scope = "single_item"
	ScopeList        Scope = "list"
	ScopeStatistical Scope = "statistical"
)

// Valid reports whether s is one of the three scopes.
func (s Scope) Valid() bool {
	switch s {
	case ScopeSingleItem, ScopeList, ScopeStatistical:
		return true
	}
	return false
}

// Hint is a ready-to-run jq query against an artifact.
type Hint struct {
	Query       string `json:"query"`
	Description string `json:"description"`
	Scope       Scope  `json:"scope"`
}

// summaryKey is the calculated grouping promoted to the statistical hint.
const summaryKey = "summary"

// maxGroupingHints bounds the per-grouping hints appended after the
// fixed ones.
const maxGroupingHints = 3

// BuildHints returns at least five hints covering all three namespaces.
// The order is fixed: metadata, raw sources, raw shape, calculated keys,
// summary, then up to three calculated groupings in key order.
func BuildHints(doc Document) []Hint {
	hints := []Hint{
		{Query: ".metadata", Description: "Run metadata (command, timing, version)", Scope: ScopeSingleItem},
		{Query: ".raw | keys", Description: "Raw data sources captured from the API", Scope: ScopeList},
		{Query: ".raw | to_entries | map({source: .key, type: (.value | type)})", Description: "Shape of each raw source", Scope: ScopeList},
		{Query: ".calculated | keys", Description: "Available calculated groupings", Scope: ScopeList},
	}
	if _, ok := doc.Calculated[summaryKey]; ok {
		hints = append(hints, Hint{Query: ".calculated.summary", Description: "Headline statistics", Scope: ScopeStatistical})
	} else {
		hints = append(hints, Hint{Query: ".calculated", Description: "All calculated statistics", Scope: ScopeStatistical})
	}

	keys := make([]string, 0, len(doc.Calculated))
	for k := range doc.Calculated {
		if k != summaryKey {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for i, k := range keys {
		if i == maxGroupingHints {
			break
		}
		hints = append(hints, Hint{
			Query:       fmt.Sprintf(".calculated[%q]", k),
			Description: "Calculated grouping " + k,
			Scope:       ScopeStatistical,
		})
	}
	return hints
}
