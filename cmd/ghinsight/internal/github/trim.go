// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package github

import (
	"encoding/json"
	"strings"
)

// Trim projects a JSON object onto the given fields. Dotted fields select
// nested members ("commit.author.date"). Values are copied verbatim; keys
// come out sorted. Non-object input is returned unchanged.
func Trim(raw json.RawMessage, fields ...string) json.RawMessage {
	if len(fields) == 0 {
		return raw
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
		return raw
	}

	nested := make(map[string][]string)
	out := make(map[string]json.RawMessage)
	for _, f := range fields {
		head, rest, dotted := strings.Cut(f, ".")
		v, ok := obj[head]
		if !ok {
			continue
		}
		if !dotted {
			out[head] = v
			continue
		}
		nested[head] = append(nested[head], rest)
	}
	for head, sub := range nested {
		if _, whole := out[head]; whole {
			continue
		}
		out[head] = Trim(obj[head], sub...)
	}

	data, err := json.Marshal(out)
	if err != nil {
		return raw
	}
	return data
}

// TrimAll applies Trim to every item.
func TrimAll(items []json.RawMessage, fields ...string) []json.RawMessage {
	out := make([]json.RawMessage, len(items))
	for i, item := range items {
		out[i] = Trim(item, fields...)
	}
	return out
}
