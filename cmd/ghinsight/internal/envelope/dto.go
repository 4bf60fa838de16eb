// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package envelope

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Key is a protocol data key. DTOs declare their keys as typed constants so
// no call site builds keys from ad hoc strings.
type Key string

// IndexedKey is a key pattern containing one %d verb, for per-item keys
// such as "REPO_%d_NAME".
type IndexedKey string

// At returns the key for the 1-based index i.
func (k IndexedKey) At(i int) Key {
	return Key(fmt.Sprintf(string(k), i))
}

// Field is one flattened DTO entry.
type Field struct {
	Key   Key
	Value any
}

// DTO is a value object that flattens itself into envelope data.
//
// Fields must be pure: the same receiver yields the same fields in the
// same order.
type DTO interface {
	Fields() []Field
}

// Stringify renders v for the text protocol. It never panics: a panicking
// fmt.Stringer yields "<unprintable>".
//
// Newlines are escaped so every data entry stays on one line.
func Stringify(v any) (out string) {
	defer func() {
		if r := recover(); r != nil {
			out = "<unprintable>"
		}
	}()

	var s string
	switch x := v.(type) {
	case nil:
		s = ""
	case string:
		s = x
	case bool:
		s = strconv.FormatBool(x)
	case int:
		s = strconv.Itoa(x)
	case int64:
		s = strconv.FormatInt(x, 10)
	case float64:
		s = formatFloat(x)
	case float32:
		s = formatFloat(float64(x))
	case time.Time:
		s = x.UTC().Format(time.RFC3339)
	case time.Duration:
		s = x.String()
	case []string:
		s = strings.Join(x, ",")
	case error:
		s = x.Error()
	case fmt.Stringer:
		s = x.String()
	default:
		s = fmt.Sprint(x)
	}
	return escapeLine(s)
}

func formatFloat(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "0"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

var lineEscaper = strings.NewReplacer("\r\n", `\n`, "\n", `\n`, "\r", `\n`)

func escapeLine(s string) string {
	return lineEscaper.Replace(s)
}
