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
	"strings"

	"github.com/AleutianAI/ghinsight/cmd/ghinsight/internal/apperr"
)

// Section headers of the text protocol, in output order.
const (
	HeaderData         = "=== DATA ==="
	HeaderActionLog    = "=== ACTION LOG ==="
	HeaderInstructions = "=== INSTRUCTIONS FOR LLM ==="
	HeaderRecovery     = "=== RECOVERY INSTRUCTIONS ==="
	HeaderSummary      = "=== EXECUTION SUMMARY ==="
)

// maxQueryExamples bounds the "Query examples" block.
const maxQueryExamples = 3

var defaultInstructions = []string{
	"Values in the DATA section are authoritative; do not recompute them.",
	"ACTION_<n>_RESULT=failure marks a sub-step whose data is missing from the result.",
}

var resultFileInstructions = []string{
	"The RESULT_FILE holds the full data set with metadata, raw and calculated sections.",
	"Query it with the examples above instead of loading the whole file.",
}

// Serialize renders the envelope in the text protocol.
//
// # Description
//
// Output order is fixed: DATA, ACTION LOG (with RESULT_FILE and query
// examples when an artifact is attached), INSTRUCTIONS FOR LLM (with STOP
// PROCESSING, ERROR_TYPE and RECOVERY INSTRUCTIONS on error), EXECUTION
// SUMMARY. The same envelope always renders the same bytes and rendering
// does not mutate it.
//
// # Outputs
//
//   - string: Newline-terminated protocol text. Never fails.
func (e *Envelope) Serialize() string {
	var b strings.Builder

	b.WriteString(HeaderData + "\n")
	for _, k := range e.keys {
		fmt.Fprintf(&b, "%s=%s\n", escapeLine(k), e.data[k])
	}

	b.WriteString(HeaderActionLog + "\n")
	for i, a := range e.actions {
		n := i + 1
		fmt.Fprintf(&b, "ACTION_%d_EVENT=%s\n", n, escapeLine(a.Event))
		fmt.Fprintf(&b, "ACTION_%d_RESULT=%s\n", n, a.Result)
		if a.DurationMs != nil {
			fmt.Fprintf(&b, "ACTION_%d_DURATION_MS=%d\n", n, *a.DurationMs)
		}
	}
	fmt.Fprintf(&b, "TOTAL_ACTIONS=%d\n", len(e.actions))

	for i, f := range e.files {
		n := i + 1
		fmt.Fprintf(&b, "FILE_%d_PATH=%s\n", n, escapeLine(f.Path))
		fmt.Fprintf(&b, "FILE_%d_STATUS=%s\n", n, escapeLine(f.Status))
		if f.SizeBytes != nil {
			fmt.Fprintf(&b, "FILE_%d_SIZE_BYTES=%d\n", n, *f.SizeBytes)
		}
	}

	if rf := e.resultFile; rf != nil {
		fmt.Fprintf(&b, "RESULT_FILE=%s\n", escapeLine(rf.Path))
		writeQueryExamples(&b, rf)
	}

	b.WriteString(HeaderInstructions + "\n")
	for _, line := range defaultInstructions {
		b.WriteString(line + "\n")
	}
	if e.resultFile != nil {
		for _, line := range resultFileInstructions {
			b.WriteString(line + "\n")
		}
	}
	for _, line := range e.instructions {
		b.WriteString(escapeLine(line) + "\n")
	}
	if e.err != nil {
		b.WriteString("STOP PROCESSING\n")
		fmt.Fprintf(&b, "ERROR_TYPE=%s\n", e.err.Code())
		fmt.Fprintf(&b, "ERROR_KIND=%s\n", e.err.Kind)
		fmt.Fprintf(&b, "ERROR_MESSAGE=%s\n", escapeLine(errorMessage(e.err)))
		b.WriteString(HeaderRecovery + "\n")
		for i, step := range e.err.RecoveryInstructions() {
			fmt.Fprintf(&b, "%d. %s\n", i+1, escapeLine(step))
		}
	}

	succeeded, failed := e.CountActions()
	b.WriteString(HeaderSummary + "\n")
	status := "SUCCESS"
	if e.err != nil {
		status = "FAILURE"
	}
	fmt.Fprintf(&b, "EXECUTION_STATUS=%s\n", status)
	fmt.Fprintf(&b, "ACTIONS_SUCCEEDED=%d\n", succeeded)
	fmt.Fprintf(&b, "ACTIONS_FAILED=%d\n", failed)

	return b.String()
}

// errorMessage falls back to the kind for errors built without a cause.
func errorMessage(err *apperr.OrchestratorError) string {
	if err.Cause == nil {
		return string(err.Kind)
	}
	return err.Cause.Error()
}

func writeQueryExamples(b *strings.Builder, rf *ResultFile) {
	if len(rf.Queries) == 0 {
		return
	}
	decompress := rf.DecompressCommand
	if decompress == "" {
		decompress = "cat"
	}
	tool := rf.QueryTool
	if tool == "" {
		tool = "jq"
	}
	b.WriteString("Query examples:\n")
	for i, q := range rf.Queries {
		if i == maxQueryExamples {
			break
		}
		fmt.Fprintf(b, "  # %s\n", escapeLine(q.Description))
		fmt.Fprintf(b, "  %s %s | %s '%s'\n", decompress, rf.Path, tool, escapeLine(q.Query))
	}
}
