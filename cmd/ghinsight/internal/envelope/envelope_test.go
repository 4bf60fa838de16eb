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
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/ghinsight/cmd/ghinsight/internal/apperr"
)

type sampleDTO struct {
	Owner string
	Count int
}

const (
	keySampleOwner Key = "SAMPLE_OWNER"
	keySampleCount Key = "SAMPLE_COUNT"
)

func (d sampleDTO) Fields() []Field {
	return []Field{
		{Key: keySampleOwner, Value: d.Owner},
		{Key: keySampleCount, Value: d.Count},
	}
}

type panickyStringer struct{}

func (panickyStringer) String() string { panic("boom") }

func populated() *Envelope {
	e := New()
	e.AddData("OWNER", "octo")
	e.AddData("TOTAL", 42)
	e.AddAction("fetch octo/a", ResultSuccess, Int64(120))
	e.AddAction("fetch octo/b", ResultFailure, nil)
	e.AddFile("/tmp/a.json.xz", "compressed", Int64(2048))
	return e
}

// snapshot captures every observable field so go-cmp can diff envelopes.
type snapshot struct {
	Keys    []string
	Data    map[string]string
	Actions []Action
	Files   []FileRef
	Err     *apperr.OrchestratorError
}

func snap(e *Envelope) snapshot {
	data := make(map[string]string)
	for _, k := range e.Keys() {
		data[k], _ = e.Get(k)
	}
	return snapshot{Keys: e.Keys(), Data: data, Actions: e.Actions(), Files: e.Files(), Err: e.Err()}
}

// =============================================================================
// Data
// =============================================================================

func TestAddData_LastWriteWinsKeepsPosition(t *testing.T) {
	e := New()
	e.AddData("A", "1")
	e.AddData("B", "2")
	e.AddData("A", "3")

	assert.Equal(t, []string{"A", "B"}, e.Keys())
	v, _ := e.Get("A")
	assert.Equal(t, "3", v)
}

func TestAddData_Stringifies(t *testing.T) {
	e := New()
	e.AddData("FLOAT", 16.67)
	e.AddData("BOOL", true)
	e.AddData("NIL", nil)
	e.AddData("TIME", time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC))
	e.AddData("LIST", []string{"a", "b"})
	e.AddData("MULTI", "line1\nline2")
	e.AddData("PANIC", panickyStringer{})

	get := func(k string) string { v, _ := e.Get(k); return v }
	assert.Equal(t, "16.67", get("FLOAT"))
	assert.Equal(t, "true", get("BOOL"))
	assert.Equal(t, "", get("NIL"))
	assert.Equal(t, "2025-01-02T03:04:05Z", get("TIME"))
	assert.Equal(t, "a,b", get("LIST"))
	assert.Equal(t, `line1\nline2`, get("MULTI"))
	assert.Equal(t, "<unprintable>", get("PANIC"))
}

func TestAddDataFromDTO(t *testing.T) {
	e := New()
	e.AddDataFromDTO(sampleDTO{Owner: "octo", Count: 3})
	e.AddDataFromDTO(nil)

	assert.Equal(t, []string{"SAMPLE_OWNER", "SAMPLE_COUNT"}, e.Keys())
	v, _ := e.Get("SAMPLE_COUNT")
	assert.Equal(t, "3", v)
}

func TestIndexedKey(t *testing.T) {
	assert.Equal(t, Key("REPO_2_NAME"), IndexedKey("REPO_%d_NAME").At(2))
}

// =============================================================================
// Error state
// =============================================================================

func TestSetError_ForcesExitCodeAndAllowsMoreData(t *testing.T) {
	e := New()
	assert.Equal(t, 0, e.ExitCode())

	e.SetError(apperr.NotFound("octo/x", errors.New("404")))
	e.AddData("AFTER", "still legal")
	e.AddAction("diagnostic", ResultSkipped, nil)

	assert.True(t, e.HasError())
	assert.Equal(t, 1, e.ExitCode())
	_, ok := e.Get("AFTER")
	assert.True(t, ok)
}

func TestSetError_WrapsUntyped(t *testing.T) {
	e := New()
	e.SetError(errors.New("surprise"))
	require.NotNil(t, e.Err())
	assert.Equal(t, apperr.CodeServiceInitializationFailed, e.Err().Code())
}

// =============================================================================
// Merge
// =============================================================================

func TestMerge_EmptyIsIdentity(t *testing.T) {
	e := populated()
	before := snap(e)
	beforeText := e.Serialize()

	e.Merge(New())
	e.Merge(nil)

	if diff := cmp.Diff(before, snap(e), cmp.AllowUnexported(apperr.OrchestratorError{})); diff != "" {
		t.Errorf("merge(empty) changed the envelope (-want +got):\n%s", diff)
	}
	assert.Equal(t, beforeText, e.Serialize())
}

func TestMerge_OtherWinsOnConflictAndConcatenates(t *testing.T) {
	a := New()
	a.AddData("K", "a")
	a.AddData("ONLY_A", "1")
	a.AddAction("a1", ResultSuccess, nil)

	b := New()
	b.AddData("K", "b")
	b.AddData("ONLY_B", "2")
	b.AddAction("b1", ResultFailure, nil)
	b.AddFile("/x", "created", nil)

	a.Merge(b)

	assert.Equal(t, []string{"K", "ONLY_A", "ONLY_B"}, a.Keys())
	v, _ := a.Get("K")
	assert.Equal(t, "b", v)
	require.Len(t, a.Actions(), 2)
	assert.Equal(t, "a1", a.Actions()[0].Event)
	assert.Equal(t, "b1", a.Actions()[1].Event)
	assert.Len(t, a.Files(), 1)
}

func TestMerge_FirstErrorWins(t *testing.T) {
	first := apperr.NotFound("one", errors.New("first"))
	second := apperr.Authentication(errors.New("second"))

	acc := New()
	x := New()
	x.SetError(first)
	y := New()
	y.SetError(second)

	acc.Merge(x)
	acc.Merge(y)
	assert.Same(t, first, acc.Err())
}

func TestMergeData_DoesNotAdoptError(t *testing.T) {
	cut := New()
	cut.AddData("B", "partial")
	cut.AddAction("fetch octo/api", ResultSuccess, nil)
	cut.SetError(apperr.TransientNetwork("fetch octo/slow", errors.New("context deadline exceeded")))

	acc := New()
	acc.MergeData(cut)

	assert.False(t, acc.HasError())
	v, ok := acc.Get("B")
	require.True(t, ok)
	assert.Equal(t, "partial", v)
	assert.Len(t, acc.Actions(), 1)
}

// =============================================================================
// Serialize
// =============================================================================

func TestSerialize_SuccessLayout(t *testing.T) {
	e := populated()
	want := strings.Join([]string{
		"=== DATA ===",
		"OWNER=octo",
		"TOTAL=42",
		"=== ACTION LOG ===",
		"ACTION_1_EVENT=fetch octo/a",
		"ACTION_1_RESULT=success",
		"ACTION_1_DURATION_MS=120",
		"ACTION_2_EVENT=fetch octo/b",
		"ACTION_2_RESULT=failure",
		"TOTAL_ACTIONS=2",
		"FILE_1_PATH=/tmp/a.json.xz",
		"FILE_1_STATUS=compressed",
		"FILE_1_SIZE_BYTES=2048",
		"=== INSTRUCTIONS FOR LLM ===",
		defaultInstructions[0],
		defaultInstructions[1],
		"=== EXECUTION SUMMARY ===",
		"EXECUTION_STATUS=SUCCESS",
		"ACTIONS_SUCCEEDED=1",
		"ACTIONS_FAILED=1",
		"",
	}, "\n")
	assert.Equal(t, want, e.Serialize())
}

func TestSerialize_ErrorBlock(t *testing.T) {
	e := New()
	e.SetError(apperr.Validation("https://github.com/orgs/<org>/projects/<number>", errors.New("malformed")))
	out := e.Serialize()

	stop := strings.Index(out, "STOP PROCESSING")
	recovery := strings.Index(out, HeaderRecovery)
	summary := strings.Index(out, HeaderSummary)
	require.True(t, stop > 0 && recovery > stop && summary > recovery, out)

	assert.Contains(t, out, "ERROR_TYPE=INVALID_INPUT\n")
	assert.Contains(t, out, "1. Expected format: https://github.com/orgs/<org>/projects/<number>\n")
	assert.Contains(t, out, "EXECUTION_STATUS=FAILURE\n")
}

func TestSerialize_ErrorWithoutCause(t *testing.T) {
	e := New()
	e.SetError(&apperr.OrchestratorError{Kind: apperr.KindValidation})

	var out string
	require.NotPanics(t, func() { out = e.Serialize() })
	assert.Contains(t, out, "ERROR_TYPE=INVALID_INPUT\n")
	assert.Contains(t, out, "ERROR_MESSAGE=VALIDATION\n")
	assert.Contains(t, out, "EXECUTION_STATUS=FAILURE\n")
}

func TestSerialize_ResultFileAndQueries(t *testing.T) {
	e := New()
	e.SetResultFile(ResultFile{
		Path:              "results/activity-octo-a-2025.json.xz",
		DecompressCommand: "xz -dc",
		QueryTool:         "jq",
		Queries: []QueryHint{
			{Query: ".metadata", Description: "run metadata"},
			{Query: ".raw | keys", Description: "sources"},
			{Query: ".calculated | keys", Description: "groupings"},
			{Query: ".calculated.summary", Description: "summary"},
		},
	})
	out := e.Serialize()

	assert.Contains(t, out, "RESULT_FILE=results/activity-octo-a-2025.json.xz\n")
	assert.Contains(t, out, "  xz -dc results/activity-octo-a-2025.json.xz | jq '.metadata'\n")
	assert.NotContains(t, out, ".calculated.summary'", "only the first examples are rendered")
	assert.Less(t, strings.Index(out, "RESULT_FILE="), strings.Index(out, HeaderInstructions))
}

func TestSerialize_Idempotent(t *testing.T) {
	e := populated()
	e.SetError(apperr.TransientNetwork("GET /repos", errors.New("timeout")))
	assert.Equal(t, e.Serialize(), e.Serialize())
}

func TestSerialize_EmptyEnvelope(t *testing.T) {
	out := New().Serialize()
	assert.True(t, strings.HasPrefix(out, HeaderData+"\n"+HeaderActionLog+"\nTOTAL_ACTIONS=0\n"))
	assert.True(t, strings.HasSuffix(out, "ACTIONS_FAILED=0\n"))
}
