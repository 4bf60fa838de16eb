// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package envelope implements the result envelope returned by every
// orchestrator service and its line-oriented text protocol.
//
// An Envelope accumulates four things during one service call:
//
//   - data: ordered KEY=value pairs (insertion order, last write wins)
//   - actions: the ordered action log (success / failure / skipped)
//   - files: files produced by the call
//   - error: the first typed fault, which forces exit code 1
//
// Envelopes are not safe for concurrent mutation. Concurrent units build
// their own values and the caller merges them on one goroutine.
package envelope

import (
	"github.com/AleutianAI/ghinsight/cmd/ghinsight/internal/apperr"
)

// =============================================================================
// Action log and file types
// =============================================================================

// ActionResult is the outcome of one logged action.
type ActionResult string

const (
	ResultSuccess ActionResult = "success"
	ResultFailure ActionResult = "failure"
	ResultSkipped ActionResult = "skipped"
)

// Action is one entry of the action log.
type Action struct {
	Event  string
	Result ActionResult

	// DurationMs is nil when the duration was not measured.
	DurationMs *int64
}

// FileRef records a file produced during the call.
type FileRef struct {
	Path   string
	Status string

	// SizeBytes is nil when the size is unknown.
	SizeBytes *int64
}

// QueryHint is a documented query against the result file.
type QueryHint struct {
	Query       string
	Description string
}

// ResultFile describes the artifact attached to an envelope.
type ResultFile struct {
	Path string

	// DecompressCommand reads the file to stdout, e.g. "xz -dc".
	DecompressCommand string

	// QueryTool is the JSON query tool, e.g. "jq".
	QueryTool string

	Queries []QueryHint
}

// Int64 returns a pointer to v, for optional Action and FileRef fields.
func Int64(v int64) *int64 {
	return &v
}

// =============================================================================
// Envelope
// =============================================================================

// Envelope is the data/action/file/error accumulator.
type Envelope struct {
	keys []string
	data map[string]string

	actions      []Action
	files        []FileRef
	instructions []string
	resultFile   *ResultFile

	err *apperr.OrchestratorError
}

// New returns an empty envelope.
func New() *Envelope {
	return &Envelope{data: make(map[string]string)}
}

// AddData sets key to the stringified value. An existing key keeps its
// position and takes the new value.
func (e *Envelope) AddData(key string, value any) {
	if _, exists := e.data[key]; !exists {
		e.keys = append(e.keys, key)
	}
	e.data[key] = Stringify(value)
}

// AddDataFromDTO merges the DTO's flattened fields in order.
func (e *Envelope) AddDataFromDTO(dto DTO) {
	if dto == nil {
		return
	}
	for _, f := range dto.Fields() {
		e.AddData(string(f.Key), f.Value)
	}
}

// Get returns the value stored under key.
func (e *Envelope) Get(key string) (string, bool) {
	v, ok := e.data[key]
	return v, ok
}

// Keys returns the data keys in insertion order.
func (e *Envelope) Keys() []string {
	out := make([]string, len(e.keys))
	copy(out, e.keys)
	return out
}

// AddAction appends to the action log. durationMs may be nil.
func (e *Envelope) AddAction(event string, result ActionResult, durationMs *int64) {
	e.actions = append(e.actions, Action{Event: event, Result: result, DurationMs: durationMs})
}

// Actions returns a copy of the action log.
func (e *Envelope) Actions() []Action {
	out := make([]Action, len(e.actions))
	copy(out, e.actions)
	return out
}

// AddFile records a produced file. sizeBytes may be nil.
func (e *Envelope) AddFile(path, status string, sizeBytes *int64) {
	e.files = append(e.files, FileRef{Path: path, Status: status, SizeBytes: sizeBytes})
}

// Files returns a copy of the file list.
func (e *Envelope) Files() []FileRef {
	out := make([]FileRef, len(e.files))
	copy(out, e.files)
	return out
}

// AddInstruction appends a line to the INSTRUCTIONS FOR LLM section.
func (e *Envelope) AddInstruction(text string) {
	e.instructions = append(e.instructions, text)
}

// SetResultFile attaches the artifact reference rendered as RESULT_FILE.
func (e *Envelope) SetResultFile(rf ResultFile) {
	cp := rf
	cp.Queries = append([]QueryHint(nil), rf.Queries...)
	e.resultFile = &cp
}

// ResultFile returns the attached artifact reference, if any.
func (e *Envelope) ResultFile() (ResultFile, bool) {
	if e.resultFile == nil {
		return ResultFile{}, false
	}
	return *e.resultFile, true
}

// SetError records err as the envelope's fault and forces exit code 1.
// Untyped errors are typed with apperr.Wrap. A nil err is ignored.
// Later data and action additions remain legal.
func (e *Envelope) SetError(err error) {
	if err == nil {
		return
	}
	e.err = apperr.Wrap(err)
}

// Err returns the recorded fault, or nil.
func (e *Envelope) Err() *apperr.OrchestratorError {
	return e.err
}

// HasError reports whether a fault was recorded.
func (e *Envelope) HasError() bool {
	return e.err != nil
}

// ExitCode returns 1 when a fault was recorded, otherwise 0.
func (e *Envelope) ExitCode() int {
	if e.err != nil {
		return 1
	}
	return 0
}

// CountActions returns the number of succeeded and failed actions.
// Skipped actions count as neither.
func (e *Envelope) CountActions() (succeeded, failed int) {
	for _, a := range e.actions {
		switch a.Result {
		case ResultSuccess:
			succeeded++
		case ResultFailure:
			failed++
		}
	}
	return succeeded, failed
}

// Merge folds other into e.
//
// # Description
//
// Data keys from other overwrite e's values (e's key order is kept, new
// keys are appended). Actions, files and instructions are concatenated in
// call order. other's result file replaces e's when present. other's error
// is adopted only if e has none yet, so the first error wins.
//
// Merging nil or an empty envelope leaves e unchanged.
func (e *Envelope) Merge(other *Envelope) {
	if other == nil {
		return
	}
	e.MergeData(other)
	if e.err == nil && other.err != nil {
		e.err = other.err
	}
}

// MergeData merges other like Merge but never adopts its error. It is used
// for output salvaged from a step that was cut short.
func (e *Envelope) MergeData(other *Envelope) {
	if other == nil {
		return
	}
	for _, k := range other.keys {
		if _, exists := e.data[k]; !exists {
			e.keys = append(e.keys, k)
		}
		e.data[k] = other.data[k]
	}
	e.actions = append(e.actions, other.actions...)
	e.files = append(e.files, other.files...)
	e.instructions = append(e.instructions, other.instructions...)
	if other.resultFile != nil {
		e.SetResultFile(*other.resultFile)
	}
}
