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
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/ghinsight/cmd/ghinsight/internal/envelope"
	"github.com/AleutianAI/ghinsight/cmd/ghinsight/internal/telemetry"
)

var tracer = otel.Tracer("ghinsight.artifact")

// Action names recorded by the writer.
const (
	EventWrite    = "write artifact"
	EventCompress = "compress artifact"
	EventPublish  = "publish artifact"
)

// File statuses recorded by the writer.
const (
	StatusCreated      = "created"
	StatusUncompressed = "uncompressed"
	StatusPublished    = "published"
)

// Config configures a Writer.
type Config struct {
	// Dir is the results directory. Created on first write.
	Dir string

	// Compressor defaults to NoCompression.
	Compressor Compressor

	// KeepUncompressed retains the .json next to the compressed file.
	KeepUncompressed bool

	// Publisher is optional.
	Publisher Publisher

	// QueryTool is rendered in query examples. Defaults to "jq".
	QueryTool string

	// Version is written to metadata.version.
	Version string

	Logger  *slog.Logger
	Metrics *telemetry.ServiceMetrics

	// Now is injectable for tests.
	Now func() time.Time
}

// Writer produces result artifacts. Safe for sequential use per run.
type Writer struct {
	cfg Config
}

// NewWriter returns a Writer with defaults applied.
func NewWriter(cfg Config) *Writer {
	if cfg.Compressor == nil {
		cfg.Compressor = NoCompression{}
	}
	if cfg.QueryTool == "" {
		cfg.QueryTool = "jq"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Writer{cfg: cfg}
}

// Request is one artifact to write.
type Request struct {
	// Kind prefixes the file name ("activity", "project").
	Kind  string
	Owner string
	ID    string

	// Command is the invocation that produced the data.
	Command   string
	StartedAt time.Time
	RunID     string

	Raw        map[string]any
	Calculated map[string]any
}

// Result describes the written artifact.
type Result struct {
	// Path is the final file: compressed when compression succeeded,
	// otherwise the .json.
	Path              string
	SizeBytes         int64
	DecompressCommand string
	QueryTool         string
	Hints             []Hint
	PublishedURI      string

	actions []envelope.Action
	files   []envelope.FileRef
}

// Actions returns the action log entries of the write.
func (r *Result) Actions() []envelope.Action {
	return append([]envelope.Action(nil), r.actions...)
}

// Apply records the write on env: actions, files and RESULT_FILE.
func (r *Result) Apply(env *envelope.Envelope) {
	for _, a := range r.actions {
		env.AddAction(a.Event, a.Result, a.DurationMs)
	}
	for _, f := range r.files {
		env.AddFile(f.Path, f.Status, f.SizeBytes)
	}
	queries := make([]envelope.QueryHint, len(r.Hints))
	for i, h := range r.Hints {
		queries[i] = envelope.QueryHint{Query: h.Query, Description: h.Description}
	}
	env.SetResultFile(envelope.ResultFile{
		Path:              r.Path,
		DecompressCommand: r.DecompressCommand,
		QueryTool:         r.QueryTool,
		Queries:           queries,
	})
}

func (r *Result) action(event string, result envelope.ActionResult, since time.Time) {
	r.actions = append(r.actions, envelope.Action{
		Event:      event,
		Result:     result,
		DurationMs: envelope.Int64(time.Since(since).Milliseconds()),
	})
}

// Write serializes, compresses and optionally publishes one artifact.
//
// # Description
//
// The JSON document is written first. Compression and publishing are
// best effort: their failures become failed actions on the Result and the
// artifact stays usable. When compression fails the uncompressed path is
// reported.
//
// # Outputs
//
//   - *Result: Always non-nil when error is nil.
//   - error: The .json could not be encoded or written.
func (w *Writer) Write(ctx context.Context, req Request) (*Result, error) {
	ctx, span := tracer.Start(ctx, "artifact.Write")
	defer span.End()
	span.SetAttributes(attribute.String("artifact.kind", req.Kind), attribute.String("artifact.compression", w.cfg.Compressor.Name()))

	now := w.cfg.Now().UTC()
	doc := Document{
		Metadata: Metadata{
			GeneratedAt: now,
			Command:     req.Command,
			Version:     w.cfg.Version,
			RunID:       req.RunID,
		},
		Raw:        nonNil(req.Raw),
		Calculated: nonNil(req.Calculated),
	}
	if !req.StartedAt.IsZero() {
		doc.Metadata.ExecutionTimeMs = now.Sub(req.StartedAt).Milliseconds()
	}

	res := &Result{QueryTool: w.cfg.QueryTool, Hints: BuildHints(doc)}

	start := time.Now()
	jsonPath, size, err := w.writeJSON(doc, FileName(req.Kind, req.Owner, req.ID, now))
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	res.action(EventWrite, envelope.ResultSuccess, start)
	res.Path, res.SizeBytes, res.DecompressCommand = jsonPath, size, NoCompression{}.DecompressCommand()
	w.cfg.Logger.Info("artifact written", "path", jsonPath, "size_bytes", size)

	if _, none := w.cfg.Compressor.(NoCompression); none {
		res.files = append(res.files, envelope.FileRef{Path: jsonPath, Status: StatusCreated, SizeBytes: envelope.Int64(size)})
	} else {
		w.compress(ctx, res, jsonPath)
	}

	if w.cfg.Publisher != nil {
		start = time.Now()
		uri, err := w.cfg.Publisher.Publish(ctx, res.Path)
		if err != nil {
			w.cfg.Logger.Warn("artifact publish failed", "path", res.Path, "error", err)
			res.action(EventPublish, envelope.ResultFailure, start)
		} else {
			res.PublishedURI = uri
			res.action(EventPublish, envelope.ResultSuccess, start)
			res.files = append(res.files, envelope.FileRef{Path: uri, Status: StatusPublished, SizeBytes: envelope.Int64(res.SizeBytes)})
		}
	}

	w.cfg.Metrics.RecordArtifact(ctx, w.cfg.Compressor.Name(), res.SizeBytes)
	telemetry.SetSpanOK(span)
	return res, nil
}

func (w *Writer) writeJSON(doc Document, name string) (string, int64, error) {
	if err := os.MkdirAll(w.cfg.Dir, 0o755); err != nil {
		return "", 0, fmt.Errorf("create results dir %s: %w", w.cfg.Dir, err)
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", 0, fmt.Errorf("encode artifact: %w", err)
	}
	data = append(data, '\n')

	path := filepath.Join(w.cfg.Dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", 0, fmt.Errorf("write artifact %s: %w", path, err)
	}
	return path, int64(len(data)), nil
}

// compress replaces res's path with the compressed sibling on success.
// On failure the .json stays the reported path.
func (w *Writer) compress(ctx context.Context, res *Result, jsonPath string) {
	start := time.Now()
	dst, err := w.cfg.Compressor.Compress(ctx, jsonPath)
	if err != nil {
		w.cfg.Logger.Warn("artifact compression failed, keeping uncompressed file",
			"compression", w.cfg.Compressor.Name(), "path", jsonPath, "error", err)
		res.action(EventCompress, envelope.ResultFailure, start)
		res.files = append(res.files, envelope.FileRef{Path: jsonPath, Status: StatusUncompressed, SizeBytes: envelope.Int64(res.SizeBytes)})
		return
	}
	res.action(EventCompress, envelope.ResultSuccess, start)

	info, err := os.Stat(dst)
	if err == nil {
		res.SizeBytes = info.Size()
	}
	res.Path = dst
	res.DecompressCommand = w.cfg.Compressor.DecompressCommand()
	res.files = append(res.files, envelope.FileRef{Path: dst, Status: StatusCreated, SizeBytes: envelope.Int64(res.SizeBytes)})

	if w.cfg.KeepUncompressed {
		return
	}
	if err := os.Remove(jsonPath); err != nil && !os.IsNotExist(err) {
		w.cfg.Logger.Warn("could not remove uncompressed artifact", "path", jsonPath, "error", err)
	}
}

func nonNil(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
