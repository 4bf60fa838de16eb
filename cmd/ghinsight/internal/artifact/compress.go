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
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"

	"github.com/AleutianAI/ghinsight/cmd/ghinsight/internal/util"
)

// Compression names accepted by NewCompressor.
const (
	CompressionXZ   = "xz"
	CompressionZstd = "zstd"
	CompressionNone = "none"
)

// Compressor turns a file into a compressed sibling.
type Compressor interface {
	// Name is the configured compression name.
	Name() string

	// Compress writes the compressed sibling of src and returns its path.
	// src is left in place; retention is the writer's decision.
	Compress(ctx context.Context, src string) (string, error)

	// DecompressCommand streams a compressed file to stdout ("xz -dc").
	DecompressCommand() string
}

// NewCompressor returns the compressor for name. xzCommand overrides the xz
// executable; runner executes it (nil means util.ExecRunner).
func NewCompressor(name, xzCommand string, runner util.Runner) (Compressor, error) {
	switch name {
	case "", CompressionXZ:
		if xzCommand == "" {
			xzCommand = "xz"
		}
		if runner == nil {
			runner = util.ExecRunner{}
		}
		return &XZCompressor{Command: xzCommand, Runner: runner}, nil
	case CompressionZstd:
		return ZstdCompressor{}, nil
	case CompressionNone:
		return NoCompression{}, nil
	default:
		return nil, fmt.Errorf("unknown compression %q (want xz, zstd or none)", name)
	}
}

// =============================================================================
// xz (external)
// =============================================================================

// XZCompressor shells out to xz.
type XZCompressor struct {
	Command string
	Runner  util.Runner
}

func (x *XZCompressor) Name() string              { return CompressionXZ }
func (x *XZCompressor) DecompressCommand() string { return x.Command + " -dc" }

// Compress runs `xz -z -k -f src`, producing src.xz.
func (x *XZCompressor) Compress(ctx context.Context, src string) (string, error) {
	if _, err := x.Runner.Run(ctx, "", x.Command, "-z", "-k", "-f", src); err != nil {
		return "", util.WrapCommandError(err, x.Command+" -z -k -f "+src, -1, "")
	}
	dst := src + ".xz"
	if _, err := os.Stat(dst); err != nil {
		return "", fmt.Errorf("%s did not produce %s: %w", x.Command, dst, err)
	}
	return dst, nil
}

// =============================================================================
// zstd (in-process)
// =============================================================================

// ZstdCompressor compresses in-process with klauspost/compress.
type ZstdCompressor struct{}

func (ZstdCompressor) Name() string              { return CompressionZstd }
func (ZstdCompressor) DecompressCommand() string { return "zstd -dc" }

// Compress writes src.zst.
func (ZstdCompressor) Compress(ctx context.Context, src string) (string, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	dst := src + ".zst"
	out, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", dst, err)
	}

	enc, err := zstd.NewWriter(out, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		out.Close()
		os.Remove(dst)
		return "", fmt.Errorf("zstd encoder: %w", err)
	}
	_, copyErr := io.Copy(enc, &ctxReader{ctx: ctx, r: in})
	closeErr := enc.Close()
	fileErr := out.Close()
	for _, err := range []error{copyErr, closeErr, fileErr} {
		if err != nil {
			os.Remove(dst)
			return "", fmt.Errorf("zstd compress %s: %w", src, err)
		}
	}
	return dst, nil
}

// ctxReader stops a copy once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// =============================================================================
// none
// =============================================================================

// NoCompression leaves the file as is.
type NoCompression struct{}

func (NoCompression) Name() string                                         { return CompressionNone }
func (NoCompression) DecompressCommand() string                            { return "cat" }
func (NoCompression) Compress(_ context.Context, src string) (string, error) { return src, nil }
