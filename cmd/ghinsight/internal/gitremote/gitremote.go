// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package gitremote inspects the local repository's remote so commands can
// default the GitHub owner and repository.
package gitremote

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/AleutianAI/ghinsight/cmd/ghinsight/internal/util"
)

// DefaultRemote is the remote consulted when none is configured.
const DefaultRemote = "origin"

// ErrNotGitHub is returned for remote URLs that do not point at github.com
// (or the configured host).
var ErrNotGitHub = errors.New("remote is not a GitHub repository URL")

// Remote is an owner/repository pair parsed from a remote URL.
type Remote struct {
	Host  string
	Owner string
	Repo  string
}

// FullName returns "owner/repo".
func (r Remote) FullName() string {
	return r.Owner + "/" + r.Repo
}

// Inspector reads remotes of a working tree.
//
// # Thread Safety
//
// Inspector holds no mutable state and is safe for concurrent use.
type Inspector struct {
	workDir string
	remote  string
	runner  util.Runner
}

// NewInspector creates an Inspector for workDir. A nil runner uses
// util.ExecRunner.
func NewInspector(workDir string, runner util.Runner) *Inspector {
	if runner == nil {
		runner = util.ExecRunner{}
	}
	return &Inspector{workDir: workDir, remote: DefaultRemote, runner: runner}
}

// WithRemote returns a copy reading the named remote instead of origin.
func (i *Inspector) WithRemote(name string) *Inspector {
	cp := *i
	if name != "" {
		cp.remote = name
	}
	return &cp
}

// RemoteURL returns the fetch URL of the configured remote.
//
// # Outputs
//
//   - string: Trimmed URL.
//   - error: *util.CommandError when git fails or the remote is missing.
func (i *Inspector) RemoteURL(ctx context.Context) (string, error) {
	out, err := i.runner.Run(ctx, i.workDir, "git", "remote", "get-url", i.remote)
	if err != nil {
		return "", util.WrapCommandError(err, "git remote get-url "+i.remote, -1, "")
	}
	u := strings.TrimSpace(string(out))
	if u == "" {
		return "", util.NewCommandError("git remote get-url "+i.remote, 0, "empty remote URL", nil)
	}
	return u, nil
}

// GitHubRemote reads and parses the configured remote.
func (i *Inspector) GitHubRemote(ctx context.Context) (Remote, error) {
	u, err := i.RemoteURL(ctx)
	if err != nil {
		return Remote{}, err
	}
	return ParseGitHubRemote(u)
}

// ParseGitHubRemote parses the three remote URL forms GitHub hands out:
//
//	https://github.com/owner/repo(.git)
//	git@github.com:owner/repo(.git)
//	ssh://git@github.com(:22)/owner/repo(.git)
//
// Any host containing "github" is accepted so GitHub Enterprise remotes
// work.
func ParseGitHubRemote(raw string) (Remote, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Remote{}, fmt.Errorf("%w: empty", ErrNotGitHub)
	}

	var host, path string
	switch {
	case strings.Contains(raw, "://"):
		u, err := url.Parse(raw)
		if err != nil {
			return Remote{}, fmt.Errorf("%w: %v", ErrNotGitHub, err)
		}
		host, path = u.Hostname(), u.Path
	case strings.Contains(raw, "@") && strings.Contains(raw, ":"):
		// scp-like syntax: user@host:owner/repo
		rest := raw[strings.Index(raw, "@")+1:]
		h, p, _ := strings.Cut(rest, ":")
		host, path = h, p
	default:
		return Remote{}, fmt.Errorf("%w: %q", ErrNotGitHub, raw)
	}

	if !strings.Contains(strings.ToLower(host), "github") {
		return Remote{}, fmt.Errorf("%w: host %q", ErrNotGitHub, host)
	}
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Remote{}, fmt.Errorf("%w: path %q", ErrNotGitHub, path)
	}
	return Remote{
		Host:  strings.ToLower(host),
		Owner: parts[0],
		Repo:  strings.TrimSuffix(parts[1], ".git"),
	}, nil
}
