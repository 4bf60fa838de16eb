// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/AleutianAI/ghinsight/cmd/ghinsight/internal/apperr"
)

// =============================================================================
// Shared Validator Instance
// =============================================================================

var argsValidate = validator.New(validator.WithRequiredStructEnabled())

// Expected formats reported with VALIDATION errors.
const (
	ExpectedActivityArgs = "--owner <login> --repo <name> [--repo <name>...] --days <1-365>"
	ExpectedProjectID    = "a ProjectV2 node ID such as PVT_kwDOA..."
	ExpectedProjectURL   = "https://github.com/orgs/<org>/projects/<number>"
	ExpectedDetectMode   = "mode auto, owner or url"
)

// =============================================================================
// ActivityAnalysisArgs
// =============================================================================

// ActivityAnalysisArgs selects the repositories and window of an activity
// analysis.
type ActivityAnalysisArgs struct {
	Owner string `validate:"required,max=39"`

	// Repositories is an ordered set: Normalize removes duplicates while
	// keeping first occurrence order.
	Repositories []string `validate:"min=1,max=50,dive,required,max=100,excludesall=/"`

	TimeWindowDays int `validate:"min=1,max=365"`
}

// Normalize trims names, strips an "<owner>/" prefix that matches Owner,
// and removes duplicate repositories (case-insensitive).
func (a ActivityAnalysisArgs) Normalize() ActivityAnalysisArgs {
	out := ActivityAnalysisArgs{Owner: strings.TrimSpace(a.Owner), TimeWindowDays: a.TimeWindowDays}
	seen := make(map[string]bool, len(a.Repositories))
	for _, r := range a.Repositories {
		r = strings.TrimSpace(r)
		if owner, name, ok := strings.Cut(r, "/"); ok && strings.EqualFold(owner, out.Owner) {
			r = name
		}
		key := strings.ToLower(r)
		if seen[key] {
			continue
		}
		seen[key] = true
		out.Repositories = append(out.Repositories, r)
	}
	return out
}

// Validate normalizes and checks the arguments.
//
// # Outputs
//
//   - ActivityAnalysisArgs: The normalized arguments.
//   - error: VALIDATION OrchestratorError naming the offending fields.
func (a ActivityAnalysisArgs) Validate() (ActivityAnalysisArgs, error) {
	n := a.Normalize()
	if err := argsValidate.Struct(n); err != nil {
		return n, validationError(ExpectedActivityArgs, err)
	}
	return n, nil
}

// =============================================================================
// ProjectDataCollectionArgs
// =============================================================================

// ProjectDataCollectionArgs identifies the board to collect.
type ProjectDataCollectionArgs struct {
	ProjectID string `validate:"required,startswith=PVT_,max=100"`
}

// Validate checks the arguments.
func (a ProjectDataCollectionArgs) Validate() (ProjectDataCollectionArgs, error) {
	a.ProjectID = strings.TrimSpace(a.ProjectID)
	if err := argsValidate.Struct(a); err != nil {
		return a, validationError(ExpectedProjectID, err)
	}
	return a, nil
}

// =============================================================================
// ProjectDetectionArgs
// =============================================================================

// DetectionMode selects how ProjectDetectionService interprets its input.
type DetectionMode string

const (
	ModeAuto  DetectionMode = "auto"
	ModeOwner DetectionMode = "owner"
	ModeURL   DetectionMode = "url"
)

// ProjectDetectionArgs is the input of project detection. An empty Mode
// means auto.
type ProjectDetectionArgs struct {
	Input string
	Mode  DetectionMode `validate:"oneof=auto owner url"`
}

// Validate defaults and checks the arguments.
func (a ProjectDetectionArgs) Validate() (ProjectDetectionArgs, error) {
	a.Input = strings.TrimSpace(a.Input)
	if a.Mode == "" {
		a.Mode = ModeAuto
	}
	if err := argsValidate.Struct(a); err != nil {
		return a, validationError(ExpectedDetectMode, err)
	}
	return a, nil
}

// validationError renders validator failures as one VALIDATION error.
func validationError(expected string, err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Validation(expected, err)
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s fails %s=%s", fe.Namespace(), fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s fails %s", fe.Namespace(), fe.Tag()))
		}
	}
	return apperr.Validation(expected, fmt.Errorf("invalid arguments: %s", strings.Join(parts, "; ")))
}
