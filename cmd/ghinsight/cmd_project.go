// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/ghinsight/cmd/ghinsight/internal/envelope"
	"github.com/AleutianAI/ghinsight/cmd/ghinsight/internal/services"
)

// projectNodePrefix marks a ProjectV2 node ID, which skips detection.
const projectNodePrefix = "PVT_"

func (a *app) newProjectCmd() *cobra.Command {
	var mode string

	cmd := &cobra.Command{
		Use:   "project [project-id | project-url | owner]",
		Short: "Collect a ProjectV2 board and summarize its items",
		Long: `Collects every item of a ProjectV2 board. The argument may be a node ID
(PVT_...), a board URL, or an owner login with exactly one board. With no
argument the owner is taken from the git remote of the working directory.`,
		Example: `  ghinsight project PVT_kwDOABCD
  ghinsight project https://github.com/orgs/octo/projects/7`,
		Args: cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, positional []string) {
			input := ""
			if len(positional) == 1 {
				input = strings.TrimSpace(positional[0])
			}
			a.run(cmd.Context(), func(rc *services.RunContext) []services.Step {
				collect := rc.ProjectService()
				if strings.HasPrefix(input, projectNodePrefix) {
					return []services.Step{{
						Name: services.ServiceProject,
						Run: func(ctx context.Context, _ *envelope.Envelope) *envelope.Envelope {
							return collect.Execute(ctx, services.ProjectDataCollectionArgs{ProjectID: input})
						},
					}}
				}
				return services.DetectAndCollect(rc.DetectionService(), collect, input, services.DetectionMode(mode))
			})
		},
	}

	cmd.Flags().StringVar(&mode, "mode", string(services.ModeAuto), "How to read the argument when it is not a node ID: auto, owner or url")
	return cmd
}
