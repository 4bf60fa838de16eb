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

	"github.com/spf13/cobra"

	"github.com/AleutianAI/ghinsight/cmd/ghinsight/internal/envelope"
	"github.com/AleutianAI/ghinsight/cmd/ghinsight/internal/services"
)

func (a *app) newActivityCmd() *cobra.Command {
	var args services.ActivityAnalysisArgs

	cmd := &cobra.Command{
		Use:   "activity --owner <owner> --repo <name> [--repo <name>...]",
		Short: "Analyze commits, issues, pull requests and reviews across repositories",
		Example: `  ghinsight activity --owner octo --repo api --repo web --days 14
  ghinsight activity --owner octo --repo api,web`,
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			a.run(cmd.Context(), func(rc *services.RunContext) []services.Step {
				svc := rc.ActivityService()
				return []services.Step{{
					Name: services.ServiceActivity,
					Run: func(ctx context.Context, _ *envelope.Envelope) *envelope.Envelope {
						return svc.Execute(ctx, args)
					},
				}}
			})
		},
	}

	cmd.Flags().StringVar(&args.Owner, "owner", "", "Repository owner (user or organization)")
	cmd.Flags().StringSliceVar(&args.Repositories, "repo", nil, "Repository name; repeat or comma-separate for several")
	cmd.Flags().IntVar(&args.TimeWindowDays, "days", 0, "Time window in days (default from config, 30)")
	return cmd
}
