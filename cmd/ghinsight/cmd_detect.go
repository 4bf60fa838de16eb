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

func (a *app) newDetectCmd() *cobra.Command {
	var mode string

	cmd := &cobra.Command{
		Use:   "detect [owner | project-url]",
		Short: "Resolve a board URL or list an owner's ProjectV2 boards",
		Args:  cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, positional []string) {
			args := services.ProjectDetectionArgs{Mode: services.DetectionMode(mode)}
			if len(positional) == 1 {
				args.Input = positional[0]
			}
			a.run(cmd.Context(), func(rc *services.RunContext) []services.Step {
				svc := rc.DetectionService()
				return []services.Step{{
					Name: services.ServiceDetect,
					Run: func(ctx context.Context, _ *envelope.Envelope) *envelope.Envelope {
						return svc.Execute(ctx, args)
					},
				}}
			})
		},
	}

	cmd.Flags().StringVar(&mode, "mode", string(services.ModeAuto), "auto, owner or url")
	return cmd
}
