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
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/AleutianAI/ghinsight/cmd/ghinsight/internal/apperr"
	"github.com/AleutianAI/ghinsight/cmd/ghinsight/internal/envelope"
	"github.com/AleutianAI/ghinsight/cmd/ghinsight/internal/util"
)

// KeyPartialResult is set when a deadline cut a composition short.
const KeyPartialResult envelope.Key = "PARTIAL_RESULT"

// stepGracePeriod is how long Compose waits for the running step to return
// what it has after the context ends.
var stepGracePeriod = 2 * time.Second

// Step is one stage of a composition. Run receives a snapshot of the
// accumulator so it can read arguments produced by earlier steps; the
// envelope it returns is merged into the accumulator.
type Step struct {
	Name string
	Run  func(ctx context.Context, acc *envelope.Envelope) *envelope.Envelope
}

// Compose runs steps in order and merges their envelopes.
//
// # Description
//
// After a step records an error the remaining steps are logged as skipped
// and the partial accumulator is returned. When deadline is positive and
// expires, the running step gets a short grace period to return its partial
// envelope, whose data is merged without its error. The running step is then
// logged as failed and the rest as skipped. PARTIAL_RESULT=true is added and
// an instruction explains the cut. A
// panicking step becomes an INTERNAL_AGGREGATION error. Compose itself
// never panics.
//
// # Inputs
//
//   - ctx: Parent context.
//   - deadline: Overall budget; 0 means none.
//   - steps: Stages in execution order.
//
// # Outputs
//
//   - *envelope.Envelope: The accumulator; never nil.
func Compose(ctx context.Context, deadline time.Duration, steps ...Step) *envelope.Envelope {
	acc := envelope.New()
	if deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, deadline)
		defer cancel()
	}

	for i, step := range steps {
		if acc.HasError() {
			skipRemaining(acc, steps[i:])
			return acc
		}
		if ctx.Err() != nil {
			cutShort(ctx, acc, deadline, steps[i:], nil)
			return acc
		}

		start := time.Now()
		done := make(chan *envelope.Envelope, 1)
		snapshot := envelope.New()
		snapshot.Merge(acc)
		go runStep(ctx, step, snapshot, done)

		select {
		case out := <-done:
			acc.Merge(out)
		case <-ctx.Done():
			// Services stop at cancellation and return what they collected.
			// The salvaged data is kept; its error is a symptom of the cut.
			select {
			case out := <-done:
				acc.MergeData(out)
			case <-time.After(stepGracePeriod):
			}
			cutShort(ctx, acc, deadline, steps[i:], envelope.Int64(time.Since(start).Milliseconds()))
			return acc
		}
	}
	return acc
}

// runStep runs one step and always delivers exactly one envelope.
func runStep(ctx context.Context, step Step, snapshot *envelope.Envelope, done chan<- *envelope.Envelope) {
	var out *envelope.Envelope
	defer func() { done <- out }()
	defer util.RecoverPanic(func(p util.PanicResult) {
		out = envelope.New()
		out.AddAction("step "+step.Name, envelope.ResultFailure, nil)
		out.SetError(apperr.InternalAggregation(p).WithDebug("step", step.Name))
	})()

	out = step.Run(ctx, snapshot)
	if out == nil {
		out = envelope.New()
	}
}

func skipRemaining(acc *envelope.Envelope, steps []Step) {
	for _, s := range steps {
		acc.AddAction("step "+s.Name, envelope.ResultSkipped, nil)
	}
}

// cutShort finalizes acc after the context ended. steps[0] is the step
// that was running (or about to run).
func cutShort(ctx context.Context, acc *envelope.Envelope, deadline time.Duration, steps []Step, elapsedMs *int64) {
	acc.AddData(string(KeyPartialResult), true)
	acc.AddAction("step "+steps[0].Name, envelope.ResultFailure, elapsedMs)
	skipRemaining(acc, steps[1:])

	reason := "the run was cancelled"
	if errors.Is(ctx.Err(), context.DeadlineExceeded) && deadline > 0 {
		reason = "the " + deadline.String() + " deadline expired"
	}
	acc.AddInstruction(fmt.Sprintf("Results are partial: %s during step %q. Data above reflects completed steps and whatever the interrupted step returned.", reason, steps[0].Name))
}

// ProjectArgsFrom reads the board chosen by a detection step. A single
// listed project is accepted in place of a resolved one.
func ProjectArgsFrom(acc *envelope.Envelope) (ProjectDataCollectionArgs, error) {
	if id, ok := acc.Get(string(KeyProjectID)); ok && id != "" {
		return ProjectDataCollectionArgs{ProjectID: id}, nil
	}
	if n, ok := acc.Get(string(KeyProjectCount)); ok && n == strconv.Itoa(1) {
		if id, ok := acc.Get(string(KeyProjectNID.At(1))); ok && id != "" {
			return ProjectDataCollectionArgs{ProjectID: id}, nil
		}
	}
	return ProjectDataCollectionArgs{}, apperr.Validation(ExpectedProjectURL, errors.New("detection did not select exactly one project"))
}

// DetectAndCollect is the step list of the project command: detect the
// board from input, then collect it.
func DetectAndCollect(detect *DetectionService, collect *ProjectService, input string, mode DetectionMode) []Step {
	return []Step{
		{
			Name: ServiceDetect,
			Run: func(ctx context.Context, _ *envelope.Envelope) *envelope.Envelope {
				return detect.Execute(ctx, ProjectDetectionArgs{Input: input, Mode: mode})
			},
		},
		{
			Name: ServiceProject,
			Run: func(ctx context.Context, acc *envelope.Envelope) *envelope.Envelope {
				args, err := ProjectArgsFrom(acc)
				if err != nil {
					env := envelope.New()
					env.SetError(err)
					return env
				}
				return collect.Execute(ctx, args)
			},
		},
	}
}
