// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package github

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/AleutianAI/ghinsight/cmd/ghinsight/internal/apperr"
)

// GraphQLClient sends documents to the GitHub GraphQL endpoint.
//
// Query is treated as a read and retried on TRANSIENT_NETWORK failures;
// Mutate is attempted exactly once. A response carrying an "errors" array
// is returned as a typed error even when partial data is present.
type GraphQLClient struct {
	endpoint string
	req      *requester
}

// NewGraphQLClient creates a GraphQL client. WithBaseURL sets the full
// endpoint URL.
func NewGraphQLClient(token string, opts ...Option) *GraphQLClient {
	cfg := newClientConfig(DefaultGraphQLURL, opts)
	return &GraphQLClient{
		endpoint: cfg.baseURL,
		req:      newRequester("graphql", token, cfg),
	}
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors"`
}

// Query runs a read-only document and returns its "data" member verbatim.
func (c *GraphQLClient) Query(ctx context.Context, query string, vars map[string]any) (json.RawMessage, error) {
	return c.send(ctx, "query", query, vars, true)
}

// Mutate runs a mutation document. It is never retried.
func (c *GraphQLClient) Mutate(ctx context.Context, mutation string, vars map[string]any) (json.RawMessage, error) {
	return c.send(ctx, "mutation", mutation, vars, false)
}

func (c *GraphQLClient) send(ctx context.Context, kind, doc string, vars map[string]any, idempotent bool) (json.RawMessage, error) {
	body, err := json.Marshal(graphQLRequest{Query: doc, Variables: vars})
	if err != nil {
		return nil, apperr.Validation("JSON-encodable GraphQL variables", err)
	}
	resp, err := c.req.do(ctx, "POST", c.endpoint, body, idempotent)
	if err != nil {
		return nil, err
	}

	var out graphQLResponse
	if err := json.Unmarshal(resp.body, &out); err != nil {
		return nil, apperr.InternalAggregation(fmt.Errorf("decode graphql %s response: %w", kind, err))
	}
	if len(out.Errors) > 0 {
		return nil, classifyGraphQL("graphql "+kind, out.Errors, resp.header, time.Now())
	}
	if len(out.Data) == 0 || string(out.Data) == "null" {
		return nil, apperr.InternalAggregation(fmt.Errorf("graphql %s returned no data", kind))
	}
	return out.Data, nil
}
