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

// ProjectItemsQuery pages through a ProjectV2 board by node ID.
// Variables: id (ID!), first (Int!), after (String).
const ProjectItemsQuery = `query($id: ID!, $first: Int!, $after: String) {
  node(id: $id) {
    ... on ProjectV2 {
      id
      title
      number
      url
      closed
      owner {
        ... on Organization { login }
        ... on User { login }
      }
      items(first: $first, after: $after) {
        totalCount
        pageInfo { hasNextPage endCursor }
        nodes {
          id
          type
          createdAt
          fieldValueByName(name: "Status") {
            ... on ProjectV2ItemFieldSingleSelectValue { name }
          }
          content {
            __typename
            ... on Issue {
              title state createdAt closedAt
              assignees(first: 10) { nodes { login } }
            }
            ... on PullRequest {
              title state createdAt closedAt mergedAt
              assignees(first: 10) { nodes { login } }
            }
            ... on DraftIssue {
              title createdAt
              assignees(first: 10) { nodes { login } }
            }
          }
        }
      }
    }
  }
}`

// ProjectLookupQuery resolves an owner's project number to a node ID.
// Variables: owner (String!), number (Int!).
const ProjectLookupQuery = `query($owner: String!, $number: Int!) {
  repositoryOwner(login: $owner) {
    __typename
    login
    ... on ProjectV2Owner {
      projectV2(number: $number) { id title number url closed }
    }
  }
}`

// OwnerProjectsQuery lists an owner's most recently updated boards.
// Variables: owner (String!), first (Int!).
const OwnerProjectsQuery = `query($owner: String!, $first: Int!) {
  repositoryOwner(login: $owner) {
    __typename
    login
    ... on ProjectV2Owner {
      projectsV2(first: $first, orderBy: {field: UPDATED_AT, direction: DESC}) {
        totalCount
        nodes { id title number url closed }
      }
    }
  }
}`
