// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package apperr

// recoveryCatalogue holds the canonical remediation steps per kind.
var recoveryCatalogue = map[Kind][]string{
	KindAuthentication: {
		"Re-authenticate with the GitHub CLI: gh auth login",
		"Check the current authentication status: gh auth status",
		"Or export a valid token: export GITHUB_TOKEN=<token>",
	},
	KindNotFound: {
		"Verify the owner, repository or project identifier",
		"Confirm the authenticated account can access the resource: gh auth status",
	},
	KindPermission: {
		"Check the token scopes: gh auth status",
		"Private repositories need the 'repo' scope and projects need the 'read:project' scope",
	},
	KindRateLimit: {
		"Check the remaining quota: gh api rate_limit",
		"Reduce the number of repositories or the time window",
	},
	KindValidation: {
		"Correct the input and run the command again",
	},
	KindTransientNetwork: {
		"Retry the command; the failure is usually temporary",
		"Check connectivity to api.github.com and https://www.githubstatus.com",
		"Increase github.timeout in the configuration if the network is slow",
	},
	KindInternalAggregation: {
		"This is a defect in ghinsight, not a problem with your input",
		"Report it with the command line and the debug log attached",
	},
}

// Recovery returns a copy of the canonical recovery steps for kind. An
// unknown kind gets the internal-defect steps so the list is never empty.
func Recovery(kind Kind) []string {
	steps, ok := recoveryCatalogue[kind]
	if !ok {
		steps = recoveryCatalogue[KindInternalAggregation]
	}
	out := make([]string, len(steps))
	copy(out, steps)
	return out
}

// Kinds returns every kind in declaration order.
func Kinds() []Kind {
	return []Kind{
		KindAuthentication,
		KindNotFound,
		KindPermission,
		KindRateLimit,
		KindValidation,
		KindTransientNetwork,
		KindInternalAggregation,
	}
}
