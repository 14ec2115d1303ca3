// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Recall Contributors

package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name        string
		query       string
		mode        Route
		treeEnabled bool
		want        Route
	}{
		{name: "one token", query: "nix", want: RouteKeyword},
		{name: "three tokens", query: "restart nginx service", want: RouteKeyword},
		{name: "mid length", query: "how do I restart nginx", want: RouteHybrid},
		{name: "long with tree", query: "how do I configure nginx to proxy websocket connections upstream", treeEnabled: true, want: RouteTree},
		{name: "long without tree", query: "how do I configure nginx to proxy websocket connections upstream", want: RouteHybrid},
		{name: "sql injection", query: "'; DROP TABLE solved_issues; --", want: RouteSQL},
		{name: "select statement", query: "SELECT id FROM solutions WHERE score > 0.5", want: RouteSQL},
		{name: "lowercase sql", query: "select * from users", want: RouteSQL},
		{name: "explicit mode wins", query: "nix", mode: RouteSemantic, want: RouteSemantic},
		{name: "auto mode classifies", query: "nix", mode: RouteAuto, want: RouteKeyword},
		{name: "explicit tree without flag", query: "short", mode: RouteTree, want: RouteTree},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classify(tt.query, tt.mode, tt.treeEnabled))
		})
	}
}

func TestLooksLikeSQLNegatives(t *testing.T) {
	assert.False(t, looksLikeSQL("how to update my resume"))
	assert.False(t, looksLikeSQL("drop the old config file"))
}

func TestFirstParaphrase(t *testing.T) {
	assert.Equal(t, "restart the nginx service", firstParaphrase("1. \"restart the nginx service\"\n2. reload nginx"))
	assert.Equal(t, "reload nginx", firstParaphrase("\n\n- reload nginx\n"))
	assert.Equal(t, "", firstParaphrase("   \n  "))
}
