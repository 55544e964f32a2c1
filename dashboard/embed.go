// Package dashboard embeds the fleet dashboard page.
//
// The page subscribes to /api/sse and renders the instance table and status
// summary as snapshots arrive. It is served at "/" by the server package.
package dashboard

import "embed"

// Assets holds the dashboard web UI:
//
//	assets/
//	  index.html    - fleet page with inline CSS and JavaScript
//
//go:embed assets/*
var Assets embed.FS
