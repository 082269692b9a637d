// Package ui holds the HTML templates and static assets served by the web server.
package ui

import (
	"embed"
)

//go:embed templates static
var Files embed.FS
