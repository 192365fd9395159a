// Package web holds the admin UI templates.
package web

import "embed"

// Templates contains every page template under templates/
//
//go:embed templates/*.html
var Templates embed.FS
