// Package web holds the static chat page served at "/".
package web

import "embed"

// DistFS contains dist/index.html.
//
//go:embed dist
var DistFS embed.FS
