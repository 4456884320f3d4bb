// Package web holds the embedded single-page assets.
package web

import _ "embed"

//go:embed index.html
var IndexHTML []byte
