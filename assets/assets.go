// Package assets holds static files compiled into the binaries.
package assets

import "embed"

//go:embed all:templates
var FS embed.FS

//go:embed common-passwords.txt
var Passwords embed.FS
