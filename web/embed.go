// Package web embeds the browser client that renders toastd notifications.
package web

import (
	"embed"
	"io/fs"
)

// StaticFS embeds the client page, script and styles.
//
//go:embed static
var StaticFS embed.FS

// Static returns the static directory as the root of the file system.
func Static() (fs.FS, error) {
	return fs.Sub(StaticFS, "static")
}
