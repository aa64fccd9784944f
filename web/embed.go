// Package web embeds the browser viewer served at "/".
package web

import "embed"

// Content holds the viewer: index.html draws the field, app.js consumes the
// frame stream and styles.css lays out the page.
//
//go:embed index.html app.js styles.css
var Content embed.FS
