// Package appfs embeds the static files the app needs at runtime.
package appfs

import "embed"

//go:embed migrations/*.sql templates/email/* schemas/*.json
var FS embed.FS
