// Package static carries the embeddable widget loader shipped to host pages.
package static

import _ "embed"

// WidgetJS is the self-installing loader served at /widget.js. It renders
// the bubble and window, keeps the session id in local storage, and talks to
// the gateway's widget session endpoints.
//
//go:embed widget.js
var WidgetJS []byte
