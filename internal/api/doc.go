// Package api exposes registered televisions over a small REST surface.
//
// Routes:
//
//	GET  /healthz
//	GET  /commands
//	GET  /devices
//	GET  /devices/:name
//	POST /devices/:name/commands/:command?arg=N
//
// Device handles are built once per name and reused, so the minimum
// spacing between commands holds across requests.
package api
