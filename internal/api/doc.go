// Package api provides the hub's HTTP REST API and WebSocket server.
//
// It exposes the live client list, the exposure level, device metadata
// writes, the event ingress used by encoder daemons and UIs, and a
// push-only WebSocket every connected dashboard hangs off.
//
// The server follows the same lifecycle pattern as the other
// infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// The WebSocket hub doubles as the exposure engine's broadcaster: main
// constructs one hub, hands it to both, and every state change reaches
// every session regardless of which input caused it.
package api
