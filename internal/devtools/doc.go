// Package devtools implements the readiness handshake against a browser's
// remote-debugging HTTP endpoint.
//
// A browser is ready once GET /json/version on its debugging port returns a
// JSON object. The object's webSocketDebuggerUrl is the endpoint clients
// attach to. Nothing else of the DevTools protocol is spoken here.
package devtools
