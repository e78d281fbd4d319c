// Package a2a defines the agent-to-agent protocol data model: agent cards
// with live metadata, the A2A message envelope, target and coordination
// specifications, routes and responses.
//
// The package is purely declarative. Routing decisions live in the routing
// package and protocol execution in the coordination package; a2a only
// validates shapes and answers questions a single value can answer about
// itself (expiry, recipients, advertised cost).
package a2a
