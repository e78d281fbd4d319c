// Package server manages the lifecycle of the router's ops HTTP server:
// non-blocking start, graceful shutdown, SIGINT/SIGTERM handling, and
// asynchronous error propagation. The handler it serves comes from the api
// package.
package server
