// Package api implements the HTTP REST API and WebSocket server for the
// DMX output service.
//
// This package provides:
//   - Health and engine statistics endpoints
//   - Level writes (PUT /api/v1/dmx) merged into the bridge's universe
//   - Synchronous RDM requests (POST /api/v1/rdm) bounded by api.rdm_timeout
//   - Discovery operations (POST /api/v1/discovery/{op})
//   - The responder table filled by discovery
//   - A WebSocket hub that streams engine statistics
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Architecture
//
// The server drives the same Controller (the MQTT bridge) that MQTT clients
// use, so a level written over HTTP and one written over MQTT land in the
// same universe copy.
//
// # Graceful Degradation
//
// The responder endpoints answer 503 when no database is configured; every
// other route works without one.
package api
