// Package dmx bridges the DMX output engine to MQTT.
//
// The bridge subscribes to three topic families and translates them into
// engine calls:
//
//	graylogic/command/dmx/{universe}    -> level changes (WriteDMX)
//	graylogic/request/dmx/{request_id}  -> RDM GET/SET (SendRDMRequest)
//	graylogic/discovery/dmx/command     -> mute, unmute-all, branch probes
//
// RDM replies are published to graylogic/response/dmx/{request_id} and
// discovery results to graylogic/discovery/dmx/result. A retained health
// message with engine statistics is published to graylogic/health/dmx on
// every health interval.
//
// Discovered and muted responders are persisted through an optional
// ResponderStore, and engine telemetry is written through an optional
// Telemetry sink. Neither is required.
//
// The same operations (SetLevels, SendRDM, Discover) back the HTTP API.
package dmx
