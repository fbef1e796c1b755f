// Package dmx holds the DMX512 output buffer shared between producers
// (MQTT bridge, HTTP API) and the output engine.
//
// A Buffer is a value type: assigning or passing it copies all channel
// levels, so a snapshot taken under a lock can never be observed partially
// written by a later producer.
//
// Channels are addressed 0-based in Go code. External messages (MQTT, REST)
// use the 1-based numbering that lighting consoles show, and convert at the
// boundary.
package dmx
