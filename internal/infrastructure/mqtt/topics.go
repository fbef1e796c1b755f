package mqtt

import (
	"fmt"
	"strings"
)

// Topic layout for the DMX bridge. All topics follow the flat scheme
// graylogic/{category}/dmx/{address_or_id} shared with the other bridges.
const (
	// TopicPrefix is the root of every Gray Logic topic.
	TopicPrefix = "graylogic"

	// Protocol is the protocol segment used by this service.
	Protocol = "dmx"
)

// Topics provides builders for the DMX bridge topics.
//
//	topics := mqtt.Topics{}
//	topics.Command(1)        // graylogic/command/dmx/1
//	topics.Response("r-42")  // graylogic/response/dmx/r-42
type Topics struct{}

// Command returns the level command topic for a universe.
//
// Example: graylogic/command/dmx/1
func (Topics) Command(universe int) string {
	return fmt.Sprintf("%s/command/%s/%d", TopicPrefix, Protocol, universe)
}

// Request returns the topic an RDM request with the given correlation id arrives on.
//
// Example: graylogic/request/dmx/4f1c...
func (Topics) Request(requestID string) string {
	return fmt.Sprintf("%s/request/%s/%s", TopicPrefix, Protocol, requestID)
}

// Response returns the topic the reply to requestID is published on.
//
// Example: graylogic/response/dmx/4f1c...
func (Topics) Response(requestID string) string {
	return fmt.Sprintf("%s/response/%s/%s", TopicPrefix, Protocol, requestID)
}

// DiscoveryCommand returns the topic discovery operations arrive on.
//
// Example: graylogic/discovery/dmx/command
func (Topics) DiscoveryCommand() string {
	return fmt.Sprintf("%s/discovery/%s/command", TopicPrefix, Protocol)
}

// DiscoveryResult returns the topic discovery outcomes are published on.
//
// Example: graylogic/discovery/dmx/result
func (Topics) DiscoveryResult() string {
	return fmt.Sprintf("%s/discovery/%s/result", TopicPrefix, Protocol)
}

// Health returns the retained health topic. It also carries the
// Last Will and Testament.
//
// Example: graylogic/health/dmx
func (Topics) Health() string {
	return fmt.Sprintf("%s/health/%s", TopicPrefix, Protocol)
}

// AllCommands matches level commands for every universe.
//
// Pattern: graylogic/command/dmx/+
func (Topics) AllCommands() string {
	return fmt.Sprintf("%s/command/%s/+", TopicPrefix, Protocol)
}

// AllRequests matches every RDM request topic.
//
// Pattern: graylogic/request/dmx/+
func (Topics) AllRequests() string {
	return fmt.Sprintf("%s/request/%s/+", TopicPrefix, Protocol)
}

// LastSegment returns the final path segment of topic, which carries the
// universe number or request id for the wildcard subscriptions above.
func LastSegment(topic string) string {
	if i := strings.LastIndexByte(topic, '/'); i >= 0 {
		return topic[i+1:]
	}
	return topic
}
