package responder

import (
	"time"

	"github.com/nerrad567/gray-logic-dmx/internal/rdm"
)

// Source records how a responder entered the table.
type Source string

const (
	// SourceDiscovery marks responders found by a branch probe.
	SourceDiscovery Source = "discovery"

	// SourceResponse marks responders seen answering a unicast request.
	SourceResponse Source = "response"

	// SourceManual marks responders registered by an operator.
	SourceManual Source = "manual"
)

// Responder is one RDM device known on a universe.
type Responder struct {
	UID       rdm.UID   `json:"uid"`
	Universe  int       `json:"universe"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
	Muted     bool      `json:"muted"`
	Source    Source    `json:"source"`
}
