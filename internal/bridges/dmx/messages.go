package dmx

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	dmxbuf "github.com/nerrad567/gray-logic-dmx/internal/dmx"
	"github.com/nerrad567/gray-logic-dmx/internal/engine"
	"github.com/nerrad567/gray-logic-dmx/internal/rdm"
)

// Error codes for responses and discovery results.
const (
	ErrCodeInvalidParameters = "INVALID_PARAMETERS"
	ErrCodeSendFailure       = "SEND_FAILURE"
	ErrCodeNoResponse        = "NO_RESPONSE"
	ErrCodeInvalidResponse   = "INVALID_RESPONSE"
	ErrCodeUnconfirmed       = "UNCONFIRMED"
	ErrCodeTimeout           = "TIMEOUT"
	ErrCodeRejected          = "SLOT_BUSY"
	ErrCodeBridgeError       = "BRIDGE_ERROR"
)

// Discovery operations.
const (
	OpMute   = "mute"
	OpUnMute = "unmute"
	OpBranch = "branch"
)

// maxLevel is the highest DMX level.
const maxLevel = 255

// LevelsMessage changes channel levels on one universe.
// Topic: graylogic/command/dmx/{universe}
//
// Channel numbers are 1-based. Values writes consecutive levels from Start
// (default 1); Channels writes individual channels. Blackout zeroes the
// universe before either is applied.
type LevelsMessage struct {
	// ID is an optional correlation id, echoed in logs.
	ID string `json:"id,omitempty"`

	// Timestamp is when the command was issued (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	Start    int         `json:"start,omitempty"`
	Values   []int       `json:"values,omitempty"`
	Channels map[int]int `json:"channels,omitempty"`
	Blackout bool        `json:"blackout,omitempty"`
}

// Apply merges the message into buf. buf is left untouched if any channel
// or level is out of range.
func (m LevelsMessage) Apply(buf *dmxbuf.Buffer) error {
	next := *buf
	if m.Blackout {
		next.Blackout()
	}

	if len(m.Values) > 0 {
		start := m.Start
		if start == 0 {
			start = 1
		}
		levels := make([]byte, len(m.Values))
		for i, v := range m.Values {
			if v < 0 || v > maxLevel {
				return fmt.Errorf("%w: channel %d = %d", ErrInvalidLevel, start+i, v)
			}
			levels[i] = byte(v)
		}
		if err := next.SetRange(start-1, levels); err != nil {
			return err
		}
	}

	for ch, v := range m.Channels {
		if v < 0 || v > maxLevel {
			return fmt.Errorf("%w: channel %d = %d", ErrInvalidLevel, ch, v)
		}
		if err := next.Set(ch-1, byte(v)); err != nil {
			return err
		}
	}

	*buf = next
	return nil
}

// RDMRequestMessage asks the bridge to send one GET or SET request.
// Topic: graylogic/request/dmx/{request_id}
type RDMRequestMessage struct {
	// RequestID correlates the response. Taken from the topic when empty.
	RequestID string `json:"request_id"`

	// Timestamp is when the request was issued (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// Destination is the responder UID ("mmmm:dddddddd"). Broadcast UIDs
	// are allowed for SET.
	Destination rdm.UID `json:"destination"`

	// CommandClass is "get" or "set".
	CommandClass string `json:"command_class"`

	PID       uint16 `json:"pid"`
	SubDevice uint16 `json:"sub_device,omitempty"`

	// Data is the parameter data, hex encoded.
	Data string `json:"data,omitempty"`
}

// Request builds the engine request, using source as the controller UID.
func (m RDMRequestMessage) Request(source rdm.UID) (*rdm.Request, error) {
	data, err := hex.DecodeString(m.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: data: %w", ErrInvalidMessage, err)
	}
	if len(data) > rdm.MaxParamDataLength {
		return nil, fmt.Errorf("%w: %d bytes", rdm.ErrParamDataTooLong, len(data))
	}
	if m.Destination == (rdm.UID{}) {
		return nil, fmt.Errorf("%w: destination is required", ErrInvalidMessage)
	}

	switch strings.ToLower(m.CommandClass) {
	case "get":
		if m.Destination.IsBroadcast() {
			return nil, fmt.Errorf("%w: GET cannot be broadcast", ErrInvalidMessage)
		}
		return rdm.NewGetRequest(source, m.Destination, m.SubDevice, m.PID, data), nil
	case "set":
		return rdm.NewSetRequest(source, m.Destination, m.SubDevice, m.PID, data), nil
	default:
		return nil, fmt.Errorf("%w: command_class %q", ErrInvalidMessage, m.CommandClass)
	}
}

// RDMResponseMessage reports how an RDM request ended.
// Topic: graylogic/response/dmx/{request_id}
type RDMResponseMessage struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`

	// Success is true for a confirmed reply or a sent broadcast.
	Success bool `json:"success"`

	// Outcome is the engine outcome ("response_received", "timeout", ...).
	Outcome string `json:"outcome,omitempty"`

	TransactionNumber uint8  `json:"transaction_number"`
	Confirmed         bool   `json:"confirmed"`
	ResponseType      string `json:"response_type,omitempty"`
	NackReason        *int   `json:"nack_reason,omitempty"`

	// Data is the reply parameter data, hex encoded.
	Data string `json:"data,omitempty"`

	Error *ResponseError `json:"error,omitempty"`
}

// ResponseError contains error details for failed requests.
type ResponseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewRDMResponse converts an engine result.
func NewRDMResponse(requestID string, res engine.Result) RDMResponseMessage {
	msg := RDMResponseMessage{
		RequestID: requestID,
		Timestamp: time.Now().UTC(),
		Success:   res.OK(),
		Outcome:   res.Outcome.String(),
		Confirmed: res.Confirmed,
	}
	if res.Request != nil {
		msg.TransactionNumber = res.Request.TransactionNumber
	}

	if reply := res.Reply; reply != nil {
		msg.ResponseType = reply.ResponseType.String()
		msg.Data = hex.EncodeToString(reply.Data)
		if reason, ok := reply.NackReason(); ok {
			r := int(reason)
			msg.NackReason = &r
		}
	} else if len(res.Data) > 0 {
		msg.Data = hex.EncodeToString(res.Data)
	}

	if !msg.Success {
		msg.Error = resultError(res)
	}
	return msg
}

// NewRDMErrorResponse builds a failed response that never reached the engine.
func NewRDMErrorResponse(requestID, code string, err error) RDMResponseMessage {
	return RDMResponseMessage{
		RequestID: requestID,
		Timestamp: time.Now().UTC(),
		Error:     &ResponseError{Code: code, Message: err.Error()},
	}
}

// resultError maps a failed engine result to an error code.
func resultError(res engine.Result) *ResponseError {
	code := ErrCodeBridgeError
	switch res.Outcome {
	case engine.OutcomeSendFailure:
		code = ErrCodeSendFailure
	case engine.OutcomeTimeout, engine.OutcomeUnresolved:
		code = ErrCodeNoResponse
	case engine.OutcomeResponseReceived:
		code = ErrCodeUnconfirmed
		if errors.Is(res.Err, engine.ErrInvalidResponse) {
			code = ErrCodeInvalidResponse
		}
	}

	msg := res.Outcome.String()
	if res.Err != nil {
		msg = res.Err.Error()
	} else if res.Outcome == engine.OutcomeResponseReceived && !res.Confirmed {
		msg = "reply came from a different responder"
	}
	return &ResponseError{Code: code, Message: msg}
}

// DiscoveryCommand asks for one discovery operation.
// Topic: graylogic/discovery/dmx/command
type DiscoveryCommand struct {
	ID        string    `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`

	// Op is "mute", "unmute" or "branch".
	Op string `json:"op"`

	// Target is required for mute.
	Target *rdm.UID `json:"target,omitempty"`

	// Lower and Upper bound a branch probe. They default to the whole
	// non-broadcast UID space.
	Lower *rdm.UID `json:"lower,omitempty"`
	Upper *rdm.UID `json:"upper,omitempty"`
}

// branchRange returns the probe bounds with defaults applied.
func (c DiscoveryCommand) branchRange() (lower, upper rdm.UID, err error) {
	lower = rdm.UID{}
	upper = maxUnicastUID
	if c.Lower != nil {
		lower = *c.Lower
	}
	if c.Upper != nil {
		upper = *c.Upper
	}
	if upper.Less(lower) {
		return lower, upper, fmt.Errorf("%w: lower %s above upper %s", ErrInvalidMessage, lower, upper)
	}
	return lower, upper, nil
}

// maxUnicastUID is the highest UID that is not a broadcast address.
var maxUnicastUID = rdm.NewUID(rdm.AllManufacturers, rdm.AllDeviceIDs-1)

// DiscoveryStatus describes how a discovery command ended.
type DiscoveryStatus string

// Discovery statuses.
const (
	// DiscoveryCompleted means the engine delivered a result.
	DiscoveryCompleted DiscoveryStatus = "completed"

	// DiscoveryRejected means the operation's slot was already occupied.
	DiscoveryRejected DiscoveryStatus = "rejected"

	// DiscoveryTimeout means no result arrived in time. Branch probes that
	// draw silence end this way unless unresolved outcomes are surfaced.
	DiscoveryTimeout DiscoveryStatus = "timeout"

	// DiscoveryFailed means the command was invalid.
	DiscoveryFailed DiscoveryStatus = "failed"
)

// DiscoveryResult reports a discovery outcome.
// Topic: graylogic/discovery/dmx/result
type DiscoveryResult struct {
	ID        string          `json:"id,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Op        string          `json:"op"`
	Status    DiscoveryStatus `json:"status"`

	// Outcome is the engine outcome when Status is completed.
	Outcome string `json:"outcome,omitempty"`

	// Success mirrors engine.Result.OK.
	Success bool `json:"success"`

	// UID is the responder found by a branch hit, or the mute target.
	UID *rdm.UID `json:"uid,omitempty"`

	Confirmed bool           `json:"confirmed,omitempty"`
	Error     *ResponseError `json:"error,omitempty"`
}

// HealthStatus represents the operational status of the bridge.
type HealthStatus string

// Health status values.
const (
	HealthHealthy   HealthStatus = "healthy"
	HealthDegraded  HealthStatus = "degraded"
	HealthUnhealthy HealthStatus = "unhealthy"
	HealthStarting  HealthStatus = "starting"
	HealthStopping  HealthStatus = "stopping"
)

// HealthMessage reports bridge and engine status.
// Topic: graylogic/health/dmx
// QoS: 1, Retained: Yes
type HealthMessage struct {
	Bridge        string       `json:"bridge"`
	Timestamp     time.Time    `json:"timestamp"`
	Status        HealthStatus `json:"status"`
	Version       string       `json:"version"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	Universe      int          `json:"universe"`

	Engine *EngineStatistics `json:"engine,omitempty"`

	// Reason explains the status (especially for degraded).
	Reason string `json:"reason,omitempty"`
}

// EngineStatistics is the engine snapshot carried by health messages.
type EngineStatistics struct {
	Running             bool    `json:"running"`
	TimingMode          string  `json:"timing_mode"`
	FramePeriodMS       float64 `json:"frame_period_ms"`
	FramesSent          uint64  `json:"frames_sent"`
	FrameErrors         uint64  `json:"frame_errors"`
	RDMSent             uint64  `json:"rdm_sent"`
	SendFailures        uint64  `json:"send_failures"`
	Timeouts            uint64  `json:"timeouts"`
	BroadcastsSent      uint64  `json:"broadcasts_sent"`
	ResponsesReceived   uint64  `json:"responses_received"`
	BranchHits          uint64  `json:"branch_hits"`
	Collisions          uint64  `json:"collisions"`
	UnresolvedDiscovery uint64  `json:"unresolved_discovery"`
	CallbackPanics      uint64  `json:"callback_panics"`
	QueueLength         int     `json:"queue_length"`
	MuteOutstanding     bool    `json:"mute_outstanding"`
	UnMuteOutstanding   bool    `json:"unmute_outstanding"`
	BranchOutstanding   bool    `json:"branch_outstanding"`
}

// NewEngineStatistics converts an engine snapshot.
func NewEngineStatistics(s engine.Stats) *EngineStatistics {
	return &EngineStatistics{
		Running:             s.Running,
		TimingMode:          s.TimingMode.String(),
		FramePeriodMS:       float64(s.FramePeriod) / float64(time.Millisecond),
		FramesSent:          s.FramesSent,
		FrameErrors:         s.FrameErrors,
		RDMSent:             s.RDMSent,
		SendFailures:        s.SendFailures,
		Timeouts:            s.Timeouts,
		BroadcastsSent:      s.BroadcastsSent,
		ResponsesReceived:   s.ResponsesReceived,
		BranchHits:          s.BranchHits,
		Collisions:          s.Collisions,
		UnresolvedDiscovery: s.UnresolvedDiscovery,
		CallbackPanics:      s.CallbackPanics,
		QueueLength:         s.QueueLength,
		MuteOutstanding:     s.MuteOutstanding,
		UnMuteOutstanding:   s.UnMuteOutstanding,
		BranchOutstanding:   s.BranchOutstanding,
	}
}

// NewHealthMessage creates a health message for the current engine state.
func NewHealthMessage(version string, universe int, status HealthStatus, stats engine.Stats, startTime time.Time) HealthMessage {
	return HealthMessage{
		Bridge:        BridgeID,
		Timestamp:     time.Now().UTC(),
		Status:        status,
		Version:       version,
		UptimeSeconds: int64(time.Since(startTime).Seconds()),
		Universe:      universe,
		Engine:        NewEngineStatistics(stats),
	}
}
