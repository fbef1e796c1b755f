package rdm

import "fmt"

// Framing constants.
const (
	// StartCode is the DMX512 alternate start code reserved for RDM.
	StartCode byte = 0xCC

	// SubStartCode identifies the E1.20 message format.
	SubStartCode byte = 0x01

	// headerLength is the number of bytes from the start code up to and
	// including the parameter data length field.
	headerLength = 24

	// checksumLength is the size of the trailing checksum.
	checksumLength = 2

	// MinFrameLength is the size of a framed message with no parameter data.
	MinFrameLength = headerLength + checksumLength

	// MaxParamDataLength is the largest parameter data block a message can carry.
	MaxParamDataLength = 231

	// DefaultPortID is the port ID placed in requests unless the caller sets one.
	DefaultPortID uint8 = 1
)

// CommandClass identifies the kind of message.
type CommandClass uint8

// Command classes defined by E1.20.
const (
	DiscoveryCommand         CommandClass = 0x10
	DiscoveryCommandResponse CommandClass = 0x11
	GetCommand               CommandClass = 0x20
	GetCommandResponse       CommandClass = 0x21
	SetCommand               CommandClass = 0x30
	SetCommandResponse       CommandClass = 0x31
)

// IsResponse reports whether the class is one of the *_RESPONSE classes.
func (c CommandClass) IsResponse() bool {
	switch c {
	case DiscoveryCommandResponse, GetCommandResponse, SetCommandResponse:
		return true
	default:
		return false
	}
}

// Response returns the response class paired with a request class.
// Response classes are returned unchanged.
func (c CommandClass) Response() CommandClass {
	if c.IsResponse() {
		return c
	}
	return c + 1
}

// String returns the E1.20 mnemonic.
func (c CommandClass) String() string {
	switch c {
	case DiscoveryCommand:
		return "DISCOVERY_COMMAND"
	case DiscoveryCommandResponse:
		return "DISCOVERY_COMMAND_RESPONSE"
	case GetCommand:
		return "GET_COMMAND"
	case GetCommandResponse:
		return "GET_COMMAND_RESPONSE"
	case SetCommand:
		return "SET_COMMAND"
	case SetCommandResponse:
		return "SET_COMMAND_RESPONSE"
	default:
		return fmt.Sprintf("CommandClass(0x%02x)", uint8(c))
	}
}

// Parameter IDs used by the engine and its bridges.
const (
	PIDDiscUniqueBranch     uint16 = 0x0001
	PIDDiscMute             uint16 = 0x0002
	PIDDiscUnMute           uint16 = 0x0003
	PIDDeviceInfo           uint16 = 0x0060
	PIDSoftwareVersionLabel uint16 = 0x00C0
	PIDDMXStartAddress      uint16 = 0x00F0
	PIDIdentifyDevice       uint16 = 0x1000
)

// Sub-device addresses.
const (
	SubDeviceRoot uint16 = 0x0000
	SubDeviceAll  uint16 = 0xFFFF
)

// ResponseType is the status carried in byte 16 of a response.
type ResponseType uint8

// Response types defined by E1.20.
const (
	ResponseTypeAck         ResponseType = 0x00
	ResponseTypeAckTimer    ResponseType = 0x01
	ResponseTypeNackReason  ResponseType = 0x02
	ResponseTypeAckOverflow ResponseType = 0x03
)

// String returns the E1.20 mnemonic.
func (r ResponseType) String() string {
	switch r {
	case ResponseTypeAck:
		return "ACK"
	case ResponseTypeAckTimer:
		return "ACK_TIMER"
	case ResponseTypeNackReason:
		return "NACK_REASON"
	case ResponseTypeAckOverflow:
		return "ACK_OVERFLOW"
	default:
		return fmt.Sprintf("ResponseType(0x%02x)", uint8(r))
	}
}

// Request is an outgoing RDM message.
//
// TransactionNumber is assigned by the engine when the request is queued;
// any value set by the caller is overwritten.
type Request struct {
	Source            UID
	Destination       UID
	TransactionNumber uint8
	PortID            uint8
	MessageCount      uint8
	SubDevice         uint16
	CommandClass      CommandClass
	PID               uint16
	Data              []byte
}

// IsDUB reports whether the request is a DISC_UNIQUE_BRANCH probe.
func (r *Request) IsDUB() bool {
	return r.CommandClass == DiscoveryCommand && r.PID == PIDDiscUniqueBranch
}

// IsBroadcast reports whether the destination addresses more than one device.
func (r *Request) IsBroadcast() bool {
	return r.Destination.IsBroadcast()
}

// String returns a short human-readable summary for logs.
func (r *Request) String() string {
	return fmt.Sprintf("%s -> %s tn=%d %s pid=0x%04x pdl=%d",
		r.Source, r.Destination, r.TransactionNumber, r.CommandClass, r.PID, len(r.Data))
}

// Response is a parsed RDM reply.
type Response struct {
	Source            UID
	Destination       UID
	TransactionNumber uint8
	ResponseType      ResponseType
	MessageCount      uint8
	SubDevice         uint16
	CommandClass      CommandClass
	PID               uint16
	Data              []byte
}

// NackReason returns the reason code of a NACK_REASON response.
// ok is false for any other response type or a short data block.
func (r *Response) NackReason() (reason uint16, ok bool) {
	if r.ResponseType != ResponseTypeNackReason || len(r.Data) < 2 {
		return 0, false
	}
	return uint16(r.Data[0])<<8 | uint16(r.Data[1]), true
}

// Matches checks that the response answers req: source and destination
// swapped, same transaction number, same PID and the paired command class.
func (r *Response) Matches(req *Request) error {
	switch {
	case req == nil:
		return fmt.Errorf("%w: nil request", ErrMismatchedResponse)
	case r.Source != req.Destination:
		return fmt.Errorf("%w: source %s, expected %s", ErrMismatchedResponse, r.Source, req.Destination)
	case r.Destination != req.Source:
		return fmt.Errorf("%w: destination %s, expected %s", ErrMismatchedResponse, r.Destination, req.Source)
	case r.TransactionNumber != req.TransactionNumber:
		return fmt.Errorf("%w: transaction %d, expected %d",
			ErrMismatchedResponse, r.TransactionNumber, req.TransactionNumber)
	case r.CommandClass != req.CommandClass.Response():
		return fmt.Errorf("%w: command class %s", ErrMismatchedResponse, r.CommandClass)
	case r.PID != req.PID:
		return fmt.Errorf("%w: pid 0x%04x, expected 0x%04x", ErrMismatchedResponse, r.PID, req.PID)
	}
	return nil
}

// NewResponse builds the reply a responder would send for req.
// Source and destination are swapped and the command class is paired.
func NewResponse(req *Request, rt ResponseType, data []byte) *Response {
	return &Response{
		Source:            req.Destination,
		Destination:       req.Source,
		TransactionNumber: req.TransactionNumber,
		ResponseType:      rt,
		SubDevice:         req.SubDevice,
		CommandClass:      req.CommandClass.Response(),
		PID:               req.PID,
		Data:              append([]byte(nil), data...),
	}
}

// NewGetRequest builds a GET_COMMAND.
func NewGetRequest(source, destination UID, subDevice, pid uint16, data []byte) *Request {
	return newRequest(source, destination, subDevice, GetCommand, pid, data)
}

// NewSetRequest builds a SET_COMMAND.
func NewSetRequest(source, destination UID, subDevice, pid uint16, data []byte) *Request {
	return newRequest(source, destination, subDevice, SetCommand, pid, data)
}

func newRequest(source, destination UID, subDevice uint16, cc CommandClass, pid uint16, data []byte) *Request {
	return &Request{
		Source:       source,
		Destination:  destination,
		PortID:       DefaultPortID,
		SubDevice:    subDevice,
		CommandClass: cc,
		PID:          pid,
		Data:         append([]byte(nil), data...),
	}
}
