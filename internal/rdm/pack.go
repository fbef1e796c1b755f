package rdm

import (
	"encoding/binary"
	"fmt"
)

// Pack serialises a request into a framed RDM message, start code through
// checksum.
//
// Parameters:
//   - req: Request to encode
//
// Returns:
//   - []byte: Framed message ready to follow a break on the wire
//   - error: ErrNilMessage or ErrParamDataTooLong
func Pack(req *Request) ([]byte, error) {
	if req == nil {
		return nil, ErrNilMessage
	}
	return packMessage(frameFields{
		destination:  req.Destination,
		source:       req.Source,
		tn:           req.TransactionNumber,
		portOrType:   req.PortID,
		messageCount: req.MessageCount,
		subDevice:    req.SubDevice,
		cc:           req.CommandClass,
		pid:          req.PID,
		data:         req.Data,
	})
}

// PackResponse serialises a response into a framed RDM message. It is the
// inverse of ParseResponse and is used by simulated responders.
func PackResponse(resp *Response) ([]byte, error) {
	if resp == nil {
		return nil, ErrNilMessage
	}
	return packMessage(frameFields{
		destination:  resp.Destination,
		source:       resp.Source,
		tn:           resp.TransactionNumber,
		portOrType:   uint8(resp.ResponseType),
		messageCount: resp.MessageCount,
		subDevice:    resp.SubDevice,
		cc:           resp.CommandClass,
		pid:          resp.PID,
		data:         resp.Data,
	})
}

// frameFields holds the header values shared by requests and responses.
type frameFields struct {
	destination  UID
	source       UID
	tn           uint8
	portOrType   uint8
	messageCount uint8
	subDevice    uint16
	cc           CommandClass
	pid          uint16
	data         []byte
}

func packMessage(f frameFields) ([]byte, error) {
	if len(f.data) > MaxParamDataLength {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrParamDataTooLong, len(f.data), MaxParamDataLength)
	}

	msgLen := headerLength + len(f.data)
	frame := make([]byte, msgLen+checksumLength)

	frame[0] = StartCode
	frame[1] = SubStartCode
	frame[2] = byte(msgLen)
	putUID(frame[3:9], f.destination)
	putUID(frame[9:15], f.source)
	frame[15] = f.tn
	frame[16] = f.portOrType
	frame[17] = f.messageCount
	binary.BigEndian.PutUint16(frame[18:20], f.subDevice)
	frame[20] = byte(f.cc)
	binary.BigEndian.PutUint16(frame[21:23], f.pid)
	frame[23] = byte(len(f.data))
	copy(frame[headerLength:], f.data)

	binary.BigEndian.PutUint16(frame[msgLen:], checksum(frame[:msgLen]))
	return frame, nil
}

// checksum is the unsigned 16-bit sum of every byte.
func checksum(b []byte) uint16 {
	var sum uint16
	for _, v := range b {
		sum += uint16(v)
	}
	return sum
}
