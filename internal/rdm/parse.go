package rdm

import (
	"encoding/binary"
	"fmt"
)

// ParseResponse decodes a framed RDM reply.
//
// Frames read back from a widget sometimes arrive without the leading
// start code (the widget strips it with the break), or with the break read
// as 0x00 bytes ahead of it. All these forms are accepted. Trailing bytes
// after the checksum are ignored.
//
// ParseResponse checks structure only. Use Response.Matches to tie the
// result to the request that provoked it.
//
// Parameters:
//   - frame: Raw bytes read after a unicast request
//
// Returns:
//   - *Response: Decoded reply with a copy of the parameter data
//   - error: ErrFrameTooShort, ErrInvalidStartCode, ErrInvalidLength,
//     ErrChecksumMismatch or ErrNotResponse
func ParseResponse(frame []byte) (*Response, error) {
	frame = skipBreak(frame)
	if len(frame) > 0 && frame[0] == SubStartCode {
		withStart := make([]byte, len(frame)+1)
		withStart[0] = StartCode
		copy(withStart[1:], frame)
		frame = withStart
	}

	if len(frame) < MinFrameLength {
		return nil, fmt.Errorf("%w: %d bytes (need at least %d)", ErrFrameTooShort, len(frame), MinFrameLength)
	}
	if frame[0] != StartCode || frame[1] != SubStartCode {
		return nil, fmt.Errorf("%w: 0x%02x 0x%02x", ErrInvalidStartCode, frame[0], frame[1])
	}

	msgLen := int(frame[2])
	pdl := int(frame[23])
	if msgLen < headerLength || msgLen != headerLength+pdl {
		return nil, fmt.Errorf("%w: length %d, pdl %d", ErrInvalidLength, msgLen, pdl)
	}
	if len(frame) < msgLen+checksumLength {
		return nil, fmt.Errorf("%w: have %d bytes, message needs %d",
			ErrFrameTooShort, len(frame), msgLen+checksumLength)
	}

	want := binary.BigEndian.Uint16(frame[msgLen : msgLen+checksumLength])
	if got := checksum(frame[:msgLen]); got != want {
		return nil, fmt.Errorf("%w: computed 0x%04x, frame has 0x%04x", ErrChecksumMismatch, got, want)
	}

	cc := CommandClass(frame[20])
	if !cc.IsResponse() {
		return nil, fmt.Errorf("%w: %s", ErrNotResponse, cc)
	}

	resp := &Response{
		Destination:       readUID(frame[3:9]),
		Source:            readUID(frame[9:15]),
		TransactionNumber: frame[15],
		ResponseType:      ResponseType(frame[16]),
		MessageCount:      frame[17],
		SubDevice:         binary.BigEndian.Uint16(frame[18:20]),
		CommandClass:      cc,
		PID:               binary.BigEndian.Uint16(frame[21:23]),
	}
	if pdl > 0 {
		resp.Data = make([]byte, pdl)
		copy(resp.Data, frame[headerLength:msgLen])
	}

	return resp, nil
}

// ParseRequest decodes a framed RDM request. Simulated responders use it to
// interpret what the engine wrote.
func ParseRequest(frame []byte) (*Request, error) {
	if len(frame) < MinFrameLength {
		return nil, fmt.Errorf("%w: %d bytes (need at least %d)", ErrFrameTooShort, len(frame), MinFrameLength)
	}
	if frame[0] != StartCode || frame[1] != SubStartCode {
		return nil, fmt.Errorf("%w: 0x%02x 0x%02x", ErrInvalidStartCode, frame[0], frame[1])
	}

	msgLen := int(frame[2])
	pdl := int(frame[23])
	if msgLen != headerLength+pdl || len(frame) < msgLen+checksumLength {
		return nil, fmt.Errorf("%w: length %d, pdl %d, have %d bytes", ErrInvalidLength, msgLen, pdl, len(frame))
	}

	want := binary.BigEndian.Uint16(frame[msgLen : msgLen+checksumLength])
	if got := checksum(frame[:msgLen]); got != want {
		return nil, fmt.Errorf("%w: computed 0x%04x, frame has 0x%04x", ErrChecksumMismatch, got, want)
	}

	req := &Request{
		Destination:       readUID(frame[3:9]),
		Source:            readUID(frame[9:15]),
		TransactionNumber: frame[15],
		PortID:            frame[16],
		MessageCount:      frame[17],
		SubDevice:         binary.BigEndian.Uint16(frame[18:20]),
		CommandClass:      CommandClass(frame[20]),
		PID:               binary.BigEndian.Uint16(frame[21:23]),
	}
	if pdl > 0 {
		req.Data = make([]byte, pdl)
		copy(req.Data, frame[headerLength:msgLen])
	}

	return req, nil
}

// skipBreak drops the 0x00 bytes a UART reports for a received break.
func skipBreak(frame []byte) []byte {
	i := 0
	for i < len(frame) && frame[i] == 0x00 {
		i++
	}
	return frame[i:]
}
