package rdm

import "fmt"

// Encoded discovery-unique-branch reply layout.
const (
	dubPreambleByte  byte = 0xFE
	dubSeparatorByte byte = 0xAA
	dubMaxPreamble        = 7
	dubEUIDLength         = 2 * UIDLength
	dubChecksumLength     = 4

	// DUBResponseLength is the size of a reply with the full seven byte preamble.
	DUBResponseLength = dubMaxPreamble + 1 + dubEUIDLength + dubChecksumLength
)

// NewMuteRequest builds a DISC_MUTE addressed to target.
func NewMuteRequest(source, target UID) *Request {
	return newRequest(source, target, SubDeviceRoot, DiscoveryCommand, PIDDiscMute, nil)
}

// NewUnMuteRequest builds a DISC_UN_MUTE addressed to target. The engine
// uses AllDevices as the target to release every responder at once.
func NewUnMuteRequest(source, target UID) *Request {
	return newRequest(source, target, SubDeviceRoot, DiscoveryCommand, PIDDiscUnMute, nil)
}

// NewDiscoveryUniqueBranchRequest builds a DISC_UNIQUE_BRANCH probing the
// inclusive range [lower, upper]. The probe is always broadcast.
func NewDiscoveryUniqueBranchRequest(source, lower, upper UID) *Request {
	data := make([]byte, 2*UIDLength)
	putUID(data[:UIDLength], lower)
	putUID(data[UIDLength:], upper)
	return newRequest(source, AllDevices(), SubDeviceRoot, DiscoveryCommand, PIDDiscUniqueBranch, data)
}

// BranchBounds returns the range carried by a DISC_UNIQUE_BRANCH request.
func BranchBounds(req *Request) (lower, upper UID, err error) {
	if req == nil || !req.IsDUB() || len(req.Data) != 2*UIDLength {
		return UID{}, UID{}, fmt.Errorf("%w: not a branch request", ErrInvalidLength)
	}
	return readUID(req.Data[:UIDLength]), readUID(req.Data[UIDLength:]), nil
}

// EncodeDUBResponse builds the reply a single responder sends to a
// DISC_UNIQUE_BRANCH probe: seven 0xFE preamble bytes, the 0xAA separator,
// each UID byte split into (b|0xAA, b|0x55), then the checksum of the
// encoded bytes split the same way.
func EncodeDUBResponse(uid UID) []byte {
	var raw [UIDLength]byte
	putUID(raw[:], uid)

	out := make([]byte, 0, DUBResponseLength)
	for i := 0; i < dubMaxPreamble; i++ {
		out = append(out, dubPreambleByte)
	}
	out = append(out, dubSeparatorByte)

	var sum uint16
	for _, b := range raw {
		hi, lo := b|0xAA, b|0x55
		sum += uint16(hi) + uint16(lo)
		out = append(out, hi, lo)
	}

	csHi, csLo := byte(sum>>8), byte(sum)
	out = append(out, csHi|0xAA, csHi|0x55, csLo|0xAA, csLo|0x55)
	return out
}

// DecodeDUBResponse recovers the UID from a discovery-unique-branch reply.
// Responders may send fewer than seven preamble bytes, so the decoder skips
// any leading 0xFE run before the separator.
func DecodeDUBResponse(data []byte) (UID, error) {
	i := 0
	for i < len(data) && i < dubMaxPreamble && data[i] == dubPreambleByte {
		i++
	}
	if i >= len(data) || data[i] != dubSeparatorByte {
		return UID{}, fmt.Errorf("%w: missing separator", ErrInvalidDUBResponse)
	}
	i++

	body := data[i:]
	if len(body) < dubEUIDLength+dubChecksumLength {
		return UID{}, fmt.Errorf("%w: %d bytes after separator", ErrInvalidDUBResponse, len(body))
	}

	var raw [UIDLength]byte
	var sum uint16
	for j := 0; j < UIDLength; j++ {
		hi, lo := body[2*j], body[2*j+1]
		sum += uint16(hi) + uint16(lo)
		raw[j] = hi & lo
	}

	cs := body[dubEUIDLength : dubEUIDLength+dubChecksumLength]
	want := uint16(cs[0]&cs[1])<<8 | uint16(cs[2]&cs[3])
	if sum != want {
		return UID{}, fmt.Errorf("%w: checksum 0x%04x, expected 0x%04x", ErrInvalidDUBResponse, sum, want)
	}

	return readUID(raw[:]), nil
}
