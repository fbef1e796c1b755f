package rdm

import "errors"

// Domain errors for the RDM message layer.
var (
	// ErrInvalidUID is returned when a UID string cannot be parsed.
	ErrInvalidUID = errors.New("rdm: invalid UID")

	// ErrParamDataTooLong is returned when parameter data exceeds 231 bytes.
	ErrParamDataTooLong = errors.New("rdm: parameter data too long")

	// ErrNilMessage is returned when packing a nil request or response.
	ErrNilMessage = errors.New("rdm: nil message")

	// ErrFrameTooShort is returned when a received frame is shorter than
	// the minimum message size.
	ErrFrameTooShort = errors.New("rdm: frame too short")

	// ErrInvalidStartCode is returned when the start or sub start code is wrong.
	ErrInvalidStartCode = errors.New("rdm: invalid start code")

	// ErrInvalidLength is returned when the message length field disagrees
	// with the received byte count or the parameter data length.
	ErrInvalidLength = errors.New("rdm: invalid message length")

	// ErrChecksumMismatch is returned when the frame checksum is wrong.
	ErrChecksumMismatch = errors.New("rdm: checksum mismatch")

	// ErrNotResponse is returned when a frame carries a request command class.
	ErrNotResponse = errors.New("rdm: frame is not a response")

	// ErrMismatchedResponse is returned when a response does not belong to
	// the request it is checked against.
	ErrMismatchedResponse = errors.New("rdm: response does not match request")

	// ErrInvalidDUBResponse is returned when a discovery-unique-branch reply
	// cannot be decoded.
	ErrInvalidDUBResponse = errors.New("rdm: invalid discovery response")
)
