// Package rdm implements the ANSI E1.20 Remote Device Management message
// layer used by the DMX output engine.
//
// It covers the parts of the standard the engine needs on the wire:
//
//   - 48-bit UIDs, including the all-devices and manufacturer broadcast forms
//   - Request and response messages with the additive 16-bit checksum
//   - Discovery primitives: DISC_UNIQUE_BRANCH, DISC_MUTE, DISC_UN_MUTE
//   - The encoded (non-framed) DISC_UNIQUE_BRANCH reply
//
// # Wire Format
//
// Every framed message is:
//
//	Byte 0:      START CODE (0xCC)
//	Byte 1:      SUB START CODE (0x01)
//	Byte 2:      MESSAGE LENGTH (24 + PDL)
//	Byte 3-8:    DESTINATION UID
//	Byte 9-14:   SOURCE UID
//	Byte 15:     TRANSACTION NUMBER
//	Byte 16:     PORT ID (request) / RESPONSE TYPE (response)
//	Byte 17:     MESSAGE COUNT
//	Byte 18-19:  SUB-DEVICE
//	Byte 20:     COMMAND CLASS
//	Byte 21-22:  PARAMETER ID
//	Byte 23:     PARAMETER DATA LENGTH
//	Byte 24+:    PARAMETER DATA
//	Last 2:      CHECKSUM (sum of all preceding bytes)
//
// Discovery-unique-branch replies are not framed; see EncodeDUBResponse.
//
// # Thread Safety
//
// Messages are plain values. Pack and Parse functions are pure and safe for
// concurrent use.
package rdm
