// Package enttec drives an Enttec DMX USB Pro (or compatible) widget.
//
// The widget sits behind a USB serial port and speaks a small framed
// protocol:
//
//	Byte 0:    0x7E start of message
//	Byte 1:    Label
//	Byte 2-3:  Data length, little-endian
//	Byte 4+:   Data
//	Last:      0xE7 end of message
//
// The widget generates break and mark-after-break itself, so SetBreak is a
// no-op and the timing is configured once through the parameters message.
package enttec
