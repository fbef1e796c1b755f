package sim

import (
	"encoding/binary"

	"github.com/nerrad567/gray-logic-dmx/internal/rdm"
)

// E1.20 NACK reason codes used by the simulated responders.
const (
	nackUnknownPID     uint16 = 0x0000
	nackFormatError    uint16 = 0x0001
	nackDataOutOfRange uint16 = 0x0006
)

// deviceInfoLength is the parameter data size of a DEVICE_INFO reply.
const deviceInfoLength = 19

// Responder describes one virtual fixture.
type Responder struct {
	UID             rdm.UID
	Model           uint16
	Footprint       uint16
	StartAddress    uint16
	SoftwareVersion uint32
	SoftwareLabel   string
	Muted           bool
	Identifying     bool
}

// handle applies req to the responder and returns the reply parameters.
// ok is false when the responder stays silent.
func (r *Responder) handle(req *rdm.Request) (rt rdm.ResponseType, data []byte, ok bool) {
	switch req.CommandClass {
	case rdm.DiscoveryCommand:
		return r.handleDiscovery(req)
	case rdm.GetCommand:
		return r.handleGet(req)
	case rdm.SetCommand:
		return r.handleSet(req)
	default:
		return 0, nil, false
	}
}

func (r *Responder) handleDiscovery(req *rdm.Request) (rdm.ResponseType, []byte, bool) {
	switch req.PID {
	case rdm.PIDDiscMute:
		r.Muted = true
	case rdm.PIDDiscUnMute:
		r.Muted = false
	default:
		return 0, nil, false
	}
	// Control field: no managed proxy, no sub-devices, no boot loader.
	return rdm.ResponseTypeAck, []byte{0x00, 0x00}, true
}

func (r *Responder) handleGet(req *rdm.Request) (rdm.ResponseType, []byte, bool) {
	switch req.PID {
	case rdm.PIDDeviceInfo:
		return rdm.ResponseTypeAck, r.deviceInfo(), true
	case rdm.PIDSoftwareVersionLabel:
		return rdm.ResponseTypeAck, []byte(r.SoftwareLabel), true
	case rdm.PIDDMXStartAddress:
		out := make([]byte, 2)
		binary.BigEndian.PutUint16(out, r.StartAddress)
		return rdm.ResponseTypeAck, out, true
	case rdm.PIDIdentifyDevice:
		if r.Identifying {
			return rdm.ResponseTypeAck, []byte{1}, true
		}
		return rdm.ResponseTypeAck, []byte{0}, true
	default:
		return nack(nackUnknownPID)
	}
}

func (r *Responder) handleSet(req *rdm.Request) (rdm.ResponseType, []byte, bool) {
	switch req.PID {
	case rdm.PIDDMXStartAddress:
		if len(req.Data) != 2 {
			return nack(nackFormatError)
		}
		addr := binary.BigEndian.Uint16(req.Data)
		if addr < 1 || addr > 512 {
			return nack(nackDataOutOfRange)
		}
		r.StartAddress = addr
		return rdm.ResponseTypeAck, nil, true
	case rdm.PIDIdentifyDevice:
		if len(req.Data) != 1 || req.Data[0] > 1 {
			return nack(nackFormatError)
		}
		r.Identifying = req.Data[0] == 1
		return rdm.ResponseTypeAck, nil, true
	default:
		return nack(nackUnknownPID)
	}
}

// deviceInfo builds the DEVICE_INFO parameter block.
func (r *Responder) deviceInfo() []byte {
	out := make([]byte, deviceInfoLength)
	binary.BigEndian.PutUint16(out[0:2], 0x0100) // RDM protocol 1.0
	binary.BigEndian.PutUint16(out[2:4], r.Model)
	binary.BigEndian.PutUint16(out[4:6], 0x0101) // Fixture, fixed
	binary.BigEndian.PutUint32(out[6:10], r.SoftwareVersion)
	binary.BigEndian.PutUint16(out[10:12], r.Footprint)
	binary.BigEndian.PutUint16(out[12:14], 0x0101) // Personality 1 of 1
	binary.BigEndian.PutUint16(out[14:16], r.StartAddress)
	// Sub-device count and sensor count stay zero.
	return out
}

func nack(reason uint16) (rdm.ResponseType, []byte, bool) {
	out := make([]byte, 2)
	binary.BigEndian.PutUint16(out, reason)
	return rdm.ResponseTypeNackReason, out, true
}
