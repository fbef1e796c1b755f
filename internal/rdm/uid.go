package rdm

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

// UID size and broadcast values.
const (
	// UIDLength is the wire size of a UID in bytes.
	UIDLength = 6

	// AllManufacturers is the manufacturer ID used by the all-devices broadcast.
	AllManufacturers uint16 = 0xFFFF

	// AllDeviceIDs is the device ID that addresses every device of a manufacturer.
	AllDeviceIDs uint32 = 0xFFFFFFFF
)

// UID is a 48-bit RDM unique identifier.
type UID struct {
	Manufacturer uint16
	Device       uint32
}

// NewUID builds a UID from its manufacturer and device parts.
func NewUID(manufacturer uint16, device uint32) UID {
	return UID{Manufacturer: manufacturer, Device: device}
}

// AllDevices returns the broadcast UID FFFF:FFFFFFFF.
func AllDevices() UID {
	return UID{Manufacturer: AllManufacturers, Device: AllDeviceIDs}
}

// VendorcastUID returns the broadcast UID for every device of one manufacturer.
func VendorcastUID(manufacturer uint16) UID {
	return UID{Manufacturer: manufacturer, Device: AllDeviceIDs}
}

// UIDFromUint64 converts the low 48 bits of v to a UID.
func UIDFromUint64(v uint64) UID {
	return UID{
		Manufacturer: uint16(v >> 32), //nolint:gosec // Truncation is the point
		Device:       uint32(v),       //nolint:gosec // Truncation is the point
	}
}

// ParseUID parses the "mmmm:dddddddd" hexadecimal form.
func ParseUID(s string) (UID, error) {
	manuf, dev, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || manuf == "" || dev == "" || len(manuf) > 4 || len(dev) > 8 {
		return UID{}, fmt.Errorf("%w: %q", ErrInvalidUID, s)
	}

	m, err := strconv.ParseUint(manuf, 16, 16)
	if err != nil {
		return UID{}, fmt.Errorf("%w: %q: %w", ErrInvalidUID, s, err)
	}
	d, err := strconv.ParseUint(dev, 16, 32)
	if err != nil {
		return UID{}, fmt.Errorf("%w: %q: %w", ErrInvalidUID, s, err)
	}

	return UID{Manufacturer: uint16(m), Device: uint32(d)}, nil
}

// IsBroadcast reports whether the UID addresses more than one device,
// either all devices or all devices of one manufacturer.
func (u UID) IsBroadcast() bool {
	return u.Device == AllDeviceIDs
}

// Uint64 returns the UID as a 48-bit integer, convenient for range maths.
func (u UID) Uint64() uint64 {
	return uint64(u.Manufacturer)<<32 | uint64(u.Device)
}

// Less orders UIDs numerically.
func (u UID) Less(other UID) bool {
	return u.Uint64() < other.Uint64()
}

// InRange reports whether lower <= u <= upper.
func (u UID) InRange(lower, upper UID) bool {
	v := u.Uint64()
	return v >= lower.Uint64() && v <= upper.Uint64()
}

// String returns the "mmmm:dddddddd" form.
func (u UID) String() string {
	return fmt.Sprintf("%04x:%08x", u.Manufacturer, u.Device)
}

// MarshalText implements encoding.TextMarshaler.
func (u UID) MarshalText() ([]byte, error) {
	return []byte(u.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (u *UID) UnmarshalText(text []byte) error {
	parsed, err := ParseUID(string(text))
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}

// putUID writes the UID in wire order (big-endian) to b[0:6].
func putUID(b []byte, u UID) {
	binary.BigEndian.PutUint16(b[0:2], u.Manufacturer)
	binary.BigEndian.PutUint32(b[2:6], u.Device)
}

// readUID reads a wire-order UID from b[0:6].
func readUID(b []byte) UID {
	return UID{
		Manufacturer: binary.BigEndian.Uint16(b[0:2]),
		Device:       binary.BigEndian.Uint32(b[2:6]),
	}
}
