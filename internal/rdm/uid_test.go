package rdm

import (
	"errors"
	"testing"
)

func TestParseUID(t *testing.T) {
	tests := []struct {
		in      string
		want    UID
		wantErr bool
	}{
		{"7a70:12345678", UID{0x7a70, 0x12345678}, false},
		{"7A70:00000001", UID{0x7a70, 1}, false},
		{"ffff:ffffffff", AllDevices(), false},
		{" 0001:2 ", UID{1, 2}, false},
		{"7a70", UID{}, true},
		{"7a70:", UID{}, true},
		{"17a70:1", UID{}, true},
		{"7a70:123456789", UID{}, true},
		{"zz:1", UID{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseUID(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidUID) {
					t.Errorf("ParseUID(%q) error = %v, want ErrInvalidUID", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseUID(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseUID(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestUIDString(t *testing.T) {
	if got := NewUID(0x7a70, 0x12345678).String(); got != "7a70:12345678" {
		t.Errorf("String() = %q, want %q", got, "7a70:12345678")
	}
	if got := NewUID(1, 2).String(); got != "0001:00000002" {
		t.Errorf("String() = %q, want %q", got, "0001:00000002")
	}
}

func TestUIDIsBroadcast(t *testing.T) {
	tests := []struct {
		name string
		uid  UID
		want bool
	}{
		{"all devices", AllDevices(), true},
		{"vendorcast", VendorcastUID(0x7a70), true},
		{"unicast", NewUID(0x7a70, 1), false},
		{"all manufacturers but single id", NewUID(0xFFFF, 1), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.uid.IsBroadcast(); got != tt.want {
				t.Errorf("IsBroadcast() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestUIDOrdering(t *testing.T) {
	a := NewUID(0x0001, 0xFFFFFFFF)
	b := NewUID(0x0002, 0x00000000)

	if !a.Less(b) {
		t.Error("expected manufacturer to dominate ordering")
	}
	if b.Less(a) {
		t.Error("Less should not be symmetric")
	}
	if got := UIDFromUint64(a.Uint64()); got != a {
		t.Errorf("UIDFromUint64(Uint64()) = %v, want %v", got, a)
	}
	if !NewUID(1, 5).InRange(NewUID(1, 0), NewUID(1, 5)) {
		t.Error("upper bound should be inclusive")
	}
	if NewUID(1, 6).InRange(NewUID(1, 0), NewUID(1, 5)) {
		t.Error("value above range reported in range")
	}
}

func TestUIDText(t *testing.T) {
	var u UID
	if err := u.UnmarshalText([]byte("4c55:00000a0b")); err != nil {
		t.Fatalf("UnmarshalText() error = %v", err)
	}
	if u != NewUID(0x4c55, 0x0a0b) {
		t.Errorf("UnmarshalText() = %v", u)
	}
	text, err := u.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText() error = %v", err)
	}
	if string(text) != "4c55:00000a0b" {
		t.Errorf("MarshalText() = %q", text)
	}
	if err := u.UnmarshalText([]byte("bad")); err == nil {
		t.Error("UnmarshalText(bad) should fail")
	}
}
