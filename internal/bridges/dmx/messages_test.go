package dmx

import (
	"encoding/json"
	"errors"
	"testing"

	dmxbuf "github.com/nerrad567/gray-logic-dmx/internal/dmx"
	"github.com/nerrad567/gray-logic-dmx/internal/engine"
	"github.com/nerrad567/gray-logic-dmx/internal/rdm"
)

func TestLevelsMessage_Apply(t *testing.T) {
	base := dmxbuf.BufferFromBytes([]byte{1, 2, 3, 4})

	tests := []struct {
		name     string
		msg      LevelsMessage
		want     []byte
		wantErr  error
		wantSize int
	}{
		{
			name:     "values from channel 1",
			msg:      LevelsMessage{Values: []int{9, 8}},
			want:     []byte{9, 8, 3, 4},
			wantSize: 4,
		},
		{
			name:     "values from start grows frame",
			msg:      LevelsMessage{Start: 4, Values: []int{40, 50}},
			want:     []byte{1, 2, 3, 40, 50},
			wantSize: 5,
		},
		{
			name:     "channels map",
			msg:      LevelsMessage{Channels: map[int]int{1: 255, 3: 0}},
			want:     []byte{255, 2, 0, 4},
			wantSize: 4,
		},
		{
			name:     "blackout then values",
			msg:      LevelsMessage{Blackout: true, Values: []int{7}},
			want:     []byte{7, 0, 0, 0},
			wantSize: 4,
		},
		{
			name:    "negative level",
			msg:     LevelsMessage{Values: []int{-1}},
			wantErr: ErrInvalidLevel,
		},
		{
			name:    "range past universe",
			msg:     LevelsMessage{Start: dmxbuf.UniverseSize, Values: []int{1, 2}},
			wantErr: dmxbuf.ErrChannelOutOfRange,
		},
		{
			name:    "channel past universe",
			msg:     LevelsMessage{Channels: map[int]int{dmxbuf.UniverseSize + 1: 1}},
			wantErr: dmxbuf.ErrChannelOutOfRange,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := base
			err := tt.msg.Apply(&buf)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Apply() error = %v, want %v", err, tt.wantErr)
				}
				if !buf.Equal(base) {
					t.Error("buffer changed on error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Apply() error = %v", err)
			}
			if buf.Size() != tt.wantSize {
				t.Errorf("size = %d, want %d", buf.Size(), tt.wantSize)
			}
			for i, v := range tt.want {
				if got := buf.Get(i); got != v {
					t.Errorf("slot %d = %d, want %d", i, got, v)
				}
			}
		})
	}
}

func TestLevelsMessage_UnmarshalChannels(t *testing.T) {
	var msg LevelsMessage
	if err := json.Unmarshal([]byte(`{"channels":{"1":10,"512":20}}`), &msg); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if msg.Channels[1] != 10 || msg.Channels[512] != 20 {
		t.Errorf("channels = %v", msg.Channels)
	}
}

func TestRDMRequestMessage_Request(t *testing.T) {
	source := rdm.NewUID(0x7a70, 1)
	dest := rdm.NewUID(0x4c55, 2)

	tests := []struct {
		name    string
		msg     RDMRequestMessage
		wantCC  rdm.CommandClass
		wantErr error
	}{
		{"get", RDMRequestMessage{Destination: dest, CommandClass: "get", PID: rdm.PIDDeviceInfo}, rdm.GetCommand, nil},
		{"set upper case", RDMRequestMessage{Destination: dest, CommandClass: "SET", PID: rdm.PIDIdentifyDevice, Data: "01"}, rdm.SetCommand, nil},
		{"set broadcast", RDMRequestMessage{Destination: rdm.AllDevices(), CommandClass: "set", PID: rdm.PIDIdentifyDevice, Data: "00"}, rdm.SetCommand, nil},
		{"get broadcast", RDMRequestMessage{Destination: rdm.AllDevices(), CommandClass: "get", PID: 1}, 0, ErrInvalidMessage},
		{"missing destination", RDMRequestMessage{CommandClass: "get", PID: 1}, 0, ErrInvalidMessage},
		{"bad hex", RDMRequestMessage{Destination: dest, CommandClass: "set", Data: "0g"}, 0, ErrInvalidMessage},
		{"discovery class", RDMRequestMessage{Destination: dest, CommandClass: "discovery"}, 0, ErrInvalidMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := tt.msg.Request(source)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Request() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Request() error = %v", err)
			}
			if req.CommandClass != tt.wantCC || req.Source != source || req.Destination != tt.msg.Destination {
				t.Errorf("request = %s", req)
			}
		})
	}
}

func TestRDMRequestMessage_DataTooLong(t *testing.T) {
	data := make([]byte, 2*(rdm.MaxParamDataLength+1))
	for i := range data {
		data[i] = '0'
	}
	msg := RDMRequestMessage{Destination: rdm.NewUID(1, 1), CommandClass: "set", Data: string(data)}
	if _, err := msg.Request(rdm.NewUID(2, 2)); !errors.Is(err, rdm.ErrParamDataTooLong) {
		t.Errorf("Request() error = %v, want ErrParamDataTooLong", err)
	}
}

func TestNewRDMResponse(t *testing.T) {
	req := rdm.NewGetRequest(rdm.NewUID(1, 1), rdm.NewUID(2, 2), 0, rdm.PIDDeviceInfo, nil)
	req.TransactionNumber = 7

	nack := rdm.NewResponse(req, rdm.ResponseTypeNackReason, []byte{0x00, 0x05})

	tests := []struct {
		name        string
		res         engine.Result
		wantSuccess bool
		wantCode    string
		wantNack    int
	}{
		{
			name:        "ack",
			res:         engine.Result{Outcome: engine.OutcomeResponseReceived, Request: req, Reply: rdm.NewResponse(req, rdm.ResponseTypeAck, nil), Confirmed: true},
			wantSuccess: true,
		},
		{
			name:        "nack is still a confirmed reply",
			res:         engine.Result{Outcome: engine.OutcomeResponseReceived, Request: req, Reply: nack, Confirmed: true},
			wantSuccess: true,
			wantNack:    5,
		},
		{
			name:     "unconfirmed",
			res:      engine.Result{Outcome: engine.OutcomeResponseReceived, Request: req, Reply: nack},
			wantCode: ErrCodeUnconfirmed,
			wantNack: 5,
		},
		{
			name:     "undecodable",
			res:      engine.Result{Outcome: engine.OutcomeResponseReceived, Request: req, Data: []byte{0xde, 0xad}, Err: engine.ErrInvalidResponse},
			wantCode: ErrCodeInvalidResponse,
		},
		{
			name:     "shutdown",
			res:      engine.Result{Outcome: engine.OutcomeSendFailure, Request: req, Err: engine.ErrShutdown},
			wantCode: ErrCodeSendFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := NewRDMResponse("r", tt.res)
			if msg.Success != tt.wantSuccess {
				t.Errorf("success = %v, want %v", msg.Success, tt.wantSuccess)
			}
			if msg.TransactionNumber != 7 {
				t.Errorf("transaction number = %d, want 7", msg.TransactionNumber)
			}
			if tt.wantCode == "" && msg.Error != nil {
				t.Errorf("unexpected error %+v", msg.Error)
			}
			if tt.wantCode != "" && (msg.Error == nil || msg.Error.Code != tt.wantCode) {
				t.Errorf("error = %+v, want code %s", msg.Error, tt.wantCode)
			}
			if tt.wantNack != 0 && (msg.NackReason == nil || *msg.NackReason != tt.wantNack) {
				t.Errorf("nack reason = %v, want %d", msg.NackReason, tt.wantNack)
			}
		})
	}
}

func TestDiscoveryCommand_UnmarshalUIDs(t *testing.T) {
	var cmd DiscoveryCommand
	payload := `{"op":"branch","lower":"0000:00000000","upper":"7fff:ffffffff"}`
	if err := json.Unmarshal([]byte(payload), &cmd); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	lower, upper, err := cmd.branchRange()
	if err != nil {
		t.Fatalf("branchRange() error = %v", err)
	}
	if lower != (rdm.UID{}) || upper != rdm.NewUID(0x7fff, 0xffffffff) {
		t.Errorf("range = %s..%s", lower, upper)
	}

	if err := json.Unmarshal([]byte(`{"op":"mute","target":"nonsense"}`), &cmd); err == nil {
		t.Error("Unmarshal() should reject a malformed UID")
	}
}
