package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	dmxbridge "github.com/nerrad567/gray-logic-dmx/internal/bridges/dmx"
)

// StatsResponse is the body of GET /api/v1/stats and the payload of the
// engine.stats WebSocket channel.
type StatsResponse struct {
	Universe      int                         `json:"universe"`
	Engine        *dmxbridge.EngineStatistics `json:"engine"`
	LastDataFrame *time.Time                  `json:"last_data_frame,omitempty"`
}

// LevelsResponse is the current universe as handed to the engine.
type LevelsResponse struct {
	Universe int   `json:"universe"`
	Size     int   `json:"size"`
	Levels   []int `json:"levels"`
}

func (s *Server) statsSnapshot() StatsResponse {
	stats := s.controller.Stats()
	resp := StatsResponse{
		Universe: s.controller.Universe(),
		Engine:   dmxbridge.NewEngineStatistics(stats),
	}
	if !stats.LastDataFrame.IsZero() {
		t := stats.LastDataFrame.UTC()
		resp.LastDataFrame = &t
	}
	return resp
}

func (s *Server) levelsSnapshot() LevelsResponse {
	buf := s.controller.Levels()
	data := buf.Data()
	levels := make([]int, len(data))
	for i, v := range data {
		levels[i] = int(v)
	}
	return LevelsResponse{
		Universe: s.controller.Universe(),
		Size:     buf.Size(),
		Levels:   levels,
	}
}

// handleStats returns the engine statistics.
func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.statsSnapshot())
}

// handleGetLevels returns the current universe.
func (s *Server) handleGetLevels(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.levelsSnapshot())
}

// handleSetLevels merges a LevelsMessage into the universe.
func (s *Server) handleSetLevels(w http.ResponseWriter, r *http.Request) {
	var msg dmxbridge.LevelsMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if len(msg.Values) == 0 && len(msg.Channels) == 0 && !msg.Blackout {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "values, channels or blackout is required")
		return
	}

	if err := s.controller.SetLevels(msg); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, s.levelsSnapshot())
}

// handleRDMRequest sends one RDM request and waits for its result.
func (s *Server) handleRDMRequest(w http.ResponseWriter, r *http.Request) {
	var msg dmxbridge.RDMRequestMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		writeBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}
	if msg.RequestID == "" {
		if id, ok := r.Context().Value(ctxKeyRequestID).(string); ok {
			msg.RequestID = id
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.rdmTimeout)
	defer cancel()

	resp := s.controller.SendRDM(ctx, msg)
	writeJSON(w, rdmStatus(resp), resp)
}

// rdmStatus maps an RDM response to an HTTP status.
func rdmStatus(resp dmxbridge.RDMResponseMessage) int {
	if resp.Success {
		return http.StatusOK
	}
	if resp.Error == nil {
		return http.StatusBadGateway
	}
	switch resp.Error.Code {
	case dmxbridge.ErrCodeInvalidParameters:
		return http.StatusBadRequest
	case dmxbridge.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

// handleDiscovery runs mute, unmute or branch. The body is optional and
// carries the target or probe bounds.
func (s *Server) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	var cmd dmxbridge.DiscoveryCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil && !errors.Is(err, io.EOF) {
		writeBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}
	cmd.Op = chi.URLParam(r, "op")
	if cmd.ID == "" {
		if id, ok := r.Context().Value(ctxKeyRequestID).(string); ok {
			cmd.ID = id
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.rdmTimeout)
	defer cancel()

	res := s.controller.Discover(ctx, cmd)
	if s.hub != nil {
		s.hub.Broadcast(ChannelDiscovery, res)
	}

	code := http.StatusOK
	switch res.Status {
	case dmxbridge.DiscoveryRejected:
		code = http.StatusConflict
	case dmxbridge.DiscoveryFailed:
		code = http.StatusBadRequest
	case dmxbridge.DiscoveryTimeout:
		code = http.StatusGatewayTimeout
	}
	writeJSON(w, code, res)
}
