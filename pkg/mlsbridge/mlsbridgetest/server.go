// Package mlsbridgetest provides an in-process fake MLS server for driving
// pkg/mlsbridge and pkg/room integration tests without a real network
// dependency, in the style of the teacher corpus's in-process test
// harnesses rather than a mocking framework.
package mlsbridgetest

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
)

// roomState is one room's current epoch and roster, mutable across the
// test's lifetime via AdvanceEpoch (epoch and secret) and joins (roster).
type roomState struct {
	epoch   uint64
	groupID string
	roomID  uint64
	secret  [32]byte
	roster  map[uint32]string
}

// Server is a fake MLS server. The zero value is not usable; construct with
// New.
type Server struct {
	mu    sync.Mutex
	rooms map[uint64]*roomState
	http  *httptest.Server

	// FailNextJoin, if > 0, causes the next N Join calls to return 503;
	// used to exercise the bridge client's retry path.
	FailNextJoin int
}

// New starts a fake MLS server listening on a loopback address.
func New() *Server {
	s := &Server{rooms: make(map[uint64]*roomState)}
	mux := http.NewServeMux()
	mux.HandleFunc("/mls/join", s.handleJoin)
	mux.HandleFunc("/mls/roster", s.handleRoster)
	s.http = httptest.NewServer(mux)
	return s
}

// URL returns the base URL to pass as mlsbridge.ClientConfig.BaseURL.
func (s *Server) URL() string { return s.http.URL }

// Close shuts down the underlying httptest.Server.
func (s *Server) Close() { s.http.Close() }

// SeedRoom installs a room with the given epoch and 32-byte secret before
// any client joins it.
func (s *Server) SeedRoom(roomID uint64, groupID string, epoch uint64, secret [32]byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[roomID] = &roomState{
		epoch:   epoch,
		groupID: groupID,
		roomID:  roomID,
		secret:  secret,
		roster:  make(map[uint32]string),
	}
}

// AdvanceEpoch bumps a room to a new epoch and secret, simulating an MLS
// commit (join/leave/rekey).
func (s *Server) AdvanceEpoch(roomID uint64, newEpoch uint64, newSecret [32]byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room := s.rooms[roomID]
	if room == nil {
		return
	}
	room.epoch = newEpoch
	room.secret = newSecret
}

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	if s.FailNextJoin > 0 {
		s.FailNextJoin--
		s.mu.Unlock()
		http.Error(w, "simulated transient failure", http.StatusServiceUnavailable)
		return
	}
	s.mu.Unlock()

	var req struct {
		Identity string `json:"identity"`
		RoomID   uint64 `json:"room_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	room, ok := s.rooms[req.RoomID]
	if !ok {
		room = &roomState{roomID: req.RoomID, groupID: "room-group", roster: make(map[uint32]string)}
		s.rooms[req.RoomID] = room
	}

	leaf := uint32(len(room.roster))
	for idx, existing := range room.roster {
		if existing == req.Identity {
			leaf = idx
			break
		}
	}
	room.roster[leaf] = req.Identity

	resp := joinResponseWire{
		SenderIndex:  leaf,
		Epoch:        room.epoch,
		GroupID:      room.groupID,
		RoomID:       room.roomID,
		Roster:       rosterEntries(room.roster),
		MasterSecret: base64.StdEncoding.EncodeToString(room.secret[:]),
	}
	s.mu.Unlock()

	writeJSON(w, resp)
}

func (s *Server) handleRoster(w http.ResponseWriter, r *http.Request) {
	roomID, err := strconv.ParseUint(r.URL.Query().Get("room_id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid room_id", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	room, ok := s.rooms[roomID]
	s.mu.Unlock()
	if !ok {
		http.Error(w, "unknown room", http.StatusNotFound)
		return
	}

	s.mu.Lock()
	resp := rosterResponseWire{
		Epoch:   room.epoch,
		GroupID: room.groupID,
		RoomID:  room.roomID,
		Roster:  rosterEntries(room.roster),
	}
	s.mu.Unlock()

	writeJSON(w, resp)
}

type rosterEntryWire struct {
	Index    uint32 `json:"index"`
	Identity string `json:"identity"`
}

type joinResponseWire struct {
	SenderIndex  uint32            `json:"sender_index"`
	Epoch        uint64            `json:"epoch"`
	GroupID      string            `json:"group_id"`
	RoomID       uint64            `json:"room_id"`
	Roster       []rosterEntryWire `json:"roster"`
	MasterSecret string            `json:"master_secret"`
}

type rosterResponseWire struct {
	Epoch   uint64            `json:"epoch"`
	GroupID string            `json:"group_id"`
	RoomID  uint64            `json:"room_id"`
	Roster  []rosterEntryWire `json:"roster"`
}

func rosterEntries(roster map[uint32]string) []rosterEntryWire {
	out := make([]rosterEntryWire, 0, len(roster))
	for idx, identity := range roster {
		out = append(out, rosterEntryWire{Index: idx, Identity: identity})
	}
	return out
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
