package mlsbridge

// RosterEntry is one (leaf index, identity) pair of a roster snapshot.
type RosterEntry struct {
	Index    uint32 `json:"index"`
	Identity string `json:"identity"`
}

// RosterSnapshot is the roster as known at a given epoch, returned by both
// Join and FetchRoster (spec Section 6).
type RosterSnapshot struct {
	Epoch   uint64        `json:"epoch"`
	GroupID string        `json:"group_id"`
	RoomID  uint64        `json:"room_id"`
	Roster  []RosterEntry `json:"roster"`
}

// JoinResult is the result of a successful Join call: the roster snapshot
// plus the local participant's leaf index and the current epoch secret
// (spec Section 4.7, Section 6). The epoch secret is the only place this
// package hands raw key material to a caller; callers must derive traffic
// keys via pkg/kdf and discard the secret once no new senders are expected
// in that epoch (spec Section 3 ownership rule).
type JoinResult struct {
	RosterSnapshot
	SenderIndex uint32
	EpochSecret [32]byte
}

// wire request/response shapes, matching the MLS server's JSON bodies
// exactly (spec Section 6). These are unexported: callers only see the
// typed JoinResult/RosterSnapshot above.

type joinRequest struct {
	Identity string `json:"identity"`
	RoomID   uint64 `json:"room_id"`
}

type joinResponse struct {
	SenderIndex  uint32        `json:"sender_index"`
	Epoch        uint64        `json:"epoch"`
	GroupID      string        `json:"group_id"`
	RoomID       uint64        `json:"room_id"`
	Roster       []RosterEntry `json:"roster"`
	MasterSecret string        `json:"master_secret"`
}

type rosterResponse struct {
	Epoch   uint64        `json:"epoch"`
	GroupID string        `json:"group_id"`
	RoomID  uint64        `json:"room_id"`
	Roster  []RosterEntry `json:"roster"`
}
