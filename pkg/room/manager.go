package room

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pion/logging"
	"golang.org/x/time/rate"

	"github.com/backkem/sframe/pkg/aead"
	"github.com/backkem/sframe/pkg/kdf"
	"github.com/backkem/sframe/pkg/mlsbridge"
	"github.com/backkem/sframe/pkg/sframe"
)

// DefaultRekeyDeadline bounds how long a rekey may stall outbound frames
// before the manager gives up and falls back to Joining (spec Section 4.8).
const DefaultRekeyDeadline = 2 * time.Second

// DefaultWrongKeyThreshold is the number of consecutive WrongKey failures
// from one apparent remote leaf before a resync is requested (spec Section
// 4.8's "sustained stream of WrongKey" policy; the source left the exact
// count unspecified, so this is the implementer's frozen choice).
const DefaultWrongKeyThreshold = 8

// Config configures a Manager.
type Config struct {
	// Client is the MLS bridge used for join/roster/resync calls.
	Client *mlsbridge.Client

	// RoomID and Identity identify the local participant to the MLS
	// server.
	RoomID   uint64
	Identity string

	// Suite selects the AEAD suite for all contexts this manager creates.
	// Default: aead.SuiteAES128GCM.
	Suite aead.Suite

	// ReplayWindowSize is the receiver replay-window width. Default:
	// sframe.DefaultReplayWindowSize.
	ReplayWindowSize uint64

	// RekeyDeadline bounds a rekey's stall on outbound frames. Default:
	// DefaultRekeyDeadline.
	RekeyDeadline time.Duration

	// WrongKeyThreshold is the number of consecutive WrongKey failures
	// attributed to one leaf before NeedsResync reports true. Default:
	// DefaultWrongKeyThreshold.
	WrongKeyThreshold int

	// FailureLogLimit rate-limits AuthFailed/Replay logging so a
	// misbehaving or malicious peer cannot flood the log (spec Section
	// 7). Default: 5 events/second, burst 10.
	FailureLogLimit rate.Limit
	FailureLogBurst int

	// LoggerFactory creates the manager's leveled logger. If nil, uses
	// logging.NewDefaultLoggerFactory().
	LoggerFactory logging.LoggerFactory
}

func (c *Config) setDefaults() {
	if c.Suite == 0 {
		c.Suite = aead.SuiteAES128GCM
	}
	if c.ReplayWindowSize == 0 {
		c.ReplayWindowSize = sframe.DefaultReplayWindowSize
	}
	if c.RekeyDeadline == 0 {
		c.RekeyDeadline = DefaultRekeyDeadline
	}
	if c.WrongKeyThreshold == 0 {
		c.WrongKeyThreshold = DefaultWrongKeyThreshold
	}
	if c.FailureLogLimit == 0 {
		c.FailureLogLimit = 5
	}
	if c.FailureLogBurst == 0 {
		c.FailureLogBurst = 10
	}
}

// Manager owns one conference participant's epoch, sender context and
// receiver-context table, and drives the Idle/Joining/Active/Rekeying/Closed
// state machine of spec Section 4.8.
type Manager struct {
	cfg Config
	log logging.LeveledLogger

	mu    sync.Mutex
	state State

	epoch       uint64
	groupID     string
	epochSecret [32]byte
	localLeaf   uint32
	roster      mlsbridge.RosterSnapshot

	sender    *sframe.SenderContext
	receivers map[uint32]*sframe.ReceiverContext
	kidToLeaf map[uint64]uint32

	wrongKeyCounts map[uint32]int
	needsResync    bool

	failureLimiter *rate.Limiter

	cancelInFlight context.CancelFunc
}

// NewManager constructs a Manager in StateIdle. Call Start to join the
// room and become Active.
func NewManager(cfg Config) *Manager {
	cfg.setDefaults()

	loggerFactory := cfg.LoggerFactory
	if loggerFactory == nil {
		loggerFactory = logging.NewDefaultLoggerFactory()
	}
	log := loggerFactory.NewLogger("room")

	return &Manager{
		cfg:            cfg,
		log:            log,
		state:          StateIdle,
		receivers:      make(map[uint32]*sframe.ReceiverContext),
		kidToLeaf:      make(map[uint64]uint32),
		wrongKeyCounts: make(map[uint32]int),
		failureLimiter: rate.NewLimiter(cfg.FailureLogLimit, cfg.FailureLogBurst),
	}
}

// SetReplayWindowSize changes the replay-window width applied to receiver
// contexts derived from now on (OnRemoteJoin, and the next rekey). Existing
// receiver contexts keep their current window; only newly derived ones pick
// up the new width. Lets an operator retune W from a live-reloaded config
// without restarting the process.
func (m *Manager) SetReplayWindowSize(size uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if size == 0 {
		size = sframe.DefaultReplayWindowSize
	}
	m.cfg.ReplayWindowSize = size
}

// State returns the manager's current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Start performs the initial MLS join and installs the local sender
// context and any currently-rostered remote receiver contexts (Idle ->
// Joining -> Active, spec Section 4.8).
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.state != StateIdle {
		m.mu.Unlock()
		return ErrAlreadyStarted
	}
	m.state = StateJoining
	m.mu.Unlock()

	opCtx, cancel := context.WithCancel(ctx)
	m.mu.Lock()
	m.cancelInFlight = cancel
	m.mu.Unlock()
	defer cancel()

	result, err := m.cfg.Client.Join(opCtx, m.cfg.Identity, m.cfg.RoomID)
	if err != nil {
		m.mu.Lock()
		m.state = StateIdle
		m.mu.Unlock()
		return fmt.Errorf("room: start: %w", err)
	}

	return m.installEpoch(result)
}

// installEpoch derives the local sender context and receiver contexts for
// every other rostered leaf under result, then transitions to Active. It is
// used both by Start and by a completed rekey.
func (m *Manager) installEpoch(result mlsbridge.JoinResult) error {
	senderKey, senderSalt, err := kdf.DeriveSenderSecret(result.EpochSecret[:], result.SenderIndex)
	if err != nil {
		return fmt.Errorf("room: derive sender secret: %w", err)
	}

	kidAudio := mlsbridge.ComputeKID(result.Epoch, m.cfg.RoomID, result.SenderIndex, mlsbridge.MediaBitAudio)
	kidVideo := mlsbridge.ComputeKID(result.Epoch, m.cfg.RoomID, result.SenderIndex, mlsbridge.MediaBitVideo)

	sender, err := sframe.NewSenderContext(m.cfg.Suite, senderKey, senderSalt, kidAudio, kidVideo)
	if err != nil {
		return fmt.Errorf("room: new sender context: %w", err)
	}

	receivers := make(map[uint32]*sframe.ReceiverContext)
	kidToLeaf := make(map[uint64]uint32)
	for _, entry := range result.Roster {
		if entry.Index == result.SenderIndex {
			continue
		}
		rc, rAudio, rVideo, err := m.deriveReceiver(result.Epoch, result.EpochSecret, entry.Index)
		if err != nil {
			return err
		}
		receivers[entry.Index] = rc
		kidToLeaf[rAudio] = entry.Index
		kidToLeaf[rVideo] = entry.Index
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.zeroizeLocked()

	m.epoch = result.Epoch
	m.groupID = result.GroupID
	m.epochSecret = result.EpochSecret
	m.localLeaf = result.SenderIndex
	m.roster = result.RosterSnapshot
	m.sender = sender
	m.receivers = receivers
	m.kidToLeaf = kidToLeaf
	m.wrongKeyCounts = make(map[uint32]int)
	m.needsResync = false
	m.state = StateActive

	return nil
}

func (m *Manager) deriveReceiver(epoch uint64, epochSecret [32]byte, leaf uint32) (*sframe.ReceiverContext, uint64, uint64, error) {
	key, salt, err := kdf.DeriveSenderSecret(epochSecret[:], leaf)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("room: derive receiver secret: %w", err)
	}

	kidAudio := mlsbridge.ComputeKID(epoch, m.cfg.RoomID, leaf, mlsbridge.MediaBitAudio)
	kidVideo := mlsbridge.ComputeKID(epoch, m.cfg.RoomID, leaf, mlsbridge.MediaBitVideo)

	rc, err := sframe.NewReceiverContext(m.cfg.Suite, key, salt, kidAudio, kidVideo, m.cfg.ReplayWindowSize)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("room: new receiver context: %w", err)
	}
	return rc, kidAudio, kidVideo, nil
}

// Seal encrypts plaintext for the given media kind using the current
// sender context (spec Section 6's seal operation).
//
// A CounterExhausted failure halts the sender: the manager drops back to
// Joining so no further frames are sealed until a rekey completes (spec
// Section 7's "sender halts until an epoch rotation" policy).
func (m *Manager) Seal(kind sframe.MediaKind, plaintext []byte) ([]byte, error) {
	m.mu.Lock()
	if m.state == StateClosed {
		m.mu.Unlock()
		return nil, ErrClosed
	}
	if m.state != StateActive {
		m.mu.Unlock()
		return nil, ErrNoContext
	}
	sender := m.sender
	m.mu.Unlock()

	record, err := sender.Seal(kind, plaintext)
	if err != nil {
		if err == sframe.ErrCounterExhausted {
			m.mu.Lock()
			if m.state == StateActive {
				m.state = StateJoining
			}
			m.mu.Unlock()
			m.log.Error("sender frame counter exhausted, epoch rotation required")
		}
		return nil, err
	}
	return record, nil
}

// Open authenticates and decrypts record using the receiver context whose
// KID matches the record's header (spec Section 6's open operation).
//
// Per-frame security failures (AuthFailed, Replay) are dropped and logged
// at a rate-limited level; they never end the session. A KID that matches
// no known receiver context is treated as WrongKey and counted toward the
// sustained-failure threshold that requests a resync (spec Section 4.8).
func (m *Manager) Open(record []byte) ([]byte, error) {
	hdr, _, err := sframe.DecodeHeader(record)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if m.state == StateClosed {
		m.mu.Unlock()
		return nil, ErrClosed
	}
	if m.state == StateIdle || m.state == StateJoining {
		m.mu.Unlock()
		return nil, ErrNoContext
	}

	leaf, ok := m.kidToLeaf[hdr.KID]
	if !ok {
		m.recordWrongKeyLocked(leafFromKID(hdr.KID))
		m.mu.Unlock()
		return nil, sframe.ErrWrongKey
	}
	receiver := m.receivers[leaf]
	m.mu.Unlock()

	plaintext, err := receiver.Open(record)
	switch err {
	case nil:
		m.mu.Lock()
		m.wrongKeyCounts[leaf] = 0
		m.mu.Unlock()
		return plaintext, nil
	case sframe.ErrAuthFailed, sframe.ErrReplay:
		m.logRateLimited(err)
		return nil, err
	case sframe.ErrWrongKey:
		m.mu.Lock()
		m.recordWrongKeyLocked(leaf)
		m.mu.Unlock()
		return nil, err
	default:
		return nil, err
	}
}

func (m *Manager) logRateLimited(err error) {
	if m.failureLimiter.Allow() {
		m.log.Warnf("frame dropped: %v", err)
	}
}

// recordWrongKeyLocked must be called with mu held.
func (m *Manager) recordWrongKeyLocked(leaf uint32) {
	m.wrongKeyCounts[leaf]++
	if m.wrongKeyCounts[leaf] >= m.cfg.WrongKeyThreshold {
		m.needsResync = true
	}
}

// leafFromKID recovers the leaf index encoded in a KID assuming it shares
// this manager's room (spec Section 6's KID layout: leaf*LeafUnit sits
// below RoomUnit, so it survives a KID%RoomUnit reduction regardless of the
// encoded epoch). Used only to key WrongKey diagnostics for KIDs with no
// installed receiver context; never used for trust decisions.
func leafFromKID(kid uint64) uint32 {
	return uint32((kid % mlsbridge.RoomUnit) / mlsbridge.LeafUnit)
}

// NeedsResync reports whether a sustained WrongKey stream has requested a
// resync since the last successful Resync or rekey (spec Section 4.8).
func (m *Manager) NeedsResync() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.needsResync
}

// OnRemoteJoin parses an SFU display name and derives a ReceiverContext for
// the encoded leaf under the current epoch (spec Section 4.8's
// on_remote_join). A display name that fails to parse is ignored: per spec
// Section 6, it must never trigger a subscription rekey.
func (m *Manager) OnRemoteJoin(displayName string) error {
	_, leaf, ok := sframe.ParseSFUDisplayName(displayName)
	if !ok {
		return nil
	}

	m.mu.Lock()
	if m.state != StateActive {
		m.mu.Unlock()
		return ErrNoContext
	}
	epoch := m.epoch
	epochSecret := m.epochSecret
	m.mu.Unlock()

	rc, kidAudio, kidVideo, err := m.deriveReceiver(epoch, epochSecret, leaf)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateActive || m.epoch != epoch {
		// epoch moved on while we were deriving; discard the stale context.
		rc.Zeroize()
		return nil
	}
	m.receivers[leaf] = rc
	m.kidToLeaf[kidAudio] = leaf
	m.kidToLeaf[kidVideo] = leaf
	delete(m.wrongKeyCounts, leaf)
	return nil
}

// OnRemoteLeave drops and zeroises the ReceiverContext for leaf (spec
// Section 4.8's on_remote_leave).
func (m *Manager) OnRemoteLeave(leaf uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rc, ok := m.receivers[leaf]
	if !ok {
		return ErrUnknownLeaf
	}

	rc.Zeroize()
	delete(m.receivers, leaf)
	delete(m.wrongKeyCounts, leaf)

	kidAudio := mlsbridge.ComputeKID(m.epoch, m.cfg.RoomID, leaf, mlsbridge.MediaBitAudio)
	kidVideo := mlsbridge.ComputeKID(m.epoch, m.cfg.RoomID, leaf, mlsbridge.MediaBitVideo)
	delete(m.kidToLeaf, kidAudio)
	delete(m.kidToLeaf, kidVideo)

	return nil
}

// Resync re-runs the MLS join and rekeys if the epoch changed (spec Section
// 4.7's resync contract; Section 4.8's Active -> Rekeying transition on
// "explicit resync returning changed=true"). The bridge call is bounded by
// cfg.RekeyDeadline; deriving the new contexts afterwards is not. On timeout
// the manager returns ErrRekeyTimeout and falls back to Joining. When no
// sender context is installed (before Start, or after a timeout), a
// successful join installs its epoch even if the epoch is unchanged.
func (m *Manager) Resync(ctx context.Context) (bool, error) {
	m.mu.Lock()
	if m.state == StateClosed {
		m.mu.Unlock()
		return false, ErrClosed
	}
	current := m.roster
	m.state = StateRekeying
	m.mu.Unlock()

	deadlineCtx, cancel := context.WithTimeout(ctx, m.cfg.RekeyDeadline)
	m.mu.Lock()
	m.cancelInFlight = cancel
	m.mu.Unlock()
	defer cancel()

	changed, result, err := m.cfg.Client.Resync(deadlineCtx, m.cfg.Identity, m.cfg.RoomID, current)
	if err != nil {
		if deadlineCtx.Err() != nil {
			m.mu.Lock()
			m.zeroizeLocked()
			m.state = StateJoining
			m.mu.Unlock()
			return false, fmt.Errorf("%w: %v", ErrRekeyTimeout, err)
		}
		m.mu.Lock()
		if m.sender != nil {
			m.state = StateActive
		} else {
			m.state = StateJoining
		}
		m.mu.Unlock()
		return false, fmt.Errorf("room: resync: %w", err)
	}

	m.mu.Lock()
	haveSender := m.sender != nil
	m.mu.Unlock()
	if !changed && haveSender {
		m.mu.Lock()
		m.needsResync = false
		m.state = StateActive
		m.mu.Unlock()
		return false, nil
	}

	if err := m.installEpoch(result); err != nil {
		m.mu.Lock()
		m.zeroizeLocked()
		m.state = StateJoining
		m.mu.Unlock()
		return changed, err
	}
	return changed, nil
}

// Close tears the manager down: any in-flight MLS operation is cancelled,
// every key and salt is overwritten, and the state becomes Closed (spec
// Section 4.8, Section 5, Section 8's zeroisation property).
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancelInFlight != nil {
		m.cancelInFlight()
	}

	m.zeroizeLocked()
	m.state = StateClosed
	return nil
}

// zeroizeLocked clears every context and key held by the manager. Callers
// must hold mu.
func (m *Manager) zeroizeLocked() {
	if m.sender != nil {
		m.sender.Zeroize()
		m.sender = nil
	}
	for _, rc := range m.receivers {
		rc.Zeroize()
	}
	m.receivers = make(map[uint32]*sframe.ReceiverContext)
	m.kidToLeaf = make(map[uint64]uint32)

	for i := range m.epochSecret {
		m.epochSecret[i] = 0
	}
}
