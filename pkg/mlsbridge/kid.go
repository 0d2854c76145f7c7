package mlsbridge

// KID layout constants (spec Section 6): KID = epoch*EpochUnit +
// room*RoomUnit + leaf*LeafUnit + mediaBit. EpochUnit >> RoomUnit >>
// the sender space so no two distinct (epoch, room, leaf, media) tuples
// ever collide for realistic room/leaf counts.
const (
	EpochUnit uint64 = 1_000_000_000
	RoomUnit  uint64 = 10_000
	LeafUnit  uint64 = 10

	// MediaBitAudio and MediaBitVideo are the two values the low digit of
	// a KID may take.
	MediaBitAudio uint64 = 0
	MediaBitVideo uint64 = 1
)

// ComputeKID computes the Key Identifier for (epoch, room, leaf, media),
// the single source of truth both the bridge and the session manager use
// (spec Section 3 and Section 6).
func ComputeKID(epoch, room uint64, leaf uint32, mediaBit uint64) uint64 {
	return epoch*EpochUnit + room*RoomUnit + uint64(leaf)*LeafUnit + mediaBit
}
