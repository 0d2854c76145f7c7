package sframe

// MediaKind distinguishes the audio and video tracks of one participant.
// Each kind maps to a distinct Key Identifier for the same sender; the
// audio and video KIDs of one sender differ by exactly 1 (spec Section 3).
type MediaKind uint8

const (
	// MediaAudio is the audio track; its KID carries media bit 0.
	MediaAudio MediaKind = iota
	// MediaVideo is the video track; its KID carries media bit 1.
	MediaVideo
)

// String returns a human-readable media kind name.
func (k MediaKind) String() string {
	switch k {
	case MediaAudio:
		return "audio"
	case MediaVideo:
		return "video"
	default:
		return "unknown"
	}
}

// MediaBit returns the numeric media bit used in KID construction:
// 0 for audio, 1 for video (spec Section 6).
func (k MediaKind) MediaBit() uint64 {
	if k == MediaVideo {
		return 1
	}
	return 0
}
