package ocast

// Media service command and event names.
const (
	MediaCommandPrepare           = "prepare"
	MediaCommandPlay              = "play"
	MediaCommandStop              = "stop"
	MediaCommandPause             = "pause"
	MediaCommandResume            = "resume"
	MediaCommandVolume            = "volume"
	MediaCommandTrack             = "track"
	MediaCommandSeek              = "seek"
	MediaCommandMute              = "mute"
	MediaCommandGetPlaybackStatus = "getPlaybackStatus"
	MediaCommandGetMetadata       = "getMetadata"

	MediaEventPlaybackStatus  = "playbackStatus"
	MediaEventMetadataChanged = "metadataChanged"
)

// Reply codes the media service embeds in its params.
const (
	MediaCodeSuccess             = 0
	MediaCodeNoImplementation    = 2400
	MediaCodeInvalidService      = 2404
	MediaCodeInvalidPlayerState  = 2412
	MediaCodePlayerNotReady      = 2413
	MediaCodeInvalidTrack        = 2414
	MediaCodeUnknownMediaType    = 2415
	MediaCodeUnknownTransferMode = 2416
	MediaCodeMissingParameter    = 2422
	MediaCodeInternalError       = 2500
)

// PlayerState is the playback state reported by the media service.
type PlayerState int

const (
	PlayerStateUnknown PlayerState = iota
	PlayerStateIdle
	PlayerStatePlaying
	PlayerStatePaused
	PlayerStateBuffering
)

func (s PlayerState) String() string {
	switch s {
	case PlayerStateIdle:
		return "idle"
	case PlayerStatePlaying:
		return "playing"
	case PlayerStatePaused:
		return "paused"
	case PlayerStateBuffering:
		return "buffering"
	default:
		return "unknown"
	}
}

// Media types accepted by prepare/track commands.
const (
	MediaTypeAudio = "audio"
	MediaTypeVideo = "video"
	MediaTypeImage = "image"
)

// Track kinds.
const (
	TrackTypeAudio = "audio"
	TrackTypeVideo = "video"
	TrackTypeText  = "text"
)

// Transfer modes accepted by the prepare command.
const (
	TransferModeBuffered = "buffered"
	TransferModeStreamed = "streamed"
)

// PlaybackStatus is the media service playback snapshot, carried both in
// getPlaybackStatus replies and playbackStatus events.
type PlaybackStatus struct {
	Position float64     `json:"position"`
	Duration float64     `json:"duration"`
	State    PlayerState `json:"state"`
	Volume   float64     `json:"volume"`
	Mute     bool        `json:"mute"`
}

// Track describes one audio, video or text track of the current media.
type Track struct {
	ID       string `json:"trackId"`
	Language string `json:"language"`
	Label    string `json:"label"`
	Enabled  bool   `json:"enabled"`
}

// Metadata describes the current media, carried both in getMetadata replies
// and metadataChanged events.
type Metadata struct {
	Title       string  `json:"title"`
	Subtitle    string  `json:"subtitle"`
	Logo        string  `json:"logo"`
	MediaType   string  `json:"mediaType"`
	AudioTracks []Track `json:"audioTracks,omitempty"`
	VideoTracks []Track `json:"videoTracks,omitempty"`
	TextTracks  []Track `json:"textTracks,omitempty"`
}

// PrepareParams starts playback of a new media.
type PrepareParams struct {
	URL       string  `json:"url"`
	Frequency int     `json:"frequency"`
	Title     string  `json:"title"`
	Subtitle  string  `json:"subtitle"`
	Logo      string  `json:"logo"`
	MediaType string  `json:"mediaType"`
	Transfer  string  `json:"transferMode"`
	AutoPlay  bool    `json:"autoplay"`
	Position  float64 `json:"position,omitempty"`
}

// PlayParams positions playback of an already prepared media.
type PlayParams struct {
	Position float64 `json:"position"`
}

// SeekParams moves the playback position, in seconds.
type SeekParams struct {
	Position float64 `json:"position"`
}

// VolumeParams sets the output volume, 0.0 through 1.0.
type VolumeParams struct {
	Volume float64 `json:"volume"`
}

// MuteParams toggles audio mute.
type MuteParams struct {
	Mute bool `json:"mute"`
}

// TrackParams enables or disables one media track.
type TrackParams struct {
	Type    string `json:"type"`
	ID      string `json:"trackId"`
	Enabled bool   `json:"enabled"`
}
