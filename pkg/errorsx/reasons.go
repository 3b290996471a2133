package errorsx

// ReasonCode is a short machine-readable error reason.
type ReasonCode string

const (
	ReasonUnknown ReasonCode = "unknown"

	ReasonOracleCall      ReasonCode = "oracle_call"
	ReasonOracleDecode    ReasonCode = "oracle_decode"
	ReasonOracleRateLimit ReasonCode = "oracle_rate_limit"

	ReasonCameraCapture  ReasonCode = "camera_capture"
	ReasonMicConnect     ReasonCode = "mic_connect"
	ReasonSpeakerConnect ReasonCode = "speaker_connect"
	ReasonSpeakerPlay    ReasonCode = "speaker_play"

	ReasonInvalidTransition ReasonCode = "invalid_transition"
	ReasonUnknownState      ReasonCode = "unknown_state"

	ReasonNotifySend  ReasonCode = "notify_send"
	ReasonSessionDump ReasonCode = "session_dump"
)
