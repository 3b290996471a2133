// Package ports defines the capability contracts for the peripheral devices
// the assistant depends on. Implementations live under pkg/providers.
package ports

// ImageSource produces still frames on demand. Capture returns nil bytes
// (no error) when no frame is available.
type ImageSource interface {
	Capture() ([]byte, error)
	Close() error
}

// AudioSink synthesizes and plays a single utterance to completion.
// Play blocks until playback of the given text has finished.
type AudioSink interface {
	Play(text string) error
}

// AudioSource exposes text recognized by a continuously running capture
// worker. ReadInput drains whatever the worker has buffered so far; it does
// not drive capture itself. While paused the source must report no input
// rather than block.
type AudioSource interface {
	HasInput() bool
	ReadInput() string
	Pause()
	Resume()
	Close() error
}
