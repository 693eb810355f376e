package capture

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/drgolem/go-portaudio/portaudio"

	"github.com/drgolem/roomcast/internal/roomcasterr"
)

// PortAudioSource captures live audio via github.com/drgolem/go-portaudio,
// the same backend the teacher module uses for output in
// pkg/audioplayer/player.go and internal/fileplayer/fileplayer.go. Here the
// roles are inverted: PortAudio drives an *input* callback on its own
// audio thread, and that callback is the capture loop's RT-safe body —
// there is no separate blocking-read goroutine to manage because
// PortAudio already runs the device thread for us.
type PortAudioSource struct {
	*baseSource

	deviceIndex int
	stream      *portaudio.PaStream
	doneCh      chan struct{}

	onOverflow func()
}

// NewPortAudioSource creates a capture Source bound to the given device.
func NewPortAudioSource(deviceIndex int, p Params) (*PortAudioSource, error) {
	base, err := newBaseSource(p)
	if err != nil {
		return nil, err
	}
	return &PortAudioSource{baseSource: base, deviceIndex: deviceIndex}, nil
}

func (s *PortAudioSource) sampleFormat() (portaudio.PaSampleFormat, error) {
	switch s.params.SampleFormat {
	case SampleFormatS16LE:
		return portaudio.SampleFmtInt16, nil
	case SampleFormatS24LE:
		return portaudio.SampleFmtInt24, nil
	case SampleFormatS32LE:
		return portaudio.SampleFmtInt32, nil
	default:
		return 0, fmt.Errorf("capture: unsupported sample format %v", s.params.SampleFormat)
	}
}

// Start opens the capture device and blocks until Stop is called or the
// device reports an unrecoverable error. PortAudio's own thread drives
// audioCallback; Start's job is just to open, wait, and guarantee close.
func (s *PortAudioSource) Start(onOverflow func()) error {
	s.onOverflow = onOverflow

	fmtValue, err := s.sampleFormat()
	if err != nil {
		return err
	}

	s.stream = &portaudio.PaStream{
		InputParameters: &portaudio.PaStreamParameters{
			DeviceIndex:  s.deviceIndex,
			ChannelCount: s.params.TotalChannels,
			SampleFormat: fmtValue,
		},
		SampleRate: float64(s.params.SamplingRate),
	}

	if err := s.stream.OpenCallback(s.params.FramesPerChunk, s.audioCallback); err != nil {
		return fmt.Errorf("capture: open device %q: %w", s.params.DeviceName, err)
	}

	if err := s.stream.StartStream(); err != nil {
		_ = s.stream.CloseCallback()
		return fmt.Errorf("capture: start device %q: %w", s.params.DeviceName, err)
	}

	s.doneCh = make(chan struct{})
	s.setRunning(true)
	slog.Info("capture started",
		"device", s.params.DeviceName,
		"rate", s.params.SamplingRate,
		"channels_physical", s.params.TotalChannels,
		"channels_logical", s.params.LogicalChannels)

	// PortAudio drives the callback on its own thread; Start blocks only
	// until Stop tears the stream down, mirroring the spec's "Start
	// returns only when stop is observed" contract even though the
	// capture loop itself lives in audioCallback rather than here.
	<-s.stopped()
	return nil
}

// stopped is a tiny helper channel so Start can block without a busy
// loop; it is recreated each Start and closed by Stop.
func (s *PortAudioSource) stopped() <-chan struct{} {
	if s.doneCh == nil {
		s.doneCh = make(chan struct{})
	}
	return s.doneCh
}

// audioCallback runs on PortAudio's audio thread. It is the real-time
// capture loop: no allocation, no logging, no locking beyond the single
// guarded running flag (which it only reads, via Running). It filters the marker
// channel and publishes directly into the ring.
func (s *PortAudioSource) audioCallback(
	input, output []byte,
	frameCount uint,
	timeInfo *portaudio.StreamCallbackTimeInfo,
	statusFlags portaudio.StreamCallbackFlags,
) portaudio.StreamCallbackResult {
	if !s.Running() {
		return portaudio.Complete
	}

	s.publish(input, int(frameCount), s.onOverflow)

	return portaudio.Continue
}

// Stop requests the device to drain (graceful) or drop (forced) and
// blocks until the stream has closed.
func (s *PortAudioSource) Stop(graceful bool) error {
	if !s.Running() {
		return nil
	}
	s.setRunning(false)

	var err error
	if s.stream != nil {
		if stopErr := s.stream.StopStream(); stopErr != nil {
			err = errors.Join(err, stopErr)
		}
		if closeErr := s.stream.CloseCallback(); closeErr != nil {
			err = errors.Join(err, closeErr)
		}
	}

	if s.doneCh != nil {
		close(s.doneCh)
	}

	if err != nil {
		return fmt.Errorf("capture: stop: %w", roomcasterr.ErrDeviceUnrecoverable)
	}
	return nil
}
