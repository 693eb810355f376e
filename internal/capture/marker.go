package capture

import "errors"

var errParamsInvariant = errors.New("capture: physical_channels must be >= logical_channels + 1")

// Marker is the tri-state tag carried by the last byte of the last
// (sacrificial) channel of every captured frame.
type Marker byte

const (
	MarkerData  Marker = 0
	MarkerBegin Marker = 1
	MarkerEnd   Marker = 2
)

// Params describes a capture Source's geometry. Physical channels must be
// at least LogicalChannels+1: one channel is sacrificed to carry the
// per-frame stream marker and never reaches the downstream chunk.
type Params struct {
	DeviceName       string
	TotalChannels    int // physical channels the device delivers
	LogicalChannels  int // channels forwarded downstream (normally TotalChannels-1)
	SampleFormat     SampleFormat
	SamplingRate     int
	FramesPerChunk   int
	Periods          int
	RingCapacity     int
}

// SampleFormat enumerates the PCM sample encodings the capture path
// understands. Only the bit width matters for marker-channel stripping
// and frame-size math; byte order is whatever the device driver delivers
// (assumed little-endian, matching every signed-PCM capture backend in
// the pack).
type SampleFormat int

const (
	SampleFormatS16LE SampleFormat = iota
	SampleFormatS24LE
	SampleFormatS32LE
)

// BytesPerSample returns the on-wire width of one sample in one channel.
func (f SampleFormat) BytesPerSample() int {
	switch f {
	case SampleFormatS16LE:
		return 2
	case SampleFormatS24LE:
		return 3
	case SampleFormatS32LE:
		return 4
	default:
		return 2
	}
}

// Validate checks the physical/logical channel invariant from spec §3.
func (p Params) Validate() error {
	if p.TotalChannels < p.LogicalChannels+1 {
		return errParamsInvariant
	}
	return nil
}

// frameBytes returns the byte width of one physical frame (all channels,
// including the sacrificial marker channel).
func (p Params) frameBytes() int {
	return p.TotalChannels * p.SampleFormat.BytesPerSample()
}

// logicalFrameBytes returns the byte width of one forwarded frame (just
// the logical channels, marker stripped).
func (p Params) logicalFrameBytes() int {
	return p.LogicalChannels * p.SampleFormat.BytesPerSample()
}

// markerOf extracts the tri-state tag from the last byte of the last
// channel of a physical frame starting at offset off within buf.
func (p Params) markerOf(buf []byte, off int) Marker {
	bytesPerSample := p.SampleFormat.BytesPerSample()
	lastChannelStart := off + (p.TotalChannels-1)*bytesPerSample
	tag := buf[lastChannelStart+bytesPerSample-1]
	switch tag {
	case byte(MarkerBegin):
		return MarkerBegin
	case byte(MarkerEnd):
		return MarkerEnd
	default:
		return MarkerData
	}
}

// filterFrames scans physicalBuf (numFrames physical frames, frameBytes()
// wide each) starting from a streaming state, copying the logical channels
// of every frame tagged Data-while-streaming into dst (which must be at
// least numFrames*logicalFrameBytes() long). It returns the number of
// logical frames written and the streaming state to carry into the next
// call.
//
// This is the marker filter at the heart of P2/scenario 4: only bytes
// between a Begin and an End, on frames tagged Data, are ever emitted.
func (p Params) filterFrames(physicalBuf []byte, numFrames int, streaming bool, dst []byte) (written int, nextStreaming bool) {
	fb := p.frameBytes()
	lfb := p.logicalFrameBytes()
	bytesPerSample := p.SampleFormat.BytesPerSample()

	for i := 0; i < numFrames; i++ {
		off := i * fb
		m := p.markerOf(physicalBuf, off)

		switch m {
		case MarkerBegin:
			streaming = true
			continue
		case MarkerEnd:
			streaming = false
			continue
		}

		// m == MarkerData
		if !streaming {
			continue
		}

		copy(dst[written*lfb:(written+1)*lfb], physicalBuf[off:off+p.LogicalChannels*bytesPerSample])
		written++
	}

	return written, streaming
}
