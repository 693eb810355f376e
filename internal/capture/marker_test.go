package capture

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func frame(p Params, channelValue byte, marker Marker) []byte {
	bps := p.SampleFormat.BytesPerSample()
	f := make([]byte, p.frameBytes())
	for ch := 0; ch < p.TotalChannels; ch++ {
		f[ch*bps] = channelValue
	}
	// stamp the marker into the last byte of the last channel
	f[p.frameBytes()-1] = byte(marker)
	return f
}

// TestMarkerFilterScenario is spec.md §8 scenario 4, literally: frames
// tagged B,D,D,E,D,D must emit exactly the two D frames between B and E.
func TestMarkerFilterScenario(t *testing.T) {
	p := Params{TotalChannels: 2, LogicalChannels: 1, SampleFormat: SampleFormatS16LE}
	tags := []Marker{MarkerBegin, MarkerData, MarkerData, MarkerEnd, MarkerData, MarkerData}

	var physical []byte
	for i, m := range tags {
		physical = append(physical, frame(p, byte(10+i), m)...)
	}

	dst := make([]byte, len(tags)*p.logicalFrameBytes())
	written, streaming := p.filterFrames(physical, len(tags), false, dst)

	require.Equal(t, 2, written)
	assert.False(t, streaming, "End leaves streaming false; trailing Data frames never set it back")

	bps := p.SampleFormat.BytesPerSample()
	assert.Equal(t, byte(11), dst[0*bps], "first emitted frame is the one right after Begin")
	assert.Equal(t, byte(12), dst[1*bps], "second emitted frame is the one right before End")
}

// TestMarkerFilterNeverEmitsOutsideBeginEnd is P2, generalized: for any
// sequence of tagged frames, every emitted frame came from a Data frame
// that occurred after a Begin and before the next End.
func TestMarkerFilterNeverEmitsOutsideBeginEnd(t *testing.T) {
	p := Params{TotalChannels: 2, LogicalChannels: 1, SampleFormat: SampleFormatS16LE}

	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 64).Draw(t, "n")
		tags := make([]Marker, n)
		wantEmitted := make([]bool, n)
		streamingModel := false

		for i := range tags {
			choice := rapid.IntRange(0, 2).Draw(t, "tag")
			switch choice {
			case 0:
				tags[i] = MarkerBegin
				streamingModel = true
			case 1:
				tags[i] = MarkerEnd
				streamingModel = false
			default:
				tags[i] = MarkerData
				wantEmitted[i] = streamingModel
			}
		}

		var physical []byte
		for i, m := range tags {
			physical = append(physical, frame(p, byte(i), m)...)
		}

		dst := make([]byte, n*p.logicalFrameBytes())
		written, _ := p.filterFrames(physical, n, false, dst)

		wantCount := 0
		bps := p.SampleFormat.BytesPerSample()
		var wantValues []byte
		for i, want := range wantEmitted {
			if want {
				wantCount++
				wantValues = append(wantValues, byte(i))
			}
		}
		_ = bps

		require.Equal(t, wantCount, written)
		for i := 0; i < written; i++ {
			assert.Equal(t, wantValues[i], dst[i*p.logicalFrameBytes()])
		}
	})
}

// TestStreamingStateCarriesAcrossCalls ensures a Begin/End pair spanning
// two successive reads from the device is still honoured: the streaming
// bit is state, not scoped to one filterFrames call.
func TestStreamingStateCarriesAcrossCalls(t *testing.T) {
	p := Params{TotalChannels: 2, LogicalChannels: 1, SampleFormat: SampleFormatS16LE}

	first := append(frame(p, 1, MarkerBegin), frame(p, 2, MarkerData)...)
	dst1 := make([]byte, 2*p.logicalFrameBytes())
	written1, streaming := p.filterFrames(first, 2, false, dst1)
	require.Equal(t, 1, written1)
	require.True(t, streaming)

	second := append(frame(p, 3, MarkerData), frame(p, 4, MarkerEnd)...)
	dst2 := make([]byte, 2*p.logicalFrameBytes())
	written2, streaming2 := p.filterFrames(second, 2, streaming, dst2)
	require.Equal(t, 1, written2)
	assert.False(t, streaming2)
}
