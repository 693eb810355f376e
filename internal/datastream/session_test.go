package datastream

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drgolem/roomcast/internal/chunk"
	"github.com/drgolem/roomcast/internal/encoder"
	"github.com/drgolem/roomcast/internal/roomcasterr"
)

// P5 / scenario 1.
func TestExtractClientIDAfterFirstEquals(t *testing.T) {
	id, ok := ExtractClientID("player=00:11:22:33:44:55 HTTP/1.1\r\n\r\n")
	require.True(t, ok)
	assert.Equal(t, "00:11:22:33:44:55", id)
}

func TestExtractClientIDNoEqualsReturnsFalse(t *testing.T) {
	_, ok := ExtractClientID("player HTTP/1.1")
	assert.False(t, ok)
}

type fakeConn struct {
	writes  [][]byte
	closed  bool
	closeOrder *[]string
}

func (f *fakeConn) Write(b []byte) (int, error) {
	cp := make([]byte, len(b))
	copy(cp, b)
	f.writes = append(f.writes, cp)
	return len(b), nil
}

func (f *fakeConn) Close() error {
	f.closed = true
	if f.closeOrder != nil {
		*f.closeOrder = append(*f.closeOrder, "socket")
	}
	return nil
}

func TestHandleOpeningRequestRejectsNonGet(t *testing.T) {
	s := NewSession(&fakeConn{}, "roomcast", "1.0")
	err := s.HandleOpeningRequest([]byte("POST /stream?player=aa:bb HTTP/1.1\r\n\r\n"))
	assert.ErrorIs(t, err, roomcasterr.ErrNotGet)
}

func TestHandleOpeningRequestRejectsMissingClientID(t *testing.T) {
	s := NewSession(&fakeConn{}, "roomcast", "1.0")
	err := s.HandleOpeningRequest([]byte("GET /stream HTTP/1.1\r\n\r\n"))
	assert.ErrorIs(t, err, roomcasterr.ErrMissingClientID)
}

func TestHandleOpeningRequestExtractsClientID(t *testing.T) {
	s := NewSession(&fakeConn{}, "roomcast", "1.0")
	err := s.HandleOpeningRequest([]byte("GET /stream?player=00:11:22:33:44:55 HTTP/1.1\r\n\r\n"))
	require.NoError(t, err)
	assert.Equal(t, "00:11:22:33:44:55", s.ClientID())
}

// fakeEncoder records Encode/Finish order for the P6 stop-ordering test.
type fakeEncoder struct {
	order    *[]string
	finished bool
}

func (f *fakeEncoder) Format() encoder.Format    { return encoder.FormatWave }
func (f *fakeEncoder) SampleRate() int           { return 44100 }
func (f *fakeEncoder) Channels() int             { return 2 }
func (f *fakeEncoder) BitsPerSample() int        { return 16 }
func (f *fakeEncoder) MIME() string              { return "audio/x-wav" }
func (f *fakeEncoder) Extension() string         { return ".wav" }
func (f *fakeEncoder) HeaderRequired() bool      { return true }
func (f *fakeEncoder) Encode(pcm []byte) error   { return nil }
func (f *fakeEncoder) Finish() error {
	f.finished = true
	if f.order != nil {
		*f.order = append(*f.order, "encoder")
	}
	return nil
}

// P6 / scenario 5: Stop invokes encoder-stop strictly before socket-stop.
func TestStopOrdersEncoderBeforeSocket(t *testing.T) {
	var order []string
	conn := &fakeConn{closeOrder: &order}
	s := NewSession(conn, "roomcast", "1.0")
	enc := &fakeEncoder{order: &order}
	s.Bind(enc, 44100)

	var gotErr error
	s.Stop(func(err error) { gotErr = err })

	require.NoError(t, gotErr)
	require.Equal(t, []string{"encoder", "socket"}, order)
	assert.Equal(t, 1, s.EncoderStopCount())
	assert.Equal(t, 1, s.SocketStopCount())
	assert.True(t, conn.closed)
}

// SendReply sources Content-Type from the bound encoder's MIME getter.
func TestSendReplyUsesBoundEncoderMIME(t *testing.T) {
	conn := &fakeConn{}
	s := NewSession(conn, "roomcast", "1.0")
	s.Bind(&fakeEncoder{}, 44100)

	require.NoError(t, s.SendReply())
	require.Len(t, conn.writes, 1)
	assert.Contains(t, string(conn.writes[0]), "Content-Type: audio/x-wav\r\n")
}

func TestOnChunkDropsMismatchedSamplingRate(t *testing.T) {
	conn := &fakeConn{}
	s := NewSession(conn, "roomcast", "1.0")
	enc := &fakeEncoder{}
	s.Bind(enc, 44100)

	c := chunk.New(16)
	c.SetLen(16)
	c.SetSamplingRate(48000)

	s.OnChunk(c)
	assert.Len(t, conn.writes, 0)
}

func TestStopPropagatesEncoderError(t *testing.T) {
	conn := &fakeConn{}
	s := NewSession(conn, "roomcast", "1.0")
	s.Bind(&erroringEncoder{}, 44100)

	var gotErr error
	s.Stop(func(err error) { gotErr = err })
	require.Error(t, gotErr)
}

type erroringEncoder struct{ fakeEncoder }

func (e *erroringEncoder) Finish() error { return errors.New("boom") }
