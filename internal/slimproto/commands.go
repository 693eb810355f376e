package slimproto

import "encoding/binary"

// Helo is the client's initial announcement. Device id, MAC and UUID
// are exactly as spec.md §4.7/§8 scenario 2 describes: a fixed 36-byte
// body following the 8-byte inbound header.
type Helo struct {
	DeviceID      byte
	Revision      byte
	MAC           [6]byte
	UUID          [16]byte
	WLANChannels  uint16
	BytesReceived uint64
}

func decodeHelo(body []byte) Helo {
	var h Helo
	if len(body) < 36 {
		return h
	}
	h.DeviceID = body[0]
	h.Revision = body[1]
	copy(h.MAC[:], body[2:8])
	copy(h.UUID[:], body[8:24])
	h.WLANChannels = binary.BigEndian.Uint16(body[24:26])
	h.BytesReceived = binary.BigEndian.Uint64(body[26:34])
	return h
}

// Stat is a periodic client status report. Event is one of the STMx
// codes named in spec.md §4.7 (STMc = data socket connected) and
// supplemented from original_source/ (STMu = underrun, STMd = decoder
// ready, STMe = end of stream, STMs = track started) for telemetry.
type Stat struct {
	Event           string
	BufferFullness  uint32
	ElapsedMillis   uint32
	ServerTimestamp uint32
}

const (
	EventConnected     = "STMc"
	EventUnderrun      = "STMu"
	EventDecoderReady  = "STMd"
	EventEndOfStream   = "STMe"
	EventTrackStarted  = "STMs"
)

func decodeStat(body []byte) Stat {
	var s Stat
	if len(body) < 16 {
		return s
	}
	s.Event = string(body[0:4])
	s.BufferFullness = binary.BigEndian.Uint32(body[4:8])
	s.ElapsedMillis = binary.BigEndian.Uint32(body[8:12])
	s.ServerTimestamp = binary.BigEndian.Uint32(body[12:16])
	return s
}

// Dsco is a disconnect notice; the single reason byte is logged only.
type Dsco struct {
	Reason byte
}

func decodeDsco(body []byte) Dsco {
	if len(body) < 1 {
		return Dsco{}
	}
	return Dsco{Reason: body[0]}
}

// outbound command opcodes, always 4 ASCII bytes.
const (
	opStrm = "strm"
	opAudg = "audg"
	opAude = "aude"
	opSetd = "setd"
)

// frame wraps opcode+body with the outbound 2-byte big-endian length
// prefix spec.md §4.7 specifies for server→client commands.
func frame(opcode string, body []byte) []byte {
	out := make([]byte, 2+4+len(body))
	binary.BigEndian.PutUint16(out[0:2], uint16(4+len(body)))
	copy(out[2:6], opcode)
	copy(out[6:], body)
	return out
}

type StrmSubcommand byte

const (
	StrmStart    StrmSubcommand = 's'
	StrmStop     StrmSubcommand = 'q'
	StrmTime     StrmSubcommand = 't'
	StrmPause    StrmSubcommand = 'p'
	StrmUnpause  StrmSubcommand = 'u'
)

// EncodeStrmStop asks the client to halt the current stream.
func EncodeStrmStop() []byte {
	body := make([]byte, 23)
	body[0] = byte(StrmStop)
	return frame(opStrm, body)
}

// EncodeStrmTime sends a timing ping; the client echoes serverTimestamp
// back in its next STAT so the caller can correlate round-trip delay.
func EncodeStrmTime(serverTimestamp uint32) []byte {
	body := make([]byte, 23)
	body[0] = byte(StrmTime)
	binary.BigEndian.PutUint32(body[19:23], serverTimestamp)
	return frame(opStrm, body)
}

// EncodeStrmStart tells the client to open its data socket to serverPort
// and begin decoding formatByte ('p' PCM, 'f' FLAC) at samplingRate. The
// client id is appended as the conventional trailing HTTP request the
// client replays verbatim against the data channel.
func EncodeStrmStart(serverPort uint16, formatByte byte, samplingRate int, clientID string) []byte {
	body := make([]byte, 23)
	body[0] = byte(StrmStart)
	body[2] = formatByte
	body[3] = sampleRateCode(samplingRate)
	binary.BigEndian.PutUint16(body[14:16], serverPort)
	body = append(body, []byte("GET /stream?player="+clientID+" HTTP/1.0\r\n\r\n")...)
	return frame(opStrm, body)
}

// sampleRateCode maps a handful of common rates to the single-byte code
// slimproto historically used; any other rate falls back to 0, the same
// code as 11025 Hz.
func sampleRateCode(rate int) byte {
	switch rate {
	case 11025:
		return 0
	case 22050:
		return 1
	case 32000:
		return 2
	case 44100:
		return 3
	case 48000:
		return 4
	case 8000:
		return 5
	case 12000:
		return 6
	case 16000:
		return 7
	case 96000:
		return 9
	default:
		return 0
	}
}

const (
	SetdRequestName byte = 0
	SetdSqueezebox3 byte = 1
)

// EncodeSetd requests or sets a device setting identified by id; value
// is only meaningful for settings the client expects a string payload
// for (SetdSqueezebox3 sends its own id as value, per real-world usage).
func EncodeSetd(id byte, value string) []byte {
	body := append([]byte{id}, []byte(value)...)
	return frame(opSetd, body)
}

// EncodeAude enables or disables the SPDIF output and the onboard DAC.
func EncodeAude(spdifEnable, dacEnable bool) []byte {
	body := make([]byte, 2)
	body[0] = boolByte(spdifEnable)
	body[1] = boolByte(dacEnable)
	return frame(opAude, body)
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

const unityGain uint32 = 0x10000

// EncodeAudgDefault sets unity gain on both channels.
func EncodeAudgDefault() []byte {
	body := make([]byte, 16)
	binary.BigEndian.PutUint32(body[0:4], unityGain)
	binary.BigEndian.PutUint32(body[4:8], unityGain)
	binary.BigEndian.PutUint32(body[8:12], unityGain)
	binary.BigEndian.PutUint32(body[12:16], unityGain)
	return frame(opAudg, body)
}
