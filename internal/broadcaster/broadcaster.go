// Package broadcaster assembles the full pipeline (C1–C11) into one
// running process: a capture Source feeding a Multiplexor/Scheduler/
// Demultiplexor chain into the fan-out Streamer, with SlimProto control
// and HTTP data listeners accepting clients and attaching their
// sessions as they HELO and GET.
package broadcaster

import (
	"bytes"
	"fmt"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/drgolem/roomcast/internal/asyncio"
	"github.com/drgolem/roomcast/internal/capture"
	"github.com/drgolem/roomcast/internal/chunk"
	"github.com/drgolem/roomcast/internal/config"
	"github.com/drgolem/roomcast/internal/datastream"
	"github.com/drgolem/roomcast/internal/discovery"
	"github.com/drgolem/roomcast/internal/encoder"
	"github.com/drgolem/roomcast/internal/pipeline"
	"github.com/drgolem/roomcast/internal/scheduler"
	"github.com/drgolem/roomcast/internal/slimproto"
	"github.com/drgolem/roomcast/internal/streamer"
	"github.com/drgolem/roomcast/internal/transport"
)

const (
	writerPoolSize = 4
	writerBufSize  = 64 * 1024
)

// Broadcaster owns every long-lived component of a running server:
// the capture source, the scheduler driving it into the fan-out
// Streamer, the SlimProto and HTTP listeners, and (optionally) the
// discovery responders.
type Broadcaster struct {
	cfg *config.Config

	source capture.Source
	mux    *pipeline.Multiplexor
	demux  *pipeline.Demultiplexor
	sched  *scheduler.Scheduler

	streamer      *streamer.Streamer
	encoderFormat encoder.Format
	formatByte    byte

	recordFile *os.File
	recordEnc  encoder.Encoder

	slimSrv *transport.Server
	dataSrv *transport.Server

	udpResponder *discovery.UDPResponder
	announcer    *discovery.Announcer
}

// New validates cfg and wires every component, but starts nothing.
func New(cfg *config.Config) (*Broadcaster, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	sampleFormat, err := sampleFormatOf(cfg.SampleFormat)
	if err != nil {
		return nil, err
	}

	var source capture.Source
	if cfg.InputFile != "" {
		// Offline testing path (spec.md §6): decode a file instead of
		// capturing live audio, driving the rest of the pipeline exactly
		// as a real device would.
		fileSource, err := capture.NewFileSource(cfg.InputFile, cfg.FramesPerChunk, cfg.RingCapacity)
		if err != nil {
			return nil, fmt.Errorf("broadcaster: init file source: %w", err)
		}
		source = fileSource
		// The file dictates the real sampling rate; downstream encoder
		// options and late-join negotiation must agree with it rather
		// than whatever a live-capture config happened to specify.
		cfg.SamplingRate = fileSource.SamplingRate()
	} else {
		params := capture.Params{
			DeviceName:      cfg.CaptureDevice,
			TotalChannels:   cfg.PhysicalChannels,
			LogicalChannels: cfg.LogicalChannels,
			SampleFormat:    sampleFormat,
			SamplingRate:    cfg.SamplingRate,
			FramesPerChunk:  cfg.FramesPerChunk,
			Periods:         cfg.Periods,
			RingCapacity:    cfg.RingCapacity,
		}

		portAudioSource, err := capture.NewPortAudioSource(cfg.DeviceIndex, params)
		if err != nil {
			return nil, fmt.Errorf("broadcaster: init capture source: %w", err)
		}
		source = portAudioSource
	}

	encFormat, formatByte, err := encodingOf(cfg.EncoderFormat)
	if err != nil {
		return nil, err
	}

	st := streamer.New(uint16(cfg.HTTPPort), formatByte)

	b := &Broadcaster{
		cfg:           cfg,
		source:        source,
		streamer:      st,
		encoderFormat: encFormat,
		formatByte:    formatByte,
	}

	if cfg.RecordPath != "" {
		// Offline file output (spec.md §6): a second encoder instance,
		// bound to a StreamWriter over a regular file instead of a
		// client socket, fed the same chunks as the fan-out Streamer.
		bitsPerSample, err := bitsPerSampleOf(cfg.SampleFormat)
		if err != nil {
			return nil, err
		}

		recordFile, err := os.Create(cfg.RecordPath)
		if err != nil {
			return nil, fmt.Errorf("broadcaster: create record file: %w", err)
		}

		recordEnc, err := encoder.NewBuilder().
			WithFormat(encFormat).
			WithSink(asyncio.NewStreamWriter(recordFile)).
			WithOptions(encoder.Options{
				SampleRate:       cfg.SamplingRate,
				Channels:         cfg.LogicalChannels,
				BitsPerSample:    bitsPerSample,
				CompressionLevel: cfg.FlacCompressionLevel,
			}).
			Build()
		if err != nil {
			_ = recordFile.Close()
			return nil, fmt.Errorf("broadcaster: build record encoder: %w", err)
		}

		b.recordFile = recordFile
		b.recordEnc = recordEnc
	}

	b.mux = pipeline.NewMultiplexor(source)
	b.demux = pipeline.NewDemultiplexor(&streamerConsumer{st: st, rec: b.recordEnc})
	b.sched = scheduler.New(b.mux, b.demux, b.onSchedulerError)

	b.slimSrv = transport.NewServer(fmt.Sprintf(":%d", cfg.SlimprotoPort), 0, b.newSlimprotoCallbacks)
	b.dataSrv = transport.NewServer(fmt.Sprintf(":%d", cfg.HTTPPort), 0, b.newDataCallbacks)

	return b, nil
}

// Start launches the capture device, the scheduler, and both listeners.
// It returns once everything is running; failures after that point are
// logged rather than returned, matching the teacher's long-running
// service style (see pkg/audioplayer/player.go's Start/Stop pairing).
func (b *Broadcaster) Start() error {
	go func() {
		if err := b.source.Start(b.onOverflow); err != nil {
			slog.Error("broadcaster: capture source stopped with error", "error", err)
		}
	}()

	b.sched.Start()

	go func() {
		if err := b.slimSrv.Start(); err != nil {
			slog.Error("broadcaster: slimproto server stopped", "error", err)
		}
	}()
	go func() {
		if err := b.dataSrv.Start(); err != nil {
			slog.Error("broadcaster: data server stopped", "error", err)
		}
	}()

	if b.cfg.DiscoveryPort > 0 {
		b.udpResponder = discovery.NewUDPResponder(b.cfg.ProductName)
		if err := b.udpResponder.Start(fmt.Sprintf(":%d", b.cfg.DiscoveryPort)); err != nil {
			slog.Warn("broadcaster: discovery udp responder failed to start", "error", err)
			b.udpResponder = nil
		}
	}

	if announcer, err := discovery.Announce(b.cfg.ProductName, b.cfg.SlimprotoPort); err != nil {
		slog.Warn("broadcaster: dns-sd announce failed", "error", err)
	} else {
		b.announcer = announcer
	}

	slog.Info("broadcaster: started",
		"slimproto_port", b.cfg.SlimprotoPort,
		"http_port", b.cfg.HTTPPort,
		"format", b.encoderFormat,
		"rate", b.cfg.SamplingRate)
	return nil
}

// Stop tears every component down in reverse dependency order: the
// capture device and scheduler first (no more chunks produced), then
// the listeners, then discovery.
func (b *Broadcaster) Stop() error {
	var err error
	if stopErr := b.mux.Stop(true, nil); stopErr != nil {
		err = stopErr
	}
	b.sched.Stop()

	if stopErr := b.slimSrv.Stop(); stopErr != nil && err == nil {
		err = stopErr
	}
	if stopErr := b.dataSrv.Stop(); stopErr != nil && err == nil {
		err = stopErr
	}

	if b.udpResponder != nil {
		_ = b.udpResponder.Stop()
	}
	if b.announcer != nil {
		b.announcer.Stop()
	}

	if b.recordEnc != nil {
		if finishErr := b.recordEnc.Finish(); finishErr != nil && err == nil {
			err = finishErr
		}
	}
	if b.recordFile != nil {
		if closeErr := b.recordFile.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}

	return err
}

func (b *Broadcaster) onOverflow() {
	slog.Warn("broadcaster: capture ring overflow, dropping chunk")
}

// onSchedulerError is the scheduler's fail-fast hook: a quantum panic
// means the capture device or an encoder is in a state the pipeline
// cannot recover from, so the whole broadcaster stops rather than
// spinning on a broken producer.
func (b *Broadcaster) onSchedulerError(err error) {
	slog.Error("broadcaster: scheduler stopped irrecoverably", "error", err)
	go func() {
		_ = b.Stop()
	}()
}

// lateJoin answers a freshly-HELO'd client with the stream already in
// progress, if one is, so it can skip straight to Streaming instead of
// waiting idle in Negotiated for the next renegotiation.
func (b *Broadcaster) lateJoin() (serverPort uint16, formatByte byte, samplingRate int, ok bool) {
	if !b.source.Running() {
		return 0, 0, 0, false
	}
	return uint16(b.cfg.HTTPPort), b.formatByte, b.cfg.SamplingRate, true
}

// newSlimprotoCallbacks builds the per-connection Callbacks for the
// control listener. The Session itself is created in OnOpen, once the
// accepted socket has been wrapped in a *transport.Connection — that's
// what gives Session's outbound writes the Connection's serialized,
// concurrency-safe Write.
func (b *Broadcaster) newSlimprotoCallbacks(conn net.Conn) transport.Callbacks {
	var session *slimproto.Session

	return transport.Callbacks{
		OnOpen: func(c *transport.Connection) {
			session = slimproto.NewSession(c, slimproto.Options{
				LateJoin: b.lateJoin,
				OnClientID: func(clientID string) {
					b.streamer.AddClient(clientID, session)
				},
				OnStatEvent: func(clientID string, st slimproto.Stat) {
					slog.Debug("slimproto: stat", "client", clientID, "event", st.Event, "elapsed", st.ElapsedMillis)
				},
			})
		},
		OnData: func(c *transport.Connection, buf []byte, ts time.Time) {
			if session == nil {
				return
			}
			if err := session.HandleData(buf); err != nil {
				slog.Warn("slimproto: protocol violation, closing", "remote", c.RemoteAddr(), "error", err)
				_ = c.Close()
			}
		},
		OnClose: func(c *transport.Connection, err error) {
			if session != nil && session.ClientID() != "" {
				b.streamer.RemoveClient(session.ClientID())
			}
		},
	}
}

// newDataCallbacks builds the per-connection Callbacks for the HTTP
// data listener: parse the opening GET, bind an encoder sized to the
// negotiated format, reply, and attach to the Streamer.
func (b *Broadcaster) newDataCallbacks(conn net.Conn) transport.Callbacks {
	var (
		sess       *datastream.Session
		headerBuf  []byte
		headerDone bool
	)

	return transport.Callbacks{
		OnOpen: func(c *transport.Connection) {
			sess = datastream.NewSession(c, b.cfg.ProductName, b.cfg.ProductVersion)
		},
		OnData: func(c *transport.Connection, buf []byte, ts time.Time) {
			if headerDone {
				return
			}
			headerBuf = append(headerBuf, buf...)
			if !bytes.Contains(headerBuf, []byte("\r\n\r\n")) {
				return
			}
			headerDone = true

			if err := sess.HandleOpeningRequest(headerBuf); err != nil {
				slog.Warn("datastream: rejecting connection", "remote", c.RemoteAddr(), "error", err)
				_ = c.Close()
				return
			}

			bitsPerSample, err := bitsPerSampleOf(b.cfg.SampleFormat)
			if err != nil {
				slog.Error("datastream: bad sample format", "error", err)
				_ = c.Close()
				return
			}

			sink := asyncioBufferedSink(c)
			enc, err := encoder.NewBuilder().
				WithFormat(b.encoderFormat).
				WithSink(sink).
				WithOptions(encoder.Options{
					SampleRate:       b.cfg.SamplingRate,
					Channels:         b.cfg.LogicalChannels,
					BitsPerSample:    bitsPerSample,
					CompressionLevel: b.cfg.FlacCompressionLevel,
				}).
				Build()
			if err != nil {
				slog.Error("datastream: build encoder failed", "client", sess.ClientID(), "error", err)
				_ = c.Close()
				return
			}

			sess.Bind(enc, b.cfg.SamplingRate)
			if err := sess.SendReply(); err != nil {
				slog.Warn("datastream: send reply failed", "client", sess.ClientID(), "error", err)
				_ = c.Close()
				return
			}

			b.streamer.AttachDataSession(sess.ClientID(), sess)
		},
		OnClose: func(c *transport.Connection, err error) {
			if sess != nil {
				sess.Stop(nil)
			}
		},
	}
}

// streamerConsumer adapts *streamer.Streamer to pipeline.Consumer: the
// Streamer does its own per-client rate bookkeeping, so it should
// receive every chunk regardless of rate rather than being bound to a
// single one. When rec is set (spec.md §6 offline file output), every
// chunk is also fed to it — the Demultiplexor routes each chunk to
// exactly one Consumer, so the record encoder rides along here rather
// than competing for the same dispatch slot.
type streamerConsumer struct {
	st  *streamer.Streamer
	rec encoder.Encoder
}

func (s *streamerConsumer) SamplingRate() int { return pipeline.AnyRate }
func (s *streamerConsumer) OnChunk(c *chunk.Chunk) {
	s.st.OnChunk(c)
	if s.rec != nil {
		if err := s.rec.Encode(c.Bytes()); err != nil {
			slog.Error("broadcaster: record encoder write failed", "error", err)
		}
	}
}
