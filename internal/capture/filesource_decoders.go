package capture

import (
	"fmt"
	"os"

	"github.com/youpy/go-wav"

	goflac "github.com/drgolem/go-flac/flac"
	"github.com/drgolem/go-mpg123/mpg123"
)

// wavFileDecoder adapts github.com/youpy/go-wav to FileDecoder, grounded
// on the teacher's pkg/decoders/wav/wav.go.
type wavFileDecoder struct {
	file     *os.File
	reader   *wav.Reader
	rate     int
	channels int
	bps      int
}

func newWavFileDecoder() *wavFileDecoder { return &wavFileDecoder{} }

func (d *wavFileDecoder) Open(fileName string) error {
	f, err := os.Open(fileName)
	if err != nil {
		return fmt.Errorf("open wav: %w", err)
	}
	r := wav.NewReader(f)
	format, err := r.Format()
	if err != nil {
		f.Close()
		return fmt.Errorf("read wav format: %w", err)
	}
	d.file, d.reader = f, r
	d.rate, d.channels, d.bps = int(format.SampleRate), int(format.NumChannels), int(format.BitsPerSample)
	return nil
}

func (d *wavFileDecoder) Close() error {
	if d.file != nil {
		return d.file.Close()
	}
	return nil
}

func (d *wavFileDecoder) GetFormat() (int, int, int) { return d.rate, d.channels, d.bps }

func (d *wavFileDecoder) DecodeSamples(samples int, audio []byte) (int, error) {
	bytesPerSample := d.bps / 8
	total := 0
	for i := 0; i < samples; i++ {
		data, err := d.reader.ReadSamples(1)
		if err != nil || len(data) == 0 {
			return total, err
		}
		for ch := 0; ch < d.channels; ch++ {
			if ch >= len(data[0].Values) {
				break
			}
			off := (total*d.channels + ch) * bytesPerSample
			if off+bytesPerSample > len(audio) {
				return total, nil
			}
			v := data[0].Values[ch]
			for b := 0; b < bytesPerSample; b++ {
				audio[off+b] = byte(v >> (8 * b))
			}
		}
		total++
	}
	return total, nil
}

// flacFileDecoder adapts github.com/drgolem/go-flac's decode side to
// FileDecoder, grounded on the teacher's pkg/decoders/flac/flac.go.
type flacFileDecoder struct {
	decoder  *goflac.FlacDecoder
	rate     int
	channels int
	bps      int
}

func newFlacFileDecoder() *flacFileDecoder { return &flacFileDecoder{} }

func (d *flacFileDecoder) Open(fileName string) error {
	dec, err := goflac.NewFlacFrameDecoder(16)
	if err != nil {
		return fmt.Errorf("create flac decoder: %w", err)
	}
	if err := dec.Open(fileName); err != nil {
		dec.Delete()
		return fmt.Errorf("open flac %s: %w", fileName, err)
	}
	d.decoder = dec
	d.rate, d.channels, d.bps = dec.GetFormat()
	return nil
}

func (d *flacFileDecoder) Close() error {
	if d.decoder != nil {
		d.decoder.Close()
		d.decoder.Delete()
		d.decoder = nil
	}
	return nil
}

func (d *flacFileDecoder) GetFormat() (int, int, int) { return d.rate, d.channels, d.bps }

func (d *flacFileDecoder) DecodeSamples(samples int, audio []byte) (int, error) {
	if d.decoder == nil {
		return 0, fmt.Errorf("flac decoder not initialized")
	}
	return d.decoder.DecodeSamples(samples, audio)
}

// mp3FileDecoder adapts github.com/drgolem/go-mpg123 to FileDecoder,
// grounded on the teacher's pkg/decoders/mp3/mp3.go.
type mp3FileDecoder struct {
	decoder  *mpg123.Decoder
	rate     int
	channels int
	encoding int
}

func newMp3FileDecoder() *mp3FileDecoder { return &mp3FileDecoder{} }

func (d *mp3FileDecoder) Open(fileName string) error {
	dec, err := mpg123.NewDecoder("")
	if err != nil {
		return fmt.Errorf("create mp3 decoder: %w", err)
	}
	if err := dec.Open(fileName); err != nil {
		dec.Delete()
		return fmt.Errorf("open mp3 %s: %w", fileName, err)
	}
	d.decoder = dec
	d.rate, d.channels, d.encoding = dec.GetFormat()
	return nil
}

func (d *mp3FileDecoder) Close() error {
	if d.decoder != nil {
		d.decoder.Close()
		d.decoder.Delete()
		d.decoder = nil
	}
	return nil
}

func (d *mp3FileDecoder) GetFormat() (int, int, int) { return d.rate, d.channels, 16 }

func (d *mp3FileDecoder) DecodeSamples(samples int, audio []byte) (int, error) {
	if d.decoder == nil {
		return 0, fmt.Errorf("mp3 decoder not initialized")
	}
	return d.decoder.DecodeSamples(samples, audio)
}
