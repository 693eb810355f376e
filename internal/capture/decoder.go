package capture

// FileDecoder is the minimal decoding contract FileSource needs from a
// file-backed audio format, mirrored from the teacher module's
// types.AudioDecoder interface (pkg/types/types.go) and narrowed to what
// offline capture simulation actually uses.
type FileDecoder interface {
	Open(fileName string) error
	Close() error
	GetFormat() (rate, channels, bitsPerSample int)
	DecodeSamples(samples int, audio []byte) (int, error)
}
