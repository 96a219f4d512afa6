package terrain

import (
	"fmt"
	"math"
	"strconv"

	"github.com/fxamacker/cbor/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/klauspost/compress/zstd"

	"github.com/rileyhilliard/hfwatch/internal/errors"
)

// Format is the encoding of a snapshot payload.
type Format int

const (
	// FormatCBOR carries ±Inf and NaN natively. Default.
	FormatCBOR Format = iota
	// FormatJSON writes non-finite samples as "Infinity", "-Infinity" or "NaN".
	FormatJSON
)

func (f Format) String() string {
	switch f {
	case FormatCBOR:
		return "cbor"
	case FormatJSON:
		return "json"
	default:
		return fmt.Sprintf("unknown(%d)", int(f))
	}
}

// ParseFormat parses a format from its string representation.
func ParseFormat(name string) (Format, error) {
	switch name {
	case "cbor", "":
		return FormatCBOR, nil
	case "json":
		return FormatJSON, nil
	default:
		return 0, fmt.Errorf("unknown snapshot format: %q", name)
	}
}

// Compression is applied to the encoded payload.
type Compression int

const (
	CompressionNone Compression = iota
	CompressionZstd
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", int(c))
	}
}

// ParseCompression parses a compression from its string representation.
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "none", "":
		return CompressionNone, nil
	case "zstd":
		return CompressionZstd, nil
	default:
		return 0, fmt.Errorf("unknown compression: %q", name)
	}
}

// Codec pairs a format with a compression.
type Codec struct {
	Format      Format
	Compression Compression
}

// ParseCodec builds a Codec from config strings.
func ParseCodec(format, compression string) (Codec, error) {
	f, err := ParseFormat(format)
	if err != nil {
		return Codec{}, err
	}
	c, err := ParseCompression(compression)
	if err != nil {
		return Codec{}, err
	}
	return Codec{Format: f, Compression: c}, nil
}

func (c Codec) String() string {
	if c.Compression == CompressionNone {
		return c.Format.String()
	}
	return c.Format.String() + "+" + c.Compression.String()
}

// wireSnapshot is the object the inspector prints: {size, heightmap}.
type wireSnapshot struct {
	Size      int       `cbor:"size"`
	Heightmap []float32 `cbor:"heightmap"`
}

// jsonSnapshot is the JSON form. Samples are decoded as any so that the
// string spellings of non-finite values and null can be told apart.
type jsonSnapshot struct {
	Size      int           `json:"size"`
	Heightmap []interface{} `json:"heightmap"`
}

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	encMode cbor.EncMode
	decMode cbor.DecMode

	// zstdEncoder and zstdDecoder are reused across calls; both are safe
	// for concurrent EncodeAll/DecodeAll.
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("terrain: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		MaxArrayElements: MaxSize * MaxSize,
	}.DecMode()
	if err != nil {
		panic("terrain: CBOR decoder initialization failed: " + err.Error())
	}

	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("terrain: zstd encoder initialization failed: " + err.Error())
	}

	zstdDecoder, err = zstd.NewReader(nil, zstd.WithDecoderMaxMemory(1<<30))
	if err != nil {
		panic("terrain: zstd decoder initialization failed: " + err.Error())
	}
}

// Decode parses an inspector payload. The returned snapshot has no endpoint
// or fetch time; the caller fills those in.
func (c Codec) Decode(data []byte) (*Snapshot, error) {
	if c.Compression == CompressionZstd {
		raw, err := zstdDecoder.DecodeAll(data, nil)
		if err != nil {
			return nil, decodeError(err, "Snapshot payload isn't valid zstd")
		}
		data = raw
	}

	var (
		size    int
		heights []float32
	)

	switch c.Format {
	case FormatCBOR:
		var w wireSnapshot
		if err := decMode.Unmarshal(data, &w); err != nil {
			return nil, decodeError(err, "Snapshot payload isn't valid CBOR")
		}
		size, heights = w.Size, w.Heightmap
	case FormatJSON:
		var w jsonSnapshot
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, decodeError(err, "Snapshot payload isn't valid JSON")
		}
		heights = make([]float32, len(w.Heightmap))
		for i, v := range w.Heightmap {
			f, err := sampleFromJSON(v)
			if err != nil {
				return nil, decodeError(fmt.Errorf("heightmap[%d]: %w", i, err), "Snapshot payload has a bad sample")
			}
			heights[i] = f
		}
		size = w.Size
	default:
		return nil, decodeError(fmt.Errorf("format %s", c.Format), "Unsupported snapshot format")
	}

	if err := checkShape(size, len(heights)); err != nil {
		return nil, decodeError(err, "Snapshot payload has the wrong shape")
	}

	return &Snapshot{Size: size, Heights: heights}, nil
}

// Encode writes s in the inspector's wire form.
func (c Codec) Encode(s *Snapshot) ([]byte, error) {
	if s == nil {
		s = &Snapshot{}
	}

	var (
		data []byte
		err  error
	)

	switch c.Format {
	case FormatCBOR:
		data, err = encMode.Marshal(wireSnapshot{Size: s.Size, Heightmap: s.Heights})
	case FormatJSON:
		w := jsonSnapshot{Size: s.Size, Heightmap: make([]interface{}, len(s.Heights))}
		for i, v := range s.Heights {
			w.Heightmap[i] = sampleToJSON(v)
		}
		data, err = json.Marshal(w)
	default:
		err = fmt.Errorf("format %s", c.Format)
	}
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrInternal,
			"Couldn't encode snapshot",
			"")
	}

	if c.Compression == CompressionZstd {
		data = zstdEncoder.EncodeAll(data, nil)
	}
	return data, nil
}

// Decode parses data with the given format and compression.
func Decode(data []byte, f Format, c Compression) (*Snapshot, error) {
	return Codec{Format: f, Compression: c}.Decode(data)
}

// Encode writes s with the given format and compression.
func Encode(s *Snapshot, f Format, c Compression) ([]byte, error) {
	return Codec{Format: f, Compression: c}.Encode(s)
}

func sampleFromJSON(v interface{}) (float32, error) {
	switch t := v.(type) {
	case nil:
		return float32(math.NaN()), nil
	case float64:
		return float32(t), nil
	case string:
		switch t {
		case "NaN":
			return float32(math.NaN()), nil
		case "Infinity", "+Infinity":
			return float32(math.Inf(1)), nil
		case "-Infinity":
			return float32(math.Inf(-1)), nil
		}
		return 0, fmt.Errorf("unexpected string %q", t)
	default:
		return 0, fmt.Errorf("unexpected %T", v)
	}
}

func sampleToJSON(v float32) interface{} {
	f := float64(v)
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	return jsoniter.Number(strconv.FormatFloat(f, 'g', -1, 32))
}

func decodeError(err error, message string) error {
	return errors.WrapWithCode(err, errors.ErrDecode, message,
		"Check inspector.format and inspector.compression match what the inspector prints")
}
