package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

// Compression applied to encoded artifacts.
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionZstd Compression = "zstd"
)

var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

var (
	zstdEncoder = sync.OnceValues(func() (*zstd.Encoder, error) {
		return zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	})
	zstdDecoder = sync.OnceValues(func() (*zstd.Decoder, error) {
		return zstd.NewReader(nil)
	})
)

// envelope is the persisted form of every artifact. Payload holds the
// model's own JSON encoding.
type envelope struct {
	Kind      Slot            `json:"kind"`
	RunID     string          `json:"run_id"`
	CreatedAt time.Time       `json:"created_at"`
	Payload   json.RawMessage `json:"payload"`
}

func encodeEnvelope(env envelope, c Compression) ([]byte, error) {
	raw, err := json.Marshal(env)
	if err != nil {
		return nil, err
	}
	switch c {
	case CompressionZstd:
		enc, err := zstdEncoder()
		if err != nil {
			return nil, err
		}
		return enc.EncodeAll(raw, make([]byte, 0, len(raw)/2)), nil
	case CompressionNone, "":
		return raw, nil
	default:
		return nil, fmt.Errorf("unknown compression %q", c)
	}
}

// decodeEnvelope sniffs the zstd frame magic, so artifacts written with either
// compression setting stay readable.
func decodeEnvelope(data []byte) (envelope, error) {
	var env envelope
	if bytes.HasPrefix(data, zstdMagic) {
		dec, err := zstdDecoder()
		if err != nil {
			return env, err
		}
		data, err = dec.DecodeAll(data, nil)
		if err != nil {
			return env, fmt.Errorf("decompress artifact: %w", err)
		}
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return env, fmt.Errorf("decode artifact: %w", err)
	}
	return env, nil
}
