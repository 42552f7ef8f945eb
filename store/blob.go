package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/TomHumphrey150/OpenJaw-sub004/cas"
)

var (
	codecOnce sync.Once
	encoder   *zstd.Encoder
	decoder   *zstd.Decoder
	codecErr  error
)

func codec() (*zstd.Encoder, *zstd.Decoder, error) {
	codecOnce.Do(func() {
		encoder, codecErr = zstd.NewWriter(nil)
		if codecErr != nil {
			return
		}
		decoder, codecErr = zstd.NewReader(nil)
	})
	return encoder, decoder, codecErr
}

// encodeBlob serializes v as canonical JSON and compresses it. The digest
// covers the uncompressed canonical bytes.
func encodeBlob(v any) (blob, digest []byte, err error) {
	raw, err := cas.CanonicalJSON(v)
	if err != nil {
		return nil, nil, fmt.Errorf("encoding blob: %w", err)
	}
	enc, _, err := codec()
	if err != nil {
		return nil, nil, fmt.Errorf("creating zstd codec: %w", err)
	}
	return enc.EncodeAll(raw, nil), cas.Digest(raw), nil
}

// decodeBlob decompresses blob, verifies it against digest and decodes it
// into v.
func decodeBlob(blob, digest []byte, v any) error {
	_, dec, err := codec()
	if err != nil {
		return fmt.Errorf("creating zstd codec: %w", err)
	}
	raw, err := dec.DecodeAll(blob, nil)
	if err != nil {
		return fmt.Errorf("decompressing blob: %w", err)
	}
	if !bytes.Equal(cas.Digest(raw), digest) {
		return ErrDigestMismatch
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decoding blob: %w", err)
	}
	return nil
}
