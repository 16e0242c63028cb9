package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/opencontainers/go-digest"
)

// ErrCorruptBlob is returned for a row whose icon blob cannot be decoded.
var ErrCorruptBlob = errors.New("corrupt icon blob")

// EncodeAll/DecodeAll are safe for concurrent use.
var blobEncoder, blobDecoder = newBlobCodec()

func newBlobCodec() (*zstd.Encoder, *zstd.Decoder) {
	enc, err := zstd.NewWriter(nil,
		zstd.WithEncoderConcurrency(1),
		zstd.WithLowerEncoderMem(true),
		zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		panic(fmt.Sprintf("store: zstd encoder: %v", err))
	}
	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		panic(fmt.Sprintf("store: zstd decoder: %v", err))
	}
	return enc, dec
}

// marshalBlob compresses b for storage. Empty input maps to NULL.
func marshalBlob(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return blobEncoder.EncodeAll(b, make([]byte, 0, len(b)/2))
}

// unmarshalBlob reverses marshalBlob.
func unmarshalBlob(b []byte) ([]byte, error) {
	if len(b) == 0 {
		return nil, nil
	}
	out, err := blobDecoder.DecodeAll(b, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptBlob, err)
	}
	return out, nil
}

// blobDigest fingerprints uncompressed icon bytes. Empty input has no digest.
func blobDigest(b []byte) sql.NullString {
	if len(b) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: digest.FromBytes(b).String(), Valid: true}
}

// verifyBlob checks b against a stored digest. Rows written without a
// digest (no icon) verify trivially.
func verifyBlob(b []byte, stored sql.NullString) error {
	if !stored.Valid {
		if len(b) != 0 {
			return fmt.Errorf("%w: missing digest", ErrCorruptBlob)
		}
		return nil
	}
	want, err := digest.Parse(stored.String)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptBlob, err)
	}
	if digest.FromBytes(b) != want {
		return fmt.Errorf("%w: digest mismatch", ErrCorruptBlob)
	}
	return nil
}

// nullString maps "" to NULL for the nullable text columns.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
