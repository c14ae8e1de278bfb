// Package snapshot persists engine state between runs. Values are
// msgpack-encoded, lz4 block-compressed when that pays off, and stored
// in a pebble database keyed by snapshot name.
package snapshot

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/pierrec/lz4"
	"github.com/ugorji/go/codec"

	"github.com/helixdex/godexd/internal/core/amm"
	"github.com/helixdex/godexd/internal/core/farm"
	"github.com/helixdex/godexd/internal/core/ledger"
	"github.com/helixdex/godexd/internal/core/lending"
	"github.com/helixdex/godexd/internal/core/orderbook"
)

// ErrNotFound is returned when no snapshot exists under the key.
var ErrNotFound = errors.New("snapshot not found")

// State is the full persisted engine state.
type State struct {
	Height  uint64                  `codec:"height"`
	At      uint64                  `codec:"at"`
	Ledger  ledger.BalancesSnapshot `codec:"ledger"`
	AMM     amm.RegistrySnapshot    `codec:"amm"`
	Farm    farm.FarmSnapshot       `codec:"farm"`
	Lending lending.LendingSnapshot `codec:"lending"`
	Orders  orderbook.BookSnapshot  `codec:"orders"`
}

// StateKey is the key the daemon saves and restores under.
const StateKey = "state/latest"

// Value layout: 1 flag byte (1 = lz4 block), 4 bytes big-endian
// uncompressed length, payload.
const (
	flagRaw        = 0x00
	flagLZ4        = 0x01
	headerSize     = 5
	minCompressLen = 128
)

// Store is a pebble-backed snapshot store.
type Store struct {
	db     *pebble.DB
	handle codec.MsgpackHandle
}

// Open opens (creating if needed) the store at dir.
func Open(dir string) (*Store, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open snapshot store at %s: %w", dir, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Save encodes and writes a value under the key, synced to disk.
func (s *Store) Save(key string, v interface{}) error {
	plain, err := s.encode(v)
	if err != nil {
		return fmt.Errorf("encode snapshot %s: %w", key, err)
	}
	stored := pack(plain)
	if err := s.db.Set([]byte(key), stored, pebble.Sync); err != nil {
		return fmt.Errorf("write snapshot %s: %w", key, err)
	}
	return nil
}

// Load reads and decodes the value under the key into out.
func (s *Store) Load(key string, out interface{}) error {
	stored, closer, err := s.db.Get([]byte(key))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return fmt.Errorf("read snapshot %s: %w", key, err)
	}
	plain, err := unpack(stored)
	closer.Close()
	if err != nil {
		return fmt.Errorf("snapshot %s: %w", key, err)
	}
	if err := codec.NewDecoderBytes(plain, &s.handle).Decode(out); err != nil {
		return fmt.Errorf("decode snapshot %s: %w", key, err)
	}
	return nil
}

func (s *Store) encode(v interface{}) ([]byte, error) {
	var plain []byte
	if err := codec.NewEncoderBytes(&plain, &s.handle).Encode(v); err != nil {
		return nil, err
	}
	return plain, nil
}

// Delete removes the snapshot under the key if present.
func (s *Store) Delete(key string) error {
	return s.db.Delete([]byte(key), pebble.Sync)
}

func pack(plain []byte) []byte {
	header := func(flag byte) []byte {
		h := make([]byte, headerSize)
		h[0] = flag
		binary.BigEndian.PutUint32(h[1:], uint32(len(plain)))
		return h
	}
	if len(plain) >= minCompressLen {
		dst := make([]byte, lz4.CompressBlockBound(len(plain)))
		if n, err := lz4.CompressBlock(plain, dst, nil); err == nil && n > 0 && n < len(plain) {
			return append(header(flagLZ4), dst[:n]...)
		}
	}
	return append(header(flagRaw), plain...)
}

func unpack(stored []byte) ([]byte, error) {
	if len(stored) < headerSize {
		return nil, fmt.Errorf("truncated value (%d bytes)", len(stored))
	}
	flag := stored[0]
	plainLen := binary.BigEndian.Uint32(stored[1:headerSize])
	body := stored[headerSize:]
	switch flag {
	case flagRaw:
		if uint32(len(body)) != plainLen {
			return nil, fmt.Errorf("length mismatch: header %d, body %d", plainLen, len(body))
		}
		out := make([]byte, len(body))
		copy(out, body)
		return out, nil
	case flagLZ4:
		out := make([]byte, plainLen)
		n, err := lz4.UncompressBlock(body, out)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress: %w", err)
		}
		if uint32(n) != plainLen {
			return nil, fmt.Errorf("length mismatch after decompress: header %d, got %d", plainLen, n)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown compression flag 0x%02x", flag)
	}
}
