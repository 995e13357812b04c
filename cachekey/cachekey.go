// Package cachekey computes the key a query result is cached under.
//
// The key is a BLAKE2b-256 digest over a version tag, the canonical
// encoding of the plan, and the identity of every shard the plan reads.
// Plans that differ only in how the query was spelled encode the same, so
// they share a key.  A change to any shard's ID or document count changes
// the key so stale results are never served.
package cachekey

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"hash"

	"github.com/brimdata/sift/backend"
	"github.com/brimdata/sift/compiler/dag"
	"golang.org/x/crypto/blake2b"
)

// version is bumped whenever plan encoding or execution semantics change
// in a way that alters results.
const version = "sift-cache-v1"

type Key [blake2b.Size256]byte

func (k Key) String() string {
	return hex.EncodeToString(k[:])
}

func (k Key) IsZero() bool {
	return k == Key{}
}

func Parse(s string) (Key, error) {
	var k Key
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != len(k) {
		return k, fmt.Errorf("invalid cache key %q", s)
	}
	copy(k[:], b)
	return k, nil
}

// Compute returns the key of plan run over shards, which holds the shards
// of each dataset of the plan in dataset order.
func Compute(plan *dag.Plan, shards [][]backend.Shard) (Key, error) {
	if len(shards) != len(plan.Datasets) {
		return Key{}, fmt.Errorf("plan has %d datasets but %d shard lists", len(plan.Datasets), len(shards))
	}
	b, err := plan.Canonical()
	if err != nil {
		return Key{}, err
	}
	h, err := blake2b.New256(nil)
	if err != nil {
		return Key{}, err
	}
	writeBytes(h, []byte(version))
	writeBytes(h, b)
	for _, list := range shards {
		writeInt(h, int64(len(list)))
		for _, s := range list {
			writeBytes(h, []byte(s.ID))
			writeInt(h, s.Docs)
		}
	}
	var k Key
	h.Sum(k[:0])
	return k, nil
}

func writeBytes(h hash.Hash, b []byte) {
	writeInt(h, int64(len(b)))
	h.Write(b)
}

func writeInt(h hash.Hash, v int64) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(v))
	h.Write(buf[:])
}
