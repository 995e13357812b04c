package backend

import (
	"github.com/dchest/siphash"
)

// The keys are frozen.  Changing them reshuffles every random() group and
// every sample() of every client.
const (
	hashKey0 = 0x736966745f72616e
	hashKey1 = 0x646f6d5f73616c74
)

// Hash is the keyed hash behind random() regroups and sample() filters.
// It depends only on the salt and the value's text, so a metric and any
// rewriting of it that yields the same values hash alike.
func Hash(salt, value string) uint64 {
	b := make([]byte, 0, len(salt)+1+len(value))
	b = append(b, salt...)
	b = append(b, 0)
	b = append(b, value...)
	return siphash.Hash(hashKey0, hashKey1, b)
}

// Sampled reports whether a value with the given text is kept by a
// sample of numerator out of denominator.
func Sampled(salt, value string, numerator, denominator int64) bool {
	if denominator <= 0 {
		return false
	}
	return int64(Hash(salt, value)%uint64(denominator)) < numerator
}
