package main

import (
	"fmt"
	"strconv"

	"github.com/dgryski/go-skip32"
)

// ElementIDs turns currency ids into html element ids. With a key the ids
// are skip32 obfuscated so page markup does not leak api row ids.
type ElementIDs struct {
	cipher *skip32.Skip32
}

func newElementIDs(key []byte) (*ElementIDs, error) {
	if len(key) == 0 {
		return &ElementIDs{}, nil
	}
	cipher, err := skip32.New(key)
	if err != nil {
		return nil, fmt.Errorf("ELEMENT_ID_KEY must be 10 bytes, got %d: %w", len(key), err)
	}
	return &ElementIDs{cipher: cipher}, nil
}

// encode splits id into high/low uint32s and skip32s each half. Output is
// always [0-9a-f] so it can be appended to a js identifier.
func (e *ElementIDs) encode(id int64) string {
	if e == nil || e.cipher == nil {
		return strconv.FormatUint(uint64(id), 10)
	}
	u := uint64(id)
	if (u >> 32) != 0 {
		return fmt.Sprintf("%08x%08x", e.cipher.Obfus(uint32(u>>32)), e.cipher.Obfus(uint32(u&0xFFFFFFFF)))
	}
	return fmt.Sprintf("%08x", e.cipher.Obfus(uint32(u)))
}
