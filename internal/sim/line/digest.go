package line

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
)

// StateDigest hashes the full observable state of the line: slot contents,
// worker hands/countdowns, and per-kind collected counts, all in stable
// roster order. Two lines fed the same draw sequence must agree on every
// step's digest; replay verification depends on it.
func (l *Line) StateDigest() string {
	h := sha256.New()
	var buf [8]byte

	writeU64 := func(v uint64) {
		binary.LittleEndian.PutUint64(buf[:], v)
		h.Write(buf[:])
	}
	writeStr := func(s string) {
		writeU64(uint64(len(s)))
		h.Write([]byte(s))
	}

	writeU64(l.step.Load())

	for _, s := range l.belt.slots {
		writeStr(string(s))
	}

	for i, w := range l.belt.workers {
		writeU64(uint64(i))
		writeStr(w.ID)
		writeU64(uint64(w.Pos))
		writeStr(string(w.Left))
		writeStr(string(w.Right))
		writeU64(uint64(w.Countdown))
		if w.holding != nil {
			writeStr(string(w.holding.ID))
		} else {
			writeStr("")
		}
		if w.acted {
			writeU64(1)
		} else {
			writeU64(0)
		}
	}

	for _, k := range l.belt.genKinds {
		writeStr(string(k.ID))
		writeU64(k.collected)
	}
	for _, k := range l.belt.finished {
		writeStr(string(k.ID))
		writeU64(k.collected)
	}

	return hex.EncodeToString(h.Sum(nil))
}
