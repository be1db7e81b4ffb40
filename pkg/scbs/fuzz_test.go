// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package scbs

import (
	"bytes"
	"io"
	"math/rand"
	"os"
	"strconv"
	"testing"
	"time"
)

// getFuzzRounds returns the number of fuzz rounds from FUZZ_ROUNDS env var, default 1000
func getFuzzRounds() int {
	if envRounds := os.Getenv("FUZZ_ROUNDS"); envRounds != "" {
		if rounds, err := strconv.Atoi(envRounds); err == nil && rounds > 0 {
			return rounds
		}
	}
	return 1000
}

// getFuzzSeed returns the seed from FUZZ_SEED env var, or generates one from current time
func getFuzzSeed() int64 {
	if envSeed := os.Getenv("FUZZ_SEED"); envSeed != "" {
		if seed, err := strconv.ParseInt(envSeed, 10, 64); err == nil {
			return seed
		}
	}
	return time.Now().UnixNano()
}

// newFuzzRng creates a new random number generator and logs the seed for reproducibility
func newFuzzRng(t *testing.T) *rand.Rand {
	seed := getFuzzSeed()
	t.Logf("Seed: %d (reproduce with FUZZ_SEED=%d)", seed, seed)
	return rand.New(rand.NewSource(seed))
}

const fuzzAlphabet = "0123456789ABCDEFabcdef.-:_ ,*$\r\n"

// randomValue returns a printable value of 0-30 characters, possibly
// containing delimiters that must be clipped.
func randomValue(rng *rand.Rand) string {
	b := make([]byte, rng.Intn(31))
	for i := range b {
		b[i] = fuzzAlphabet[rng.Intn(len(fuzzAlphabet))]
	}
	return string(b)
}

// randomMessage builds a random packet of a random type
func randomMessage(rng *rand.Rand) Message {
	id := uint16(rng.Intn(65536))
	addr := rng.Uint32()
	switch PacketType(rng.Intn(NumPacketTypes)) {
	case PacketDiscover:
		return NewDiscover(id)
	case PacketMultiWrite:
		return NewMultiWrite(addr, randomValue(rng))
	case PacketMultiRead:
		values := make([]string, rng.Intn(MaxMultiValues+5))
		for i := range values {
			values[i] = randomValue(rng)
		}
		return NewMultiRead(addr, values...)
	case PacketSingleWrite:
		return NewSingleWrite(id, addr, randomValue(rng))
	case PacketSingleRead:
		return NewSingleRead(id, addr)
	default:
		return NewSingleResponse(id, randomValue(rng))
	}
}

// ============================================================
// Decoder Fuzz Tests
// ============================================================

// TestFuzzDecode_RandomBytes feeds random strings to the decoder
// and verifies it doesn't crash or panic
func TestFuzzDecode_RandomBytes(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)
	t.Logf("Running %d fuzz rounds", rounds)

	for i := 0; i < rounds; i++ {
		length := rng.Intn(300)
		data := make([]byte, length)
		rng.Read(data)
		if length > 0 && rng.Intn(2) == 0 {
			data[0] = StartToken
		}

		msg, err := Decode(string(data))
		if msg == nil && err == nil {
			t.Errorf("Round %d: nil message without error", i)
		}
	}
}

// TestFuzzDecode_RandomPackets builds random packets and verifies they
// decode back to the same frame
func TestFuzzDecode_RandomPackets(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)
	t.Logf("Running %d fuzz rounds", rounds)

	for i := 0; i < rounds; i++ {
		built := randomMessage(rng)
		if len(built.Raw()) > MaxPacketLen {
			t.Errorf("Round %d: frame too long (%d): %q", i, len(built.Raw()), built.Raw())
			continue
		}

		msg, err := Decode(built.Raw())
		if err != nil {
			t.Errorf("Round %d: unexpected decode error for %q: %v", i, built.Raw(), err)
			continue
		}
		if msg.Type() != built.Type() {
			t.Errorf("Round %d: type mismatch: expected %v, got %v", i, built.Type(), msg.Type())
		}
		if msg.Encode() != built.Raw() {
			t.Errorf("Round %d: re-encode mismatch: expected %q, got %q", i, built.Raw(), msg.Encode())
		}
	}
}

// TestFuzzDecode_CorruptedPackets corrupts one checksummed byte of a valid
// packet and verifies the packet is rejected
func TestFuzzDecode_CorruptedPackets(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)
	t.Logf("Running %d fuzz rounds", rounds)

	for i := 0; i < rounds; i++ {
		raw := []byte(randomMessage(rng).Raw())
		end := bytes.IndexByte(raw, EndToken)

		idx := rng.Intn(end-1) + 1 // between '$' and '*'
		corrupted := raw[idx] ^ byte(rng.Intn(255)+1)
		if corrupted == EndToken {
			continue
		}
		raw[idx] = corrupted

		if ParsePacket(string(raw)).IsValid() {
			t.Errorf("Round %d: corrupted packet accepted: %q", i, raw)
		}
	}
}

// ============================================================
// Capture Fuzz Tests
// ============================================================

func TestFuzzCapture_RoundTrip(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)

	var buf bytes.Buffer
	w, err := NewCaptureWriter(&buf)
	if err != nil {
		t.Fatal(err)
	}

	want := make([]CaptureRecord, rounds)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range want {
		want[i] = CaptureRecord{
			Time:      base.Add(time.Duration(rng.Int63n(int64(time.Hour)))),
			Direction: Direction(rng.Intn(2)),
			Line:      randomMessage(rng).Raw(),
		}
		if err := w.Write(want[i]); err != nil {
			t.Fatalf("Round %d: %v", i, err)
		}
	}

	r := NewCaptureReader(&buf)
	for i := range want {
		got, err := r.Next()
		if err != nil {
			t.Fatalf("Round %d: %v", i, err)
		}
		if !got.Time.Equal(want[i].Time) || got.Direction != want[i].Direction || got.Line != want[i].Line {
			t.Errorf("Round %d: got %+v, want %+v", i, got, want[i])
		}
	}
	if _, err := r.Next(); err != io.EOF {
		t.Errorf("expected io.EOF after last record, got %v", err)
	}
}
