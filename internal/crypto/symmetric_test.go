package crypto

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"testing"
)

func TestAESCTRRoundTrip(t *testing.T) {
	for _, size := range []int{0, 1, 15, 16, 17, 64, 1000} {
		key := make([]byte, AESKeySize)
		iv := make([]byte, IVSize)
		plaintext := make([]byte, size)
		for _, b := range [][]byte{key, iv, plaintext} {
			if _, err := rand.Read(b); err != nil {
				t.Fatalf("rand failed: %v", err)
			}
		}
		ciphertext, err := AESCTR(key, iv, plaintext)
		if err != nil {
			t.Fatalf("encrypt failed: %v", err)
		}
		if size >= 16 && bytes.Equal(ciphertext, plaintext) {
			t.Fatalf("ciphertext equals plaintext for size %d", size)
		}
		decrypted, err := AESCTR(key, iv, ciphertext)
		if err != nil {
			t.Fatalf("decrypt failed: %v", err)
		}
		if !bytes.Equal(decrypted, plaintext) {
			t.Fatalf("round trip mismatch for size %d", size)
		}
	}
}

func TestAESCTRAcceptsLegacyKeySize(t *testing.T) {
	key := bytes.Repeat([]byte{7}, 32)
	iv := bytes.Repeat([]byte{9}, IVSize)
	ciphertext, err := AESCTR(key, iv, []byte("seed"))
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	plain, err := AESCTR(key, iv, ciphertext)
	if err != nil || string(plain) != "seed" {
		t.Fatalf("unexpected legacy round trip: %q, %v", plain, err)
	}
}

func TestAESCTRRejectsBadSizes(t *testing.T) {
	if _, err := AESCTR(make([]byte, 15), make([]byte, IVSize), nil); !errors.Is(err, ErrInvalidKeyLength) {
		t.Fatalf("expected ErrInvalidKeyLength for short key, got %v", err)
	}
	if _, err := AESCTR(make([]byte, AESKeySize), make([]byte, 8), nil); !errors.Is(err, ErrInvalidKeyLength) {
		t.Fatalf("expected ErrInvalidKeyLength for short iv, got %v", err)
	}
}

func TestAESCTRKnownVector(t *testing.T) {
	// NIST SP 800-38A F.5.1 CTR-AES128.Encrypt, first block.
	key, _ := hex.DecodeString("2b7e151628aed2a6abf7158809cf4f3c")
	iv, _ := hex.DecodeString("f0f1f2f3f4f5f6f7f8f9fafbfcfdfeff")
	plaintext, _ := hex.DecodeString("6bc1bee22e409f96e93d7e117393172a")
	got, err := AESCTR(key, iv, plaintext)
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	if want := "874d6191b620e3261bef6864990db6ce"; hex.EncodeToString(got) != want {
		t.Fatalf("unexpected ciphertext: %x", got)
	}
}

func TestConcatKDF(t *testing.T) {
	secret := []byte("shared-secret")

	out := ConcatKDF(secret, 32)
	if len(out) != 32 {
		t.Fatalf("unexpected output length: %d", len(out))
	}
	first := sha256.Sum256(append([]byte{0, 0, 0, 1}, secret...))
	if !bytes.Equal(out, first[:]) {
		t.Fatal("first block must be SHA256(counter=1 || secret)")
	}

	long := ConcatKDF(secret, 33)
	if len(long) != 64 {
		t.Fatalf("expected two whole blocks, got %d bytes", len(long))
	}
	second := sha256.Sum256(append([]byte{0, 0, 0, 2}, secret...))
	if !bytes.Equal(long[:32], first[:]) || !bytes.Equal(long[32:], second[:]) {
		t.Fatal("blocks must be concatenated in counter order")
	}
}

func TestDoubleSHA256(t *testing.T) {
	once := sha256.Sum256([]byte("abc"))
	twice := sha256.Sum256(once[:])
	if !bytes.Equal(DoubleSHA256([]byte("abc")), twice[:]) {
		t.Fatal("double sha256 mismatch")
	}
}

func TestUvarint(t *testing.T) {
	cases := []struct {
		value uint64
		want  string
	}{
		{0, "00"},
		{1, "01"},
		{71, "47"},
		{127, "7f"},
		{128, "8001"},
		{300, "ac02"},
		{16384, "808001"},
	}
	for _, tc := range cases {
		got := AppendUvarint(nil, tc.value)
		if hex.EncodeToString(got) != tc.want {
			t.Fatalf("varint(%d) = %x, want %s", tc.value, got, tc.want)
		}
		if UvarintLen(tc.value) != len(got) {
			t.Fatalf("UvarintLen(%d) = %d, want %d", tc.value, UvarintLen(tc.value), len(got))
		}
		v, n, err := ReadUvarint(got)
		if err != nil || v != tc.value || n != len(got) {
			t.Fatalf("ReadUvarint(%x) = %d, %d, %v", got, v, n, err)
		}
	}
}

func TestDecodeHex(t *testing.T) {
	if _, err := DecodeHex("zz"); !errors.Is(err, ErrInvalidHex) {
		t.Fatalf("expected ErrInvalidHex, got %v", err)
	}
	if _, err := DecodeHex("abc"); !errors.Is(err, ErrInvalidHex) {
		t.Fatalf("expected ErrInvalidHex for odd length, got %v", err)
	}
	b, err := DecodeHex("00ff")
	if err != nil || !bytes.Equal(b, []byte{0, 0xff}) {
		t.Fatalf("unexpected decode: %x, %v", b, err)
	}
}
