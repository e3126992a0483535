package securestore

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	envelopeVersion = 1
	saltSize        = 16
	filePrefix      = "CFSTORE1\n"
)

var (
	ErrAuthFailed = errors.New("securestore authentication failed")
	ErrInvalid    = errors.New("securestore envelope is invalid")
	ErrLegacyData = errors.New("securestore legacy plaintext data")
)

// Envelope wraps a whole store file. The KDF parameters are recorded so a
// file stays readable if the defaults change.
type Envelope struct {
	Version     uint32 `json:"version"`
	KDF         string `json:"kdf"`
	KDFTime     uint32 `json:"kdf_time"`
	KDFMemoryKB uint32 `json:"kdf_memory_kb"`
	KDFThreads  uint8  `json:"kdf_threads"`
	Salt        []byte `json:"salt"`
	Nonce       []byte `json:"nonce"`
	Ciphertext  []byte `json:"ciphertext"`
}

func Encrypt(passphrase string, plaintext []byte) ([]byte, error) {
	env, err := EncryptEnvelope(passphrase, plaintext)
	if err != nil {
		return nil, err
	}
	return marshalEnvelope(env)
}

func EncryptEnvelope(passphrase string, plaintext []byte) (*Envelope, error) {
	salt, err := newSalt()
	if err != nil {
		return nil, err
	}
	key := deriveKey(passphrase, salt)
	defer zeroBytes(key)
	return sealEnvelope(key, salt, plaintext)
}

func Decrypt(passphrase string, data []byte) ([]byte, error) {
	env, err := parseEnvelope(data)
	if err != nil {
		return nil, err
	}
	return DecryptEnvelope(passphrase, env)
}

func DecryptEnvelope(passphrase string, env *Envelope) ([]byte, error) {
	if err := checkEnvelope(env); err != nil {
		return nil, err
	}
	key := deriveKey(passphrase, env.Salt)
	defer zeroBytes(key)
	return openEnvelope(key, env)
}

func marshalEnvelope(env *Envelope) ([]byte, error) {
	raw, err := json.Marshal(env)
	if err != nil {
		return nil, err
	}
	return append([]byte(filePrefix), raw...), nil
}

func parseEnvelope(data []byte) (*Envelope, error) {
	if !strings.HasPrefix(string(data), filePrefix) {
		return nil, ErrLegacyData
	}
	var env Envelope
	if err := json.Unmarshal(data[len(filePrefix):], &env); err != nil {
		return nil, ErrInvalid
	}
	return &env, nil
}

// checkEnvelope accepts only the current format and KDF cost.
func checkEnvelope(env *Envelope) error {
	if env == nil || env.Version != envelopeVersion || env.KDF != "argon2id" {
		return ErrInvalid
	}
	if env.KDFTime != argonTime || env.KDFMemoryKB != argonMemoryKB || env.KDFThreads != argonThreads {
		return ErrInvalid
	}
	if len(env.Salt) != saltSize {
		return ErrInvalid
	}
	return nil
}

func sealEnvelope(key, salt, plaintext []byte) (*Envelope, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return &Envelope{
		Version:     envelopeVersion,
		KDF:         "argon2id",
		KDFTime:     argonTime,
		KDFMemoryKB: argonMemoryKB,
		KDFThreads:  argonThreads,
		Salt:        salt,
		Nonce:       nonce,
		Ciphertext:  aead.Seal(nil, nonce, plaintext, []byte(filePrefix)),
	}, nil
}

func openEnvelope(key []byte, env *Envelope) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	if len(env.Nonce) != aead.NonceSize() {
		return nil, ErrInvalid
	}
	plaintext, err := aead.Open(nil, env.Nonce, env.Ciphertext, []byte(filePrefix))
	if err != nil {
		return nil, ErrAuthFailed
	}
	return plaintext, nil
}

func newSalt() ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	return salt, nil
}

const (
	argonTime     = uint32(2)
	argonMemoryKB = uint32(64 * 1024)
	argonThreads  = uint8(1)
)

// deriveKey is a variable so tests can count KDF runs.
var deriveKey = func(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, argonTime, argonMemoryKB, argonThreads, chacha20poly1305.KeySize)
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
