// Package crypto holds the primitives shared by the credential vault and the
// message cipher.
//
// Contents
//
//   - AES-CTR stream encryption (AESCTR), used by both the vault and ECIES
//   - Counter-mode SHA-256 key expansion (ConcatKDF)
//   - HMAC-SHA256, SHA-256 and double SHA-256 helpers
//   - Unsigned base-128 varints (AppendUvarint, UvarintLen)
//   - ECIES over secp256k1 (ECIESEncrypt, ECIESDecrypt)
//
// Nothing in this package touches storage or logs; every function is a pure
// transformation of its inputs.
package crypto
