package encryption

import (
	"crypto/ecdsa"
	"errors"

	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/sha3"
)

var (
	ErrEmptySeed         = errors.New("empty encryption seed")
	ErrInvalidPublicKey  = errors.New("invalid public key")
	ErrInvalidSharedKey  = errors.New("invalid shared key")
	ErrMessageTooShort   = errors.New("encrypted message too short")
	ErrDecryptionFailed  = errors.New("message decryption failed")
	ErrMalformedCommand  = errors.New("malformed vote command")
	ErrInvalidSignature  = errors.New("invalid command signature")
	ErrMissingVoteWeight = errors.New("vote command has no weight")
)

// Keccak256 computes Keccak-256 hash
func Keccak256(data ...[]byte) []byte {
	d := sha3.NewLegacyKeccak256()
	for _, b := range data {
		d.Write(b)
	}
	return d.Sum(nil)
}

// Sign signs a 32 byte digest with the given key.
func Sign(digest []byte, privateKey *ecdsa.PrivateKey) ([]byte, error) {
	return crypto.Sign(digest, privateKey)
}

// VerifySignature reports whether sig is a signature of digest by publicKey.
// Both the 65 byte recoverable form and the bare 64 byte form are accepted.
func VerifySignature(digest, sig []byte, publicKey *ecdsa.PublicKey) bool {
	if publicKey == nil || len(sig) < 64 {
		return false
	}
	return crypto.VerifySignature(crypto.CompressPubkey(publicKey), digest, sig[:64])
}
