package encryption

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	gmath "github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/crypto/ecies"
	"golang.org/x/crypto/hkdf"
)

// SharedKeySize is the length of the symmetric key used for vote commands.
const SharedKeySize = 32

var sharedKeyInfo = []byte("committed-cart/vote-command/v1")

// SharedKey is the symmetric key agreed between a contributor and the coordinator.
type SharedKey []byte

// Keypair is a contributor's message encryption keypair on secp256k1.
type Keypair struct {
	PrivateKey *ecdsa.PrivateKey
}

// KeypairFromSeed derives a keypair deterministically from seed. The same seed
// always yields the same keypair, so a contributor can recover the key that
// sealed their earlier messages.
func KeypairFromSeed(seed string) (*Keypair, error) {
	if seed == "" {
		return nil, ErrEmptySeed
	}

	// Map the digest into [1, N-1].
	n := crypto.S256().Params().N
	d := new(big.Int).SetBytes(Keccak256([]byte(seed)))
	d.Mod(d, new(big.Int).Sub(n, big.NewInt(1)))
	d.Add(d, big.NewInt(1))

	privateKey, err := crypto.ToECDSA(gmath.PaddedBigBytes(d, 32))
	if err != nil {
		return nil, fmt.Errorf("failed to derive private key: %w", err)
	}
	return &Keypair{PrivateKey: privateKey}, nil
}

// PublicKey returns the public half of the keypair.
func (k *Keypair) PublicKey() *ecdsa.PublicKey {
	return &k.PrivateKey.PublicKey
}

// PublicKeyBytes returns the compressed public key.
func (k *Keypair) PublicKeyBytes() []byte {
	return crypto.CompressPubkey(&k.PrivateKey.PublicKey)
}

// PublicKeyHex returns the 0x-prefixed compressed public key.
func (k *Keypair) PublicKeyHex() string {
	return FormatPublicKey(&k.PrivateKey.PublicKey)
}

// FormatPublicKey encodes pub as 0x-prefixed compressed hex.
func FormatPublicKey(pub *ecdsa.PublicKey) string {
	return hexutil.Encode(crypto.CompressPubkey(pub))
}

// ParsePublicKey decodes a hex public key in compressed (33 byte) or
// uncompressed (65 byte) form. The 0x prefix is optional.
func ParsePublicKey(s string) (*ecdsa.PublicKey, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	return PublicKeyFromBytes(raw)
}

// PublicKeyFromBytes decodes a compressed or uncompressed public key.
func PublicKeyFromBytes(raw []byte) (*ecdsa.PublicKey, error) {
	var (
		pub *ecdsa.PublicKey
		err error
	)
	switch len(raw) {
	case 33:
		pub, err = crypto.DecompressPubkey(raw)
	case 65:
		pub, err = crypto.UnmarshalPubkey(raw)
	default:
		return nil, fmt.Errorf("%w: unexpected length %d", ErrInvalidPublicKey, len(raw))
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	return pub, nil
}

// DeriveSharedKey performs ECDH between privateKey and peer and stretches the
// x coordinate of the shared point with HKDF-SHA256.
func DeriveSharedKey(privateKey *ecdsa.PrivateKey, peer *ecdsa.PublicKey) (SharedKey, error) {
	if privateKey == nil || peer == nil {
		return nil, ErrInvalidPublicKey
	}

	secret, err := ecies.ImportECDSA(privateKey).GenerateShared(ecies.ImportECDSAPublic(peer), SharedKeySize, 0)
	if err != nil {
		return nil, fmt.Errorf("ECDH: %w", err)
	}

	kdf := hkdf.New(sha256.New, secret, nil, sharedKeyInfo)
	key := make([]byte, SharedKeySize)
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("derive shared key: %w", err)
	}
	return SharedKey(key), nil
}
