package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdsa"
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"committed-cart/models"
)

// signedCommand is the plaintext sealed inside a message.
type signedCommand struct {
	Command   models.VoteCommand
	Signature []byte
}

// DecryptedCommand is a vote command recovered from a message, along with the
// signature its author attached.
type DecryptedCommand struct {
	Command   models.VoteCommand
	Signature []byte
}

// CommandHash returns the digest signed by the command author.
func CommandHash(cmd *models.VoteCommand) ([]byte, error) {
	enc, err := rlp.EncodeToBytes(cmd)
	if err != nil {
		return nil, fmt.Errorf("encode command: %w", err)
	}
	return Keccak256(enc), nil
}

// EncryptCommand signs cmd with signer and seals it under key. The signer's
// compressed public key is stored on the message and bound as additional data.
func EncryptCommand(cmd *models.VoteCommand, signer *ecdsa.PrivateKey, key SharedKey) (*models.EncryptedMessage, error) {
	if cmd.NewVoteWeight == nil {
		return nil, ErrMissingVoteWeight
	}

	hash, err := CommandHash(cmd)
	if err != nil {
		return nil, err
	}
	sig, err := Sign(hash, signer)
	if err != nil {
		return nil, fmt.Errorf("sign command: %w", err)
	}

	plaintext, err := rlp.EncodeToBytes(&signedCommand{Command: *cmd, Signature: sig})
	if err != nil {
		return nil, fmt.Errorf("encode command: %w", err)
	}

	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	encPubKey := crypto.CompressPubkey(&signer.PublicKey)
	return &models.EncryptedMessage{
		Data:      gcm.Seal(nonce, nonce, plaintext, encPubKey),
		EncPubKey: encPubKey,
	}, nil
}

// DecryptCommand opens msg with key and decodes the vote command inside.
func DecryptCommand(msg *models.EncryptedMessage, key SharedKey) (*DecryptedCommand, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonceSize := gcm.NonceSize()
	if len(msg.Data) < nonceSize+gcm.Overhead() {
		return nil, ErrMessageTooShort
	}

	nonce, ciphertext := msg.Data[:nonceSize], msg.Data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, msg.EncPubKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}

	var decoded signedCommand
	if err := rlp.DecodeBytes(plaintext, &decoded); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCommand, err)
	}
	if decoded.Command.NewVoteWeight == nil {
		decoded.Command.NewVoteWeight = new(big.Int)
	}

	return &DecryptedCommand{
		Command:   decoded.Command,
		Signature: decoded.Signature,
	}, nil
}

// Verify checks the command signature against publicKey.
func (d *DecryptedCommand) Verify(publicKey *ecdsa.PublicKey) error {
	hash, err := CommandHash(&d.Command)
	if err != nil {
		return err
	}
	if !VerifySignature(hash, d.Signature, publicKey) {
		return ErrInvalidSignature
	}
	return nil
}

func newGCM(key SharedKey) (cipher.AEAD, error) {
	if len(key) != SharedKeySize {
		return nil, ErrInvalidSharedKey
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}
	return gcm, nil
}
