package models

import "math/big"

// VoteCommand is the plaintext carried by an EncryptedMessage. The field
// order is the wire order of the RLP encoding.
type VoteCommand struct {
	StateIndex      uint64
	NewPubKey       []byte
	VoteOptionIndex uint64
	NewVoteWeight   *big.Int
	Nonce           uint64
	PollID          uint64
	Salt            []byte
}
