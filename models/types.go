// File: models/types.go
package models

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// RoundInfo is the funding round configuration needed to rebuild a cart.
type RoundInfo struct {
	FundingRoundAddress      common.Address `json:"funding_round_address"`
	CoordinatorPubKey        string         `json:"coordinator_pub_key"`
	VoiceCreditFactor        *big.Int       `json:"voice_credit_factor"`
	NativeTokenDecimals      int            `json:"native_token_decimals"`
	NativeTokenAddress       common.Address `json:"native_token_address"`
	NativeTokenSymbol        string         `json:"native_token_symbol,omitempty"`
	RecipientRegistryAddress common.Address `json:"recipient_registry_address"`
}

// EncryptedMessage is one entry of a contributor's append-only message log.
// Data holds the AES-GCM nonce followed by the sealed command.
type EncryptedMessage struct {
	ID          string `json:"id"`
	Data        []byte `json:"data"`
	EncPubKey   []byte `json:"enc_pub_key"`
	BlockNumber uint64 `json:"block_number"`
	LogIndex    uint64 `json:"log_index"`
	Timestamp   int64  `json:"timestamp"`
}
