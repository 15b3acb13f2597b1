package service

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"committed-cart/amounts"
	"committed-cart/models"
)

var (
	ErrMissingRound  = errors.New("round info is required")
	ErrRoundNotFound = errors.New("funding round not found")
)

// MessageQuery selects the messages a contributor published in a round.
// ContributorKey and CoordinatorPubKey are 0x-prefixed hex public keys.
type MessageQuery struct {
	FundingRoundAddress common.Address
	ContributorKey      string
	CoordinatorPubKey   string
	ContributorAddress  common.Address
}

// MessageSource returns the full message history matching a query, oldest
// first. Paging and retries are the source's concern.
type MessageSource interface {
	FetchMessages(ctx context.Context, q MessageQuery) ([]*models.EncryptedMessage, error)
}

// ProjectLookup resolves a vote option index to a project. Implementations
// return registry.ErrProjectNotFound when the index is not registered.
type ProjectLookup interface {
	ProjectByIndex(ctx context.Context, registryAddress common.Address, index uint64) (*models.Project, error)
}

// RoundSource resolves a funding round address to its configuration.
type RoundSource interface {
	RoundInfo(ctx context.Context, roundAddress common.Address) (*models.RoundInfo, error)
}

// AmountFormatter renders a token amount for display.
type AmountFormatter func(value *big.Int, decimals int, locale *amounts.Locale, maxDecimals int) string
