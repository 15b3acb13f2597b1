package subgraph

import (
	"context"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"committed-cart/models"
	"committed-cart/service"
)

const roundQuery = `query GetRoundInfo($fundingRoundAddress: ID!) {
  fundingRound(id: $fundingRoundAddress) {
    id
    coordinatorPubKey
    voiceCreditFactor
    nativeTokenAddress
    nativeTokenSymbol
    nativeTokenDecimals
    recipientRegistryAddress
  }
}`

type roundEntity struct {
	ID                       string `json:"id"`
	CoordinatorPubKey        string `json:"coordinatorPubKey"`
	VoiceCreditFactor        string `json:"voiceCreditFactor"`
	NativeTokenAddress       string `json:"nativeTokenAddress"`
	NativeTokenSymbol        string `json:"nativeTokenSymbol"`
	NativeTokenDecimals      string `json:"nativeTokenDecimals"`
	RecipientRegistryAddress string `json:"recipientRegistryAddress"`
}

type roundData struct {
	FundingRound *roundEntity `json:"fundingRound"`
}

// RoundInfo returns the configuration of the funding round at roundAddress.
func (c *Client) RoundInfo(ctx context.Context, roundAddress common.Address) (*models.RoundInfo, error) {
	vars := map[string]any{"fundingRoundAddress": strings.ToLower(roundAddress.Hex())}

	var data roundData
	if err := c.Query(ctx, roundQuery, vars, &data); err != nil {
		return nil, fmt.Errorf("fetch round %s: %w", roundAddress.Hex(), err)
	}
	if data.FundingRound == nil {
		return nil, fmt.Errorf("%w: %s", service.ErrRoundNotFound, roundAddress.Hex())
	}
	return data.FundingRound.decode(roundAddress)
}

func (e *roundEntity) decode(roundAddress common.Address) (*models.RoundInfo, error) {
	factor, ok := new(big.Int).SetString(e.VoiceCreditFactor, 10)
	if !ok {
		return nil, fmt.Errorf("round %s: invalid voice credit factor %q", e.ID, e.VoiceCreditFactor)
	}
	decimals, err := strconv.Atoi(e.NativeTokenDecimals)
	if err != nil {
		return nil, fmt.Errorf("round %s: invalid token decimals: %w", e.ID, err)
	}
	return &models.RoundInfo{
		FundingRoundAddress:      roundAddress,
		CoordinatorPubKey:        e.CoordinatorPubKey,
		VoiceCreditFactor:        factor,
		NativeTokenDecimals:      decimals,
		NativeTokenAddress:       common.HexToAddress(e.NativeTokenAddress),
		NativeTokenSymbol:        e.NativeTokenSymbol,
		RecipientRegistryAddress: common.HexToAddress(e.RecipientRegistryAddress),
	}, nil
}
