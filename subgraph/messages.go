package subgraph

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/log"

	"committed-cart/models"
	"committed-cart/service"
)

const messagesQuery = `query GetContributorMessages($fundingRoundAddress: String!, $pubKey: String!, $contributorAddress: String!, $coordinatorPubKey: String!, $first: Int!, $skip: Int!) {
  messages(
    where: {
      fundingRound: $fundingRoundAddress
      publicKey: $pubKey
      submittedBy: $contributorAddress
      fundingRound_: { coordinatorPubKey: $coordinatorPubKey }
    }
    first: $first
    skip: $skip
    orderBy: blockNumber
    orderDirection: asc
  ) {
    id
    data
    publicKey
    blockNumber
    logIndex
    timestamp
  }
}`

type messageEntity struct {
	ID          string `json:"id"`
	Data        string `json:"data"`
	PublicKey   string `json:"publicKey"`
	BlockNumber string `json:"blockNumber"`
	LogIndex    string `json:"logIndex"`
	Timestamp   string `json:"timestamp"`
}

type messagesData struct {
	Messages []messageEntity `json:"messages"`
}

// FetchMessages returns every message the contributor published in the round,
// ordered by block number then log index.
func (c *Client) FetchMessages(ctx context.Context, q service.MessageQuery) ([]*models.EncryptedMessage, error) {
	vars := map[string]any{
		"fundingRoundAddress": strings.ToLower(q.FundingRoundAddress.Hex()),
		"pubKey":              strings.ToLower(q.ContributorKey),
		"contributorAddress":  strings.ToLower(q.ContributorAddress.Hex()),
		"coordinatorPubKey":   strings.ToLower(q.CoordinatorPubKey),
		"first":               c.config.PageSize,
	}

	messages := make([]*models.EncryptedMessage, 0)
	for skip := 0; ; skip += c.config.PageSize {
		vars["skip"] = skip

		var page messagesData
		if err := c.Query(ctx, messagesQuery, vars, &page); err != nil {
			return nil, fmt.Errorf("fetch messages page at %d: %w", skip, err)
		}
		for _, entity := range page.Messages {
			msg, err := entity.decode()
			if err != nil {
				return nil, err
			}
			messages = append(messages, msg)
		}
		log.Debug("Fetched message page", "round", q.FundingRoundAddress, "skip", skip, "count", len(page.Messages))

		if len(page.Messages) < c.config.PageSize {
			break
		}
	}

	sort.SliceStable(messages, func(i, j int) bool {
		if messages[i].BlockNumber != messages[j].BlockNumber {
			return messages[i].BlockNumber < messages[j].BlockNumber
		}
		return messages[i].LogIndex < messages[j].LogIndex
	})
	return messages, nil
}

func (e messageEntity) decode() (*models.EncryptedMessage, error) {
	data, err := hexutil.Decode(e.Data)
	if err != nil {
		return nil, fmt.Errorf("message %s: invalid data: %w", e.ID, err)
	}
	pubKey, err := hexutil.Decode(e.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("message %s: invalid public key: %w", e.ID, err)
	}
	blockNumber, err := parseUint(e.BlockNumber)
	if err != nil {
		return nil, fmt.Errorf("message %s: invalid block number: %w", e.ID, err)
	}
	logIndex, err := parseUint(e.LogIndex)
	if err != nil {
		return nil, fmt.Errorf("message %s: invalid log index: %w", e.ID, err)
	}
	timestamp, err := parseUint(e.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("message %s: invalid timestamp: %w", e.ID, err)
	}
	return &models.EncryptedMessage{
		ID:          e.ID,
		Data:        data,
		EncPubKey:   pubKey,
		BlockNumber: blockNumber,
		LogIndex:    logIndex,
		Timestamp:   int64(timestamp),
	}, nil
}

// parseUint reads a subgraph BigInt field. Missing fields decode as zero.
func parseUint(s string) (uint64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseUint(s, 10, 64)
}
