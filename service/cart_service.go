package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"

	"committed-cart/amounts"
	"committed-cart/encryption"
	"committed-cart/models"
	"committed-cart/registry"
)

// Config tunes cart reconstruction.
type Config struct {
	// Concurrency caps the number of messages decrypted and resolved at once.
	Concurrency int

	// Display formatting of amounts
	MaxDecimals int
	Locale      *amounts.Locale
	Formatter   AmountFormatter
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Concurrency: 8,
		MaxDecimals: 1,
		Formatter:   amounts.FormatAmount,
	}
}

// CartService rebuilds a contributor's committed cart from their encrypted
// message history.
type CartService struct {
	messages MessageSource
	projects ProjectLookup
	config   *Config
	metrics  *MetricsCollector
}

// cartLine is the outcome for one message. ok is false when the message's
// vote option no longer maps to a project.
type cartLine struct {
	item *models.CartItem
	ok   bool
}

func NewCartService(messages MessageSource, projects ProjectLookup, config *Config) *CartService {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Formatter == nil {
		config.Formatter = amounts.FormatAmount
	}
	return &CartService{
		messages: messages,
		projects: projects,
		config:   config,
		metrics:  NewMetricsCollector(),
	}
}

func (cs *CartService) Metrics() *MetricsCollector {
	return cs.metrics
}

// GetCommittedCart returns the cart items implied by every message the
// contributor submitted to round, in message order. Messages whose vote
// option does not resolve to a project are skipped; any other failure aborts
// the whole reconstruction. Items are not deduplicated by vote option.
func (cs *CartService) GetCommittedCart(ctx context.Context, round *models.RoundInfo, encryptionKey string, contributorAddress common.Address) ([]*models.CartItem, error) {
	start := time.Now()
	items, stats, err := cs.reconstruct(ctx, round, encryptionKey, contributorAddress)
	cs.metrics.RecordReconstruction(time.Since(start), stats, err)
	if err != nil {
		log.Warn("Cart reconstruction failed", "contributor", contributorAddress, "err", err)
		return nil, err
	}

	log.Info("Reconstructed committed cart", "round", round.FundingRoundAddress, "contributor", contributorAddress,
		"messages", stats.messages, "items", stats.items, "skipped", stats.skipped, "elapsed", common.PrettyDuration(time.Since(start)))
	return items, nil
}

func (cs *CartService) reconstruct(ctx context.Context, round *models.RoundInfo, encryptionKey string, contributorAddress common.Address) ([]*models.CartItem, reconstructionStats, error) {
	var stats reconstructionStats
	if round == nil {
		return nil, stats, ErrMissingRound
	}

	keypair, err := encryption.KeypairFromSeed(encryptionKey)
	if err != nil {
		return nil, stats, fmt.Errorf("failed to derive contributor keypair: %w", err)
	}

	coordinatorKey, err := encryption.ParsePublicKey(round.CoordinatorPubKey)
	if err != nil {
		return nil, stats, fmt.Errorf("failed to parse coordinator public key: %w", err)
	}

	sharedKey, err := encryption.DeriveSharedKey(keypair.PrivateKey, coordinatorKey)
	if err != nil {
		return nil, stats, fmt.Errorf("failed to derive shared key: %w", err)
	}

	messages, err := cs.messages.FetchMessages(ctx, MessageQuery{
		FundingRoundAddress: round.FundingRoundAddress,
		ContributorKey:      keypair.PublicKeyHex(),
		CoordinatorPubKey:   round.CoordinatorPubKey,
		ContributorAddress:  contributorAddress,
	})
	if err != nil {
		return nil, stats, fmt.Errorf("failed to fetch contributor messages: %w", err)
	}
	stats.messages = len(messages)
	log.Debug("Fetched contributor messages", "contributor", contributorAddress, "count", len(messages))

	lines, err := orderedMap(ctx, cs.config.Concurrency, messages, func(ctx context.Context, msg *models.EncryptedMessage) (cartLine, error) {
		return cs.buildLine(ctx, round, sharedKey, msg)
	})
	if err != nil {
		return nil, stats, err
	}

	items := make([]*models.CartItem, 0, len(lines))
	for _, line := range lines {
		if !line.ok {
			stats.skipped++
			continue
		}
		if line.item.IsCleared {
			stats.cleared++
		}
		items = append(items, line.item)
	}
	stats.items = len(items)
	return items, stats, nil
}

func (cs *CartService) buildLine(ctx context.Context, round *models.RoundInfo, sharedKey encryption.SharedKey, msg *models.EncryptedMessage) (cartLine, error) {
	decrypted, err := encryption.DecryptCommand(msg, sharedKey)
	if err != nil {
		return cartLine{}, fmt.Errorf("failed to decrypt message %s: %w", msg.ID, err)
	}
	cmd := decrypted.Command

	amount := amounts.VoiceCreditAmount(cmd.NewVoteWeight, round.VoiceCreditFactor)

	project, err := cs.projects.ProjectByIndex(ctx, round.RecipientRegistryAddress, cmd.VoteOptionIndex)
	if errors.Is(err, registry.ErrProjectNotFound) || (err == nil && project == nil) {
		log.Debug("Skipping vote for unknown project", "message", msg.ID, "index", cmd.VoteOptionIndex)
		return cartLine{}, nil
	}
	if err != nil {
		return cartLine{}, fmt.Errorf("failed to look up project %d: %w", cmd.VoteOptionIndex, err)
	}

	// Submitted messages cannot be withdrawn, so a zero weight marks a
	// contribution the contributor removed later.
	return cartLine{
		ok: true,
		item: &models.CartItem{
			Project:   *project,
			Amount:    cs.config.Formatter(amount, round.NativeTokenDecimals, cs.config.Locale, cs.config.MaxDecimals),
			IsCleared: amount.Sign() == 0,
		},
	}, nil
}
