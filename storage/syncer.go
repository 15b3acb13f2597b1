package storage

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/pkg/errors"

	"committed-cart/encryption"
	"committed-cart/models"
	"committed-cart/registry"
	"committed-cart/service"
)

// Syncer copies a contributor's round data from a remote source into a
// SQLiteStore so carts can later be rebuilt offline.
type Syncer struct {
	rounds   service.RoundSource
	messages service.MessageSource
	projects service.ProjectLookup
	store    *SQLiteStore
}

// SyncResult summarizes one SyncRound call.
type SyncResult struct {
	Messages        int `json:"messages"`
	NewMessages     int `json:"new_messages"`
	Projects        int `json:"projects"`
	MissingProjects int `json:"missing_projects"`
}

func NewSyncer(rounds service.RoundSource, messages service.MessageSource, projects service.ProjectLookup, store *SQLiteStore) *Syncer {
	return &Syncer{
		rounds:   rounds,
		messages: messages,
		projects: projects,
		store:    store,
	}
}

// SyncRound stores the round, every message the contributor published in it
// and each project those messages vote for. encryptionKey is the
// contributor's key seed; it is needed to read the vote option indexes.
// Nothing is written unless every message decrypts and every lookup succeeds.
func (s *Syncer) SyncRound(ctx context.Context, roundAddress common.Address, encryptionKey string, contributor common.Address) (*SyncResult, error) {
	start := time.Now()

	round, err := s.rounds.RoundInfo(ctx, roundAddress)
	if err != nil {
		return nil, errors.Wrap(err, "fetch round")
	}

	keypair, err := encryption.KeypairFromSeed(encryptionKey)
	if err != nil {
		return nil, errors.Wrap(err, "derive contributor keypair")
	}
	coordinatorKey, err := encryption.ParsePublicKey(round.CoordinatorPubKey)
	if err != nil {
		return nil, errors.Wrap(err, "parse coordinator public key")
	}
	sharedKey, err := encryption.DeriveSharedKey(keypair.PrivateKey, coordinatorKey)
	if err != nil {
		return nil, errors.Wrap(err, "derive shared key")
	}

	q := service.MessageQuery{
		FundingRoundAddress: round.FundingRoundAddress,
		ContributorKey:      keypair.PublicKeyHex(),
		CoordinatorPubKey:   round.CoordinatorPubKey,
		ContributorAddress:  contributor,
	}
	messages, err := s.messages.FetchMessages(ctx, q)
	if err != nil {
		return nil, errors.Wrap(err, "fetch messages")
	}

	result := &SyncResult{Messages: len(messages)}
	projects := make([]*models.Project, 0)
	seen := make(map[uint64]bool)
	for _, msg := range messages {
		decrypted, err := encryption.DecryptCommand(msg, sharedKey)
		if err != nil {
			return nil, errors.Wrapf(err, "decrypt message %s", msg.ID)
		}
		index := decrypted.Command.VoteOptionIndex
		if seen[index] {
			continue
		}
		seen[index] = true

		project, err := s.projects.ProjectByIndex(ctx, round.RecipientRegistryAddress, index)
		if errors.Is(err, registry.ErrProjectNotFound) || (err == nil && project == nil) {
			result.MissingProjects++
			continue
		}
		if err != nil {
			return nil, errors.Wrapf(err, "fetch project %d", index)
		}
		projects = append(projects, project)
	}
	result.Projects = len(projects)

	if result.NewMessages, err = s.store.SaveContribution(ctx, round, q, messages, projects); err != nil {
		return nil, err
	}

	log.Info("Synced contributor round", "round", roundAddress, "contributor", contributor,
		"messages", result.Messages, "new", result.NewMessages, "projects", result.Projects,
		"missing", result.MissingProjects, "elapsed", common.PrettyDuration(time.Since(start)))
	return result, nil
}
