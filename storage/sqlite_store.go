// Package storage keeps a local SQLite copy of rounds, contributor messages
// and projects, and writes cart exports to disk.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"committed-cart/models"
	"committed-cart/registry"
	"committed-cart/service"
)

// SQLiteStore serves cart reconstruction from a local database.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// OpenSQLiteStore opens or creates the database at path.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrap(err, "resolve database path")
	}
	if err := os.MkdirAll(filepath.Dir(absPath), 0755); err != nil {
		return nil, errors.Wrap(err, "create database directory")
	}

	db, err := sql.Open("sqlite3", absPath)
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}
	// sqlite serializes writers anyway
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{createRoundTable(), createMessageTable(), createMessageIndex(), createProjectTable()} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, errors.Wrap(err, "initialize schema")
		}
	}

	log.Debug("Opened cart database", "path", absPath)
	return &SQLiteStore{db: db, path: absPath}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func addressKey(a common.Address) string {
	return strings.ToLower(a.Hex())
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// SaveRound inserts or replaces a round.
func (s *SQLiteStore) SaveRound(ctx context.Context, round *models.RoundInfo) error {
	return saveRound(ctx, s.db, round)
}

func saveRound(ctx context.Context, ex execer, round *models.RoundInfo) error {
	if round == nil {
		return service.ErrMissingRound
	}
	factor := "1"
	if round.VoiceCreditFactor != nil {
		factor = round.VoiceCreditFactor.String()
	}
	_, err := ex.ExecContext(ctx, `
		INSERT OR REPLACE INTO Rounds (
			address, coordinator_pub_key, voice_credit_factor, native_token_decimals,
			native_token_address, native_token_symbol, recipient_registry_address
		) VALUES (?, ?, ?, ?, ?, ?, ?);`,
		addressKey(round.FundingRoundAddress),
		round.CoordinatorPubKey,
		factor,
		round.NativeTokenDecimals,
		addressKey(round.NativeTokenAddress),
		round.NativeTokenSymbol,
		addressKey(round.RecipientRegistryAddress),
	)
	return errors.Wrap(err, "save round")
}

// RoundInfo implements service.RoundSource.
func (s *SQLiteStore) RoundInfo(ctx context.Context, roundAddress common.Address) (*models.RoundInfo, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT coordinator_pub_key, voice_credit_factor, native_token_decimals,
			native_token_address, native_token_symbol, recipient_registry_address
		FROM Rounds
		WHERE address = ?;`, addressKey(roundAddress))

	round := &models.RoundInfo{FundingRoundAddress: roundAddress}
	var factor, tokenAddress, registryAddress string
	var tokenSymbol sql.NullString
	err := row.Scan(&round.CoordinatorPubKey, &factor, &round.NativeTokenDecimals, &tokenAddress, &tokenSymbol, &registryAddress)
	if err == sql.ErrNoRows {
		return nil, errors.Wrap(service.ErrRoundNotFound, roundAddress.Hex())
	}
	if err != nil {
		return nil, errors.Wrap(err, "scan round")
	}

	var ok bool
	if round.VoiceCreditFactor, ok = new(big.Int).SetString(factor, 10); !ok {
		return nil, errors.Errorf("round %s: invalid voice credit factor %q", roundAddress.Hex(), factor)
	}
	round.NativeTokenAddress = common.HexToAddress(tokenAddress)
	round.NativeTokenSymbol = tokenSymbol.String
	round.RecipientRegistryAddress = common.HexToAddress(registryAddress)
	return round, nil
}

// SaveMessages stores messages published under q. Messages already present
// are left untouched. It returns the number of new rows.
func (s *SQLiteStore) SaveMessages(ctx context.Context, q service.MessageQuery, messages []*models.EncryptedMessage) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(err, "begin transaction")
	}
	defer tx.Rollback()

	inserted, err := saveMessages(ctx, tx, q, messages)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, errors.Wrap(err, "commit messages")
	}
	return inserted, nil
}

func saveMessages(ctx context.Context, ex execer, q service.MessageQuery, messages []*models.EncryptedMessage) (int, error) {
	stmt, err := ex.PrepareContext(ctx, `
		INSERT OR IGNORE INTO Messages (
			id, round, contributor_key, contributor, coordinator_pub_key,
			data, enc_pub_key, block_number, log_index, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`)
	if err != nil {
		return 0, errors.Wrap(err, "prepare statement")
	}
	defer stmt.Close()

	inserted := 0
	for _, msg := range messages {
		res, err := stmt.ExecContext(ctx,
			msg.ID,
			addressKey(q.FundingRoundAddress),
			strings.ToLower(q.ContributorKey),
			addressKey(q.ContributorAddress),
			strings.ToLower(q.CoordinatorPubKey),
			msg.Data,
			msg.EncPubKey,
			msg.BlockNumber,
			msg.LogIndex,
			msg.Timestamp,
		)
		if err != nil {
			return 0, errors.Wrapf(err, "insert message %s", msg.ID)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, errors.Wrap(err, "rows affected")
		}
		inserted += int(n)
	}
	return inserted, nil
}

// SaveContribution writes a round, a contributor's messages and the
// projects they vote for in one transaction. It returns the number of new
// message rows.
func (s *SQLiteStore) SaveContribution(ctx context.Context, round *models.RoundInfo, q service.MessageQuery, messages []*models.EncryptedMessage, projects []*models.Project) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(err, "begin transaction")
	}
	defer tx.Rollback()

	if err := saveRound(ctx, tx, round); err != nil {
		return 0, err
	}
	inserted, err := saveMessages(ctx, tx, q, messages)
	if err != nil {
		return 0, err
	}
	for _, project := range projects {
		if err := saveProject(ctx, tx, round.RecipientRegistryAddress, project); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, errors.Wrap(err, "commit contribution")
	}
	return inserted, nil
}

// FetchMessages implements service.MessageSource.
func (s *SQLiteStore) FetchMessages(ctx context.Context, q service.MessageQuery) ([]*models.EncryptedMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, data, enc_pub_key, block_number, log_index, timestamp
		FROM Messages
		WHERE round = ? AND contributor_key = ? AND contributor = ? AND coordinator_pub_key = ?
		ORDER BY block_number, log_index;`,
		addressKey(q.FundingRoundAddress),
		strings.ToLower(q.ContributorKey),
		addressKey(q.ContributorAddress),
		strings.ToLower(q.CoordinatorPubKey),
	)
	if err != nil {
		return nil, errors.Wrap(err, "query messages")
	}
	defer rows.Close()

	messages := make([]*models.EncryptedMessage, 0)
	for rows.Next() {
		msg := &models.EncryptedMessage{}
		if err := rows.Scan(&msg.ID, &msg.Data, &msg.EncPubKey, &msg.BlockNumber, &msg.LogIndex, &msg.Timestamp); err != nil {
			return nil, errors.Wrap(err, "scan message")
		}
		messages = append(messages, msg)
	}
	return messages, errors.Wrap(rows.Err(), "iterate messages")
}

// SaveProject inserts or replaces the project registered at
// (registryAddress, project.Index).
func (s *SQLiteStore) SaveProject(ctx context.Context, registryAddress common.Address, project *models.Project) error {
	return saveProject(ctx, s.db, registryAddress, project)
}

func saveProject(ctx context.Context, ex execer, registryAddress common.Address, project *models.Project) error {
	data, err := json.Marshal(project)
	if err != nil {
		return errors.Wrap(err, "marshal project")
	}
	_, err = ex.ExecContext(ctx, `
		INSERT OR REPLACE INTO Projects (registry, idx, project) VALUES (?, ?, ?);`,
		addressKey(registryAddress), project.Index, string(data))
	return errors.Wrapf(err, "save project %d", project.Index)
}

// ProjectByIndex implements service.ProjectLookup.
func (s *SQLiteStore) ProjectByIndex(ctx context.Context, registryAddress common.Address, index uint64) (*models.Project, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `
		SELECT project FROM Projects WHERE registry = ? AND idx = ?;`,
		addressKey(registryAddress), index).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, registry.ErrProjectNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "scan project")
	}

	project := &models.Project{}
	if err := json.Unmarshal([]byte(data), project); err != nil {
		return nil, errors.Wrap(err, "unmarshal project")
	}
	return project, nil
}
