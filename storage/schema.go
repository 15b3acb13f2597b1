package storage

// table Rounds
// address TEXT PRIMARY KEY, lowercase hex
// voice_credit_factor TEXT, decimal big integer
func createRoundTable() string {
	return `
		CREATE TABLE IF NOT EXISTS Rounds (
			address TEXT PRIMARY KEY NOT NULL,
			coordinator_pub_key TEXT NOT NULL,
			voice_credit_factor TEXT NOT NULL,
			native_token_decimals INTEGER NOT NULL,
			native_token_address TEXT,
			native_token_symbol TEXT,
			recipient_registry_address TEXT NOT NULL
		);
	`
}

// table Messages
// one row per published message, keyed by the indexer's message id
func createMessageTable() string {
	return `
		CREATE TABLE IF NOT EXISTS Messages (
			id TEXT PRIMARY KEY NOT NULL,
			round TEXT NOT NULL,
			contributor_key TEXT NOT NULL,
			contributor TEXT NOT NULL,
			coordinator_pub_key TEXT NOT NULL,
			data BLOB NOT NULL,
			enc_pub_key BLOB NOT NULL,
			block_number INTEGER NOT NULL,
			log_index INTEGER NOT NULL,
			timestamp INTEGER NOT NULL
		);
	`
}

func createMessageIndex() string {
	return `
		CREATE INDEX IF NOT EXISTS messages_by_contributor
		ON Messages (round, contributor_key, contributor, block_number, log_index);
	`
}

// table Projects
// project is the JSON encoding of models.Project
func createProjectTable() string {
	return `
		CREATE TABLE IF NOT EXISTS Projects (
			registry TEXT NOT NULL,
			idx INTEGER NOT NULL,
			project TEXT NOT NULL,
			PRIMARY KEY (registry, idx)
		);
	`
}
