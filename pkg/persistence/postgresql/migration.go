package postgresql

// Entities are stored as JSONB documents with the columns the repositories
// filter and sort on lifted out alongside.
func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE transcripts (
				id TEXT PRIMARY KEY,
				data JSONB NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_transcripts_created_at ON transcripts(created_at);

			CREATE TABLE analyses (
				id TEXT PRIMARY KEY,
				data JSONB NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE TABLE plans (
				id TEXT PRIMARY KEY,
				data JSONB NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE TABLE workflows (
				id TEXT PRIMARY KEY,
				data JSONB NOT NULL,
				status VARCHAR(50) NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_workflows_status ON workflows(status);
			CREATE INDEX idx_workflows_created_at ON workflows(created_at);

			CREATE TABLE runs (
				id TEXT PRIMARY KEY,
				data JSONB NOT NULL,
				status VARCHAR(50) NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				completed_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_runs_status ON runs(status);
			CREATE INDEX idx_runs_completed_at ON runs(completed_at);
		`,
	}
}
