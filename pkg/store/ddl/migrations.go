package ddl

const createTableRuns = "create-table-runs"
const createTableUsers = "create-table-users"
const createTableKeyValues = "create-table-key-values"
const addIndexRunsRepositoryCreated = "add-index-runs-repository-created"
const addIndexRunsStatus = "add-index-runs-status"

type migration struct {
	name string
	stmt string
}

var migrations = map[string][]migration{
	"sqlite": {
		{
			name: createTableRuns,
			stmt: `
CREATE TABLE IF NOT EXISTS runs (
id            TEXT,
type          TEXT,
created       INTEGER,
started       INTEGER,
finished      INTEGER,
status        TEXT,
status_desc   TEXT,
blob          TEXT,
results       TEXT,
repository    TEXT,
branch        TEXT,
source_branch TEXT,
target_branch TEXT,
tag           TEXT,
event         INTEGER,
sha           TEXT,
triggered_by  TEXT,
image         TEXT,
digest        TEXT,
UNIQUE(id)
);
`,
		},
		{
			name: createTableUsers,
			stmt: `
CREATE TABLE IF NOT EXISTS users (
id     INTEGER PRIMARY KEY AUTOINCREMENT,
login  TEXT,
secret TEXT,
admin  BOOLEAN DEFAULT FALSE,
UNIQUE(login)
);
`,
		},
		{
			name: createTableKeyValues,
			stmt: `
CREATE TABLE IF NOT EXISTS key_values (
id    INTEGER PRIMARY KEY AUTOINCREMENT,
key   TEXT,
value TEXT,
UNIQUE(key)
);
`,
		},
		{
			name: addIndexRunsRepositoryCreated,
			stmt: `
CREATE INDEX IF NOT EXISTS idx_runs_repository_created ON runs(repository, created);
`,
		},
		{
			name: addIndexRunsStatus,
			stmt: `
CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
`,
		},
	},
	"postgres": {
		{
			name: createTableRuns,
			stmt: `
CREATE TABLE IF NOT EXISTS runs (
id            TEXT,
type          TEXT,
created       INTEGER,
started       INTEGER,
finished      INTEGER,
status        TEXT,
status_desc   TEXT,
blob          TEXT,
results       TEXT,
repository    TEXT,
branch        TEXT,
source_branch TEXT,
target_branch TEXT,
tag           TEXT,
event         INTEGER,
sha           TEXT,
triggered_by  TEXT,
image         TEXT,
digest        TEXT,
UNIQUE(id)
);
`,
		},
		{
			name: createTableUsers,
			stmt: `
CREATE TABLE IF NOT EXISTS users (
id     SERIAL,
login  TEXT,
secret TEXT,
admin  BOOLEAN DEFAULT FALSE,
UNIQUE(login)
);
`,
		},
		{
			name: createTableKeyValues,
			stmt: `
CREATE TABLE IF NOT EXISTS key_values (
id    SERIAL,
key   TEXT,
value TEXT,
UNIQUE(key)
);
`,
		},
		{
			name: addIndexRunsRepositoryCreated,
			stmt: `
CREATE INDEX IF NOT EXISTS idx_runs_repository_created ON runs(repository, created);
`,
		},
		{
			name: addIndexRunsStatus,
			stmt: `
CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
`,
		},
	},
}
