package sql

const Dummy = "dummy"
const SelectRunByID = "select-run-by-id"
const SelectUnprocessedRuns = "select-unprocessed-runs"
const UpdateRunStatus = "update-run-status"
const UpdateRunResults = "update-run-results"
const UpdateRunImage = "update-run-image"
const SelectLatestSuccessfulDeploy = "select-latest-successful-deploy"
const SelectUserByLogin = "select-user-by-login"
const SelectAllUser = "select-all-user"
const DeleteUser = "deleteUser"
const SelectKeyValue = "select-key-value"

// Stmt returns the query for the given driver
func Stmt(driver string, name string) string {
	return queries[driver][name]
}

const runColumns = `id, type, created, started, finished, status, status_desc, blob, results, repository, branch, source_branch, target_branch, tag, event, sha, triggered_by, image, digest`

var queries = map[string]map[string]string{
	"sqlite": {
		Dummy: `
SELECT 1;
`,
		SelectRunByID: `
SELECT ` + runColumns + `
FROM runs
WHERE id = $1;
`,
		SelectUnprocessedRuns: `
SELECT ` + runColumns + `
FROM runs
WHERE status = 'queued' ORDER BY created ASC LIMIT 10;
`,
		UpdateRunStatus: `
UPDATE runs SET status = $1, status_desc = $2, started = $3, finished = $4 WHERE id = $5;
`,
		UpdateRunResults: `
UPDATE runs SET results = $1 WHERE id = $2;
`,
		UpdateRunImage: `
UPDATE runs SET image = $1, digest = $2 WHERE id = $3;
`,
		SelectLatestSuccessfulDeploy: `
SELECT ` + runColumns + `
FROM runs
WHERE repository = $1 AND status IN ('success', 'unstable') AND image != ''
ORDER BY created DESC LIMIT 1;
`,
		SelectUserByLogin: `
SELECT id, login, secret, admin
FROM users
WHERE login = $1;
`,
		SelectAllUser: `
SELECT id, login, secret, admin
FROM users;
`,
		DeleteUser: `
DELETE FROM users where login = $1;
`,
		SelectKeyValue: `
SELECT id, key, value
FROM key_values
WHERE key = $1;
`,
	},
	"postgres": {
		Dummy: `
SELECT 1;
`,
		SelectRunByID: `
SELECT ` + runColumns + `
FROM runs
WHERE id = $1;
`,
		SelectUnprocessedRuns: `
SELECT ` + runColumns + `
FROM runs
WHERE status = 'queued' ORDER BY created ASC LIMIT 10;
`,
		UpdateRunStatus: `
UPDATE runs SET status = $1, status_desc = $2, started = $3, finished = $4 WHERE id = $5;
`,
		UpdateRunResults: `
UPDATE runs SET results = $1 WHERE id = $2;
`,
		UpdateRunImage: `
UPDATE runs SET image = $1, digest = $2 WHERE id = $3;
`,
		SelectLatestSuccessfulDeploy: `
SELECT ` + runColumns + `
FROM runs
WHERE repository = $1 AND status IN ('success', 'unstable') AND image != ''
ORDER BY created DESC LIMIT 1;
`,
		SelectUserByLogin: `
SELECT id, login, secret, admin
FROM users
WHERE login = $1;
`,
		SelectAllUser: `
SELECT id, login, secret, admin
FROM users;
`,
		DeleteUser: `
DELETE FROM users where login = $1;
`,
		SelectKeyValue: `
SELECT id, key, value
FROM key_values
WHERE key = $1;
`,
	},
}
