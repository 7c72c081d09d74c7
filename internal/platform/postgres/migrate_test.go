package postgres

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractUpMigration(t *testing.T) {
	content := "-- +migrate Up\nCREATE TABLE a (id INT);\n-- +migrate Down\nDROP TABLE a;\n"
	assert.Equal(t, "\nCREATE TABLE a (id INT);\n", ExtractUpMigration(content))
	assert.Equal(t, "SELECT 1;", ExtractUpMigration("SELECT 1;"))
}

func TestSplitStatements(t *testing.T) {
	stmts := SplitStatements(`
-- comment only
CREATE TABLE a (id INT);

INSERT INTO a VALUES (1);
-- trailing
`)
	assert.Equal(t, []string{"CREATE TABLE a (id INT)", "INSERT INTO a VALUES (1)"}, stmts)
}

func TestEmbeddedSchemaCoversLedgerTables(t *testing.T) {
	content, err := fs.ReadFile(migrationFS, "migrations/0001_ledger.sql")
	require.NoError(t, err)

	up := ExtractUpMigration(string(content))
	for _, table := range []string{
		"visit_card_counter",
		"visit_cards",
		"collection_state",
		"collection_balances",
		"collection_operators",
		"ledger_events",
	} {
		assert.Contains(t, up, "CREATE TABLE IF NOT EXISTS "+table+" ")
	}
	assert.NotContains(t, up, "DROP TABLE")
}
