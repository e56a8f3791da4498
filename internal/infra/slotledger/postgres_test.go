//go:build unit

package slotledger

import (
	"os"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// The ledger statements and db/schema.sql evolve separately; this pins every
// slot_claims column the SQL touches to one the schema declares.
func TestSlotClaimsSQLMatchesSchema(t *testing.T) {
	raw, err := os.ReadFile("../../../db/schema.sql")
	require.NoError(t, err)

	block := regexp.MustCompile(`(?s)CREATE TABLE slot_claims \((.*?)\n\);`).FindSubmatch(raw)
	require.NotNil(t, block, "slot_claims definition missing from schema.sql")

	declared := map[string]bool{}
	for _, line := range strings.Split(string(block[1]), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		declared[fields[0]] = true
	}

	insert := regexp.MustCompile(`(?s)INSERT INTO slot_claims \(([^)]*)\)`).FindStringSubmatch(tryAcquireSQL)
	require.NotNil(t, insert)
	var used []string
	for _, col := range strings.Split(insert[1], ",") {
		used = append(used, strings.TrimSpace(col))
	}
	// Columns the other statements reference outside an insert list.
	used = append(used, "version", "state", "expires_at", "hold_id", "consultant_id", "start_at", "duration_min", "client_id")

	for _, col := range used {
		require.True(t, declared[col], "column %q is referenced by the ledger SQL but not declared in schema.sql", col)
	}
}
