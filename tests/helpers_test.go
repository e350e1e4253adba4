// Package tests contains PostgreSQL integration tests for repositories and flows
package tests

import (
	"testing"

	testingutil "github.com/apaysummit/summit-registration/testing"
	"github.com/stretchr/testify/require"
)

// withDB runs fn against a fresh migrated database, or skips when PostgreSQL is not reachable
func withDB(t *testing.T, fn func(t *testing.T, db *testingutil.TestDB)) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping PostgreSQL integration test in short mode")
	}
	if !testingutil.Available() {
		t.Skip("PostgreSQL is not reachable, set TEST_DB_HOST to run integration tests")
	}

	err := testingutil.TestWithDB(func(db *testingutil.TestDB) error {
		fn(t, db)
		return nil
	})
	require.NoError(t, err)
}
