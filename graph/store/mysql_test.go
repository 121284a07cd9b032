package store

import (
	"os"
	"testing"
)

// MySQL tests run only when a database is provided, e.g.
//
//	MYSQL_TEST_DSN="root:root@tcp(localhost:3306)/agentgraph_test?parseTime=true" go test ./graph/store/
func newTestMySQL(t *testing.T) *MySQLStore {
	t.Helper()
	dsn := os.Getenv("MYSQL_TEST_DSN")
	if dsn == "" {
		t.Skip("MYSQL_TEST_DSN not set; skipping MySQL integration tests")
	}
	st, err := NewMySQLStore(dsn)
	if err != nil {
		t.Fatalf("NewMySQLStore() error = %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestMySQLStoreContract(t *testing.T) {
	storeContract(t, newTestMySQL(t))
}
