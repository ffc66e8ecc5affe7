package database

import (
	"context"
	"os"
	"testing"
	"time"
)

func getTestDSN() string {
	return os.Getenv("TEST_POSTGRES_DSN")
}

func TestDB_StoreContract(t *testing.T) {
	dsn := getTestDSN()
	if dsn == "" {
		t.Skip("Skipping database tests - no TEST_POSTGRES_DSN environment variable set")
	}

	ctx := context.Background()
	db, err := NewDB(ctx, dsn)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	defer db.Close(ctx)

	runStoreSuite(t, db, time.Now().UnixNano()%1_000_000_000*1000)
}

func TestDB_UnknownColumnRejected(t *testing.T) {
	db := &DB{}
	ctx := context.Background()

	if _, _, err := db.getText(ctx, "users; DROP TABLE users", 1); err == nil {
		t.Errorf("getText() should reject unknown column")
	}
	if err := db.setText(ctx, "rename_count", 1, "x"); err == nil {
		t.Errorf("setText() should reject unknown column")
	}
	if _, err := db.clearText(ctx, "thumb_file_id", 1); err == nil {
		t.Errorf("clearText() should reject unknown column")
	}
}

func TestNewDB_BadDSN(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if _, err := NewDB(ctx, "postgres://nobody@127.0.0.1:1/none?sslmode=disable&connect_timeout=1"); err == nil {
		t.Errorf("NewDB() expected error for unreachable server")
	}
}
