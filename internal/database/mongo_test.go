package database

import (
	"context"
	"os"
	"testing"
	"time"
)

func TestMongoStore_StoreContract(t *testing.T) {
	uri := os.Getenv("TEST_MONGO_URI")
	if uri == "" {
		t.Skip("Skipping MongoDB tests - no TEST_MONGO_URI environment variable set")
	}

	ctx := context.Background()
	dbName := "file_rename_bot_test_" + time.Now().Format("20060102150405")
	s, err := NewMongoStore(ctx, uri, dbName)
	if err != nil {
		t.Fatalf("Failed to connect to test MongoDB: %v", err)
	}
	defer func() {
		s.db.Drop(ctx)
		s.Close(ctx)
	}()

	runStoreSuite(t, s, 1000)
}
