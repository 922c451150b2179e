package utils

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/vedant7151/Invoice-Generator/internal/db"
)

var testMongoURI string

func init() {
	loadTestEnv()
}

// loadTestEnv loads the .env file from the project root, falling back to the
// working directory.
func loadTestEnv() {
	_, filename, _, _ := runtime.Caller(0)
	projectRoot := filepath.Join(filepath.Dir(filename), "..", "..")
	if err := godotenv.Load(filepath.Join(projectRoot, ".env")); err != nil {
		_ = godotenv.Load()
	}
	testMongoURI = os.Getenv("MONGO_URI")
}

// SetupTestDB connects to a throwaway database with the application indexes in
// place. The database is dropped when the test ends. Tests are skipped when
// MONGO_URI is not set.
func SetupTestDB(t *testing.T) *mongo.Database {
	t.Helper()
	if testMongoURI == "" {
		t.Skip("MONGO_URI not set, skipping MongoDB test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(testMongoURI))
	require.NoError(t, err, "Failed to connect to MongoDB")
	require.NoError(t, client.Ping(ctx, nil), "Failed to ping MongoDB")

	database := client.Database(fmt.Sprintf("invoice_test_%d", time.Now().UnixNano()))
	require.NoError(t, db.EnsureIndexes(ctx, database))

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = database.Drop(ctx)
		_ = client.Disconnect(ctx)
	})
	return database
}

// GetTestMongoURI returns the MongoDB URI tests run against, if any.
func GetTestMongoURI() string {
	return testMongoURI
}
