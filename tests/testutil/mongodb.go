package testutil

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const (
	mongoCtxTimeout   = 10 * time.Second
	maxTestNameLength = 40
)

// SetupTestMongoDB returns a database in the shared MongoDB container. Each test
// gets its own database, dropped when the test ends.
func SetupTestMongoDB(t *testing.T) *mongo.Database {
	t.Helper()
	SkipIfShort(t)

	addr, err := sharedMongo.get(mongoRequest(), "27017/tcp")
	if err != nil {
		t.Fatalf("Failed to start MongoDB container: %v", err)
	}

	client, err := mongo.Connect(options.Client().ApplyURI("mongodb://" + addr))
	if err != nil {
		t.Fatalf("Failed to connect to MongoDB: %v", err)
	}

	if err := retryPing(func(ctx context.Context) error { return client.Ping(ctx, nil) }); err != nil {
		_ = client.Disconnect(context.Background())
		t.Fatalf("Failed to ping MongoDB: %v", err)
	}

	db := client.Database(testDBName(t.Name()))

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), mongoCtxTimeout)
		defer cancel()
		_ = db.Drop(ctx)
		_ = client.Disconnect(ctx)
	})

	return db
}

// testDBName derives a valid database name from the test name.
func testDBName(testName string) string {
	name := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return '_'
	}, testName)

	if len(name) > maxTestNameLength {
		// MongoDB limits database names to 63 bytes
		hash := sha256.Sum256([]byte(testName))
		name = name[:20] + "_" + hex.EncodeToString(hash[:])[:12]
	}
	return "toastd_test_" + name
}
