package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// unreachableMongo returns a store whose every operation fails quickly.
func unreachableMongo(t *testing.T, transactions bool) *Mongo {
	t.Helper()
	client, err := mongo.Connect(context.Background(), options.Client().
		ApplyURI("mongodb://127.0.0.1:1").
		SetServerSelectionTimeout(100*time.Millisecond))
	require.NoError(t, err)
	t.Cleanup(func() { client.Disconnect(context.Background()) })
	return NewMongo(client, client.Database("terretahub_test"), transactions)
}

func TestRemoveEntryReportsOrphans(t *testing.T) {
	m := unreachableMongo(t, false)
	id := primitive.NewObjectID()

	err := m.removeEntry(context.Background(), id, ErrNotFound)
	assert.ErrorIs(t, err, ErrNotFound, "the original cause stays visible")
	assert.ErrorIs(t, err, ErrOrphanedEntry)
	assert.ErrorContains(t, err, id.Hex())
}

func TestRemoveEntryInsideTransaction(t *testing.T) {
	m := unreachableMongo(t, true)

	err := m.removeEntry(context.Background(), primitive.NewObjectID(), ErrConflict)
	assert.Equal(t, ErrConflict, err, "an aborted transaction needs no cleanup")
}
