package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"terretahub/models"
	"terretahub/store"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []models.XPEvent
	err    error
}

func (n *recordingNotifier) Publish(ctx context.Context, event models.XPEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return n.err
}

func (n *recordingNotifier) types() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := []string{}
	for _, e := range n.events {
		out = append(out, e.Type)
	}
	return out
}

// failingLedger wraps a Memory store and fails ledger reads.
type failingLedger struct {
	*store.Memory
	failHasGrant bool
}

var errStoreDown = errors.New("connection refused")

func (f *failingLedger) HasGrant(ctx context.Context, userID primitive.ObjectID, grantCode string) (bool, error) {
	if f.failHasGrant {
		return false, errStoreDown
	}
	return f.Memory.HasGrant(ctx, userID, grantCode)
}

type fixture struct {
	store    *store.Memory
	notifier *recordingNotifier
	ledger   *XpLedger
	sync     *ProfileLevelSync
	rewarder *ProfileChangeRewarder
	profiles *ProfileService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	m := store.NewMemory()
	n := &recordingNotifier{}
	ledger := NewXpLedger(m)
	levelSync := NewProfileLevelSync(m, n, nil)
	rewarder := NewProfileChangeRewarder(ledger, levelSync, nil)
	return &fixture{
		store:    m,
		notifier: n,
		ledger:   ledger,
		sync:     levelSync,
		rewarder: rewarder,
		profiles: NewProfileService(m, rewarder, nil),
	}
}

func (f *fixture) newProfile(t *testing.T, email string) *models.Profile {
	t.Helper()
	p, err := f.profiles.CreateProfile(context.Background(), email, "")
	require.NoError(t, err)
	return p
}
