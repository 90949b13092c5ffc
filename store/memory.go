package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"terretahub/leveling"
	"terretahub/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type grantKey struct {
	userID    primitive.ObjectID
	grantCode string
}

// Memory implements Store in memory. Every method holds a single lock, so the
// combined ledger + profile writes are atomic just like the Mongo ones.
type Memory struct {
	mu        sync.RWMutex
	profiles  map[primitive.ObjectID]*models.Profile
	entries   []models.XPEntry
	grants    map[grantKey]struct{}
	admins    map[string]*models.Admin
	adminLogs []models.AdminActionLog
}

// NewMemory creates an empty Memory store
func NewMemory() *Memory {
	return &Memory{
		profiles: make(map[primitive.ObjectID]*models.Profile),
		grants:   make(map[grantKey]struct{}),
		admins:   make(map[string]*models.Admin),
	}
}

// PutProfile adds or replaces a profile as-is, without resetting its level
// fields. Intended for seeding.
func (m *Memory) PutProfile(p *models.Profile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	m.profiles[p.ID] = p.Clone()
}

// CreateProfile implements Profiles
func (m *Memory) CreateProfile(ctx context.Context, p *models.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.profiles {
		if existing.Email == p.Email {
			return ErrAlreadyExists
		}
	}

	now := time.Now()
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	p.Level = leveling.MinLevel
	p.Experience = 0
	p.CreatedAt = now
	p.UpdatedAt = now

	m.profiles[p.ID] = p.Clone()
	return nil
}

// GetProfile implements Profiles
func (m *Memory) GetProfile(ctx context.Context, userID primitive.ObjectID) (*models.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return p.Clone(), nil
}

// GetProfileByEmail implements Profiles
func (m *Memory) GetProfileByEmail(ctx context.Context, email string) (*models.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.profiles {
		if p.Email == email {
			return p.Clone(), nil
		}
	}
	return nil, ErrNotFound
}

// UpdateProfileFields implements Profiles
func (m *Memory) UpdateProfileFields(ctx context.Context, userID primitive.ObjectID, fields models.ProfileFields) (*models.Profile, *models.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		return nil, nil, ErrNotFound
	}

	before := p.Clone()
	updated := p.Clone()
	updated.ApplyFields(normalizeFields(fields))
	updated.UpdatedAt = time.Now()
	// cloned again so the stored profile never aliases the caller's fields
	m.profiles[userID] = updated.Clone()
	return before, updated, nil
}

// TopProfiles implements Profiles
func (m *Memory) TopProfiles(ctx context.Context, limit int) ([]models.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.Profile, 0, len(m.profiles))
	for _, p := range m.profiles {
		out = append(out, *p.Clone())
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Experience != out[j].Experience {
			return out[i].Experience > out[j].Experience
		}
		return out[i].ID.Hex() < out[j].ID.Hex()
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// HasGrant implements Ledger
func (m *Memory) HasGrant(ctx context.Context, userID primitive.ObjectID, grantCode string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.grants[grantKey{userID, grantCode}]
	return ok, nil
}

// HasGrantDescription implements Ledger
func (m *Memory) HasGrantDescription(ctx context.Context, userID primitive.ObjectID, description string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.entries {
		if e.UserID == userID && e.Description == description {
			return true, nil
		}
	}
	return false, nil
}

// AppendGrant implements Ledger
func (m *Memory) AppendGrant(ctx context.Context, entry *models.XPEntry) (primitive.ObjectID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.insertEntry(entry); err != nil {
		return primitive.NilObjectID, err
	}
	return entry.ID, nil
}

// insertEntry must be called with the lock held.
func (m *Memory) insertEntry(entry *models.XPEntry) error {
	if entry.GrantCode != "" {
		key := grantKey{entry.UserID, entry.GrantCode}
		if _, ok := m.grants[key]; ok {
			return ErrDuplicateGrant
		}
		m.grants[key] = struct{}{}
	}
	if entry.ID.IsZero() {
		entry.ID = primitive.NewObjectID()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	m.entries = append(m.entries, *entry)
	return nil
}

// History implements Ledger
func (m *Memory) History(ctx context.Context, userID primitive.ObjectID, prefix string, limit int) ([]models.XPEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []models.XPEntry{}
	for i := len(m.entries) - 1; i >= 0; i-- {
		e := m.entries[i]
		if e.UserID != userID || !strings.HasPrefix(e.Description, prefix) {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// Entries returns every ledger row in insertion order.
func (m *Memory) Entries() []models.XPEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.XPEntry, len(m.entries))
	copy(out, m.entries)
	return out
}

// ApplyDelta implements Levels
func (m *Memory) ApplyDelta(ctx context.Context, entry models.XPEntry) (*LevelChange, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.profiles[entry.UserID]
	if !ok {
		return nil, ErrNotFound
	}
	if err := m.insertEntry(&entry); err != nil {
		return nil, err
	}

	before := p.Clone()
	p.Experience += entry.XPAmount
	p.Level = leveling.LevelForExperience(p.Experience)
	p.UpdatedAt = time.Now()
	return &LevelChange{Before: before, After: p.Clone(), Entry: &entry}, nil
}

// AssignLevel implements Levels
func (m *Memory) AssignLevel(ctx context.Context, userID primitive.ObjectID, level int, description string) (*LevelChange, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.profiles[userID]
	if !ok {
		return nil, ErrNotFound
	}
	topUp, err := leveling.TopUp(p.Experience, level)
	if err != nil {
		return nil, err
	}

	before := p.Clone()
	var entry *models.XPEntry
	if topUp > 0 {
		entry = &models.XPEntry{UserID: userID, XPAmount: topUp, Description: description}
		if err := m.insertEntry(entry); err != nil {
			return nil, err
		}
		p.Experience += topUp
	}
	p.Level = level
	p.UpdatedAt = time.Now()
	return &LevelChange{Before: before, After: p.Clone(), Entry: entry}, nil
}

// SetExperience implements Levels
func (m *Memory) SetExperience(ctx context.Context, userID primitive.ObjectID, experience int, description string) (*LevelChange, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.profiles[userID]
	if !ok {
		return nil, ErrNotFound
	}

	before := p.Clone()
	var entry *models.XPEntry
	if diff := experience - p.Experience; diff != 0 {
		entry = &models.XPEntry{UserID: userID, XPAmount: diff, Description: description}
		if err := m.insertEntry(entry); err != nil {
			return nil, err
		}
	}
	p.Experience = experience
	p.Level = leveling.LevelForExperience(experience)
	p.UpdatedAt = time.Now()
	return &LevelChange{Before: before, After: p.Clone(), Entry: entry}, nil
}

// CreateAdmin implements Admins
func (m *Memory) CreateAdmin(ctx context.Context, admin *models.Admin) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.admins[admin.Email]; ok {
		return ErrAlreadyExists
	}
	now := time.Now()
	if admin.ID.IsZero() {
		admin.ID = primitive.NewObjectID()
	}
	admin.CreatedAt = now
	admin.UpdatedAt = now
	cp := *admin
	m.admins[admin.Email] = &cp
	return nil
}

// GetAdminByEmail implements Admins
func (m *Memory) GetAdminByEmail(ctx context.Context, email string) (*models.Admin, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.admins[email]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

// LogAdminAction implements Admins
func (m *Memory) LogAdminAction(ctx context.Context, entry *models.AdminActionLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if entry.ID.IsZero() {
		entry.ID = primitive.NewObjectID()
	}
	m.adminLogs = append(m.adminLogs, *entry)
	return nil
}

// AdminLogs implements Admins
func (m *Memory) AdminLogs(ctx context.Context, limit int) ([]models.AdminActionLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []models.AdminActionLog{}
	for i := len(m.adminLogs) - 1; i >= 0; i-- {
		out = append(out, m.adminLogs[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

var (
	_ Store = (*Memory)(nil)
	_ Store = (*Mongo)(nil)
)
