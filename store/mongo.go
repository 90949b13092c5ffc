package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"terretahub/leveling"
	"terretahub/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	ProfilesCollection  = "profiles"
	LedgerCollection    = "xp_history"
	AdminsCollection    = "admins"
	AdminLogsCollection = "admin_action_logs"
)

// Mongo implements Store on MongoDB.
type Mongo struct {
	client       *mongo.Client
	transactions bool

	profiles  *mongo.Collection
	ledger    *mongo.Collection
	admins    *mongo.Collection
	adminLogs *mongo.Collection
}

// NewMongo creates a Mongo store. Multi-document writes run inside a session
// transaction when transactions is true, which requires a replica set.
func NewMongo(client *mongo.Client, database *mongo.Database, transactions bool) *Mongo {
	return &Mongo{
		client:       client,
		transactions: transactions,
		profiles:     database.Collection(ProfilesCollection),
		ledger:       database.Collection(LedgerCollection),
		admins:       database.Collection(AdminsCollection),
		adminLogs:    database.Collection(AdminLogsCollection),
	}
}

// EnsureIndexes creates the indexes the store relies on for correctness.
// The partial unique index on (userId, grantCode) is what makes one-time
// grants safe against concurrent profile saves.
func (m *Mongo) EnsureIndexes(ctx context.Context) error {
	if _, err := m.profiles.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "experience", Value: -1}}},
	}); err != nil {
		return fmt.Errorf("failed to create profile indexes: %w", err)
	}

	if _, err := m.ledger.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "userId", Value: 1}, {Key: "grantCode", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetName("user_grant_code_unique").
				SetPartialFilterExpression(bson.M{"grantCode": bson.M{"$type": "string"}}),
		},
		{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "description", Value: 1}}},
	}); err != nil {
		return fmt.Errorf("failed to create ledger indexes: %w", err)
	}

	if _, err := m.admins.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return fmt.Errorf("failed to create admin indexes: %w", err)
	}
	return nil
}

// withTransaction runs fn inside a session transaction when enabled.
func (m *Mongo) withTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if !m.transactions {
		return fn(ctx)
	}

	session, err := m.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

// levelExpr is the server-side equivalent of leveling.LevelForExperience:
// the number of thresholds at or below the experience, never below 1.
func levelExpr(experience interface{}) bson.M {
	thresholds := bson.A{}
	for _, t := range leveling.Thresholds() {
		thresholds = append(thresholds, t)
	}
	return bson.M{"$max": bson.A{
		leveling.MinLevel,
		bson.M{"$size": bson.M{"$filter": bson.M{
			"input": thresholds,
			"as":    "t",
			"cond":  bson.M{"$lte": bson.A{"$$t", experience}},
		}}},
	}}
}

// CreateProfile inserts a new profile at level 1 with no experience
func (m *Mongo) CreateProfile(ctx context.Context, p *models.Profile) error {
	now := time.Now()
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	p.Level = leveling.MinLevel
	p.Experience = 0
	p.CreatedAt = now
	p.UpdatedAt = now

	if _, err := m.profiles.InsertOne(ctx, p); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("failed to insert profile: %w", err)
	}
	return nil
}

func (m *Mongo) findProfile(ctx context.Context, filter bson.M) (*models.Profile, error) {
	var p models.Profile
	if err := m.profiles.FindOne(ctx, filter).Decode(&p); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to fetch profile: %w", err)
	}
	return &p, nil
}

// GetProfile fetches a profile by id
func (m *Mongo) GetProfile(ctx context.Context, userID primitive.ObjectID) (*models.Profile, error) {
	return m.findProfile(ctx, bson.M{"_id": userID})
}

// GetProfileByEmail fetches a profile by email
func (m *Mongo) GetProfileByEmail(ctx context.Context, email string) (*models.Profile, error) {
	return m.findProfile(ctx, bson.M{"email": email})
}

// UpdateProfileFields replaces the editable fields in a single write
func (m *Mongo) UpdateProfileFields(ctx context.Context, userID primitive.ObjectID, fields models.ProfileFields) (*models.Profile, *models.Profile, error) {
	fields = normalizeFields(fields)
	now := time.Now()
	update := bson.M{"$set": bson.M{
		"username":    fields.Username,
		"displayName": fields.DisplayName,
		"avatarUrl":   fields.AvatarURL,
		"bio":         fields.Bio,
		"website":     fields.Website,
		"socialLinks": fields.SocialLinks,
		"speaks":      fields.Speaks,
		"learning":    fields.Learning,
		"updatedAt":   now,
	}}

	var before models.Profile
	err := m.profiles.FindOneAndUpdate(ctx, bson.M{"_id": userID}, update,
		options.FindOneAndUpdate().SetReturnDocument(options.Before),
	).Decode(&before)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("failed to update profile: %w", err)
	}

	after := before
	after.ApplyFields(fields)
	after.UpdatedAt = now
	return &before, &after, nil
}

// TopProfiles returns profiles ordered by experience, highest first
func (m *Mongo) TopProfiles(ctx context.Context, limit int) ([]models.Profile, error) {
	opts := options.Find().SetSort(bson.D{{Key: "experience", Value: -1}}).SetLimit(int64(limit))
	cursor, err := m.profiles.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch profiles: %w", err)
	}
	defer cursor.Close(ctx)

	var profiles []models.Profile
	if err := cursor.All(ctx, &profiles); err != nil {
		return nil, fmt.Errorf("failed to decode profiles: %w", err)
	}
	return profiles, nil
}

// HasGrant reports whether a one-time grant code exists for the user
func (m *Mongo) HasGrant(ctx context.Context, userID primitive.ObjectID, grantCode string) (bool, error) {
	return m.exists(ctx, bson.M{"userId": userID, "grantCode": grantCode})
}

// HasGrantDescription reports whether a ledger row with exactly this
// description exists for the user
func (m *Mongo) HasGrantDescription(ctx context.Context, userID primitive.ObjectID, description string) (bool, error) {
	return m.exists(ctx, bson.M{"userId": userID, "description": description})
}

func (m *Mongo) exists(ctx context.Context, filter bson.M) (bool, error) {
	n, err := m.ledger.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to query ledger: %w", err)
	}
	return n > 0, nil
}

// AppendGrant inserts a ledger row
func (m *Mongo) AppendGrant(ctx context.Context, entry *models.XPEntry) (primitive.ObjectID, error) {
	if err := m.insertEntry(ctx, entry); err != nil {
		return primitive.NilObjectID, err
	}
	return entry.ID, nil
}

func (m *Mongo) insertEntry(ctx context.Context, entry *models.XPEntry) error {
	if entry.ID.IsZero() {
		entry.ID = primitive.NewObjectID()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	if _, err := m.ledger.InsertOne(ctx, entry); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateGrant
		}
		return fmt.Errorf("failed to insert ledger entry: %w", err)
	}
	return nil
}

// History returns the user's ledger rows, newest first, optionally limited
// to descriptions starting with prefix
func (m *Mongo) History(ctx context.Context, userID primitive.ObjectID, prefix string, limit int) ([]models.XPEntry, error) {
	filter := bson.M{"userId": userID}
	if prefix != "" {
		filter["description"] = bson.M{"$regex": "^" + regexp.QuoteMeta(prefix)}
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := m.ledger.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger: %w", err)
	}
	defer cursor.Close(ctx)

	entries := []models.XPEntry{}
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode ledger: %w", err)
	}
	return entries, nil
}

// ApplyDelta appends the entry and increments experience in one transaction.
// The level is recomputed by the server from the incremented value so
// concurrent grants never lose an update.
func (m *Mongo) ApplyDelta(ctx context.Context, entry models.XPEntry) (*LevelChange, error) {
	var change *LevelChange
	err := m.withTransaction(ctx, func(ctx context.Context) error {
		e := entry
		if err := m.insertEntry(ctx, &e); err != nil {
			return err
		}

		newExperience := bson.M{"$add": bson.A{"$experience", e.XPAmount}}
		pipeline := mongo.Pipeline{
			{{Key: "$set", Value: bson.M{
				"experience": newExperience,
				"level":      levelExpr(newExperience),
				"updatedAt":  "$$NOW",
			}}},
		}

		var before models.Profile
		err := m.profiles.FindOneAndUpdate(ctx, bson.M{"_id": e.UserID}, pipeline,
			options.FindOneAndUpdate().SetReturnDocument(options.Before),
		).Decode(&before)
		if err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return m.removeEntry(ctx, e.ID, ErrNotFound)
			}
			return m.removeEntry(ctx, e.ID, fmt.Errorf("failed to update experience: %w", err))
		}

		after := before
		after.Experience = before.Experience + e.XPAmount
		after.Level = leveling.LevelForExperience(after.Experience)
		change = &LevelChange{Before: &before, After: &after, Entry: &e}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return change, nil
}

// AssignLevel sets the level and tops experience up to the level threshold.
// The profile update is conditional on the experience read at the start so
// a concurrent grant surfaces as ErrConflict instead of being overwritten.
func (m *Mongo) AssignLevel(ctx context.Context, userID primitive.ObjectID, level int, description string) (*LevelChange, error) {
	var change *LevelChange
	err := m.withTransaction(ctx, func(ctx context.Context) error {
		before, err := m.GetProfile(ctx, userID)
		if err != nil {
			return err
		}
		topUp, err := leveling.TopUp(before.Experience, level)
		if err != nil {
			return err
		}

		after := *before
		after.Level = level
		after.UpdatedAt = time.Now()
		set := bson.M{"level": level, "updatedAt": after.UpdatedAt}

		var entry *models.XPEntry
		if topUp > 0 {
			entry = &models.XPEntry{UserID: userID, XPAmount: topUp, Description: description}
			if err := m.insertEntry(ctx, entry); err != nil {
				return err
			}
			after.Experience = before.Experience + topUp
			set["experience"] = after.Experience
		}

		if err := m.compareAndSet(ctx, before, set, entry); err != nil {
			return err
		}
		change = &LevelChange{Before: before, After: &after, Entry: entry}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return change, nil
}

// SetExperience overwrites experience and recomputes the level from it
func (m *Mongo) SetExperience(ctx context.Context, userID primitive.ObjectID, experience int, description string) (*LevelChange, error) {
	var change *LevelChange
	err := m.withTransaction(ctx, func(ctx context.Context) error {
		before, err := m.GetProfile(ctx, userID)
		if err != nil {
			return err
		}

		after := *before
		after.Experience = experience
		after.Level = leveling.LevelForExperience(experience)
		after.UpdatedAt = time.Now()

		var entry *models.XPEntry
		if diff := experience - before.Experience; diff != 0 {
			entry = &models.XPEntry{UserID: userID, XPAmount: diff, Description: description}
			if err := m.insertEntry(ctx, entry); err != nil {
				return err
			}
		}

		set := bson.M{"experience": after.Experience, "level": after.Level, "updatedAt": after.UpdatedAt}
		if err := m.compareAndSet(ctx, before, set, entry); err != nil {
			return err
		}
		change = &LevelChange{Before: before, After: &after, Entry: entry}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return change, nil
}

func (m *Mongo) compareAndSet(ctx context.Context, before *models.Profile, set bson.M, entry *models.XPEntry) error {
	filter := bson.M{"_id": before.ID, "experience": before.Experience}
	res, err := m.profiles.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err == nil && res.MatchedCount == 0 {
		err = ErrConflict
	}
	if err != nil {
		if !errors.Is(err, ErrConflict) {
			err = fmt.Errorf("failed to update profile level: %w", err)
		}
		if entry != nil {
			return m.removeEntry(ctx, entry.ID, err)
		}
		return err
	}
	return nil
}

// removeEntry undoes a ledger insert whose profile write failed and returns
// cause. Inside a transaction the abort already discards the row. A failed
// delete is joined to cause as ErrOrphanedEntry.
func (m *Mongo) removeEntry(ctx context.Context, entryID primitive.ObjectID, cause error) error {
	if m.transactions {
		return cause
	}
	if _, err := m.ledger.DeleteOne(ctx, bson.M{"_id": entryID}); err != nil {
		return errors.Join(cause, fmt.Errorf("%w %s: %w", ErrOrphanedEntry, entryID.Hex(), err))
	}
	return cause
}

// CreateAdmin inserts a new admin account
func (m *Mongo) CreateAdmin(ctx context.Context, admin *models.Admin) error {
	now := time.Now()
	if admin.ID.IsZero() {
		admin.ID = primitive.NewObjectID()
	}
	admin.CreatedAt = now
	admin.UpdatedAt = now
	if _, err := m.admins.InsertOne(ctx, admin); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("failed to create admin: %w", err)
	}
	return nil
}

// GetAdminByEmail fetches an admin account
func (m *Mongo) GetAdminByEmail(ctx context.Context, email string) (*models.Admin, error) {
	var admin models.Admin
	if err := m.admins.FindOne(ctx, bson.M{"email": email}).Decode(&admin); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to fetch admin: %w", err)
	}
	return &admin, nil
}

// LogAdminAction appends to the admin audit log
func (m *Mongo) LogAdminAction(ctx context.Context, entry *models.AdminActionLog) error {
	if entry.ID.IsZero() {
		entry.ID = primitive.NewObjectID()
	}
	if _, err := m.adminLogs.InsertOne(ctx, entry); err != nil {
		return fmt.Errorf("failed to log admin action: %w", err)
	}
	return nil
}

// AdminLogs returns the most recent admin actions
func (m *Mongo) AdminLogs(ctx context.Context, limit int) ([]models.AdminActionLog, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}}).SetLimit(int64(limit))
	cursor, err := m.adminLogs.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch admin logs: %w", err)
	}
	defer cursor.Close(ctx)

	logs := []models.AdminActionLog{}
	if err := cursor.All(ctx, &logs); err != nil {
		return nil, fmt.Errorf("failed to decode admin logs: %w", err)
	}
	return logs, nil
}
