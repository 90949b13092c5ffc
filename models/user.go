package models

import (
	"maps"
	"slices"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Profile defines a member profile together with its level fields
type Profile struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Email       string             `bson:"email" json:"email"`
	Username    string             `bson:"username,omitempty" json:"username,omitempty"`
	DisplayName string             `bson:"displayName" json:"displayName"`
	AvatarURL   string             `bson:"avatarUrl,omitempty" json:"avatarUrl,omitempty"`
	Bio         string             `bson:"bio" json:"bio"`
	Website     string             `bson:"website,omitempty" json:"website,omitempty"`
	SocialLinks map[string]string  `bson:"socialLinks,omitempty" json:"socialLinks,omitempty"`
	Speaks      []string           `bson:"speaks,omitempty" json:"speaks,omitempty"`
	Learning    []string           `bson:"learning,omitempty" json:"learning,omitempty"`
	Experience  int                `bson:"experience" json:"experience"`
	Level       int                `bson:"level" json:"level"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// ProfileFields is the user-editable part of a profile
type ProfileFields struct {
	Username    string            `bson:"username,omitempty" json:"username"`
	DisplayName string            `bson:"displayName" json:"displayName"`
	AvatarURL   string            `bson:"avatarUrl,omitempty" json:"avatarUrl"`
	Bio         string            `bson:"bio" json:"bio"`
	Website     string            `bson:"website,omitempty" json:"website"`
	SocialLinks map[string]string `bson:"socialLinks,omitempty" json:"socialLinks"`
	Speaks      []string          `bson:"speaks,omitempty" json:"speaks"`
	Learning    []string          `bson:"learning,omitempty" json:"learning"`
}

// Fields extracts the editable fields of a profile
func (p *Profile) Fields() ProfileFields {
	return ProfileFields{
		Username:    p.Username,
		DisplayName: p.DisplayName,
		AvatarURL:   p.AvatarURL,
		Bio:         p.Bio,
		Website:     p.Website,
		SocialLinks: p.SocialLinks,
		Speaks:      p.Speaks,
		Learning:    p.Learning,
	}
}

// ApplyFields overwrites the editable fields of a profile
func (p *Profile) ApplyFields(f ProfileFields) {
	p.Username = strings.TrimSpace(f.Username)
	p.DisplayName = strings.TrimSpace(f.DisplayName)
	p.AvatarURL = strings.TrimSpace(f.AvatarURL)
	p.Bio = f.Bio
	p.Website = strings.TrimSpace(f.Website)
	p.SocialLinks = f.SocialLinks
	p.Speaks = f.Speaks
	p.Learning = f.Learning
}

// Clone returns a copy that shares no maps or slices with p
func (p *Profile) Clone() *Profile {
	cp := *p
	cp.SocialLinks = maps.Clone(p.SocialLinks)
	cp.Speaks = slices.Clone(p.Speaks)
	cp.Learning = slices.Clone(p.Learning)
	return &cp
}
