package models

import (
	"github.com/maxaizer/talent-intake/internal/normalize"
	"time"
)

type Candidate struct {
	ID             int
	ExternalID     string `gorm:"uniqueIndex;size:8;not null"`
	Name           string
	NormalizedName string `gorm:"index"`
	ProfileURL     string
	NormalizedURL  string `gorm:"index"`
	Email          string `gorm:"index"`
	Headline       string
	Location       string
	Phone          string
	Source         string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Profile holds the optional passthrough fields of a candidate.
type Profile struct {
	Headline string
	Location string
	Phone    string
}

func NewCandidate(externalID string, identity Identity, profile Profile, source IntakeSource) Candidate {
	return Candidate{
		ExternalID:     externalID,
		Name:           identity.Name,
		NormalizedName: normalize.Name(identity.Name),
		ProfileURL:     identity.ProfileURL,
		NormalizedURL:  normalize.URL(identity.ProfileURL),
		Email:          normalize.Email(identity.Email),
		Headline:       profile.Headline,
		Location:       profile.Location,
		Phone:          profile.Phone,
		Source:         string(source),
	}
}

// Identity is the raw identifying part of an intake request.
type Identity struct {
	Name       string `validate:"required_without=ProfileURL,max=256"`
	ProfileURL string `validate:"max=1024"`
	Email      string `validate:"omitempty,email"`
}

// NormalizedIdentity is the comparable form of Identity.
type NormalizedIdentity struct {
	Name  string
	URL   string
	Email string
}

func (i Identity) Normalize() NormalizedIdentity {
	return NormalizedIdentity{
		Name:  normalize.Name(i.Name),
		URL:   normalize.URL(i.ProfileURL),
		Email: normalize.Email(i.Email),
	}
}

func (n NormalizedIdentity) IsEmpty() bool {
	return n.Name == "" && n.URL == ""
}

// Key identifies the person for locking purposes. Callers clear URL first
// when it is not a trusted profile url. Empty when nothing is left to key on.
func (n NormalizedIdentity) Key() string {
	switch {
	case n.URL != "":
		return "url:" + n.URL
	case n.Name != "":
		return "name:" + n.Name
	default:
		return ""
	}
}

type IntakeSource string

const (
	SourceManual   IntakeSource = "manual"
	SourceBatch    IntakeSource = "batch"
	SourceCallback IntakeSource = "callback"
)
