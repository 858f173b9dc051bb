package model

import "time"

// LinkedInProfile is the OIDC userinfo payload cached alongside a credential.
type LinkedInProfile struct {
	Sub           string `json:"sub"            bson:"sub"`
	Name          string `json:"name"           bson:"name,omitempty"`
	GivenName     string `json:"given_name"     bson:"given_name,omitempty"`
	FamilyName    string `json:"family_name"    bson:"family_name,omitempty"`
	Picture       string `json:"picture"        bson:"picture,omitempty"`
	Email         string `json:"email"          bson:"email,omitempty"`
	EmailVerified bool   `json:"email_verified" bson:"email_verified,omitempty"`
	Locale        string `json:"locale"         bson:"locale,omitempty"`
}

// Credential stores the LinkedIn OAuth grant of a single user. There is at most
// one credential per UserID.
type Credential struct {
	ID           string           `json:"id"                bson:"_id"`
	UserID       string           `json:"userId"            bson:"userId"`
	AccessToken  string           `json:"-"                 bson:"accessToken"`
	RefreshToken string           `json:"-"                 bson:"refreshToken"`
	ExpiresAt    time.Time        `json:"expiresAt"         bson:"expiresAt"`
	Profile      *LinkedInProfile `json:"profile,omitempty" bson:"profile,omitempty"`
	CreatedAt    time.Time        `json:"createdAt"         bson:"createdAt"`
	UpdatedAt    time.Time        `json:"updatedAt"         bson:"updatedAt"`
}

// IsExpired is true once now reaches ExpiresAt.
func (c *Credential) IsExpired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// Usable reports whether c carries an access token at all.
func (c *Credential) Usable() bool {
	return c != nil && c.AccessToken != ""
}

// TokenGrant is the result of an OAuth code exchange or refresh.
type TokenGrant struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}
