package model

type AuthorizationCode struct {
	Code                string `gorm:"column:code;primaryKey"`
	ClientID            string `gorm:"column:client_id;not null"`
	UserID              string `gorm:"column:user_id;not null"`
	RedirectURI         string `gorm:"column:redirect_uri;not null"`
	Scopes              string `gorm:"column:scopes;not null"` // JSON array
	CodeChallenge       string `gorm:"column:code_challenge"`
	CodeChallengeMethod string `gorm:"column:code_challenge_method"`
	ExpiresAt           int64  `gorm:"column:expires_at;not null"`
	UsedAt              *int64 `gorm:"column:used_at"`
	CreatedAt           int64  `gorm:"column:created_at;not null"`
}

func (AuthorizationCode) TableName() string {
	return "oauth_authorization_codes"
}

func (c *AuthorizationCode) ScopeList() []string {
	return decodeStringList(c.Scopes)
}
