package model

import "encoding/json"

type OAuthClient struct {
	ClientID         string `gorm:"column:client_id;primaryKey"`
	ClientSecretHash string `gorm:"column:client_secret_hash;not null"`
	Name             string `gorm:"column:name;not null"`
	Description      string `gorm:"column:description"`
	RedirectURIs     string `gorm:"column:redirect_uris;not null"`   // JSON array
	AllowedOrigins   string `gorm:"column:allowed_origins;not null"` // JSON array
	Scopes           string `gorm:"column:scopes;not null"`          // JSON array
	IsActive         bool   `gorm:"column:is_active;default:true"`
	CreatedBy        string `gorm:"column:created_by"`
	CreatedAt        int64  `gorm:"column:created_at"`
	UpdatedAt        int64  `gorm:"column:updated_at"`
}

func (OAuthClient) TableName() string {
	return "oauth_clients"
}

func (c *OAuthClient) RedirectURIList() []string {
	return decodeStringList(c.RedirectURIs)
}

func (c *OAuthClient) AllowedOriginList() []string {
	return decodeStringList(c.AllowedOrigins)
}

func (c *OAuthClient) ScopeList() []string {
	return decodeStringList(c.Scopes)
}

func decodeStringList(raw string) []string {
	var list []string
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return nil
	}
	return list
}
