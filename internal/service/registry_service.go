package service

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"authgate/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

var (
	ErrClientNotFound        = errors.New("client not found")
	ErrRedirectNotRegistered = errors.New("redirect URI is not registered for this client")
)

var loopbackHosts = map[string]bool{
	"localhost": true,
	"127.0.0.1": true,
}

var defaultClientScopes = []string{"openid", "email", "profile"}

type CreateClientInput struct {
	ClientID       string
	Name           string
	Description    string
	RedirectURIs   []string
	AllowedOrigins []string
	Scopes         []string
	CreatedBy      string
}

type ClientCredentials struct {
	ClientID     string
	ClientSecret string
}

type RegistryService struct {
	database *gorm.DB
}

func NewRegistryService(database *gorm.DB) *RegistryService {
	return &RegistryService{
		database: database,
	}
}

// CreateClient registers a new OAuth client and returns its credentials. The
// plaintext secret is returned exactly once, only its hash is stored.
func (registry *RegistryService) CreateClient(input CreateClientInput) (*ClientCredentials, error) {
	redirectURIs := NormalizeURLList(input.RedirectURIs)
	if len(redirectURIs) == 0 {
		return nil, errors.New("at least one redirect URI is required")
	}

	for _, uri := range redirectURIs {
		if err := ValidateRedirectURI(uri); err != nil {
			return nil, err
		}
	}

	origins := NormalizeURLList(input.AllowedOrigins)
	if len(origins) == 0 {
		return nil, errors.New("at least one allowed origin is required")
	}

	for _, origin := range origins {
		if err := ValidateAllowedOrigin(origin); err != nil {
			return nil, err
		}
	}

	scopes := NormalizeURLList(input.Scopes)
	if len(scopes) == 0 {
		scopes = defaultClientScopes
	}

	clientID := input.ClientID
	if clientID == "" {
		clientID = uuid.New().String()
	}

	clientSecret, err := GenerateClientSecret()
	if err != nil {
		return nil, fmt.Errorf("failed to generate client secret: %w", err)
	}

	now := time.Now().Unix()

	client := model.OAuthClient{
		ClientID:         clientID,
		ClientSecretHash: HashClientSecret(clientSecret),
		Name:             input.Name,
		Description:      input.Description,
		RedirectURIs:     encodeStringList(redirectURIs),
		AllowedOrigins:   encodeStringList(origins),
		Scopes:           encodeStringList(scopes),
		IsActive:         true,
		CreatedBy:        input.CreatedBy,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := registry.database.Create(&client).Error; err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	log.Info().Str("client_id", clientID).Str("name", input.Name).Msg("Registered OAuth client")

	return &ClientCredentials{
		ClientID:     clientID,
		ClientSecret: clientSecret,
	}, nil
}

// RotateClientSecret replaces the stored secret hash, invalidating the old
// secret immediately.
func (registry *RegistryService) RotateClientSecret(clientID string) (string, error) {
	if _, err := registry.GetClient(clientID); err != nil {
		return "", err
	}

	clientSecret, err := GenerateClientSecret()
	if err != nil {
		return "", fmt.Errorf("failed to generate client secret: %w", err)
	}

	err = registry.database.Model(&model.OAuthClient{}).
		Where("client_id = ?", clientID).
		Updates(map[string]interface{}{
			"client_secret_hash": HashClientSecret(clientSecret),
			"updated_at":         time.Now().Unix(),
		}).Error

	if err != nil {
		return "", fmt.Errorf("failed to rotate client secret: %w", err)
	}

	log.Info().Str("client_id", clientID).Msg("Rotated client secret")
	return clientSecret, nil
}

// DeactivateClient disables a client without deleting it, since issued codes
// may still reference it.
func (registry *RegistryService) DeactivateClient(clientID string) error {
	if _, err := registry.GetClient(clientID); err != nil {
		return err
	}

	err := registry.database.Model(&model.OAuthClient{}).
		Where("client_id = ?", clientID).
		Updates(map[string]interface{}{
			"is_active":  false,
			"updated_at": time.Now().Unix(),
		}).Error

	if err != nil {
		return fmt.Errorf("failed to deactivate client: %w", err)
	}

	log.Info().Str("client_id", clientID).Msg("Deactivated client")
	return nil
}

func (registry *RegistryService) GetClient(clientID string) (*model.OAuthClient, error) {
	var client model.OAuthClient
	err := registry.database.Where("client_id = ?", clientID).First(&client).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrClientNotFound
		}
		return nil, err
	}
	return &client, nil
}

func (registry *RegistryService) ListClients() ([]model.OAuthClient, error) {
	var clients []model.OAuthClient
	if err := registry.database.Order("created_at").Find(&clients).Error; err != nil {
		return nil, err
	}
	return clients, nil
}

// GenerateClientSecret returns a URL-safe secret with 256 bits of entropy.
func GenerateClientSecret() (string, error) {
	return generateToken(32)
}

func HashClientSecret(secret string) string {
	digest := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(digest[:])
}

// VerifyClientSecret recomputes the candidate's hash and compares it in
// constant time against the stored hash.
func VerifyClientSecret(secret string, storedHash string) bool {
	candidate := HashClientSecret(secret)
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(storedHash)) == 1
}

// NormalizeURLList trims entries, drops empty ones and removes duplicates
// while preserving order.
func NormalizeURLList(values []string) []string {
	seen := make(map[string]bool, len(values))
	normalized := make([]string, 0, len(values))

	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" || seen[trimmed] {
			continue
		}
		seen[trimmed] = true
		normalized = append(normalized, trimmed)
	}

	return normalized
}

func ValidateRedirectURI(uri string) error {
	parsed, err := url.Parse(uri)
	if err != nil {
		return fmt.Errorf("redirect URI is not a valid URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return errors.New("redirect URI must use http or https")
	}
	if parsed.Fragment != "" {
		return errors.New("redirect URI must not include fragments")
	}
	if parsed.Scheme == "http" && !loopbackHosts[parsed.Hostname()] {
		return errors.New("redirect URI must use https outside localhost")
	}
	return nil
}

func ValidateAllowedOrigin(origin string) error {
	parsed, err := url.Parse(origin)
	if err != nil {
		return fmt.Errorf("allowed origin is not a valid URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return errors.New("allowed origin must use http or https")
	}
	if (parsed.Path != "" && parsed.Path != "/") || parsed.RawQuery != "" || parsed.Fragment != "" {
		return errors.New("allowed origin must be a bare origin (no path/query/fragment)")
	}
	if parsed.Scheme == "http" && !loopbackHosts[parsed.Hostname()] {
		return errors.New("allowed origin must use https outside localhost")
	}
	return nil
}

// AssertRedirectURIAllowed validates the URI and requires exact membership in
// the registered set. No prefix or wildcard matching.
func AssertRedirectURIAllowed(redirectURI string, registeredURIs []string) error {
	if err := ValidateRedirectURI(redirectURI); err != nil {
		return err
	}
	for _, registered := range NormalizeURLList(registeredURIs) {
		if registered == redirectURI {
			return nil
		}
	}
	return ErrRedirectNotRegistered
}

func generateToken(bytes int) (string, error) {
	buf := make([]byte, bytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func encodeStringList(values []string) string {
	encoded, err := json.Marshal(values)
	if err != nil {
		return "[]"
	}
	return string(encoded)
}
