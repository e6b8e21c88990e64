package service

import (
	"fmt"
	"strings"
	"time"

	"authgate/internal/config"
	"authgate/internal/model"

	"gorm.io/gorm"
)

const (
	PKCEMethodS256  = "S256"
	PKCEMethodPlain = "plain"
)

type AuthorizeRequest struct {
	ClientID            string `form:"client_id" json:"client_id" url:"client_id,omitempty"`
	RedirectURI         string `form:"redirect_uri" json:"redirect_uri" url:"redirect_uri,omitempty"`
	ResponseType        string `form:"response_type" json:"response_type" url:"response_type,omitempty"`
	Scope               string `form:"scope" json:"scope" url:"scope,omitempty"`
	State               string `form:"state" json:"state" url:"state,omitempty"`
	CodeChallenge       string `form:"code_challenge" json:"code_challenge" url:"code_challenge,omitempty"`
	CodeChallengeMethod string `form:"code_challenge_method" json:"code_challenge_method" url:"code_challenge_method,omitempty"`
}

// AuthorizeRejection is a typed authorize failure. RedirectURI is only set
// once the redirect target has been validated against the client, so callers
// can safely deliver the error by redirect.
type AuthorizeRejection struct {
	Code        string
	Description string
	RedirectURI string
	State       string
}

type ValidatedAuthorization struct {
	Client              *model.OAuthClient
	RedirectURI         string
	Scopes              []string
	State               string
	CodeChallenge       string
	CodeChallengeMethod string
}

type IssuedCode struct {
	Code      string
	ExpiresAt time.Time
}

type AuthorizeServiceConfig struct {
	CodeExpiry int // seconds
}

type AuthorizeService struct {
	config   AuthorizeServiceConfig
	database *gorm.DB
	registry *RegistryService
}

func NewAuthorizeService(config AuthorizeServiceConfig, database *gorm.DB, registry *RegistryService) *AuthorizeService {
	if config.CodeExpiry <= 0 {
		config.CodeExpiry = 600
	}
	return &AuthorizeService{
		config:   config,
		database: database,
		registry: registry,
	}
}

// ValidateRequest checks an authorization request against the client record.
// The check order is fixed: each step assumes the previous ones passed, and
// rejections only carry a redirect URI after it has been validated.
func (authorize *AuthorizeService) ValidateRequest(req AuthorizeRequest) (*ValidatedAuthorization, *AuthorizeRejection) {
	if req.ResponseType != "" && req.ResponseType != "code" {
		return nil, &AuthorizeRejection{
			Code:        "unsupported_response_type",
			Description: "Only response_type=code is supported.",
		}
	}

	clientID := strings.TrimSpace(req.ClientID)
	if clientID == "" {
		return nil, &AuthorizeRejection{
			Code:        "invalid_request",
			Description: "client_id is required.",
		}
	}

	client, err := authorize.registry.GetClient(clientID)
	if err != nil || !client.IsActive {
		// Unknown and inactive clients get the same answer so the endpoint
		// cannot be used to probe which client ids exist.
		return nil, &AuthorizeRejection{
			Code:        "unauthorized_client",
			Description: "Client is not authorized.",
		}
	}

	redirectURI := resolveRedirectURI(strings.TrimSpace(req.RedirectURI), client)
	if redirectURI == "" {
		return nil, &AuthorizeRejection{
			Code:        "invalid_request",
			Description: "redirect_uri is required.",
		}
	}

	if err := AssertRedirectURIAllowed(redirectURI, client.RedirectURIList()); err != nil {
		return nil, &AuthorizeRejection{
			Code:        "invalid_request",
			Description: err.Error(),
		}
	}

	// The redirect URI is validated from here on, rejections may redirect.

	scopes := parseScopes(req.Scope)
	supported := make(map[string]bool, len(config.SupportedScopes))
	for _, scope := range config.SupportedScopes {
		supported[scope] = true
	}
	registered := make(map[string]bool)
	for _, scope := range client.ScopeList() {
		registered[scope] = true
	}

	for _, scope := range scopes {
		if !supported[scope] {
			return nil, &AuthorizeRejection{
				Code:        "invalid_scope",
				Description: fmt.Sprintf("Scope %s is not supported.", scope),
				RedirectURI: redirectURI,
				State:       req.State,
			}
		}
		if !registered[scope] {
			return nil, &AuthorizeRejection{
				Code:        "invalid_scope",
				Description: fmt.Sprintf("Scope %s is not allowed for this client.", scope),
				RedirectURI: redirectURI,
				State:       req.State,
			}
		}
	}

	codeChallenge := req.CodeChallenge
	codeChallengeMethod := req.CodeChallengeMethod

	if codeChallengeMethod != "" && codeChallenge == "" {
		return nil, &AuthorizeRejection{
			Code:        "invalid_request",
			Description: "code_challenge is required when code_challenge_method is provided.",
			RedirectURI: redirectURI,
			State:       req.State,
		}
	}

	if codeChallenge != "" {
		if codeChallengeMethod == "" {
			codeChallengeMethod = PKCEMethodPlain
		}
		if codeChallengeMethod != PKCEMethodS256 && codeChallengeMethod != PKCEMethodPlain {
			return nil, &AuthorizeRejection{
				Code:        "invalid_request",
				Description: "code_challenge_method must be S256 or plain.",
				RedirectURI: redirectURI,
				State:       req.State,
			}
		}
	}

	return &ValidatedAuthorization{
		Client:              client,
		RedirectURI:         redirectURI,
		Scopes:              scopes,
		State:               req.State,
		CodeChallenge:       codeChallenge,
		CodeChallengeMethod: codeChallengeMethod,
	}, nil
}

// CreateAuthorizationCode mints and persists a single-use code bound to the
// user, client, redirect URI, scopes and optional PKCE challenge. Consent is
// the caller's responsibility.
func (authorize *AuthorizeService) CreateAuthorizationCode(clientID string, userID string, redirectURI string, scopes []string, codeChallenge string, codeChallengeMethod string) (*IssuedCode, error) {
	code, err := generateToken(32)
	if err != nil {
		return nil, fmt.Errorf("failed to generate authorization code: %w", err)
	}

	now := time.Now()
	expiresAt := now.Add(time.Duration(authorize.config.CodeExpiry) * time.Second)

	record := model.AuthorizationCode{
		Code:                code,
		ClientID:            clientID,
		UserID:              userID,
		RedirectURI:         redirectURI,
		Scopes:              encodeStringList(scopes),
		CodeChallenge:       codeChallenge,
		CodeChallengeMethod: codeChallengeMethod,
		ExpiresAt:           expiresAt.Unix(),
		CreatedAt:           now.Unix(),
	}

	if err := authorize.database.Create(&record).Error; err != nil {
		return nil, fmt.Errorf("failed to persist authorization code: %w", err)
	}

	return &IssuedCode{
		Code:      code,
		ExpiresAt: expiresAt,
	}, nil
}

// DeleteExpiredCodes removes codes that can no longer be redeemed. Purely
// storage hygiene, correctness never depends on it.
func (authorize *AuthorizeService) DeleteExpiredCodes() (int64, error) {
	result := authorize.database.
		Where("expires_at <= ?", time.Now().Unix()).
		Delete(&model.AuthorizationCode{})
	return result.RowsAffected, result.Error
}

// resolveRedirectURI falls back to the sole registered URI when the request
// omits one. A deliberate, auditable default: with more than one registered
// URI the request must name its target.
func resolveRedirectURI(requested string, client *model.OAuthClient) string {
	if requested != "" {
		return requested
	}
	registered := client.RedirectURIList()
	if len(registered) == 1 {
		return registered[0]
	}
	return ""
}

// parseScopes splits the scope parameter on whitespace. An empty or omitted
// scope defaults to openid.
func parseScopes(scope string) []string {
	fields := strings.Fields(scope)
	if len(fields) == 0 {
		return []string{"openid"}
	}
	return fields
}
