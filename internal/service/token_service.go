package service

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
	"time"

	"authgate/internal/model"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

type TokenRequest struct {
	Code         string
	ClientID     string
	ClientSecret string
	RedirectURI  string
	CodeVerifier string
}

type TokenGrant struct {
	AccessToken string
	ExpiresIn   int
	Scope       string
}

// TokenRejection is a typed token failure carrying the OAuth error code and
// the HTTP status it maps to.
type TokenRejection struct {
	Code        string
	Description string
	Status      int
}

type TokenServiceConfig struct {
	Issuer            string
	AccessTokenExpiry int // seconds
}

type TokenService struct {
	config   TokenServiceConfig
	database *gorm.DB
	registry *RegistryService
	signer   *SignerService
}

func NewTokenService(config TokenServiceConfig, database *gorm.DB, registry *RegistryService, signer *SignerService) *TokenService {
	if config.AccessTokenExpiry <= 0 {
		config.AccessTokenExpiry = 3600
	}
	return &TokenService{
		config:   config,
		database: database,
		registry: registry,
		signer:   signer,
	}
}

// Exchange redeems an authorization code for a signed access token. Client
// identity and authentication are checked before anything about the code's
// state is revealed, and the code is consumed with a conditional update so a
// concurrent redemption of the same code can succeed at most once.
func (tokens *TokenService) Exchange(req TokenRequest) (*TokenGrant, *TokenRejection) {
	if req.ClientID == "" {
		return nil, reject("invalid_request", "client_id is required.", http.StatusBadRequest)
	}
	if req.Code == "" {
		return nil, reject("invalid_request", "code is required.", http.StatusBadRequest)
	}

	var code model.AuthorizationCode
	err := tokens.database.Where("code = ?", req.Code).First(&code).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Error().Err(err).Msg("Failed to look up authorization code")
		}
		return nil, reject("invalid_grant", "Authorization code is invalid.", http.StatusBadRequest)
	}

	if code.ClientID != req.ClientID {
		return nil, reject("invalid_grant", "Authorization code does not match client.", http.StatusBadRequest)
	}

	client, err := tokens.registry.GetClient(req.ClientID)
	if err != nil || !client.IsActive {
		return nil, reject("invalid_client", "Client authentication failed.", http.StatusUnauthorized)
	}

	if req.ClientSecret != "" {
		if !VerifyClientSecret(req.ClientSecret, client.ClientSecretHash) {
			return nil, reject("invalid_client", "Client authentication failed.", http.StatusUnauthorized)
		}
	} else if code.CodeChallenge == "" {
		// Public clients get no secret, but then the code must carry a PKCE
		// binding.
		return nil, reject("invalid_client", "client_secret is required for this client.", http.StatusUnauthorized)
	}

	if req.RedirectURI != "" && req.RedirectURI != code.RedirectURI {
		return nil, reject("invalid_grant", "redirect_uri does not match authorization code.", http.StatusBadRequest)
	}

	if code.UsedAt != nil {
		return nil, reject("invalid_grant", "Authorization code already used.", http.StatusBadRequest)
	}

	now := time.Now()
	if code.ExpiresAt <= now.Unix() {
		return nil, reject("invalid_grant", "Authorization code expired.", http.StatusBadRequest)
	}

	if code.CodeChallenge != "" {
		if req.CodeVerifier == "" {
			return nil, reject("invalid_grant", "code_verifier is required.", http.StatusBadRequest)
		}
		computed := ComputePKCEChallenge(req.CodeVerifier, code.CodeChallengeMethod)
		if subtle.ConstantTimeCompare([]byte(computed), []byte(code.CodeChallenge)) != 1 {
			return nil, reject("invalid_grant", "code_verifier mismatch.", http.StatusBadRequest)
		}
	}

	// Consume the code. The affected-row count decides the race: only the
	// request that flips used_at from null wins.
	consumed := tokens.database.Model(&model.AuthorizationCode{}).
		Where("code = ? AND used_at IS NULL", code.Code).
		Update("used_at", now.Unix())

	if consumed.Error != nil {
		log.Error().Err(consumed.Error).Msg("Failed to consume authorization code")
		return nil, reject("invalid_grant", "Authorization code could not be redeemed.", http.StatusBadRequest)
	}

	if consumed.RowsAffected == 0 {
		return nil, reject("invalid_grant", "Authorization code already used.", http.StatusBadRequest)
	}

	scope := strings.Join(code.ScopeList(), " ")
	issuedAt := now.Unix()

	accessToken, err := tokens.signer.Sign(jwt.MapClaims{
		"iss":   tokens.config.Issuer,
		"aud":   code.ClientID,
		"sub":   code.UserID,
		"iat":   issuedAt,
		"exp":   issuedAt + int64(tokens.config.AccessTokenExpiry),
		"scope": scope,
	})

	if err != nil {
		log.Error().Err(err).Msg("Failed to sign access token")
		return nil, reject("invalid_grant", "Failed to issue access token.", http.StatusInternalServerError)
	}

	return &TokenGrant{
		AccessToken: accessToken,
		ExpiresIn:   tokens.config.AccessTokenExpiry,
		Scope:       scope,
	}, nil
}

func (tokens *TokenService) GetAccessTokenExpiry() int {
	return tokens.config.AccessTokenExpiry
}

// ComputePKCEChallenge derives the expected challenge from a verifier. S256
// hashes and base64url-encodes, plain is the identity transform.
func ComputePKCEChallenge(verifier string, method string) string {
	if method == PKCEMethodS256 {
		digest := sha256.Sum256([]byte(verifier))
		return base64.RawURLEncoding.EncodeToString(digest[:])
	}
	return verifier
}

func reject(code string, description string, status int) *TokenRejection {
	return &TokenRejection{
		Code:        code,
		Description: description,
		Status:      status,
	}
}
