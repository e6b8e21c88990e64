package service

import (
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/rs/zerolog/log"
)

const (
	SigningAlgRS256 = "RS256"
	SigningAlgHS256 = "HS256"
)

// ErrKeyUnavailable is returned when no usable key material is configured.
// The JWKS endpoint maps it to a bare 500 without the underlying cause.
var ErrKeyUnavailable = errors.New("signing key unavailable")

type SignerServiceConfig struct {
	Algorithm  string
	PrivateKey string // PEM, RS256
	Secret     string // shared secret, HS256
	KeyID      string // optional, derived from the public key when empty
}

type SignerService struct {
	config     SignerServiceConfig
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	keyID      string
}

func NewSignerService(config SignerServiceConfig) *SignerService {
	return &SignerService{
		config: config,
	}
}

func (signer *SignerService) Init() error {
	switch signer.config.Algorithm {
	case SigningAlgRS256:
		if signer.config.PrivateKey == "" {
			return ErrKeyUnavailable
		}

		privateKey, err := parseRSAPrivateKey(signer.config.PrivateKey)
		if err != nil {
			log.Error().Err(err).Msg("Failed to parse signing key")
			return ErrKeyUnavailable
		}

		signer.privateKey = privateKey
		signer.publicKey = &privateKey.PublicKey

		keyID, err := signer.resolveKeyID()
		if err != nil {
			return ErrKeyUnavailable
		}
		signer.keyID = keyID

		log.Info().Str("alg", SigningAlgRS256).Str("kid", signer.keyID).Msg("Token signer initialized")
		return nil
	case SigningAlgHS256:
		if signer.config.Secret == "" {
			return ErrKeyUnavailable
		}

		log.Info().Str("alg", SigningAlgHS256).Msg("Token signer initialized")
		return nil
	default:
		return fmt.Errorf("unsupported signing algorithm: %s", signer.config.Algorithm)
	}
}

// Sign produces a compact token over the claims. RS256 tokens carry the kid
// header so verifiers can match them against the published JWKS.
func (signer *SignerService) Sign(claims jwt.MapClaims) (string, error) {
	switch signer.config.Algorithm {
	case SigningAlgRS256:
		if signer.privateKey == nil {
			return "", ErrKeyUnavailable
		}
		token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
		token.Header["kid"] = signer.keyID
		return token.SignedString(signer.privateKey)
	case SigningAlgHS256:
		if signer.config.Secret == "" {
			return "", ErrKeyUnavailable
		}
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
		return token.SignedString([]byte(signer.config.Secret))
	default:
		return "", ErrKeyUnavailable
	}
}

// GetJWKS exports the public key as a JWK set. Only RS256 publishes keys,
// a shared HS256 secret has nothing safe to expose.
func (signer *SignerService) GetJWKS() (jwk.Set, error) {
	if signer.config.Algorithm != SigningAlgRS256 || signer.publicKey == nil {
		return nil, ErrKeyUnavailable
	}

	key, err := jwk.FromRaw(signer.publicKey)
	if err != nil {
		return nil, fmt.Errorf("failed to build JWK: %w", err)
	}

	if err := key.Set(jwk.KeyIDKey, signer.keyID); err != nil {
		return nil, err
	}
	if err := key.Set(jwk.AlgorithmKey, SigningAlgRS256); err != nil {
		return nil, err
	}
	if err := key.Set(jwk.KeyUsageKey, "sig"); err != nil {
		return nil, err
	}

	set := jwk.NewSet()
	if err := set.AddKey(key); err != nil {
		return nil, err
	}

	return set, nil
}

func (signer *SignerService) Algorithm() string {
	return signer.config.Algorithm
}

func (signer *SignerService) KeyID() string {
	return signer.keyID
}

// PublicKey returns the verification key, nil for HS256.
func (signer *SignerService) PublicKey() *rsa.PublicKey {
	return signer.publicKey
}

// resolveKeyID prefers the configured kid and otherwise derives one from the
// public key, so JWKS and token headers agree without coordination.
func (signer *SignerService) resolveKeyID() (string, error) {
	if signer.config.KeyID != "" {
		return signer.config.KeyID, nil
	}

	publicPEM, err := encodePublicKeyPEM(signer.publicKey)
	if err != nil {
		return "", err
	}

	digest := sha256.Sum256(publicPEM)
	return base64.RawURLEncoding.EncodeToString(digest[:]), nil
}

func parseRSAPrivateKey(privateKeyPEM string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(privateKeyPEM))
	if block == nil {
		return nil, errors.New("no PEM block found in private key")
	}

	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("private key is not an RSA key")
	}

	return key, nil
}

func encodePublicKeyPEM(publicKey *rsa.PublicKey) ([]byte, error) {
	publicBytes, err := x509.MarshalPKIXPublicKey(publicKey)
	if err != nil {
		return nil, err
	}

	return pem.EncodeToMemory(&pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: publicBytes,
	}), nil
}
