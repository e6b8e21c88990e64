package service_test

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"strings"
	"testing"

	"authgate/internal/service"

	"github.com/golang-jwt/jwt/v5"
	"gotest.tools/v3/assert"
)

func testPrivateKeyPEM(t *testing.T) string {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	assert.NilError(t, err)

	return string(pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	}))
}

func newTestSigner(t *testing.T) *service.SignerService {
	t.Helper()

	signer := service.NewSignerService(service.SignerServiceConfig{
		Algorithm:  service.SigningAlgRS256,
		PrivateKey: testPrivateKeyPEM(t),
	})
	assert.NilError(t, signer.Init())

	return signer
}

func TestSignerRS256(t *testing.T) {
	signer := newTestSigner(t)

	signed, err := signer.Sign(jwt.MapClaims{
		"iss": "https://auth.example.com",
		"sub": "u1",
	})
	assert.NilError(t, err)
	assert.Equal(t, 3, len(strings.Split(signed, ".")))

	token, err := jwt.Parse(signed, func(token *jwt.Token) (interface{}, error) {
		return signer.PublicKey(), nil
	}, jwt.WithValidMethods([]string{"RS256"}))
	assert.NilError(t, err)
	assert.Assert(t, token.Valid)

	// Token header kid matches the published one
	assert.Equal(t, signer.KeyID(), token.Header["kid"])

	claims := token.Claims.(jwt.MapClaims)
	assert.Equal(t, "u1", claims["sub"])
}

func TestSignerHS256(t *testing.T) {
	signer := service.NewSignerService(service.SignerServiceConfig{
		Algorithm: service.SigningAlgHS256,
		Secret:    "a-shared-secret-between-trusted-parties",
	})
	assert.NilError(t, signer.Init())

	signed, err := signer.Sign(jwt.MapClaims{"sub": "u1"})
	assert.NilError(t, err)

	token, err := jwt.Parse(signed, func(token *jwt.Token) (interface{}, error) {
		return []byte("a-shared-secret-between-trusted-parties"), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	assert.NilError(t, err)
	assert.Assert(t, token.Valid)

	// No public key to publish
	_, err = signer.GetJWKS()
	assert.ErrorIs(t, err, service.ErrKeyUnavailable)
}

func TestSignerConfiguredKeyID(t *testing.T) {
	signer := service.NewSignerService(service.SignerServiceConfig{
		Algorithm:  service.SigningAlgRS256,
		PrivateKey: testPrivateKeyPEM(t),
		KeyID:      "my-key-2026",
	})
	assert.NilError(t, signer.Init())
	assert.Equal(t, "my-key-2026", signer.KeyID())
}

func TestSignerMissingKeys(t *testing.T) {
	signer := service.NewSignerService(service.SignerServiceConfig{
		Algorithm: service.SigningAlgRS256,
	})
	assert.ErrorIs(t, signer.Init(), service.ErrKeyUnavailable)

	signer = service.NewSignerService(service.SignerServiceConfig{
		Algorithm:  service.SigningAlgRS256,
		PrivateKey: "not a pem block",
	})
	assert.ErrorIs(t, signer.Init(), service.ErrKeyUnavailable)

	signer = service.NewSignerService(service.SignerServiceConfig{
		Algorithm: service.SigningAlgHS256,
	})
	assert.ErrorIs(t, signer.Init(), service.ErrKeyUnavailable)
}

func TestJWKSNeverLeaksPrivateComponents(t *testing.T) {
	signer := newTestSigner(t)

	for i := 0; i < 3; i++ {
		jwks, err := signer.GetJWKS()
		assert.NilError(t, err)

		encoded, err := json.Marshal(jwks)
		assert.NilError(t, err)

		var document struct {
			Keys []map[string]interface{} `json:"keys"`
		}
		err = json.Unmarshal(encoded, &document)
		assert.NilError(t, err)
		assert.Equal(t, 1, len(document.Keys))

		key := document.Keys[0]
		assert.Equal(t, "RSA", key["kty"])
		assert.Equal(t, "RS256", key["alg"])
		assert.Equal(t, "sig", key["use"])
		assert.Equal(t, signer.KeyID(), key["kid"])
		assert.Assert(t, key["n"] != nil)
		assert.Assert(t, key["e"] != nil)

		for _, private := range []string{"d", "p", "q", "dp", "dq", "qi"} {
			_, present := key[private]
			assert.Assert(t, !present, "JWKS must not contain %q", private)
		}
	}
}
