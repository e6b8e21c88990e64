package controller_test

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"authgate/internal/config"
	"authgate/internal/controller"
	"authgate/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/go-querystring/query"
	"gotest.tools/v3/assert"
)

type oidcFixture struct {
	router *gin.Engine
	client *service.ClientCredentials
	signer *service.SignerService
}

func newOIDCFixture(t *testing.T, userContext config.UserContext) *oidcFixture {
	t.Helper()

	databaseService := service.NewDatabaseService(service.DatabaseServiceConfig{
		DatabasePath: filepath.Join(t.TempDir(), "authgate.db"),
	})
	err := databaseService.Init()
	assert.NilError(t, err)
	database := databaseService.GetDatabase()

	registry := service.NewRegistryService(database)
	authorize := service.NewAuthorizeService(service.AuthorizeServiceConfig{}, database, registry)

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	assert.NilError(t, err)
	keyPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})

	signer := service.NewSignerService(service.SignerServiceConfig{
		Algorithm:  service.SigningAlgRS256,
		PrivateKey: string(keyPEM),
	})
	err = signer.Init()
	assert.NilError(t, err)

	tokens := service.NewTokenService(service.TokenServiceConfig{
		Issuer: "https://auth.example.com",
	}, database, registry, signer)

	credentials, err := registry.CreateClient(service.CreateClientInput{
		Name:           "Test App",
		RedirectURIs:   []string{"https://app.example.com/callback"},
		AllowedOrigins: []string{"https://app.example.com"},
		Scopes:         []string{"openid", "email"},
	})
	assert.NilError(t, err)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set("context", &userContext)
		c.Next()
	})

	oidcController := controller.NewOIDCController(controller.OIDCControllerConfig{
		AppURL:     "https://auth.example.com",
		Issuer:     "https://auth.example.com",
		LoginURL:   "https://auth.example.com/login",
		ConsentURL: "https://auth.example.com/oauth/consent",
	}, router.Group("/"), authorize, tokens, signer)
	oidcController.SetupRoutes()

	return &oidcFixture{
		router: router,
		client: credentials,
		signer: signer,
	}
}

func loggedInContext() config.UserContext {
	return config.UserContext{
		UserID:     "user-1",
		IsLoggedIn: true,
	}
}

func (f *oidcFixture) authorizeQuery(t *testing.T, request service.AuthorizeRequest) string {
	t.Helper()
	values, err := query.Values(request)
	assert.NilError(t, err)
	return values.Encode()
}

func (f *oidcFixture) validAuthorizeRequest() service.AuthorizeRequest {
	return service.AuthorizeRequest{
		ClientID:     f.client.ClientID,
		RedirectURI:  "https://app.example.com/callback",
		ResponseType: "code",
		Scope:        "openid email",
		State:        "some-state",
	}
}

// approve posts the consent decision and returns the query parameters of the
// resulting redirect back to the client.
func (f *oidcFixture) approve(t *testing.T, request service.AuthorizeRequest) url.Values {
	t.Helper()

	form, err := query.Values(request)
	assert.NilError(t, err)
	form.Set("decision", "approve")

	recorder := httptest.NewRecorder()
	req, err := http.NewRequest("POST", "/oauth/authorize", strings.NewReader(form.Encode()))
	assert.NilError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	f.router.ServeHTTP(recorder, req)
	assert.Equal(t, http.StatusFound, recorder.Code)

	location, err := url.Parse(recorder.Header().Get("Location"))
	assert.NilError(t, err)
	assert.Equal(t, "https://app.example.com/callback", location.Scheme+"://"+location.Host+location.Path)

	return location.Query()
}

func (f *oidcFixture) exchange(t *testing.T, form url.Values, basicAuth bool) *httptest.ResponseRecorder {
	t.Helper()

	recorder := httptest.NewRecorder()
	req, err := http.NewRequest("POST", "/oauth/token", strings.NewReader(form.Encode()))
	assert.NilError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if basicAuth {
		req.SetBasicAuth(f.client.ClientID, f.client.ClientSecret)
	}

	f.router.ServeHTTP(recorder, req)
	return recorder
}

func TestDiscoveryDocument(t *testing.T) {
	fixture := newOIDCFixture(t, loggedInContext())

	recorder := httptest.NewRecorder()
	req, err := http.NewRequest("GET", "/.well-known/openid-configuration", nil)
	assert.NilError(t, err)

	fixture.router.ServeHTTP(recorder, req)
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "public, max-age=3600, immutable", recorder.Header().Get("Cache-Control"))

	document := map[string]any{}
	err = json.Unmarshal(recorder.Body.Bytes(), &document)
	assert.NilError(t, err)

	assert.Equal(t, "https://auth.example.com", document["issuer"])
	assert.Equal(t, "https://auth.example.com/oauth/authorize", document["authorization_endpoint"])
	assert.Equal(t, "https://auth.example.com/oauth/token", document["token_endpoint"])
	assert.Equal(t, "https://auth.example.com/jwks.json", document["jwks_uri"])
}

func TestJWKSEndpoint(t *testing.T) {
	fixture := newOIDCFixture(t, loggedInContext())

	recorder := httptest.NewRecorder()
	req, err := http.NewRequest("GET", "/jwks.json", nil)
	assert.NilError(t, err)

	fixture.router.ServeHTTP(recorder, req)
	assert.Equal(t, http.StatusOK, recorder.Code)

	var document struct {
		Keys []map[string]any `json:"keys"`
	}
	err = json.Unmarshal(recorder.Body.Bytes(), &document)
	assert.NilError(t, err)
	assert.Equal(t, 1, len(document.Keys))

	key := document.Keys[0]
	assert.Equal(t, "RSA", key["kty"])
	assert.Equal(t, "RS256", key["alg"])
	assert.Assert(t, key["kid"] != "")
	assert.Assert(t, key["n"] != "")

	// The published key must never carry private material
	_, hasD := key["d"]
	assert.Assert(t, !hasD)
}

func TestAuthorizeRedirectsToLogin(t *testing.T) {
	fixture := newOIDCFixture(t, config.UserContext{})

	authorizeQuery := fixture.authorizeQuery(t, fixture.validAuthorizeRequest())

	recorder := httptest.NewRecorder()
	req, err := http.NewRequest("GET", "/oauth/authorize?"+authorizeQuery, nil)
	assert.NilError(t, err)

	fixture.router.ServeHTTP(recorder, req)
	assert.Equal(t, http.StatusFound, recorder.Code)

	location, err := url.Parse(recorder.Header().Get("Location"))
	assert.NilError(t, err)
	assert.Equal(t, "/login", location.Path)

	// The login page receives a callback that resumes the full request
	callback, err := url.Parse(location.Query().Get("redirect_uri"))
	assert.NilError(t, err)
	assert.Equal(t, "/oauth/authorize", callback.Path)
	assert.Equal(t, fixture.client.ClientID, callback.Query().Get("client_id"))
	assert.Equal(t, "some-state", callback.Query().Get("state"))
}

func TestAuthorizeRedirectsToConsent(t *testing.T) {
	fixture := newOIDCFixture(t, loggedInContext())

	authorizeQuery := fixture.authorizeQuery(t, fixture.validAuthorizeRequest())

	recorder := httptest.NewRecorder()
	req, err := http.NewRequest("GET", "/oauth/authorize?"+authorizeQuery, nil)
	assert.NilError(t, err)

	fixture.router.ServeHTTP(recorder, req)
	assert.Equal(t, http.StatusFound, recorder.Code)

	location, err := url.Parse(recorder.Header().Get("Location"))
	assert.NilError(t, err)
	assert.Equal(t, "/oauth/consent", location.Path)
	assert.Equal(t, authorizeQuery, location.RawQuery)
}

func TestAuthorizeUnknownClient(t *testing.T) {
	fixture := newOIDCFixture(t, loggedInContext())

	request := fixture.validAuthorizeRequest()
	request.ClientID = "missing"
	authorizeQuery := fixture.authorizeQuery(t, request)

	recorder := httptest.NewRecorder()
	req, err := http.NewRequest("GET", "/oauth/authorize?"+authorizeQuery, nil)
	assert.NilError(t, err)

	// No trusted redirect URI is established, so the error stays inline
	fixture.router.ServeHTTP(recorder, req)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)

	body := map[string]any{}
	err = json.Unmarshal(recorder.Body.Bytes(), &body)
	assert.NilError(t, err)
	assert.Equal(t, "unauthorized_client", body["error"])
}

func TestDecisionDeny(t *testing.T) {
	fixture := newOIDCFixture(t, loggedInContext())

	form, err := query.Values(fixture.validAuthorizeRequest())
	assert.NilError(t, err)
	form.Set("decision", "deny")

	recorder := httptest.NewRecorder()
	req, err := http.NewRequest("POST", "/oauth/authorize", strings.NewReader(form.Encode()))
	assert.NilError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	fixture.router.ServeHTTP(recorder, req)
	assert.Equal(t, http.StatusFound, recorder.Code)

	location, err := url.Parse(recorder.Header().Get("Location"))
	assert.NilError(t, err)
	assert.Equal(t, "access_denied", location.Query().Get("error"))
	assert.Equal(t, "some-state", location.Query().Get("state"))
}

func TestAuthorizationCodeFlow(t *testing.T) {
	fixture := newOIDCFixture(t, loggedInContext())

	params := fixture.approve(t, fixture.validAuthorizeRequest())
	assert.Equal(t, "some-state", params.Get("state"))

	code := params.Get("code")
	assert.Assert(t, code != "")

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", "https://app.example.com/callback")

	recorder := fixture.exchange(t, form, true)
	assert.Equal(t, http.StatusOK, recorder.Code)

	response := map[string]any{}
	err := json.Unmarshal(recorder.Body.Bytes(), &response)
	assert.NilError(t, err)
	assert.Equal(t, "Bearer", response["token_type"])
	assert.Equal(t, float64(3600), response["expires_in"])
	assert.Equal(t, "openid email", response["scope"])

	accessToken, ok := response["access_token"].(string)
	assert.Assert(t, ok)

	token, err := jwt.Parse(accessToken, func(token *jwt.Token) (interface{}, error) {
		return fixture.signer.PublicKey(), nil
	}, jwt.WithValidMethods([]string{"RS256"}))
	assert.NilError(t, err)

	claims := token.Claims.(jwt.MapClaims)
	assert.Equal(t, "https://auth.example.com", claims["iss"])
	assert.Equal(t, fixture.client.ClientID, claims["aud"])
	assert.Equal(t, "user-1", claims["sub"])
	assert.Equal(t, "openid email", claims["scope"])
	assert.Equal(t, fixture.signer.KeyID(), token.Header["kid"])

	// The code is single use
	recorder = fixture.exchange(t, form, true)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)

	response = map[string]any{}
	err = json.Unmarshal(recorder.Body.Bytes(), &response)
	assert.NilError(t, err)
	assert.Equal(t, "invalid_grant", response["error"])
}

func TestTokenClientSecretInBody(t *testing.T) {
	fixture := newOIDCFixture(t, loggedInContext())

	params := fixture.approve(t, fixture.validAuthorizeRequest())

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", params.Get("code"))
	form.Set("client_id", fixture.client.ClientID)
	form.Set("client_secret", fixture.client.ClientSecret)

	recorder := fixture.exchange(t, form, false)
	assert.Equal(t, http.StatusOK, recorder.Code)
}

func TestTokenInvalidClient(t *testing.T) {
	fixture := newOIDCFixture(t, loggedInContext())

	params := fixture.approve(t, fixture.validAuthorizeRequest())

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", params.Get("code"))
	form.Set("client_id", fixture.client.ClientID)
	form.Set("client_secret", "wrong")

	recorder := fixture.exchange(t, form, false)
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	assert.Equal(t, `Basic realm="oauth"`, recorder.Header().Get("WWW-Authenticate"))

	response := map[string]any{}
	err := json.Unmarshal(recorder.Body.Bytes(), &response)
	assert.NilError(t, err)
	assert.Equal(t, "invalid_client", response["error"])
}

func TestTokenUnsupportedGrantType(t *testing.T) {
	fixture := newOIDCFixture(t, loggedInContext())

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("code", "whatever")

	recorder := fixture.exchange(t, form, true)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)

	response := map[string]any{}
	err := json.Unmarshal(recorder.Body.Bytes(), &response)
	assert.NilError(t, err)
	assert.Equal(t, "unsupported_grant_type", response["error"])
}

func TestPKCEPublicClientFlow(t *testing.T) {
	fixture := newOIDCFixture(t, loggedInContext())

	verifier := "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	digest := sha256.Sum256([]byte(verifier))

	request := fixture.validAuthorizeRequest()
	request.CodeChallenge = base64.RawURLEncoding.EncodeToString(digest[:])
	request.CodeChallengeMethod = "S256"

	params := fixture.approve(t, request)

	// No client secret, the verifier authenticates the exchange
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", params.Get("code"))
	form.Set("client_id", fixture.client.ClientID)
	form.Set("code_verifier", verifier)

	recorder := fixture.exchange(t, form, false)
	assert.Equal(t, http.StatusOK, recorder.Code)

	response := map[string]any{}
	err := json.Unmarshal(recorder.Body.Bytes(), &response)
	assert.NilError(t, err)
	assert.Assert(t, response["access_token"] != "")
}
