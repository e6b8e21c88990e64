package controller

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"authgate/internal/service"
	"authgate/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const cacheControlImmutable = "public, max-age=3600, immutable"

type OIDCControllerConfig struct {
	AppURL     string
	Issuer     string
	LoginURL   string
	ConsentURL string
}

type OIDCController struct {
	config    OIDCControllerConfig
	router    *gin.RouterGroup
	authorize *service.AuthorizeService
	token     *service.TokenService
	signer    *service.SignerService
}

func NewOIDCController(config OIDCControllerConfig, router *gin.RouterGroup, authorize *service.AuthorizeService, token *service.TokenService, signer *service.SignerService) *OIDCController {
	return &OIDCController{
		config:    config,
		router:    router,
		authorize: authorize,
		token:     token,
		signer:    signer,
	}
}

func (controller *OIDCController) SetupRoutes() {
	controller.router.GET("/.well-known/openid-configuration", controller.discoveryHandler)
	controller.router.GET("/jwks.json", controller.jwksHandler)

	oauthGroup := controller.router.Group("/oauth")
	oauthGroup.GET("/authorize", controller.authorizeHandler)
	oauthGroup.POST("/authorize", controller.decisionHandler)
	oauthGroup.POST("/token", controller.tokenHandler)
}

// discoveryHandler serves static metadata. Every endpoint URL is derived from
// the configured issuer so the document can never disagree with itself.
func (controller *OIDCController) discoveryHandler(c *gin.Context) {
	issuer := strings.TrimSuffix(controller.config.Issuer, "/")

	c.Header("Cache-Control", cacheControlImmutable)
	c.JSON(http.StatusOK, gin.H{
		"issuer":                                issuer,
		"jwks_uri":                              issuer + "/jwks.json",
		"authorization_endpoint":                issuer + "/oauth/authorize",
		"token_endpoint":                        issuer + "/oauth/token",
		"response_types_supported":              []string{"code"},
		"subject_types_supported":               []string{"public"},
		"id_token_signing_alg_values_supported": []string{"RS256"},
		"scopes_supported":                      []string{"openid", "email", "profile"},
		"grant_types_supported":                 []string{"authorization_code"},
		"token_endpoint_auth_methods_supported": []string{"client_secret_post", "client_secret_basic"},
		"code_challenge_methods_supported":      []string{"plain", "S256"},
	})
}

func (controller *OIDCController) jwksHandler(c *gin.Context) {
	jwks, err := controller.signer.GetJWKS()
	if err != nil {
		// Configuration fault: full cause in the logs, nothing to the client.
		log.Error().Err(err).Msg("JWKS unavailable")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "jwks_unavailable",
		})
		return
	}

	c.Header("Cache-Control", cacheControlImmutable)
	c.JSON(http.StatusOK, jwks)
}

// authorizeHandler is the browser entry point of the flow: validate the
// request, make sure a user is logged in and hand the request off to the
// consent UI verbatim.
func (controller *OIDCController) authorizeHandler(c *gin.Context) {
	request := authorizeRequestFromQuery(c)

	_, rejection := controller.authorize.ValidateRequest(request)
	if rejection != nil {
		controller.rejectAuthorize(c, rejection)
		return
	}

	userContext, err := utils.GetContext(c)
	if err != nil || !userContext.IsLoggedIn {
		callback := controller.authorizeCallbackURL(c.Request.URL.RawQuery)
		controller.redirectToLogin(c, callback)
		return
	}

	consentURL, err := url.Parse(controller.config.ConsentURL)
	if err != nil {
		log.Error().Err(err).Msg("Invalid consent URL")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":             "server_error",
			"error_description": "Consent page is unavailable.",
		})
		return
	}

	consentURL.RawQuery = c.Request.URL.RawQuery
	c.Redirect(http.StatusFound, consentURL.String())
}

// decisionHandler completes the flow once the consent UI posts the user's
// decision back. Approval issues a code, denial redirects with access_denied.
func (controller *OIDCController) decisionHandler(c *gin.Context) {
	request := authorizeRequestFromForm(c)
	decision := c.PostForm("decision")

	validated, rejection := controller.authorize.ValidateRequest(request)
	if rejection != nil {
		controller.rejectAuthorize(c, rejection)
		return
	}

	userContext, err := utils.GetContext(c)
	if err != nil || !userContext.IsLoggedIn {
		callback := controller.authorizeCallbackURL(buildAuthorizeQuery(request))
		controller.redirectToLogin(c, callback)
		return
	}

	if decision != "approve" {
		controller.redirectWithParams(c, validated.RedirectURI, map[string]string{
			"error": "access_denied",
			"state": validated.State,
		})
		return
	}

	issued, err := controller.authorize.CreateAuthorizationCode(
		validated.Client.ClientID,
		userContext.UserID,
		validated.RedirectURI,
		validated.Scopes,
		validated.CodeChallenge,
		validated.CodeChallengeMethod,
	)

	if err != nil {
		log.Error().Err(err).Msg("Failed to issue authorization code")
		controller.redirectWithParams(c, validated.RedirectURI, map[string]string{
			"error":             "server_error",
			"error_description": "Failed to issue authorization code.",
			"state":             validated.State,
		})
		return
	}

	controller.redirectWithParams(c, validated.RedirectURI, map[string]string{
		"code":  issued.Code,
		"state": validated.State,
	})
}

func (controller *OIDCController) tokenHandler(c *gin.Context) {
	body := readTokenRequestBody(c)

	if strings.TrimSpace(body.GrantType) != "authorization_code" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             "unsupported_grant_type",
			"error_description": "Only authorization_code is supported.",
		})
		return
	}

	clientID, clientSecret := body.ClientID, body.ClientSecret

	// Basic auth credentials win over body-supplied ones.
	if basicID, basicSecret, ok := parseBasicAuth(c); ok {
		clientID, clientSecret = basicID, basicSecret
	}

	grant, rejection := controller.token.Exchange(service.TokenRequest{
		Code:         body.Code,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURI:  body.RedirectURI,
		CodeVerifier: body.CodeVerifier,
	})

	if rejection != nil {
		if rejection.Code == "invalid_client" {
			c.Header("WWW-Authenticate", `Basic realm="oauth"`)
		}
		c.JSON(rejection.Status, gin.H{
			"error":             rejection.Code,
			"error_description": rejection.Description,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token": grant.AccessToken,
		"token_type":   "Bearer",
		"expires_in":   grant.ExpiresIn,
		"scope":        grant.Scope,
	})
}

// Helpers

type tokenRequestBody struct {
	GrantType    string `form:"grant_type" json:"grant_type"`
	Code         string `form:"code" json:"code"`
	RedirectURI  string `form:"redirect_uri" json:"redirect_uri"`
	ClientID     string `form:"client_id" json:"client_id"`
	ClientSecret string `form:"client_secret" json:"client_secret"`
	CodeVerifier string `form:"code_verifier" json:"code_verifier"`
}

func readTokenRequestBody(c *gin.Context) tokenRequestBody {
	var body tokenRequestBody

	if strings.Contains(c.ContentType(), "application/json") {
		if err := c.ShouldBindJSON(&body); err != nil {
			log.Debug().Err(err).Msg("Failed to parse token request body")
		}
		return body
	}

	body.GrantType = c.PostForm("grant_type")
	body.Code = c.PostForm("code")
	body.RedirectURI = c.PostForm("redirect_uri")
	body.ClientID = c.PostForm("client_id")
	body.ClientSecret = c.PostForm("client_secret")
	body.CodeVerifier = c.PostForm("code_verifier")
	return body
}

func parseBasicAuth(c *gin.Context) (string, string, bool) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Basic ") {
		return "", "", false
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(strings.TrimPrefix(header, "Basic ")))
	if err != nil {
		return "", "", false
	}

	clientID, clientSecret, found := strings.Cut(string(decoded), ":")
	if !found || clientID == "" {
		return "", "", false
	}

	return clientID, clientSecret, true
}

func authorizeRequestFromQuery(c *gin.Context) service.AuthorizeRequest {
	return service.AuthorizeRequest{
		ClientID:            c.Query("client_id"),
		RedirectURI:         c.Query("redirect_uri"),
		ResponseType:        c.Query("response_type"),
		Scope:               c.Query("scope"),
		State:               c.Query("state"),
		CodeChallenge:       c.Query("code_challenge"),
		CodeChallengeMethod: c.Query("code_challenge_method"),
	}
}

func authorizeRequestFromForm(c *gin.Context) service.AuthorizeRequest {
	return service.AuthorizeRequest{
		ClientID:            c.PostForm("client_id"),
		RedirectURI:         c.PostForm("redirect_uri"),
		ResponseType:        c.PostForm("response_type"),
		Scope:               c.PostForm("scope"),
		State:               c.PostForm("state"),
		CodeChallenge:       c.PostForm("code_challenge"),
		CodeChallengeMethod: c.PostForm("code_challenge_method"),
	}
}

// rejectAuthorize delivers a validation failure by redirect when the redirect
// URI is already trusted, inline otherwise. Never redirects to an unvalidated
// URI.
func (controller *OIDCController) rejectAuthorize(c *gin.Context, rejection *service.AuthorizeRejection) {
	if rejection.RedirectURI == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             rejection.Code,
			"error_description": rejection.Description,
		})
		return
	}

	controller.redirectWithParams(c, rejection.RedirectURI, map[string]string{
		"error":             rejection.Code,
		"error_description": rejection.Description,
		"state":             rejection.State,
	})
}

// authorizeCallbackURL rebuilds the GET authorize URL for the given query so
// the flow resumes verbatim after login.
func (controller *OIDCController) authorizeCallbackURL(rawQuery string) string {
	callback := fmt.Sprintf("%s/oauth/authorize", strings.TrimSuffix(controller.config.AppURL, "/"))
	if rawQuery != "" {
		callback = callback + "?" + rawQuery
	}
	return callback
}

func buildAuthorizeQuery(request service.AuthorizeRequest) string {
	query := url.Values{}
	set := func(key string, value string) {
		if value != "" {
			query.Set(key, value)
		}
	}
	set("client_id", request.ClientID)
	set("redirect_uri", request.RedirectURI)
	set("response_type", request.ResponseType)
	set("scope", request.Scope)
	set("state", request.State)
	set("code_challenge", request.CodeChallenge)
	set("code_challenge_method", request.CodeChallengeMethod)
	return query.Encode()
}

// redirectToLogin bounces an unauthenticated user to the login entry point
// carrying the callback that resumes the original authorize request.
func (controller *OIDCController) redirectToLogin(c *gin.Context, callback string) {
	loginURL, err := url.Parse(controller.config.LoginURL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":             "server_error",
			"error_description": "Login page is unavailable.",
		})
		return
	}

	query := loginURL.Query()
	query.Set("redirect_uri", callback)
	loginURL.RawQuery = query.Encode()

	c.Redirect(http.StatusFound, loginURL.String())
}

func (controller *OIDCController) redirectWithParams(c *gin.Context, redirectURI string, params map[string]string) {
	target, err := url.Parse(redirectURI)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             "invalid_request",
			"error_description": "Invalid redirect_uri.",
		})
		return
	}

	query := target.Query()
	for key, value := range params {
		if value != "" {
			query.Set(key, value)
		}
	}
	target.RawQuery = query.Encode()

	c.Redirect(http.StatusFound, target.String())
}
