package config

// Version information, set at build time

var Version = "development"
var CommitHash = "development"
var BuildTimestamp = "0000-00-00T00:00:00Z"

// Main app config

type Config struct {
	Port              int    `mapstructure:"port" validate:"required"`
	Address           string `mapstructure:"address" validate:"required,ip4_addr"`
	AppURL            string `mapstructure:"app-url" validate:"required,url"`
	Issuer            string `mapstructure:"issuer"`
	LoginURL          string `mapstructure:"login-url"`
	ConsentURL        string `mapstructure:"consent-url"`
	DatabasePath      string `mapstructure:"database-path" validate:"required"`
	LogLevel          string `mapstructure:"log-level" validate:"oneof=trace debug info warn error fatal panic"`
	SigningAlg        string `mapstructure:"signing-alg" validate:"oneof=RS256 HS256"`
	PrivateKey        string `mapstructure:"private-key"`
	PrivateKeyFile    string `mapstructure:"private-key-file"`
	SigningSecret     string `mapstructure:"signing-secret"`
	SigningSecretFile string `mapstructure:"signing-secret-file"`
	KeyID             string `mapstructure:"key-id"`
	SessionSecret     string `mapstructure:"session-secret" validate:"required"`
	SessionExpiry     int    `mapstructure:"session-expiry"`
	SecureCookie      bool   `mapstructure:"secure-cookie"`
	CodeExpiry        int    `mapstructure:"code-expiry"`
	AccessTokenExpiry int    `mapstructure:"access-token-expiry"`
	TrustedProxies    string `mapstructure:"trusted-proxies"`
	RateLimit         int    `mapstructure:"rate-limit"`
	RateLimitBurst    int    `mapstructure:"rate-limit-burst"`
	DevLogin          bool   `mapstructure:"dev-login"`
}

// Session cookie name template

var SessionCookieName = "authgate-session"

// Scopes this server knows how to grant, regardless of what clients register.

var SupportedScopes = []string{"openid", "email", "profile"}

// UserContext carries the authenticated user resolved by the session
// middleware for the lifetime of a request.

type UserContext struct {
	UserID     string
	IsLoggedIn bool
}
