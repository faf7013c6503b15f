package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// ErrInvalidConfig is returned by Validate for settings the API cannot start with.
var ErrInvalidConfig = errors.New("invalid configuration")

type HTTPConfig struct {
	Host           string
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	TrustedProxies []string
}

type PostgresConfig struct {
	DSN             string
	MaxOpen         int
	MaxIdle         int
	ConnMaxLifetime time.Duration
	AutoMigrate     bool
}

type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type StorageConfig struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	BucketImages  string
	UseSSL        bool
	Region        string
	MaxUploadSize int64
	PresignTTL    time.Duration
}

type MailConfig struct {
	SMTPHost string
	SMTPPort int
	SMTPUser string
	SMTPPass string
	From     string
	FromName string
}

// TokenConfig is the signing secret and lifetime of one token purpose.
type TokenConfig struct {
	Secret string
	TTL    time.Duration
}

type SecurityConfig struct {
	Access               TokenConfig
	Refresh              TokenConfig
	Verify               TokenConfig
	Reset                TokenConfig
	TwoFactorTTL         time.Duration
	TwoFactorMaxAttempts int
	SignupLimit          int
	SignupWindow         time.Duration
	RefreshCookieName    string
	RefreshCookieMaxAge  time.Duration
	RevealUnknownEmail   bool
}

// LimitConfig allows Limit requests per Window and per client address.
type LimitConfig struct {
	Limit  int
	Window time.Duration
}

type RateLimitConfig struct {
	Enabled        bool
	Global         LimitConfig
	Login          LimitConfig
	Refresh        LimitConfig
	ForgotPassword LimitConfig
	ResetPassword  LimitConfig
}

type JobsConfig struct {
	Enabled            bool
	Stream             string
	PurgeSignupSpec    string
	PurgeTwoFactorSpec string
}

type WorkerConfig struct {
	Group         string
	Consumer      string
	ClaimInterval time.Duration
	MetricsAddr   string
}

type BootstrapConfig struct {
	SuperAdminEmail     string
	SuperAdminPassword  string
	SuperAdminFirstName string
	SuperAdminLastName  string
}

type AppConfig struct {
	Environment      string
	LogLevel         string
	FrontendURL      string
	HTTP             HTTPConfig
	Postgres         PostgresConfig
	Redis            RedisConfig
	Storage          StorageConfig
	Mail             MailConfig
	Security         SecurityConfig
	RateLimit        RateLimitConfig
	Jobs             JobsConfig
	Worker           WorkerConfig
	Bootstrap        BootstrapConfig
	AllowCORSOrigins []string
}

func (c *AppConfig) IsProduction() bool {
	return c.Environment == "production"
}

func Load() (*AppConfig, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("../config")

	v.SetEnvPrefix("FOOTBALL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Validate rejects missing signing secrets and secrets shared between token purposes.
func (c *AppConfig) Validate() error {
	secrets := map[string]string{
		"security.access.secret":  c.Security.Access.Secret,
		"security.refresh.secret": c.Security.Refresh.Secret,
		"security.verify.secret":  c.Security.Verify.Secret,
		"security.reset.secret":   c.Security.Reset.Secret,
	}

	seen := make(map[string]string, len(secrets))
	for key, secret := range secrets {
		if strings.TrimSpace(secret) == "" {
			return fmt.Errorf("%w: %s is required", ErrInvalidConfig, key)
		}
		if other, ok := seen[secret]; ok {
			return fmt.Errorf("%w: %s and %s must differ", ErrInvalidConfig, key, other)
		}
		seen[secret] = key
	}

	if c.Postgres.DSN == "" {
		return fmt.Errorf("%w: postgres.dsn is required", ErrInvalidConfig)
	}
	if c.Security.SignupLimit <= 0 {
		return fmt.Errorf("%w: security.signuplimit must be positive", ErrInvalidConfig)
	}
	return nil
}

// ValidateWorker checks what the maintenance worker needs. It does not sign tokens.
func (c *AppConfig) ValidateWorker() error {
	if c.Postgres.DSN == "" {
		return fmt.Errorf("%w: postgres.dsn is required", ErrInvalidConfig)
	}
	if c.Jobs.Stream == "" || c.Worker.Group == "" {
		return fmt.Errorf("%w: jobs.stream and worker.group are required", ErrInvalidConfig)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("loglevel", "")
	v.SetDefault("frontendurl", "http://localhost:3000")
	v.SetDefault("allowcorsorigins", []string{"http://localhost:3000"})

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 3001)
	v.SetDefault("http.readtimeout", "10s")
	v.SetDefault("http.writetimeout", "15s")
	v.SetDefault("http.idletimeout", "60s")
	v.SetDefault("http.trustedproxies", []string{})

	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.maxopen", 30)
	v.SetDefault("postgres.maxidle", 5)
	v.SetDefault("postgres.connmaxlifetime", "30m")
	v.SetDefault("postgres.automigrate", true)

	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.poolsize", 20)
	v.SetDefault("redis.dialtimeout", "5s")
	v.SetDefault("redis.readtimeout", "3s")
	v.SetDefault("redis.writetimeout", "3s")

	v.SetDefault("storage.endpoint", "127.0.0.1:9000")
	v.SetDefault("storage.accesskey", "")
	v.SetDefault("storage.secretkey", "")
	v.SetDefault("storage.bucketimages", "football-images")
	v.SetDefault("storage.usessl", false)
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.maxuploadsize", 5*1024*1024)
	v.SetDefault("storage.presignttl", "60s")

	v.SetDefault("mail.smtphost", "smtp.gmail.com")
	v.SetDefault("mail.smtpport", 587)
	v.SetDefault("mail.smtpuser", "")
	v.SetDefault("mail.smtppass", "")
	v.SetDefault("mail.from", "")
	v.SetDefault("mail.fromname", "API Club Football")

	v.SetDefault("security.access.secret", "")
	v.SetDefault("security.access.ttl", "3600s")
	v.SetDefault("security.refresh.secret", "")
	v.SetDefault("security.refresh.ttl", "86400s")
	v.SetDefault("security.verify.secret", "")
	v.SetDefault("security.verify.ttl", "24h")
	v.SetDefault("security.reset.secret", "")
	v.SetDefault("security.reset.ttl", "900s")
	v.SetDefault("security.twofactorttl", "5m")
	v.SetDefault("security.twofactormaxattempts", 5)
	v.SetDefault("security.signuplimit", 3)
	v.SetDefault("security.signupwindow", "24h")
	v.SetDefault("security.refreshcookiename", "refreshToken")
	v.SetDefault("security.refreshcookiemaxage", "24h")
	v.SetDefault("security.revealunknownemail", false)

	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.global.limit", 100)
	v.SetDefault("ratelimit.global.window", "15m")
	v.SetDefault("ratelimit.login.limit", 5)
	v.SetDefault("ratelimit.login.window", "60s")
	v.SetDefault("ratelimit.refresh.limit", 20)
	v.SetDefault("ratelimit.refresh.window", "60s")
	v.SetDefault("ratelimit.forgotpassword.limit", 3)
	v.SetDefault("ratelimit.forgotpassword.window", "300s")
	v.SetDefault("ratelimit.resetpassword.limit", 3)
	v.SetDefault("ratelimit.resetpassword.window", "300s")

	v.SetDefault("jobs.enabled", true)
	v.SetDefault("jobs.stream", "auth:maintenance")
	v.SetDefault("jobs.purgesignupspec", "0 0 * * * *")
	v.SetDefault("jobs.purgetwofactorspec", "0 */5 * * * *")

	v.SetDefault("worker.group", "auth-maintenance")
	v.SetDefault("worker.consumer", "worker-1")
	v.SetDefault("worker.claiminterval", "30s")
	v.SetDefault("worker.metricsaddr", ":9101")

	v.SetDefault("bootstrap.superadminemail", "")
	v.SetDefault("bootstrap.superadminpassword", "")
	v.SetDefault("bootstrap.superadminfirstname", "Super")
	v.SetDefault("bootstrap.superadminlastname", "Admin")
}
