package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "BSF"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "BSF_DB_DSN"
	EnvDBHost = "BSF_DB_HOST"
	EnvDBUser = "BSF_DB_USER"
	EnvDBName = "BSF_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Uploads       UploadsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"BSF_APP_ENV" required:"true"`
	Port         string `envconfig:"BSF_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"BSF_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"BSF_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"BSF_DB_DSN"`
	Driver string `envconfig:"BSF_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"BSF_DB_HOST"`
	LegacyPort     int    `envconfig:"BSF_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"BSF_DB_USER"`
	LegacyPassword string `envconfig:"BSF_DB_PASSWORD"`
	LegacyName     string `envconfig:"BSF_DB_NAME"`
	LegacySSLMode  string `envconfig:"BSF_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"BSF_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"BSF_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"BSF_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"BSF_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"BSF_REDIS_URL" required:"true"`
	Password     string        `envconfig:"BSF_REDIS_PASSWORD"`
	DB           int           `envconfig:"BSF_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"BSF_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"BSF_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"BSF_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"BSF_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"BSF_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"BSF_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"BSF_JWT_ISSUER" default:"bsf-api"`
	ExpirationMinutes int    `envconfig:"BSF_JWT_EXPIRATION_MINUTES" default:"60"`
}

// AccessTokenTTL returns the access token lifetime configured in minutes.
func (j JWTConfig) AccessTokenTTL() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 0
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"BSF_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"BSF_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"BSF_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"BSF_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"BSF_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"BSF_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"BSF_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"BSF_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"BSF_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"BSF_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"BSF_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"BSF_AUTO_MIGRATE" default:"false"`
}

type UploadsConfig struct {
	Dir         string `envconfig:"BSF_UPLOADS_DIR" default:"uploads"`
	PublicBase  string `envconfig:"BSF_UPLOADS_PUBLIC_BASE" default:"/uploads"`
	MaxUploadMB int    `envconfig:"BSF_MAX_UPLOAD_MB" default:"5"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
