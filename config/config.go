// Package config contains code to set the default values and read
// config files to be used throughout the whole application
package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/spf13/pflag"
	v "github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	devMode    = pflag.Bool("dev", false, "Use a throwaway JWT secret when none is configured")
	configPath = pflag.String("config", "", "Path to a config.toml file")

	validLogLevels    = []string{"debug", "info", "warn", "error", "fatal"}
	validStorageTypes = []string{"local", "s3", "r2", "sql"}
	validSQLDrivers   = []string{"sqlite", "postgres"}
	validHashers      = []string{"bcrypt", "argon2id"}
)

// ErrNoSecret is returned by Load when no JWT secret is configured
var ErrNoSecret = errors.New("no jwt secret configured")

var throwawaySecret bool

// ThrowawaySecret reports whether Setup generated a JWT secret for this run
// only. Tokens signed with it won't survive a restart.
func ThrowawaySecret() bool {
	return throwawaySecret
}

func useThrowawaySecret() {
	v.Set("jwt.secret", genSecret())
	throwawaySecret = true
}

func genSecret() string {
	b := make([]byte, 64)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// Setup prepares everything config-related so that the app can
// start working. Function will return an error if something
// is critically wrong and the application can't run because of
// that.
func Setup() error {
	pflag.Parse()
	v.BindPFlags(pflag.CommandLine)

	if *configPath != "" {
		v.SetConfigFile(*configPath)
	}

	err := Load()
	if !errors.Is(err, ErrNoSecret) {
		return err
	}

	if !*devMode {
		fmt.Println("WARNING: You haven't set a JWT secret, so it has been generated for you. Please set it as an environment variable or in the config.toml file.\nYour random JWT secret:\n\n" + genSecret() + "\n\nPaste it into your config.toml file.")
		os.Exit(0)
	}

	useThrowawaySecret()

	return nil
}

// Load reads the config file (if any) and the environment on top of the
// defaults, then validates the result. Derived keys like upload.max_bytes
// are set here too.
func Load() error {
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindEnvs()
	setDefaults()

	if err := v.ReadInConfig(); err != nil {
		// Defaults cover everything, the file is optional
		if _, ok := err.(v.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("failed to read config file, %w", err)
		}
	}

	if err := validate(); err != nil {
		return err
	}

	v.Set("upload.max_bytes", v.GetInt64("upload.max_size")<<20)

	if v.GetString("jwt.secret") == "" {
		return ErrNoSecret
	}

	return nil
}

func bindEnvs() {
	//
	// ENVS
	//
	v.BindEnv("app.log_level", "APP_LOG_LEVEL")
	v.BindEnv("app.log_json", "APP_LOG_JSON")

	v.BindEnv("host.port", "HOST_PORT", "PORT")
	v.BindEnv("host.cors", "HOST_CORS")
	v.BindEnv("host.ssl.enabled", "HOST_SSL_ENABLED")
	v.BindEnv("host.ssl.certificate_path", "HOST_SSL_CERTIFICATE_PATH")
	v.BindEnv("host.ssl.certificate_key_path", "HOST_SSL_CERTIFICATE_KEY_PATH")

	v.BindEnv("jwt.secret", "JWT_SECRET", "SECRET_KEY")
	v.BindEnv("jwt.expire_minutes", "JWT_EXPIRE_MINUTES", "ACCESS_TOKEN_EXPIRE_MINUTES")

	v.BindEnv("storage.type", "STORAGE_TYPE")
	v.BindEnv("storage.dir", "STORAGE_DIR")
	v.BindEnv("storage.users_file", "STORAGE_USERS_FILE")
	v.BindEnv("storage.reports_file", "STORAGE_REPORTS_FILE")
	v.BindEnv("storage.prefix", "STORAGE_PREFIX")
	v.BindEnv("storage.sql.driver", "STORAGE_SQL_DRIVER")
	v.BindEnv("storage.sql.dsn", "STORAGE_SQL_DSN")

	v.BindEnv("aws.access_key_id", "AWS_ACCESS_KEY_ID")
	v.BindEnv("aws.secret_access_key", "AWS_SECRET_ACCESS_KEY")
	v.BindEnv("aws.region", "AWS_REGION")
	v.BindEnv("aws.bucket", "AWS_BUCKET")
	v.BindEnv("aws.endpoint", "AWS_ENDPOINT")

	v.BindEnv("cloudflare.account_id", "CLOUDFLARE_ACCOUNT_ID")
	v.BindEnv("cloudflare.access_key_id", "CLOUDFLARE_ACCESS_KEY_ID")
	v.BindEnv("cloudflare.secret_access_key", "CLOUDFLARE_SECRET_ACCESS_KEY")
	v.BindEnv("cloudflare.bucket", "CLOUDFLARE_BUCKET")

	v.BindEnv("upload.max_size", "UPLOAD_MAX_SIZE")
	v.BindEnv("upload.dir", "UPLOAD_DIR")
	v.BindEnv("upload.allowed_types", "UPLOAD_ALLOWED_TYPES")
	v.BindEnv("upload.retention", "UPLOAD_RETENTION")
	v.BindEnv("upload.cleanup_schedule", "UPLOAD_CLEANUP_SCHEDULE")
	v.BindEnv("upload.mirror", "UPLOAD_MIRROR")

	v.BindEnv("otp.ttl", "OTP_TTL")
	v.BindEnv("auth.require_reset_proof", "AUTH_REQUIRE_RESET_PROOF")
	v.BindEnv("auth.reset_token_ttl", "AUTH_RESET_TOKEN_TTL")

	v.BindEnv("security.rate_limit", "SECURITY_RATE_LIMIT")
	v.BindEnv("security.hasher", "SECURITY_HASHER")

	v.BindEnv("predictor.delay", "PREDICTOR_DELAY")
	v.BindEnv("predictor.workers", "PREDICTOR_WORKERS")
	v.BindEnv("predictor.queue_size", "PREDICTOR_QUEUE_SIZE")
	v.BindEnv("predictor.timeout", "PREDICTOR_TIMEOUT")

	v.BindEnv("mail.enabled", "MAIL_ENABLED")
	v.BindEnv("mail.host", "MAIL_HOST")
	v.BindEnv("mail.port", "MAIL_PORT")
	v.BindEnv("mail.username", "MAIL_USERNAME")
	v.BindEnv("mail.password", "MAIL_PASSWORD")
	v.BindEnv("mail.sender_address", "MAIL_SENDER_ADDRESS")
}

func setDefaults() {
	//
	// Defaults
	//
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_json", false)

	v.SetDefault("host.port", 8000)
	v.SetDefault("host.cors", []string{"*"})
	v.SetDefault("host.ssl.enabled", false)

	v.SetDefault("jwt.expire_minutes", 120)

	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.dir", "data")
	v.SetDefault("storage.users_file", "users.json")
	v.SetDefault("storage.reports_file", "user_reports.json")
	v.SetDefault("storage.sql.driver", "sqlite")
	v.SetDefault("storage.sql.dsn", "data/kidney.db")

	v.SetDefault("upload.max_size", 10)
	v.SetDefault("upload.dir", "uploads")
	v.SetDefault("upload.allowed_types", []string{"image/*"})
	v.SetDefault("upload.retention", "168h")
	v.SetDefault("upload.cleanup_schedule", "@every 1h")
	v.SetDefault("upload.mirror", false)

	v.SetDefault("otp.ttl", "10m")
	v.SetDefault("auth.require_reset_proof", false)
	v.SetDefault("auth.reset_token_ttl", "10m")

	v.SetDefault("security.rate_limit", 10)
	v.SetDefault("security.hasher", "bcrypt")

	v.SetDefault("predictor.delay", "1s")
	v.SetDefault("predictor.workers", 4)
	v.SetDefault("predictor.queue_size", 32)
	v.SetDefault("predictor.timeout", "30s")

	v.SetDefault("mail.enabled", false)
	v.SetDefault("mail.port", 587)
}

func validate() error {
	if !slices.Contains(validLogLevels, v.GetString("app.log_level")) {
		return errors.New("invalid log level provided")
	}

	if p := v.GetInt("host.port"); p <= 0 || p > 65535 {
		return errors.New("invalid port provided")
	}

	if v.GetBool("host.ssl.enabled") {
		if v.GetString("host.ssl.certificate_path") == "" {
			return errors.New("no ssl certificate path provided")
		}

		if v.GetString("host.ssl.certificate_key_path") == "" {
			return errors.New("no ssl certificate key path provided")
		}
	}

	if v.GetInt("jwt.expire_minutes") <= 0 {
		return errors.New("jwt.expire_minutes must be bigger than 0")
	}

	switch v.GetString("storage.type") {
	case "local":
		if v.GetString("storage.dir") == "" {
			return errors.New("storage.dir can't be empty")
		}
	case "s3":
		if v.GetString("aws.region") == "" {
			return errors.New("aws region can't be empty")
		}
		if v.GetString("aws.bucket") == "" {
			return errors.New("bucket can't be empty")
		}
	case "r2":
		if v.GetString("cloudflare.account_id") == "" {
			return errors.New("account id can't be empty")
		}
		if v.GetString("cloudflare.access_key_id") == "" {
			return errors.New("account access id can't be empty")
		}
		if v.GetString("cloudflare.secret_access_key") == "" {
			return errors.New("secret access key can't be empty")
		}
		if v.GetString("cloudflare.bucket") == "" {
			return errors.New("bucket can't be empty")
		}
	case "sql":
		if !slices.Contains(validSQLDrivers, v.GetString("storage.sql.driver")) {
			return errors.New("invalid sql driver provided")
		}
		if v.GetString("storage.sql.dsn") == "" {
			return errors.New("sql dsn can't be empty")
		}
	}

	if !slices.Contains(validStorageTypes, v.GetString("storage.type")) {
		return errors.New("invalid storage type provided")
	}

	if v.GetString("storage.users_file") == "" || v.GetString("storage.reports_file") == "" {
		return errors.New("document names can't be empty")
	}

	if v.GetString("storage.users_file") == v.GetString("storage.reports_file") {
		return errors.New("users and reports must be stored in different documents")
	}

	if v.GetInt("upload.max_size") <= 0 {
		return errors.New("upload.max_size must be bigger than 0")
	}

	if v.GetString("upload.dir") == "" {
		return errors.New("upload.dir can't be empty")
	}

	if len(v.GetStringSlice("upload.allowed_types")) == 0 {
		zap.L().Warn("No upload.allowed_types specified, any file type will be accepted")
	}

	if v.GetDuration("upload.retention") < 0 {
		return errors.New("upload.retention can't be negative")
	}

	if v.GetBool("upload.mirror") && v.GetString("storage.type") != "s3" && v.GetString("storage.type") != "r2" {
		return errors.New("upload.mirror needs storage.type s3 or r2")
	}

	if v.GetDuration("otp.ttl") <= 0 {
		return errors.New("otp.ttl must be bigger than 0")
	}

	if v.GetDuration("auth.reset_token_ttl") <= 0 {
		return errors.New("auth.reset_token_ttl must be bigger than 0")
	}

	if v.GetInt("security.rate_limit") < 0 {
		return errors.New("security.rate_limit can't be negative")
	}

	if !slices.Contains(validHashers, v.GetString("security.hasher")) {
		return errors.New("invalid password hasher provided")
	}

	if v.GetDuration("predictor.delay") < 0 {
		return errors.New("predictor.delay can't be negative")
	}

	if v.GetInt("predictor.workers") <= 0 {
		return errors.New("predictor.workers must be bigger than 0")
	}

	if v.GetInt("predictor.queue_size") < 0 {
		return errors.New("predictor.queue_size can't be negative")
	}

	if v.GetDuration("predictor.timeout") <= 0 {
		return errors.New("predictor.timeout must be bigger than 0")
	}

	if v.GetBool("mail.enabled") {
		if v.GetString("mail.host") == "" {
			return errors.New("mail host can't be empty")
		}
		if v.GetString("mail.sender_address") == "" {
			return errors.New("mail sender address can't be empty")
		}
	}

	return nil
}
