package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
	"time"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  Money values are integer paise; rates are basis
// points (1800 = 18%).
type Config struct {
	Env            string // application environment (e.g. "dev", "prod")
	Port           string // HTTP port to listen on
	LogLevel       string // logrus level name
	DBUser         string // database username
	DBPass         string // database password (optional)
	DBHost         string // database host address
	DBPort         string // database port number
	DBName         string // database name
	JWTSecret      string // secret used to sign JWTs
	AccessTTLMin   int    // access token time-to-live in minutes
	RefreshTTLDays int    // refresh token time-to-live in days
	BcryptCost     int    // bcrypt cost for password hashing
	RabbitURL      string // AMQP url for ledger events; empty disables publishing
	OTPTTL         time.Duration
	LedgerLogPath  string // file the ledger consumer appends to
	OperatorKey    string // platform key for block/unblock; empty disables those routes

	Subscription SubscriptionConfig
}

// SubscriptionConfig parameterises the yearly renewal engine.
type SubscriptionConfig struct {
	BaseAmount          int64         // yearly base fee in paise
	GSTBasisPoints      int64         // GST rate in basis points
	RenewalWindowDays   int           // how early before the due date renewal opens
	TrialMonths         int           // free period granted on hall registration
	ExpirySweepInterval time.Duration // how often COMPLETED payments past their period are expired
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
	return Config{
		Env:            must("APP_ENV"),                   // environment (dev/test/prod)
		Port:           must("APP_PORT"),                  // port to bind the HTTP server
		LogLevel:       envStr("LOG_LEVEL", "info"),       // logrus level
		DBUser:         must("DB_USER"),                   // database user
		DBPass:         os.Getenv("DB_PASS"),              // database password (empty allowed)
		DBHost:         must("DB_HOST"),                   // database host
		DBPort:         must("DB_PORT"),                   // database port
		DBName:         must("DB_NAME"),                   // database name
		JWTSecret:      must("JWT_SECRET"),                // secret used for signing JWTs
		AccessTTLMin:   mustInt("ACCESS_TOKEN_TTL_MIN"),   // TTL for access tokens in minutes
		RefreshTTLDays: mustInt("REFRESH_TOKEN_TTL_DAYS"), // TTL for refresh tokens in days
		BcryptCost:     mustInt("BCRYPT_COST"),            // bcrypt cost factor
		RabbitURL:      os.Getenv("RABBITMQ_URL"),         // optional broker
		OTPTTL:         envDur("OTP_TTL", 10*time.Minute), // lifetime of a password-reset code
		LedgerLogPath:  envStr("LEDGER_LOG_PATH", "logs/ledger.log"),
		OperatorKey:    os.Getenv("OPERATOR_API_KEY"),
		Subscription:   LoadSubscriptionConfig(),
	}
}

// LoadSubscriptionConfig reads the renewal settings.  Every value has a
// default so the engine runs out of the box.
func LoadSubscriptionConfig() SubscriptionConfig {
	c := SubscriptionConfig{
		BaseAmount:          int64(envInt("SUBSCRIPTION_BASE_AMOUNT", 1000000)), // Rs 10,000.00
		GSTBasisPoints:      int64(envInt("SUBSCRIPTION_GST_BPS", 1800)),
		RenewalWindowDays:   envInt("RENEWAL_WINDOW_DAYS", 30),
		TrialMonths:         envInt("TRIAL_MONTHS", 3),
		ExpirySweepInterval: envDur("EXPIRY_SWEEP_INTERVAL", time.Hour),
	}
	if c.BaseAmount < 0 {
		c.BaseAmount = 0
	}
	if c.RenewalWindowDays < 0 {
		c.RenewalWindowDays = 0
	}
	return c
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must() but converts the retrieved string into an integer.
// If conversion fails, the application logs a fatal error and exits.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}
