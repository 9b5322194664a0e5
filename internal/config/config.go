package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  The types reflect how the values are used in
// the application: strings for identifiers and secrets, ints for durations
// and costs, bools for switches.
type Config struct {
	Env                 string // application environment (e.g. "dev", "prod")
	Port                string // HTTP port to listen on
	DBUser              string // database username
	DBPass              string // database password (optional)
	DBHost              string // database host address
	DBPort              string // database port number
	DBName              string // database name
	DBMaxConns          int    // connection pool ceiling (open and idle)
	DBConnLifetimeMin   int    // recycle pooled connections after this many minutes
	JWTSecret           string // secret used to sign JWTs
	AccessTTLMin        int    // access token time-to-live in minutes
	BcryptCost          int    // bcrypt cost for password hashing
	InterlocksEnabled   bool   // when false, hardware commands are mocked out
	InterlockTimeoutSec int    // per-command hardware timeout in seconds
	DoorOpenSec         int    // how long a door strike stays released after badge-in
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.  Hardware settings
// have safe defaults: interlocks disabled, 10 s command timeout, 8 s door
// release.
func Load() Config {
	return Config{
		Env:                 must("APP_ENV"),
		Port:                must("APP_PORT"),
		DBUser:              must("DB_USER"),
		DBPass:              os.Getenv("DB_PASS"), // empty allowed
		DBHost:              must("DB_HOST"),
		DBPort:              must("DB_PORT"),
		DBName:              must("DB_NAME"),
		DBMaxConns:          envInt("DB_MAX_CONNS", 25),
		DBConnLifetimeMin:   envInt("DB_CONN_LIFETIME_MIN", 30),
		JWTSecret:           must("JWT_SECRET"),
		AccessTTLMin:        mustInt("ACCESS_TOKEN_TTL_MIN"),
		BcryptCost:          mustInt("BCRYPT_COST"),
		InterlocksEnabled:   envBool("INTERLOCKS_ENABLED", false),
		InterlockTimeoutSec: envInt("INTERLOCK_TIMEOUT_SEC", 10),
		DoorOpenSec:         envInt("DOOR_OPEN_SEC", 8),
	}
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
