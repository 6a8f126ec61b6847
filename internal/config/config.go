package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "OLLAMON"

type Config struct {
	ListenPort      string        // ex: ":8080"
	ShutdownTimeout time.Duration // ex: 5s
	RequestTimeout  time.Duration // per-request timeout for cheap endpoints (ex: 2s)
	ProbeTimeout    time.Duration // per-request timeout for detect/generate endpoints (ex: 3m)

	LogLevel      string // "debug" | "info" | "warn" | "error"
	PrettyLog     bool   // true => zap dev (color), false => zap prod (JSON)
	LogFile       string // optional rotating log file (empty = console only)
	LogMaxSizeMB  int    // rotate after this many megabytes
	LogMaxBackups int    // rotated files to keep
	LogMaxAgeDays int    // days to keep rotated files

	Once          bool          // run a single cycle and exit
	CycleInterval time.Duration // interval between full cycles (default: 20m)

	ReportFile            string // path of the JSON report rewritten each cycle
	ReportIncludeFailures bool   // false => report only lists measured hosts
	SeedFile              string // optional yaml file with extra candidate hosts

	DiscoveryEnabled   bool     // query the search engine each cycle
	DiscoveryBaseURL   string   // ex: https://fofa.info
	DiscoveryCountries []string // country filters (legacy env: COUNTRYS)
	DiscoveryUserAgent string   // browser UA sent to the search engine
	DiscoveryDumpFile  string   // optional file receiving every discovered host

	FetchTimeout      time.Duration // hard deadline for every outbound call (default: 30s)
	FetchMaxBodyBytes int64         // response bodies are truncated past this size

	ChunkSize       int           // hosts probed concurrently per chunk (default: 50)
	BenchmarkRounds int           // generate rounds per host (default: 3)
	RoundDelay      time.Duration // pause between rounds (default: 1s)
	TPSCeiling      float64       // tokens/s above this are treated as fake (default: 1000)
	DecoyMarkers    []string      // canned-reply substrings (empty = built-in list)

	// Redis
	RedisAddr           string        // ex: "localhost:6379"
	RedisUser           string        // optional
	RedisPassword       string        // optional
	RedisDB             int           // Redis DB number
	RedisKey            string        // set holding the valid hosts
	DetectCacheTTL      time.Duration // how long a detect result is served from cache (0 = off)
	RedisDT             time.Duration // Redis dial timeout (ex: 5s)
	RedisRT             time.Duration // Redis read timeout (ex: 3s)
	RedisWT             time.Duration // Redis write timeout (ex: 3s)
	RedisMaxWait        time.Duration // max wait between retries (ex: 10s)
	RedisPingTimeout    time.Duration // timeout for each ping attempt (ex: 5s)
	RedisPoolSize       int           // Redis connection pool size
	RedisConnectTimeout time.Duration // Total time to retry connecting (ex: 30s)
	RedisRetryInterval  time.Duration // Initial wait between retries (ex: 2s, grows exponentially)
	RedisWarnThreshold  int           // warn after this many attempts

	RateLimitBurst     int // burst of detect/generate calls per client IP
	RateLimitPerMinute int // refill rate of detect/generate calls per client IP

	AllowedHosts []string // optional, restrict admin endpoints to specific Host headers
	AllowedCIDRS []string // optional, restrict admin endpoints to specific IPs (e.g. "1.2.3.4, 10.0.0.0/8")
	TrustProxy   bool     // true => trust X-Forwarded-For headers (e.g. cloudflared)
}

// DefaultUserAgent is a desktop browser UA; the search engine rejects anything else.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// Load resolves configuration from defaults, environment (OLLAMON_*), an
// optional yaml file and command-line flags, in increasing precedence.
func Load(args []string) *Config {
	v := viper.New()
	setDefaults(v)

	fs := pflag.NewFlagSet("ollamon", pflag.ContinueOnError)
	fs.Bool("once", false, "run a single discovery/probe cycle and exit")
	fs.String("config", "", "optional yaml config file")
	fs.String("listen", "", "HTTP listen address (overrides OLLAMON_SERVER_LISTEN)")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		panic(fmt.Sprintf("❌ FATAL: invalid flags: %v", err))
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("discovery.countries", envPrefix+"_DISCOVERY_COUNTRIES", "COUNTRYS")

	if path, _ := fs.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			panic(fmt.Sprintf("❌ FATAL: failed to read config file %s: %v", path, err))
		}
	}

	_ = v.BindPFlag("cycle.once", fs.Lookup("once"))
	if listen, _ := fs.GetString("listen"); listen != "" {
		v.Set("server.listen", listen)
	}

	cfg := &Config{
		// Server settings
		ListenPort:      v.GetString("server.listen"),
		ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
		RequestTimeout:  v.GetDuration("server.request_timeout"),
		ProbeTimeout:    v.GetDuration("server.probe_timeout"),

		// Logging
		LogLevel:      v.GetString("log.level"),
		PrettyLog:     v.GetBool("log.pretty"),
		LogFile:       v.GetString("log.file"),
		LogMaxSizeMB:  v.GetInt("log.max_size_mb"),
		LogMaxBackups: v.GetInt("log.max_backups"),
		LogMaxAgeDays: v.GetInt("log.max_age_days"),

		// Cycle
		Once:          v.GetBool("cycle.once"),
		CycleInterval: v.GetDuration("cycle.interval"),

		// Report and sources
		ReportFile:            v.GetString("report.file"),
		ReportIncludeFailures: v.GetBool("report.include_failures"),
		SeedFile:              v.GetString("seed.file"),

		// Discovery
		DiscoveryEnabled:   v.GetBool("discovery.enabled"),
		DiscoveryBaseURL:   strings.TrimRight(v.GetString("discovery.base_url"), "/"),
		DiscoveryCountries: stringSlice(v, "discovery.countries"),
		DiscoveryUserAgent: v.GetString("discovery.user_agent"),
		DiscoveryDumpFile:  v.GetString("discovery.dump_file"),

		// Probing
		FetchTimeout:      v.GetDuration("fetch.timeout"),
		FetchMaxBodyBytes: v.GetInt64("fetch.max_body_bytes"),
		ChunkSize:         v.GetInt("batch.chunk_size"),
		BenchmarkRounds:   v.GetInt("benchmark.rounds"),
		RoundDelay:        v.GetDuration("benchmark.round_delay"),
		TPSCeiling:        v.GetFloat64("benchmark.tps_ceiling"),
		DecoyMarkers:      stringSlice(v, "benchmark.decoy_markers"),

		// Redis settings
		RedisAddr:           requireString(v, "redis.addr"),
		RedisUser:           v.GetString("redis.username"),
		RedisPassword:       v.GetString("redis.password"),
		RedisDB:             v.GetInt("redis.db"),
		RedisKey:            v.GetString("redis.key"),
		DetectCacheTTL:      v.GetDuration("redis.detect_cache_ttl"),
		RedisDT:             v.GetDuration("redis.dial_timeout"),
		RedisRT:             v.GetDuration("redis.read_timeout"),
		RedisWT:             v.GetDuration("redis.write_timeout"),
		RedisMaxWait:        v.GetDuration("redis.max_wait"),
		RedisPingTimeout:    v.GetDuration("redis.ping_timeout"),
		RedisPoolSize:       v.GetInt("redis.pool_size"),
		RedisConnectTimeout: v.GetDuration("redis.connect_timeout"),
		RedisRetryInterval:  v.GetDuration("redis.retry_interval"),
		RedisWarnThreshold:  v.GetInt("redis.warn_threshold"),

		// Rate limiting
		RateLimitBurst:     v.GetInt("ratelimit.burst"),
		RateLimitPerMinute: v.GetInt("ratelimit.per_minute"),

		// Access restrictions
		AllowedHosts: stringSlice(v, "access.allowed_hosts"),
		AllowedCIDRS: stringSlice(v, "access.allowed_cidrs"),
		TrustProxy:   v.GetBool("access.trust_proxy"),
	}

	if err := cfg.validate(); err != nil {
		panic(fmt.Sprintf("❌ FATAL: %v", err))
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		cfgCopy := *cfg
		cfgCopy.RedisPassword = "***REDACTED***"
		if cfg.RedisUser != "" {
			cfgCopy.RedisUser = "***REDACTED***"
		}
		log.Printf("[DEBUG] cfg: %+v\n", cfgCopy)
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.listen", ":8080")
	v.SetDefault("server.shutdown_timeout", 5*time.Second)
	v.SetDefault("server.request_timeout", 2*time.Second)
	v.SetDefault("server.probe_timeout", 3*time.Minute)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", true)
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 50)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 14)

	v.SetDefault("cycle.once", false)
	v.SetDefault("cycle.interval", 20*time.Minute)

	v.SetDefault("report.file", "public/data.json")
	v.SetDefault("report.include_failures", true)
	v.SetDefault("seed.file", "")

	v.SetDefault("discovery.enabled", true)
	v.SetDefault("discovery.base_url", "https://fofa.info")
	v.SetDefault("discovery.countries", "US,CN,RU")
	v.SetDefault("discovery.user_agent", DefaultUserAgent)
	v.SetDefault("discovery.dump_file", "")

	v.SetDefault("fetch.timeout", 30*time.Second)
	v.SetDefault("fetch.max_body_bytes", int64(10<<20))

	v.SetDefault("batch.chunk_size", 50)
	v.SetDefault("benchmark.rounds", 3)
	v.SetDefault("benchmark.round_delay", time.Second)
	v.SetDefault("benchmark.tps_ceiling", 1000.0)
	v.SetDefault("benchmark.decoy_markers", "")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.username", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key", "ollama:servers")
	v.SetDefault("redis.detect_cache_ttl", 5*time.Minute)
	v.SetDefault("redis.dial_timeout", 5*time.Second)
	v.SetDefault("redis.read_timeout", 3*time.Second)
	v.SetDefault("redis.write_timeout", 3*time.Second)
	v.SetDefault("redis.max_wait", 10*time.Second)
	v.SetDefault("redis.ping_timeout", 5*time.Second)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.connect_timeout", 30*time.Second)
	v.SetDefault("redis.retry_interval", 2*time.Second)
	v.SetDefault("redis.warn_threshold", 3)

	v.SetDefault("ratelimit.burst", 5)
	v.SetDefault("ratelimit.per_minute", 10)

	v.SetDefault("access.allowed_hosts", "")
	v.SetDefault("access.allowed_cidrs", "")
	v.SetDefault("access.trust_proxy", true)
}

func (c *Config) validate() error {
	switch {
	case c.FetchTimeout <= 0:
		return fmt.Errorf("fetch.timeout must be > 0, got %v", c.FetchTimeout)
	case c.ChunkSize < 1:
		return fmt.Errorf("batch.chunk_size must be >= 1, got %d", c.ChunkSize)
	case c.BenchmarkRounds < 1:
		return fmt.Errorf("benchmark.rounds must be >= 1, got %d", c.BenchmarkRounds)
	case c.TPSCeiling <= 0:
		return fmt.Errorf("benchmark.tps_ceiling must be > 0, got %v", c.TPSCeiling)
	case !c.Once && c.CycleInterval <= 0:
		return fmt.Errorf("cycle.interval must be > 0, got %v", c.CycleInterval)
	case c.RedisKey == "":
		return errors.New("redis.key must not be empty")
	}
	return nil
}

// helpers
func requireString(v *viper.Viper, key string) string {
	s := strings.TrimSpace(v.GetString(key))
	if s == "" {
		panic(fmt.Sprintf("❌ FATAL: Required setting %s (%s) is not set", key, envName(key)))
	}
	return s
}

func envName(key string) string {
	return envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// stringSlice accepts both comma separated strings (env) and yaml lists.
func stringSlice(v *viper.Viper, key string) []string {
	switch raw := v.Get(key).(type) {
	case nil:
		return nil
	case string:
		return splitAndTrim(raw)
	case []string:
		return splitAndTrim(strings.Join(raw, ","))
	case []interface{}:
		parts := make([]string, 0, len(raw))
		for _, p := range raw {
			parts = append(parts, fmt.Sprint(p))
		}
		return splitAndTrim(strings.Join(parts, ","))
	default:
		return splitAndTrim(fmt.Sprint(raw))
	}
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
