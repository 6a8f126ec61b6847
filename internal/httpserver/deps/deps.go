package deps

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/ollamon/internal/batch"
	"github.com/MrSnakeDoc/ollamon/internal/index"
	"github.com/MrSnakeDoc/ollamon/internal/logger"
	"github.com/MrSnakeDoc/ollamon/internal/ollama"
	redisstore "github.com/MrSnakeDoc/ollamon/internal/store/redis"
)

// Detector runs the probe and benchmark pipeline for one host.
type Detector interface {
	Detect(ctx context.Context, host string) batch.Outcome
	Stats() batch.Stats
}

// Streamer opens a streaming generation on a host.
type Streamer interface {
	GenerateStream(ctx context.Context, host string, req ollama.GenerateRequest) (*ollama.Stream, error)
}

type Deps struct {
	Logger             logger.Logger
	StartTime          time.Time
	Version            string
	Commit             string
	BuildDate          string
	GoVersion          string
	TimeNow            func() time.Time    // for testing, defaults to time.Now
	AllowedHosts       []string            // Host headers allowed to access admin endpoints
	AllowedCIDRS       []string            // IPs allowed to access admin endpoints
	TrustProxy         bool                // true if running behind a trusted reverse proxy (e.g., cloudflared)
	RedisClient        *redis.Client       // Redis client connection
	Store              *redisstore.Store   // valid-host set and detect cache
	MemoryIndex        *index.MemoryIndex  // latest report snapshot
	Detector           Detector            // single-host pipeline
	Streamer           Streamer            // streaming generate proxy
	Validate           *validator.Validate // request payload validation
	DetectCacheTTL     time.Duration       // 0 disables the detect cache
	RequestTimeout     time.Duration       // deadline for cheap endpoints
	ProbeTimeout       time.Duration       // deadline for detect and generate
	RateLimitBurst     int                 // detect/generate calls per client IP
	RateLimitPerMinute int                 // refill rate of the bucket above
	CycleTrigger       chan struct{}       // Channel to trigger a manual cycle
}
