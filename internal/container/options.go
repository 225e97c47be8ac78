package container

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/serroba/wormhole/internal/cache"
	"github.com/serroba/wormhole/internal/tinyflake"
)

// Options is the server configuration. Every field is a flag and a SERVICE_*
// environment variable.
type Options struct {
	Port    int    `default:"8888" help:"Port to listen on"                                 short:"p"`
	BaseURL string `default:""     help:"Public base URL of short links (default http://localhost:<port>)"`

	NodeID         int    `default:"0"                    help:"Allocator node id (0-3), unique per process"`
	Epoch          string `default:"2025-01-01T00:00:00Z" help:"Allocator epoch (RFC3339)"`
	Generator      string `default:"tinyflake"                             help:"Code generator: tinyflake, obfuscated or nanoid"`
	ObfuscationPrime int64  `default:"3"                  help:"Odd multiplier for obfuscated codes"`
	ObfuscationMask  string `default:"0xDEADBEEFCAFEBABE" help:"XOR mask for obfuscated codes"`
	CodeLength     int    `default:"8"                    help:"Length of nanoid codes"            short:"c"`
	SequenceWaitMs int    `default:"2000"                 help:"Max wait for the next allocator second"`
	ClockRollback  string `default:"wait"                                         help:"Clock rollback handling: wait or fail"`

	Storage     string `default:"memory"                                          help:"Link repository: memory, postgres or redis"`
	DatabaseURL string `default:"postgres://localhost:5432/wormhole?sslmode=disable" help:"Postgres connection string"`
	Migrate     bool   `default:"true"                                            help:"Apply migrations on start"`

	RedisAddr      string `default:"localhost:6379" help:"Redis server address" short:"r"`
	RedisSentinels string `default:""               help:"Comma-separated sentinel addresses; enables failover"`
	RedisMaster    string `default:"mymaster"       help:"Sentinel master name"`
	RedisPassword  string `default:""               help:"Redis and sentinel password"`

	CacheTTLSeconds         int  `default:"3600" help:"Remote cache TTL for found links"`
	NegativeCacheTTLSeconds int  `default:"30"   help:"Cache TTL for unknown codes"`
	LocalCacheTTLSeconds    int  `default:"60"   help:"Cap on local cache TTL"`
	RemoteCache             bool `default:"true" help:"Use Redis as a shared cache tier"`
	CoalesceWaitMs          int  `default:"5000" help:"Max wait on an in-flight lookup"`
	FailoverRetries         int  `default:"3"    help:"Cache retries after a failover"`

	BloomFilter            bool   `default:"false"   help:"Skip remote cache reads for codes this process never cached"`
	BloomExpectedItems     int    `default:"1000000" help:"Bloom filter capacity"`
	BloomFalsePositiveRate string `default:"0.01"    help:"Bloom filter false positive rate"`

	Events string `default:"redis" help:"Event transport: redis or memory"`

	RateLimitStore    string `default:"memory" help:"Rate limit counters: memory or redis"`
	RateLimitGlobal   int    `default:"1200"   help:"Requests per minute per client, all routes"`
	RateLimitRedirect int    `default:"600"    help:"Redirects per minute per client"`
	RateLimitCreate   int    `default:"30"     help:"Links created per minute per client"`
	RateLimitHourly   int    `default:"500"    help:"Links created per hour per client"`
	RateLimitManage   int    `default:"60"     help:"Inspect and delete requests per minute per client"`

	LogFormat string `default:"json"             help:"Log format: json or console"`
	LogLevel  string `default:"info"    help:"Minimum log level: debug, info, warn or error"`
}

func (o *Options) baseURL() string {
	if o.BaseURL != "" {
		return strings.TrimRight(o.BaseURL, "/")
	}

	return fmt.Sprintf("http://localhost:%d", o.Port)
}

func (o *Options) sentinels() []string {
	var addrs []string

	for addr := range strings.SplitSeq(o.RedisSentinels, ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			addrs = append(addrs, addr)
		}
	}

	return addrs
}

func (o *Options) allocatorSettings() (tinyflake.Settings, error) {
	if o.NodeID < 0 || o.NodeID > tinyflake.MaxNodeID {
		return tinyflake.Settings{}, fmt.Errorf("%w: %d", tinyflake.ErrInvalidNodeID, o.NodeID)
	}

	epoch, err := time.Parse(time.RFC3339, o.Epoch)
	if err != nil {
		return tinyflake.Settings{}, fmt.Errorf("parse epoch %q: %w", o.Epoch, err)
	}

	rollback := tinyflake.RollbackWait
	if o.ClockRollback == "fail" {
		rollback = tinyflake.RollbackFail
	}

	return tinyflake.Settings{
		NodeID:   uint8(o.NodeID),
		Epoch:    epoch,
		MaxWait:  millis(o.SequenceWaitMs),
		Rollback: rollback,
	}, nil
}

func (o *Options) obfuscation() (prime, mask uint64, err error) {
	if o.ObfuscationPrime <= 0 {
		return 0, 0, fmt.Errorf("obfuscation prime %d must be positive", o.ObfuscationPrime)
	}

	mask, err = strconv.ParseUint(o.ObfuscationMask, 0, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("parse obfuscation mask %q: %w", o.ObfuscationMask, err)
	}

	return uint64(o.ObfuscationPrime), mask, nil
}

func (o *Options) bloomConfig() (cache.BloomConfig, error) {
	if o.BloomExpectedItems <= 0 {
		return cache.BloomConfig{}, fmt.Errorf("bloom expected items %d must be positive", o.BloomExpectedItems)
	}

	rate, err := strconv.ParseFloat(o.BloomFalsePositiveRate, 64)
	if err != nil {
		return cache.BloomConfig{}, fmt.Errorf("parse bloom false positive rate %q: %w", o.BloomFalsePositiveRate, err)
	}

	return cache.BloomConfig{ExpectedItems: uint(o.BloomExpectedItems), FalsePositiveRate: rate}, nil
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

func millis(n int) time.Duration { return time.Duration(n) * time.Millisecond }
