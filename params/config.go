package params

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Node struct {
	APIAddr string
	DataDir string
	LogFile string
	Debug   bool
}

type Market struct {
	Symbol string
	Supply string
}

type Scheduler struct {
	Concurrency int
	WaitTimeout time.Duration
}

type Agents struct {
	Enabled  bool
	Count    int
	Interval time.Duration
	Fund     string
	MinQty   int64
	MaxQty   int64
}

type Config struct {
	Node      Node
	Market    Market
	Scheduler Scheduler
	Agents    Agents
}

func Default() Config {
	return Config{
		Node: Node{
			APIAddr: ":8080",
			DataDir: "data",
			LogFile: "",
			Debug:   false,
		},
		Market: Market{
			Symbol: "SIM",
			Supply: "1000000",
		},
		Scheduler: Scheduler{
			Concurrency: 10,
			WaitTimeout: 10 * time.Second,
		},
		Agents: Agents{
			Enabled:  true,
			Count:    5,
			Interval: 500 * time.Millisecond,
			Fund:     "10000",
			MinQty:   1,
			MaxQty:   10,
		},
	}
}

// LoadFromEnv loads configuration from a .env file (if present) and
// environment variables. Priority: ENV > .env file > defaults.
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	cfg.Node.APIAddr = getEnv("API_ADDR", cfg.Node.APIAddr)
	cfg.Node.DataDir = getEnv("DATA_DIR", cfg.Node.DataDir)
	cfg.Node.LogFile = getEnv("LOG_FILE", cfg.Node.LogFile)
	cfg.Node.Debug = getBool("DEBUG", cfg.Node.Debug)

	cfg.Market.Symbol = getEnv("MARKET_SYMBOL", cfg.Market.Symbol)
	cfg.Market.Supply = getEnv("MARKET_SUPPLY", cfg.Market.Supply)

	cfg.Scheduler.Concurrency = getInt("SCHED_CONCURRENCY", cfg.Scheduler.Concurrency)
	cfg.Scheduler.WaitTimeout = getMillis("SCHED_WAIT_TIMEOUT_MS", cfg.Scheduler.WaitTimeout)

	cfg.Agents.Enabled = getBool("AGENTS_ENABLED", cfg.Agents.Enabled)
	cfg.Agents.Count = getInt("AGENTS_COUNT", cfg.Agents.Count)
	cfg.Agents.Interval = getMillis("AGENTS_INTERVAL_MS", cfg.Agents.Interval)
	cfg.Agents.Fund = getEnv("AGENTS_FUND", cfg.Agents.Fund)
	cfg.Agents.MinQty = int64(getInt("AGENTS_MIN_QTY", int(cfg.Agents.MinQty)))
	cfg.Agents.MaxQty = int64(getInt("AGENTS_MAX_QTY", int(cfg.Agents.MaxQty)))

	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "true" || v == "1"
	}
	return def
}

func getMillis(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return def
}
