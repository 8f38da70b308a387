package config

import (
	"errors"
	"io/fs"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr string
	GRPCAddr string // "" disables the health server

	// DB
	Env      string // "dev" | "prod"
	DBDriver string // "sqlite" | "postgres"
	DBPath   string // sqlite file, e.g. "./data/parkgate.db"
	DBURL    string // postgres DSN

	GateLocation string

	// Serial links. "auto" enumerates USB serial devices; "" disables the link.
	GatePort    string
	KioskPort   string
	BaudRate    int
	SettleDelay time.Duration // wait after open for the board's auto-reset

	GateHold time.Duration

	// Settlement
	FeePolicy      string // "per_minute" | "half_hour"
	RatePerMinute  int64
	FreeMinutes    int
	BlockMinutes   int
	BlockRate      int64
	MessageFormat  string // "standard" | "legacy"
	ReadyTimeout   time.Duration
	ConfirmTimeout time.Duration
	PollInterval   time.Duration

	// Plate recognition
	Quorum         int
	PlateMarker    string
	ALPRCommand    string // "" disables the OpenALPR stream
	ALPRArgs       []string
	ALPRConfidence float64
	Rekognition    bool
	AWSRegion      string

	ReconnectInterval time.Duration
	StatsInterval     time.Duration // 0 disables periodic stats push

	SeedPlates []string // dev only
}

// FromEnv loads an optional .env file, then reads PARKGATE_* variables.
// Unparseable values fall back to their defaults.
func FromEnv() Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("config: could not load .env: %v", err)
	}

	env := strings.ToLower(getenvDefault("PARKGATE_ENV", "dev"))
	if env != "dev" && env != "prod" {
		// fail-soft: treat unknown as dev
		env = "dev"
	}

	driver := strings.ToLower(getenvDefault("PARKGATE_DB_DRIVER", "sqlite"))
	if driver != "sqlite" && driver != "postgres" {
		driver = "sqlite"
	}

	policy := strings.ToLower(getenvDefault("PARKGATE_FEE_POLICY", "per_minute"))
	format := strings.ToLower(getenvDefault("PARKGATE_MESSAGE_FORMAT", "standard"))

	return Config{
		HTTPAddr: getenvDefault("PARKGATE_HTTP_ADDR", ":8080"),
		GRPCAddr: os.Getenv("PARKGATE_GRPC_ADDR"),

		Env:      env,
		DBDriver: driver,
		DBPath:   getenvDefault("PARKGATE_DB_PATH", "./data/parkgate.db"),
		DBURL:    os.Getenv("PARKGATE_DB_URL"),

		GateLocation: getenvDefault("PARKGATE_GATE_LOCATION", "Main Exit"),

		GatePort:    strings.TrimSpace(os.Getenv("PARKGATE_GATE_PORT")),
		KioskPort:   strings.TrimSpace(os.Getenv("PARKGATE_KIOSK_PORT")),
		BaudRate:    getenvInt("PARKGATE_BAUD_RATE", 9600),
		SettleDelay: getenvMillis("PARKGATE_SETTLE_DELAY_MS", 2000),

		GateHold: getenvMillis("PARKGATE_GATE_HOLD_MS", 15000),

		FeePolicy:      policy,
		RatePerMinute:  int64(getenvInt("PARKGATE_RATE_PER_MINUTE", 5)),
		FreeMinutes:    getenvInt("PARKGATE_FREE_MINUTES", 30),
		BlockMinutes:   getenvInt("PARKGATE_BLOCK_MINUTES", 30),
		BlockRate:      int64(getenvInt("PARKGATE_BLOCK_RATE", 100)),
		MessageFormat:  format,
		ReadyTimeout:   getenvMillis("PARKGATE_READY_TIMEOUT_MS", 5000),
		ConfirmTimeout: getenvMillis("PARKGATE_CONFIRM_TIMEOUT_MS", 10000),
		PollInterval:   getenvMillis("PARKGATE_POLL_INTERVAL_MS", 100),

		Quorum:         getenvInt("PARKGATE_QUORUM", 3),
		PlateMarker:    strings.ToUpper(getenvDefault("PARKGATE_PLATE_MARKER", "RA")),
		ALPRCommand:    strings.TrimSpace(os.Getenv("PARKGATE_ALPR_COMMAND")),
		ALPRArgs:       strings.Fields(os.Getenv("PARKGATE_ALPR_ARGS")),
		ALPRConfidence: getenvFloat("PARKGATE_ALPR_MIN_CONFIDENCE", 80),
		Rekognition:    getenvBool("PARKGATE_REKOGNITION"),
		AWSRegion:      getenvDefault("AWS_REGION", "eu-west-1"),

		ReconnectInterval: time.Duration(getenvInt("PARKGATE_RECONNECT_SECONDS", 10)) * time.Second,
		StatsInterval:     time.Duration(getenvInt("PARKGATE_STATS_PUSH_SECONDS", 30)) * time.Second,

		SeedPlates: splitCSV(os.Getenv("PARKGATE_SEED_PLATES")),
	}
}

func getenvDefault(key, def string) string {
	v := os.Getenv(key)
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func getenvMillis(key string, def int) time.Duration {
	return time.Duration(getenvInt(key, def)) * time.Millisecond
}

func getenvFloat(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 {
		return def
	}
	return f
}

func getenvBool(key string) bool {
	v := strings.TrimSpace(os.Getenv(key))
	return strings.EqualFold(v, "true") || v == "1"
}

func splitCSV(v string) []string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
