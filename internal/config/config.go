package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pion/webrtc/v4"
)

// Config is read once at startup from the environment.
type Config struct {
	ListenAddr string
	GinMode    string
	Env        string

	MonitoringUsername string
	MonitoringPassword string
	AdminJWTSecret     string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	DatabaseDSN   string

	ICEServersFile     string
	ICEServerURL       string
	TURNUsername       string
	TURNCredential     string
	ICETransportPolicy webrtc.ICETransportPolicy

	SettlingDelay     time.Duration
	MessageMaxLength  int
	CapacityOpen      int
	CapacityFiltered  int
	RevalidateOfferer bool
}

// Production reports whether the process runs with NODE_ENV/APP_ENV=production.
func (c Config) Production() bool {
	return c.Env == "production"
}

// MonitorEnabled reports whether /monitor credentials are configured.
func (c Config) MonitorEnabled() bool {
	return c.MonitoringUsername != "" && c.MonitoringPassword != ""
}

// Load reads Config from the environment.
func Load() (Config, error) {
	return load(os.LookupEnv)
}

func load(lookup func(string) (string, bool)) (Config, error) {
	get := func(key, def string) string {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return def
	}

	env := get("NODE_ENV", get("APP_ENV", "development"))
	cfg := Config{
		ListenAddr:         get("LISTEN_ADDR", ":5000"),
		Env:                env,
		MonitoringUsername: get("MONITORING_USERNAME", ""),
		MonitoringPassword: get("MONITORING_PASSWORD", ""),
		AdminJWTSecret:     get("ADMIN_JWT_SECRET", ""),
		RedisAddr:          get("REDIS_ADDR", ""),
		RedisPassword:      get("REDIS_PASSWORD", ""),
		DatabaseDSN:        get("DATABASE_DSN", ""),
		ICEServersFile:     get("ICE_SERVERS_FILE", ""),
		ICEServerURL:       get("ICE_SERVER_URL", ""),
		TURNUsername:       get("TURN_USERNAME", ""),
		TURNCredential:     get("TURN_CREDENTIAL", ""),
	}

	defaultMode := "debug"
	if cfg.Production() {
		defaultMode = "release"
	}
	cfg.GinMode = get("GIN_MODE", defaultMode)

	var err error
	if cfg.RedisDB, err = parseInt("REDIS_DB", get("REDIS_DB", "0"), 0); err != nil {
		return Config{}, err
	}
	if cfg.MessageMaxLength, err = parseInt("MESSAGE_MAX_LENGTH", get("MESSAGE_MAX_LENGTH", strconv.Itoa(DefaultMessageMaxLength)), 1); err != nil {
		return Config{}, err
	}
	if cfg.CapacityOpen, err = parseInt("ROOM_CAPACITY_OPEN", get("ROOM_CAPACITY_OPEN", strconv.Itoa(DefaultRoomCapacity)), MinRoomCapacity); err != nil {
		return Config{}, err
	}
	if cfg.CapacityFiltered, err = parseInt("ROOM_CAPACITY_FILTERED", get("ROOM_CAPACITY_FILTERED", strconv.Itoa(DefaultRoomCapacity)), MinRoomCapacity); err != nil {
		return Config{}, err
	}

	if cfg.SettlingDelay, err = time.ParseDuration(get("SETTLING_DELAY", DefaultSettlingDelay.String())); err != nil {
		return Config{}, fmt.Errorf("SETTLING_DELAY: %w", err)
	}
	if cfg.SettlingDelay < 0 {
		return Config{}, fmt.Errorf("SETTLING_DELAY: must not be negative")
	}

	if cfg.RevalidateOfferer, err = strconv.ParseBool(get("REVALIDATE_OFFERER", "false")); err != nil {
		return Config{}, fmt.Errorf("REVALIDATE_OFFERER: %w", err)
	}

	switch policy := get("ICE_TRANSPORT_POLICY", "all"); policy {
	case "all", "relay":
		cfg.ICETransportPolicy = webrtc.NewICETransportPolicy(policy)
	default:
		return Config{}, fmt.Errorf("ICE_TRANSPORT_POLICY: unknown policy %q", policy)
	}

	return cfg, nil
}

func parseInt(key, raw string, floor int) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if n < floor {
		return 0, fmt.Errorf("%s: must be at least %d, got %d", key, floor, n)
	}
	return n, nil
}
