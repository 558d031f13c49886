package config

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	Secret     string        `mapstructure:"secret"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	SendBuffer int           `mapstructure:"send_buffer"`

	Auth Auth `mapstructure:"auth"`
	SFU  SFU  `mapstructure:"sfu"`
}

// Auth configures the bearer-credential verifier for presence joins.
type Auth struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

// SFU configures the media engine worker pool and transports.
type SFU struct {
	Workers int `mapstructure:"workers"`
	// UDP port slice shared by the pool; each worker takes an equal
	// sub-range for its transports.
	RTCMinPort uint16 `mapstructure:"rtc_min_port"`
	RTCMaxPort uint16 `mapstructure:"rtc_max_port"`
	// AnnouncedIP is what transports advertise in ICE candidates when
	// the server sits behind NAT. Empty means listen address as-is.
	AnnouncedIP string `mapstructure:"announced_ip"`

	MaxIncomingBitrate uint64 `mapstructure:"max_incoming_bitrate"`

	// CreateRoomLimit bounds room creations per client per interval.
	CreateRoomLimit    int           `mapstructure:"create_room_limit"`
	CreateRoomInterval time.Duration `mapstructure:"create_room_interval"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("send_buffer", 32)
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("sfu.workers", 4)
	v.SetDefault("sfu.rtc_min_port", 40000)
	v.SetDefault("sfu.rtc_max_port", 49999)
	v.SetDefault("sfu.max_incoming_bitrate", 1_500_000)
	v.SetDefault("sfu.create_room_limit", 10)
	v.SetDefault("sfu.create_room_interval", "1m")

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
