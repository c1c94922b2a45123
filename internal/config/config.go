// v2
// internal/config/config.go
package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"nrgchamp/buildingrl/internal/circuitbreaker"
)

// FloorConfig describes the initial state of one floor.
type FloorConfig struct {
	Occupants   int
	LightOn     bool
	Temperature int
}

// Config captures all runtime settings of the simulator. Values come from
// defaults, an optional properties file and environment variables, in that
// order. A .env file, when present, is folded into the environment first.
type Config struct {
	// ListenAddress defines the TCP address used by the HTTP server.
	ListenAddress string
	// LogFilePath is the absolute or relative path to the log file.
	LogFilePath      string
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	ShutdownTimeout  time.Duration
	// PropertiesPath records the path used to load property values.
	PropertiesPath string

	OutsideTemperature int
	Floors             []FloorConfig
	MaxSteps           int

	// Episodes is the number of training episodes run by `train`.
	Episodes  int
	Algorithm string
	Gamma     float64
	StepSize  float64
	Epsilon   float64
	// Temperature is the entropy temperature of the actor-critic learner.
	Temperature float64
	Seed        uint64
	// StepInterval paces the autopilot agent in `serve` so a display can
	// follow along. Zero disables the autopilot.
	StepInterval time.Duration
	FeedCapacity int

	KafkaEnabled  bool
	KafkaBrokers  []string
	SnapshotTopic string
	EpisodeTopic  string
	Breaker       circuitbreaker.KafkaOptions

	// MQTTBroker enables the MQTT sink when non-empty.
	MQTTBroker      string
	MQTTTopicPrefix string
	MQTTClientID    string
}

const (
	envPrefix = "BUILDINGRL_"

	defaultListenAddress = ":8090"
	defaultLogFile       = "logs/buildingrl.log"
	defaultReadTimeout   = 5 * time.Second
	defaultWriteTimeout  = 10 * time.Second
	defaultShutdown      = 5 * time.Second
	defaultPropsPath     = "buildingrl.properties"
	defaultDotEnvPath    = ".env"
	defaultOutsideTemp   = 15
	defaultFloors        = "1:on:22,0:off:20,5:on:25"
	defaultMaxSteps      = 500
	defaultEpisodes      = 400
	defaultAlgorithm     = "qlearning"
	defaultGamma         = 0.99
	defaultStepSize      = 0.01
	defaultEpsilon       = 0.1
	defaultTemperature   = 0.1
	defaultSeed          = 42
	defaultStepInterval  = 250 * time.Millisecond
	defaultFeedCapacity  = 16
	defaultKafkaBrokers  = "kafka:9092"
	defaultSnapshotTopic = "building.snapshots"
	defaultEpisodeTopic  = "building.episodes"
	defaultMQTTPrefix    = "buildingrl"
	defaultMQTTClientID  = "buildingrl-sim"
)

// keys lists every supported property. Each one can also be set through
// the environment as BUILDINGRL_<KEY in upper case>.
var keys = []string{
	"listen_address",
	"log_path",
	"http_read_timeout_ms",
	"http_write_timeout_ms",
	"shutdown_timeout_ms",
	"outside_temperature",
	"floors",
	"max_steps",
	"episodes",
	"algorithm",
	"gamma",
	"step_size",
	"epsilon",
	"temperature",
	"seed",
	"step_interval_ms",
	"feed_capacity",
	"kafka_enabled",
	"kafka_brokers",
	"snapshot_topic",
	"episode_topic",
	"cb_enabled",
	"cb_failure_threshold",
	"cb_success_threshold",
	"cb_open_ms",
	"cb_timeout_ms",
	"cb_backoff_ms",
	"mqtt_broker",
	"mqtt_topic_prefix",
	"mqtt_client_id",
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	floors, _ := ParseFloors(defaultFloors)
	return Config{
		ListenAddress:      defaultListenAddress,
		LogFilePath:        filepath.Clean(defaultLogFile),
		HTTPReadTimeout:    defaultReadTimeout,
		HTTPWriteTimeout:   defaultWriteTimeout,
		ShutdownTimeout:    defaultShutdown,
		OutsideTemperature: defaultOutsideTemp,
		Floors:             floors,
		MaxSteps:           defaultMaxSteps,
		Episodes:           defaultEpisodes,
		Algorithm:          defaultAlgorithm,
		Gamma:              defaultGamma,
		StepSize:           defaultStepSize,
		Epsilon:            defaultEpsilon,
		Temperature:        defaultTemperature,
		Seed:               defaultSeed,
		StepInterval:       defaultStepInterval,
		FeedCapacity:       defaultFeedCapacity,
		KafkaBrokers:       splitAndTrim(defaultKafkaBrokers),
		SnapshotTopic:      defaultSnapshotTopic,
		EpisodeTopic:       defaultEpisodeTopic,
		Breaker: circuitbreaker.KafkaOptions{
			FailureThreshold: 5,
			SuccessThreshold: 2,
			OpenFor:          30 * time.Second,
			Timeout:          3 * time.Second,
			Backoff:          200 * time.Millisecond,
		},
		MQTTTopicPrefix: defaultMQTTPrefix,
		MQTTClientID:    defaultMQTTClientID,
	}
}

// Load resolves configuration by layering defaults, an optional
// properties file, and finally environment variables. The properties
// file location can be overridden with BUILDINGRL_PROPERTIES_PATH and the
// .env location with BUILDINGRL_DOTENV_PATH.
func Load() (Config, error) {
	dotenv := defaultDotEnvPath
	if v, ok := lookupEnvTrimmed(envPrefix + "DOTENV_PATH"); ok && v != "" {
		dotenv = v
	}
	if err := godotenv.Load(dotenv); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", dotenv, err)
	}

	cfg := Default()

	propsPath := strings.TrimSpace(os.Getenv(envPrefix + "PROPERTIES_PATH"))
	if propsPath == "" {
		propsPath = defaultPropsPath
	}
	cfg.PropertiesPath = propsPath

	if err := applyProperties(&cfg, propsPath); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return Config{}, err
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	if len(c.Floors) == 0 {
		return errors.New("at least one floor is required")
	}
	if c.KafkaEnabled && len(c.KafkaBrokers) == 0 {
		return errors.New("kafka_brokers cannot be empty when kafka is enabled")
	}
	if err := c.Breaker.Validate(); err != nil {
		return err
	}
	return nil
}

func applyProperties(cfg *Config, path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() {
		_ = f.Close()
	}()

	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" || strings.HasPrefix(raw, "#") || strings.HasPrefix(raw, ";") {
			continue
		}
		parts := strings.SplitN(raw, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid properties entry on line %d", line)
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if err := setProperty(cfg, key, value); err != nil {
			return fmt.Errorf("property %s: %w", key, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read properties: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	for _, key := range keys {
		name := envPrefix + strings.ToUpper(key)
		v, ok := lookupEnvTrimmed(name)
		if !ok {
			continue
		}
		if err := setProperty(cfg, key, v); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	if _, ok := os.LookupEnv(envPrefix + "KAFKA_BROKERS"); !ok {
		if v, ok := lookupEnvTrimmed("KAFKA_BROKERS"); ok {
			if err := setProperty(cfg, "kafka_brokers", v); err != nil {
				return fmt.Errorf("KAFKA_BROKERS: %w", err)
			}
		}
	}
	return nil
}

func setProperty(cfg *Config, key, value string) error {
	var err error
	switch key {
	case "listen_address":
		err = nonEmpty(key, value, &cfg.ListenAddress)
	case "log_path":
		if value == "" {
			return errors.New("log_path cannot be empty")
		}
		cfg.LogFilePath = filepath.Clean(value)
	case "http_read_timeout_ms":
		cfg.HTTPReadTimeout, err = parsePositiveMillis(value)
	case "http_write_timeout_ms":
		cfg.HTTPWriteTimeout, err = parsePositiveMillis(value)
	case "shutdown_timeout_ms":
		cfg.ShutdownTimeout, err = parsePositiveMillis(value)
	case "outside_temperature":
		cfg.OutsideTemperature, err = strconv.Atoi(value)
	case "floors":
		cfg.Floors, err = ParseFloors(value)
	case "max_steps":
		cfg.MaxSteps, err = parsePositiveInt(value)
	case "episodes":
		cfg.Episodes, err = parsePositiveInt(value)
	case "algorithm":
		err = nonEmpty(key, strings.ToLower(value), &cfg.Algorithm)
	case "gamma":
		cfg.Gamma, err = parseUnitFloat(value)
	case "step_size":
		cfg.StepSize, err = parseUnitFloat(value)
	case "epsilon":
		cfg.Epsilon, err = parseUnitFloat(value)
	case "temperature":
		cfg.Temperature, err = parseUnitFloat(value)
	case "seed":
		cfg.Seed, err = strconv.ParseUint(value, 10, 64)
	case "step_interval_ms":
		cfg.StepInterval, err = parseNonNegativeMillis(value)
	case "feed_capacity":
		cfg.FeedCapacity, err = parsePositiveInt(value)
	case "kafka_enabled":
		cfg.KafkaEnabled, err = strconv.ParseBool(value)
	case "kafka_brokers":
		brokers := splitAndTrim(value)
		if len(brokers) == 0 {
			return errors.New("kafka_brokers cannot be empty")
		}
		cfg.KafkaBrokers = brokers
	case "snapshot_topic":
		err = nonEmpty(key, value, &cfg.SnapshotTopic)
	case "episode_topic":
		err = nonEmpty(key, value, &cfg.EpisodeTopic)
	case "cb_enabled":
		cfg.Breaker.Enabled, err = strconv.ParseBool(value)
	case "cb_failure_threshold":
		cfg.Breaker.FailureThreshold, err = parsePositiveInt(value)
	case "cb_success_threshold":
		cfg.Breaker.SuccessThreshold, err = parsePositiveInt(value)
	case "cb_open_ms":
		cfg.Breaker.OpenFor, err = parsePositiveMillis(value)
	case "cb_timeout_ms":
		cfg.Breaker.Timeout, err = parseNonNegativeMillis(value)
	case "cb_backoff_ms":
		cfg.Breaker.Backoff, err = parseNonNegativeMillis(value)
	case "mqtt_broker":
		cfg.MQTTBroker = value
	case "mqtt_topic_prefix":
		err = nonEmpty(key, strings.Trim(value, "/"), &cfg.MQTTTopicPrefix)
	case "mqtt_client_id":
		err = nonEmpty(key, value, &cfg.MQTTClientID)
	default:
		// Unknown keys are ignored to keep the loader forward-compatible.
	}
	return err
}

// ParseFloors reads "occupants:on|off:temperature" entries separated by
// commas, e.g. "1:on:22,0:off:20".
func ParseFloors(raw string) ([]FloorConfig, error) {
	entries := splitAndTrim(raw)
	if len(entries) == 0 {
		return nil, errors.New("floors cannot be empty")
	}
	out := make([]FloorConfig, 0, len(entries))
	for i, entry := range entries {
		parts := strings.Split(entry, ":")
		if len(parts) != 3 {
			return nil, fmt.Errorf("floor %d: expected occupants:light:temperature, got %q", i, entry)
		}
		occ, err := strconv.Atoi(strings.TrimSpace(parts[0]))
		if err != nil || occ < 0 {
			return nil, fmt.Errorf("floor %d: invalid occupants %q", i, parts[0])
		}
		var light bool
		switch strings.ToLower(strings.TrimSpace(parts[1])) {
		case "on", "true", "1":
			light = true
		case "off", "false", "0":
		default:
			return nil, fmt.Errorf("floor %d: invalid light state %q", i, parts[1])
		}
		temp, err := strconv.Atoi(strings.TrimSpace(parts[2]))
		if err != nil {
			return nil, fmt.Errorf("floor %d: invalid temperature %q", i, parts[2])
		}
		out = append(out, FloorConfig{Occupants: occ, LightOn: light, Temperature: temp})
	}
	return out, nil
}

func lookupEnvTrimmed(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func splitAndTrim(raw string) []string {
	fields := strings.Split(raw, ",")
	out := make([]string, 0, len(fields))
	for _, field := range fields {
		trimmed := strings.TrimSpace(field)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func nonEmpty(key, value string, dst *string) error {
	if value == "" {
		return fmt.Errorf("%s cannot be empty", key)
	}
	*dst = value
	return nil
}

func parsePositiveInt(v string) (int, error) {
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid integer: %w", err)
	}
	if n <= 0 {
		return 0, errors.New("value must be greater than zero")
	}
	return n, nil
}

func parseUnitFloat(v string) (float64, error) {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number: %w", err)
	}
	if f < 0 || f > 1 {
		return 0, errors.New("value must be within [0, 1]")
	}
	return f, nil
}

func parsePositiveMillis(v string) (time.Duration, error) {
	d, err := parseNonNegativeMillis(v)
	if err != nil {
		return 0, err
	}
	if d == 0 {
		return 0, errors.New("value must be greater than zero")
	}
	return d, nil
}

func parseNonNegativeMillis(v string) (time.Duration, error) {
	if strings.TrimSpace(v) == "" {
		return 0, errors.New("value cannot be empty")
	}
	ms, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid integer: %w", err)
	}
	if ms < 0 {
		return 0, errors.New("value must not be negative")
	}
	return time.Duration(ms) * time.Millisecond, nil
}
