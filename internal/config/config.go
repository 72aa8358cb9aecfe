package config

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/limaJavier/examtabling/pkg/model"
	"github.com/spf13/viper"
)

type StoreSettings struct {
	Kind          string        `mapstructure:"kind" validate:"oneof=file redis"`
	Directory     string        `mapstructure:"directory" validate:"required_if=Kind file"`
	RedisAddr     string        `mapstructure:"redis_addr" validate:"required_if=Kind redis"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db" validate:"gte=0"`
	TTL           time.Duration `mapstructure:"ttl" validate:"gte=0"`
}

type JobSettings struct {
	Concurrency int           `mapstructure:"concurrency" validate:"gte=1"`
	Retention   time.Duration `mapstructure:"retention" validate:"gt=0"`
}

// Settings holds every value a run can be configured with
type Settings struct {
	Env      string              `mapstructure:"env"`
	LogLevel string              `mapstructure:"log_level"`
	Address  string              `mapstructure:"address" validate:"required"`
	Solver   string              `mapstructure:"solver" validate:"oneof=gophersat kissat cadical minisat"`
	Store    StoreSettings       `mapstructure:"store"`
	Jobs     JobSettings         `mapstructure:"jobs"`
	Model    model.Configuration `mapstructure:"model"`
}

var validate = validator.New()

func setDefaults(v *viper.Viper) {
	defaults := model.DefaultConfiguration()

	v.SetDefault("env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("address", ":8080")
	v.SetDefault("solver", "gophersat")

	v.SetDefault("store.kind", "file")
	v.SetDefault("store.directory", "snapshots")
	v.SetDefault("store.redis_addr", "localhost:6379")
	v.SetDefault("store.redis_password", "")
	v.SetDefault("store.redis_db", 0)
	v.SetDefault("store.ttl", 7*24*time.Hour)

	v.SetDefault("jobs.concurrency", runtime.NumCPU())
	v.SetDefault("jobs.retention", time.Hour)

	v.SetDefault("model.days", defaults.Days)
	v.SetDefault("model.slots", defaults.Slots)
	v.SetDefault("model.two_day_limit", defaults.TwoDayLimit)
	v.SetDefault("model.window_days", defaults.WindowDays)
	v.SetDefault("model.window_limit", defaults.WindowLimit)
	v.SetDefault("model.week_three.start", defaults.WeekThree.Start)
	v.SetDefault("model.week_three.end", defaults.WeekThree.End)
	v.SetDefault("model.early_days", defaults.EarlyDays)
	v.SetDefault("model.time_budget", defaults.TimeBudget)
	v.SetDefault("model.weights.extra_time", defaults.Weights.ExtraTime)
	v.SetDefault("model.weights.leader_spread", defaults.Weights.LeaderSpread)
	v.SetDefault("model.weights.discouraged", defaults.Weights.Discouraged)
	v.SetDefault("model.weights.congestion", defaults.Weights.Congestion)
	v.SetDefault("model.weights.room_surplus", defaults.Weights.RoomSurplus)
	v.SetDefault("model.weights.computer_room", defaults.Weights.ComputerRoom)
}

// Load reads the settings from the given file, or from an optional examtabling.yaml in the working directory (or its
// config directory) when file is empty. EXAMTABLING_* environment variables override both, e.g.
// EXAMTABLING_MODEL_TIME_BUDGET=30s
func Load(file string) (Settings, error) {
	v := viper.New()
	setDefaults(v)

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("examtabling")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("EXAMTABLING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return Settings{}, fmt.Errorf("cannot read config file: %w", err)
		}
	}

	var settings Settings
	if err := v.Unmarshal(&settings); err != nil {
		return Settings{}, fmt.Errorf("cannot decode config: %w", err)
	}

	if err := validate.Struct(settings); err != nil {
		return Settings{}, fmt.Errorf("invalid config: %w", err)
	}
	if err := settings.Model.Validate(); err != nil {
		return Settings{}, err
	}
	return settings, nil
}
