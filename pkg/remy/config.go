package remy

import (
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/spf13/viper"

	"github.com/harunnryd/remy/pkg/turn"
)

type Config struct {
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
	LogFormat   string `mapstructure:"log_format"`
	Greeting    string `mapstructure:"greeting"`

	Vendors       VendorsConfig       `mapstructure:"vendors"`
	Notify        VendorConfig        `mapstructure:"notify"`
	Coordinator   CoordinatorConfig   `mapstructure:"coordinator"`
	History       HistoryConfig       `mapstructure:"history"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Privacy       PrivacyConfig       `mapstructure:"privacy"`
	States        []StateConfig       `mapstructure:"states"`
}

type VendorConfig struct {
	Provider string         `mapstructure:"provider"`
	Settings map[string]any `mapstructure:"settings"`
}

type VendorsConfig struct {
	Oracle  VendorConfig `mapstructure:"oracle"`
	Mic     VendorConfig `mapstructure:"mic"`
	Speaker VendorConfig `mapstructure:"speaker"`
	Camera  VendorConfig `mapstructure:"camera"`
}

type CoordinatorConfig struct {
	InitialState    string `mapstructure:"initial_state"`
	MonitoringState string `mapstructure:"monitoring_state"`
	ListenTimeoutMS int    `mapstructure:"listen_timeout_ms"`
	ReactivePollMS  int    `mapstructure:"reactive_poll_ms"`
	IdleDelayMS     int    `mapstructure:"idle_delay_ms"`
	OracleTimeoutMS int    `mapstructure:"oracle_timeout_ms"`
}

type HistoryConfig struct {
	KeepImages int `mapstructure:"keep_images"`
}

type ObservabilityConfig struct {
	ArtifactsDir  string  `mapstructure:"artifacts_dir"`
	SampleRate    float64 `mapstructure:"sample_rate"`
	RetentionDays int     `mapstructure:"retention_days"`
}

type PrivacyConfig struct {
	RedactPII bool `mapstructure:"redact_pii"`
}

type StateConfig struct {
	Name          string   `mapstructure:"name"`
	Goal          string   `mapstructure:"goal"`
	Next          []string `mapstructure:"next"`
	RequiresImage bool     `mapstructure:"requires_image"`
}

// DefaultStates is the cooking session topology shipped out of the box. A
// config file with a states list replaces it wholesale.
func DefaultStates() []StateConfig {
	return []StateConfig{
		{
			Name: "START",
			Goal: "Initial state. Introduce yourself and ask the user to show the ingredients.",
			Next: []string{"INGREDIENT_SCAN"},
		},
		{
			Name:          "INGREDIENT_SCAN",
			Goal:          "Analyze the image to identify ingredients. Propose a dish based on them. If the ingredients are unclear, tell the user to rearrange the ingredients and remain in the INGREDIENT_SCAN state.",
			Next:          []string{"RECIPE_CONFIRMATION", "INGREDIENT_SCAN"},
			RequiresImage: true,
		},
		{
			Name: "RECIPE_CONFIRMATION",
			Goal: "Negotiate the recipe with the user. If the user says yes, start cooking and move to INSTRUCTION_OVERVIEW state. If no, propose another dish or make modification on the recipe depending on the user's response and remain in the RECIPE_CONFIRMATION state.",
			Next: []string{"RECIPE_CONFIRMATION", "INSTRUCTION_OVERVIEW"},
		},
		{
			Name: "INSTRUCTION_OVERVIEW",
			Goal: "Give an overview of the instructions.",
			Next: []string{"COOKING_INSTRUCTION"},
		},
		{
			Name: "COOKING_INSTRUCTION",
			Goal: "Provide the next cooking step. Move to MONITORING as the next state. If done, move to FINISHED.",
			Next: []string{"MONITORING", "FINISHED"},
		},
		{
			Name: "MONITORING",
			Goal: "Check the cooking progress visually (doneness, chopping size, burning). " +
				"If everything is normal and the step is still in progress, report no change and stay in MONITORING. " +
				"If all instructions have been finished, move to FINISHED. " +
				"If the current instruction has been completed, move to COOKING_INSTRUCTION. " +
				"If the user has clearly made a mistake (e.g., chopping instead of peeling), go to ERROR_CORRECTION. " +
				"If the current step implies a specific time duration (e.g., 'boil for 10 mins') and you see the user has just started this action successfully, request a timer.",
			Next:          []string{"COOKING_INSTRUCTION", "ERROR_CORRECTION", "MONITORING", "FINISHED"},
			RequiresImage: true,
		},
		{
			Name:          "ERROR_CORRECTION",
			Goal:          "Explain how to fix the detected error. Once fixed, return to instructions.",
			Next:          []string{"COOKING_INSTRUCTION", "MONITORING"},
			RequiresImage: true,
		},
		{
			Name: "FINISHED",
			Goal: "Congratulate the user and end the session.",
			Next: []string{},
		},
	}
}

func LoadConfig(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal: %w", err)
	}
	if len(cfg.States) == 0 {
		cfg.States = DefaultStates()
	}

	expandEnvStrings(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("greeting", "System starting.")
	v.SetDefault("notify.provider", "noop")
	v.SetDefault("coordinator.initial_state", "START")
	v.SetDefault("coordinator.monitoring_state", "MONITORING")
	v.SetDefault("coordinator.listen_timeout_ms", 3000)
	v.SetDefault("coordinator.reactive_poll_ms", 2000)
	v.SetDefault("coordinator.idle_delay_ms", 5000)
	v.SetDefault("coordinator.oracle_timeout_ms", 30000)
	v.SetDefault("history.keep_images", 3)
	v.SetDefault("observability.artifacts_dir", "")
	v.SetDefault("observability.sample_rate", 1.0)
	v.SetDefault("observability.retention_days", 0)
	v.SetDefault("privacy.redact_pii", true)
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Vendors.Oracle.Provider) == "" {
		return fmt.Errorf("vendors.oracle.provider is required")
	}
	if strings.TrimSpace(c.Vendors.Mic.Provider) == "" {
		return fmt.Errorf("vendors.mic.provider is required")
	}
	if strings.TrimSpace(c.Vendors.Speaker.Provider) == "" {
		return fmt.Errorf("vendors.speaker.provider is required")
	}
	if strings.TrimSpace(c.Vendors.Camera.Provider) == "" {
		return fmt.Errorf("vendors.camera.provider is required")
	}
	if _, err := c.StateTable(); err != nil {
		return err
	}
	return nil
}

// StateTable converts the states list into a validated transition table.
func (c *Config) StateTable() (*turn.Table, error) {
	defs := make([]turn.StateDefinition, 0, len(c.States))
	for _, s := range c.States {
		defs = append(defs, turn.StateDefinition{
			Name:          s.Name,
			Goal:          s.Goal,
			AllowedNext:   s.Next,
			RequiresImage: s.RequiresImage,
		})
	}
	return turn.NewTable(defs)
}

func expandEnvStrings(cfg *Config) {
	expandValue(reflect.ValueOf(cfg))
	cfg.Vendors.Oracle.Settings = expandSettings(cfg.Vendors.Oracle.Settings)
	cfg.Vendors.Mic.Settings = expandSettings(cfg.Vendors.Mic.Settings)
	cfg.Vendors.Speaker.Settings = expandSettings(cfg.Vendors.Speaker.Settings)
	cfg.Vendors.Camera.Settings = expandSettings(cfg.Vendors.Camera.Settings)
	cfg.Notify.Settings = expandSettings(cfg.Notify.Settings)
}

func expandSettings(settings map[string]any) map[string]any {
	if settings == nil {
		return nil
	}
	for k, v := range settings {
		settings[k] = expandAny(v)
	}
	return settings
}

func expandAny(v any) any {
	switch val := v.(type) {
	case string:
		return os.ExpandEnv(val)
	case []any:
		for i := range val {
			val[i] = expandAny(val[i])
		}
		return val
	case map[string]any:
		for k, v := range val {
			val[k] = expandAny(v)
		}
		return val
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, v := range val {
			ks, ok := k.(string)
			if !ok {
				continue
			}
			out[ks] = expandAny(v)
		}
		return out
	default:
		return v
	}
}

func expandValue(v reflect.Value) {
	if !v.IsValid() {
		return
	}
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return
		}
		expandValue(v.Elem())
		return
	}
	switch v.Kind() {
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			expandValue(v.Field(i))
		}
	case reflect.String:
		if v.CanSet() {
			v.SetString(os.ExpandEnv(v.String()))
		}
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			expandValue(v.Index(i))
		}
	case reflect.Map:
		if v.Type().Key().Kind() == reflect.String && v.Type().Elem().Kind() == reflect.String {
			for _, key := range v.MapKeys() {
				val := v.MapIndex(key)
				expanded := os.ExpandEnv(val.String())
				v.SetMapIndex(key, reflect.ValueOf(expanded))
			}
		}
	}
}
