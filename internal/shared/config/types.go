package config

import "fmt"

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

func (s *ServerConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Username        string `mapstructure:"username"`
	Password        string `mapstructure:"password"`
	Database        string `mapstructure:"database"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
}

func (d *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		d.Username, d.Password, d.Host, d.Port, d.Database)
}

type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
	AddSource  bool   `mapstructure:"add_source"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (r *RedisConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// DiscordConfig holds credentials and identifiers for the chat platform.
// SupportGuildID/SupporterRoleID locate the operator community where buyers
// receive their cosmetic role.
type DiscordConfig struct {
	BotToken        string   `mapstructure:"bot_token"`
	ApplicationID   string   `mapstructure:"application_id"`
	SupportGuildID  string   `mapstructure:"support_guild_id"`
	SupporterRoleID string   `mapstructure:"supporter_role_id"`
	OperatorUserIDs []string `mapstructure:"operator_user_ids"`
}

// EntitlementConfig controls trial and subscription durations.
type EntitlementConfig struct {
	TrialDays          int `mapstructure:"trial_days"`
	SubscriptionDays   int `mapstructure:"subscription_days"`
	OneTimeTransfers   int `mapstructure:"one_time_transfers"`
	ExpirySweepMinutes int `mapstructure:"expiry_sweep_minutes"`
}

// CaptureConfig controls the screenshot pipeline.
type CaptureConfig struct {
	NavigationTimeoutSeconds int    `mapstructure:"navigation_timeout_seconds"`
	CacheTTLMinutes          int    `mapstructure:"cache_ttl_minutes"`
	ClassifierURL            string `mapstructure:"classifier_url"`
	ClassifierConcurrency    int    `mapstructure:"classifier_concurrency"`
	ViewportWidth            int    `mapstructure:"viewport_width"`
	ViewportHeight           int    `mapstructure:"viewport_height"`
}

// AdminConfig secures the admin HTTP API.
type AdminConfig struct {
	BearerToken string `mapstructure:"bearer_token"`
}
