package config

import (
	"log"

	"github.com/spf13/viper"
)

// Config 全局配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	MySQL    MySQLConfig    `mapstructure:"mysql"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Cron     CronConfig     `mapstructure:"cron"`
	Business BusinessConfig `mapstructure:"business"`
	Gateway  GatewayConfig  `mapstructure:"gateway"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type MySQLConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Brokers []string         `mapstructure:"brokers"`
	Topic   KafkaTopicConfig `mapstructure:"topic"`
}

type KafkaTopicConfig struct {
	IncomeEvent string `mapstructure:"income_event"`
	FundEvent   string `mapstructure:"fund_event"`
}

// CronConfig 各分发任务的 cron 表达式
type CronConfig struct {
	Timezone      string `mapstructure:"timezone"`
	ROI           string `mapstructure:"roi"`
	GrowthBooster string `mapstructure:"growth_booster"`
	DailyLevel    string `mapstructure:"daily_level"`
	Reward        string `mapstructure:"reward"`
	PayoutSweep   string `mapstructure:"payout_sweep"`
	StatusSweep   string `mapstructure:"status_sweep"`
}

// BusinessConfig 业务参数
// 手续费按百分比配置，封顶哨兵值表示"未设置封顶即无限"
type BusinessConfig struct {
	TransferChargePercent   float64 `mapstructure:"transfer_charge_percent"`
	TransferMinimum         float64 `mapstructure:"transfer_minimum"`
	ConvertChargePercent    float64 `mapstructure:"convert_charge_percent"`
	WithdrawalChargePercent float64 `mapstructure:"withdrawal_charge_percent"`
	CappingUnlimited        float64 `mapstructure:"capping_unlimited"`
	MaxTeamLevels           int     `mapstructure:"max_team_levels"`
	LevelROIEnabled         bool    `mapstructure:"level_roi_enabled"`
	LevelROIDepth           int     `mapstructure:"level_roi_depth"`
	AutopoolLegs            int     `mapstructure:"autopool_legs"`
	AutopoolLevels          int     `mapstructure:"autopool_levels"`
	JobWorkers              int     `mapstructure:"job_workers"`
	JobBatchSize            int     `mapstructure:"job_batch_size"`
	MaxRetryCount           int     `mapstructure:"max_retry_count"`
}

type GatewayConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	APIKey         string `mapstructure:"api_key"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

var GlobalConfig *Config

// LoadConfig 加载配置文件
func LoadConfig(configPath string) *Config {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		log.Fatalf("读取配置文件失败: %v", err)
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		log.Fatalf("解析配置文件失败: %v", err)
	}

	GlobalConfig = config
	return config
}
