package config

import (
	"log"

	"github.com/spf13/viper"
)

// Config 全局配置结构
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	MySQL      MySQLConfig      `mapstructure:"mysql"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Accounting AccountingConfig `mapstructure:"accounting"`
	Business   BusinessConfig   `mapstructure:"business"`
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
	PeriodClosed string `mapstructure:"period_closed"` // 月结/年结完成事件
	RepostDone   string `mapstructure:"repost_done"`   // 年度重算完成事件
}

// 年结科目缺省编码
// 未在配置里指定时使用，两个科目均落在权益段
const (
	DefaultRetainedEarningsAccount = "300.002.001" // 未分配利润
	DefaultCurrentProfitAccount    = "300.001.001" // 本年利润
)

// AccountingConfig 账务配置
// 年结需要两个特殊科目：未分配利润（承接累计损益）、本年利润（年结清零）
type AccountingConfig struct {
	RetainedEarningsAccount string `mapstructure:"retained_earnings_account"`
	CurrentProfitAccount    string `mapstructure:"current_profit_account"`
}

// RetainedEarnings 未分配利润科目编码（带缺省兜底）
func (c *AccountingConfig) RetainedEarnings() string {
	if c.RetainedEarningsAccount != "" {
		return c.RetainedEarningsAccount
	}
	return DefaultRetainedEarningsAccount
}

// CurrentProfit 本年利润科目编码（带缺省兜底）
func (c *AccountingConfig) CurrentProfit() string {
	if c.CurrentProfitAccount != "" {
		return c.CurrentProfitAccount
	}
	return DefaultCurrentProfitAccount
}

type BusinessConfig struct {
	MaxRetryCount int `mapstructure:"max_retry_count"`
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
