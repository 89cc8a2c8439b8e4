package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/smart-unicom/wxpay"
)

// Config 运行配置，来自环境变量(可由 .env 文件提供)
type Config struct {
	AppEnv      string
	AppID       string
	MchID       string
	MchKey      string
	AppSecret   string
	CertPath    string
	KeyPath     string
	Flavor      wxpay.Flavor
	Timeout     time.Duration
	MetricsAddr string
}

// LoadConfig 读取配置，缺少 WXPAY_APP_ID、WXPAY_MCH_ID、WXPAY_MCH_KEY 时返回错误
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:      os.Getenv("APP_ENV"),
		AppID:       os.Getenv("WXPAY_APP_ID"),
		MchID:       os.Getenv("WXPAY_MCH_ID"),
		MchKey:      os.Getenv("WXPAY_MCH_KEY"),
		AppSecret:   os.Getenv("WXPAY_APP_SECRET"),
		CertPath:    os.Getenv("WXPAY_CERT_PATH"),
		KeyPath:     os.Getenv("WXPAY_KEY_PATH"),
		MetricsAddr: getEnv("WXPAY_METRICS_ADDR", ":9090"),
	}

	flavor, ok := wxpay.ParseFlavor(os.Getenv("WXPAY_FLAVOR"))
	if !ok {
		return nil, fmt.Errorf("parse WXPAY_FLAVOR: unknown flavor %q", os.Getenv("WXPAY_FLAVOR"))
	}
	cfg.Flavor = flavor

	timeout, err := time.ParseDuration(getEnv("WXPAY_TIMEOUT", "15s"))
	if err != nil {
		return nil, fmt.Errorf("parse WXPAY_TIMEOUT: %w", err)
	}
	cfg.Timeout = timeout

	for name, v := range map[string]string{
		"WXPAY_APP_ID":  cfg.AppID,
		"WXPAY_MCH_ID":  cfg.MchID,
		"WXPAY_MCH_KEY": cfg.MchKey,
	} {
		if v == "" {
			return nil, fmt.Errorf("missing required environment variable %s", name)
		}
	}
	return cfg, nil
}

// Credentials 转换为客户端的商户配置
func (c *Config) Credentials() wxpay.Credentials {
	return wxpay.Credentials{
		AppID:     c.AppID,
		MchID:     c.MchID,
		MchKey:    c.MchKey,
		AppSecret: c.AppSecret,
		CertPath:  c.CertPath,
		KeyPath:   c.KeyPath,
		Flavor:    c.Flavor,
	}
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}
