// =============================================================================
// 📦 ImageFlow 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server:   DefaultServerConfig(),
		Upstream: DefaultUpstreamConfig(),
		Store:    DefaultStoreConfig(),
		Log:      DefaultLogConfig(),
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        5005,
		MetricsPort:     9091,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    5 * time.Minute,
		ShutdownTimeout: 15 * time.Second,
		MaxBodyBytes:    10 << 20, // 10 MiB
		CORSAllowedOrigins: []string{
			"http://localhost:3000",
		},
		RateLimitRPS:   50,
		RateLimitBurst: 100,
		StaticDir:      "",
	}
}

// DefaultUpstreamConfig 返回默认上游配置。
// 端点与凭证无默认值，必须显式提供。
func DefaultUpstreamConfig() UpstreamConfig {
	return UpstreamConfig{
		Endpoint:        "",
		APIKey:          "",
		RequestTimeout:  200 * time.Second,
		DownloadTimeout: 60 * time.Second,
	}
}

// DefaultStoreConfig 返回默认存储配置
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		Dir:        "img",
		PublicPath: "/img",
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:       "info",
		Format:      "json",
		OutputPaths: []string{"stdout"},
	}
}
