package session

import (
	"net"
	"strconv"
	"time"

	"github.com/spf13/viper"

	"github.com/lk2023060901/openfire-session-go/internal/transport"
	"github.com/lk2023060901/openfire-session-go/pkg/util/merr"
)

// Config 为一个会话的全部连接参数。
// JSON 字段名是跨边界兼容性契约，不允许改动。
// 绑定到会话之后不可再修改。
type Config struct {
	Server             string `json:"server" mapstructure:"server"`
	Port               int    `json:"port" mapstructure:"port"`
	Domain             string `json:"domain" mapstructure:"domain"`
	UseTLS             bool   `json:"use_tls" mapstructure:"use_tls"`
	VerifyCertificates bool   `json:"verify_certificates" mapstructure:"verify_certificates"`
	// ConnectionTimeout 与 AuthTimeout 单位为秒，分别约束传输阶段与认证阶段。
	ConnectionTimeout int64  `json:"connection_timeout" mapstructure:"connection_timeout"`
	AuthTimeout       int64  `json:"auth_timeout" mapstructure:"auth_timeout"`
	Resource          string `json:"resource" mapstructure:"resource"`
	Priority          int    `json:"priority" mapstructure:"priority"`
	// Transport 取值 tcp 或 websocket，为空时按 tcp 处理。
	Transport string `json:"transport,omitempty" mapstructure:"transport"`
}

// DefaultConfig 返回缺省配置：本机 5222 端口，开启 TLS 与证书校验。
func DefaultConfig() Config {
	return Config{
		Server:             "localhost",
		Port:               5222,
		Domain:             "localhost",
		UseTLS:             true,
		VerifyCertificates: true,
		ConnectionTimeout:  30,
		AuthTimeout:        10,
		Resource:           "SparkGo",
		Priority:           1,
	}
}

// Validate 校验配置合法性，返回的错误指明第一个非法字段。
// 校验顺序固定：server、port、domain、connection_timeout、auth_timeout、
// resource、priority、transport。
func (c *Config) Validate() error {
	if c.Server == "" {
		return merr.WrapErrConfigInvalid("server", c.Server, "server must not be empty")
	}
	if c.Port < 1 || c.Port > 65535 {
		return merr.WrapErrConfigInvalid("port", c.Port, "port must be in [1, 65535]")
	}
	if c.Domain == "" {
		return merr.WrapErrConfigInvalid("domain", c.Domain, "domain must not be empty")
	}
	if c.ConnectionTimeout <= 0 {
		return merr.WrapErrConfigInvalid("connection_timeout", c.ConnectionTimeout, "timeout must be positive")
	}
	if c.AuthTimeout <= 0 {
		return merr.WrapErrConfigInvalid("auth_timeout", c.AuthTimeout, "timeout must be positive")
	}
	if c.Resource == "" {
		return merr.WrapErrConfigInvalid("resource", c.Resource, "resource must not be empty")
	}
	if c.Priority < -128 || c.Priority > 127 {
		return merr.WrapErrConfigInvalid("priority", c.Priority, "priority must be in [-128, 127]")
	}
	switch c.Transport {
	case "", transport.NetworkTCP, transport.NetworkWebSocket:
	default:
		return merr.WrapErrConfigInvalid("transport", c.Transport, "transport must be tcp or websocket")
	}
	return nil
}

// Addr 返回 server:port 形式的拨号地址。
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Server, strconv.Itoa(c.Port))
}

func (c *Config) connectionTimeout() time.Duration {
	return time.Duration(c.ConnectionTimeout) * time.Second
}

func (c *Config) authTimeout() time.Duration {
	return time.Duration(c.AuthTimeout) * time.Second
}

// LoadConfigFile 从 yaml/json/toml 配置文件读取 Config。
// 文件中缺失的字段保持缺省值。
func LoadConfigFile(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return Config{}, merr.WrapErrConfigInvalid("file", path, err.Error())
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, merr.WrapErrConfigInvalid("file", path, err.Error())
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// SaveConfigFile 将 Config 写入配置文件，格式由扩展名决定。
func (c *Config) SaveConfigFile(path string) error {
	if err := c.Validate(); err != nil {
		return err
	}

	v := viper.New()
	v.Set("server", c.Server)
	v.Set("port", c.Port)
	v.Set("domain", c.Domain)
	v.Set("use_tls", c.UseTLS)
	v.Set("verify_certificates", c.VerifyCertificates)
	v.Set("connection_timeout", c.ConnectionTimeout)
	v.Set("auth_timeout", c.AuthTimeout)
	v.Set("resource", c.Resource)
	v.Set("priority", c.Priority)
	if c.Transport != "" {
		v.Set("transport", c.Transport)
	}
	if err := v.WriteConfigAs(path); err != nil {
		return merr.WrapErrConfigInvalid("file", path, err.Error())
	}
	return nil
}
