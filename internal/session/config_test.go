package session

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/lk2023060901/openfire-session-go/pkg/util/merr"
)

type ConfigSuite struct {
	suite.Suite
}

func (s *ConfigSuite) TestDefaults() {
	cfg := DefaultConfig()
	s.Equal("localhost", cfg.Server)
	s.Equal(5222, cfg.Port)
	s.Equal("localhost", cfg.Domain)
	s.True(cfg.UseTLS)
	s.True(cfg.VerifyCertificates)
	s.EqualValues(30, cfg.ConnectionTimeout)
	s.EqualValues(10, cfg.AuthTimeout)
	s.Equal("SparkGo", cfg.Resource)
	s.Equal(1, cfg.Priority)
	s.NoError(cfg.Validate())
	s.Equal("localhost:5222", cfg.Addr())
}

// 校验错误必须指明第一个非法字段。
func (s *ConfigSuite) TestValidateNamesFirstInvalidField() {
	cases := []struct {
		field  string
		mutate func(*Config)
	}{
		{"server", func(c *Config) { c.Server = "" }},
		{"port", func(c *Config) { c.Port = 0 }},
		{"port", func(c *Config) { c.Port = 65536 }},
		{"domain", func(c *Config) { c.Domain = "" }},
		{"connection_timeout", func(c *Config) { c.ConnectionTimeout = 0 }},
		{"auth_timeout", func(c *Config) { c.AuthTimeout = -3 }},
		{"resource", func(c *Config) { c.Resource = "" }},
		{"priority", func(c *Config) { c.Priority = 500 }},
		{"transport", func(c *Config) { c.Transport = "smoke-signal" }},
	}

	for _, tc := range cases {
		cfg := DefaultConfig()
		tc.mutate(&cfg)
		err := cfg.Validate()
		s.Error(err, "field %s", tc.field)
		s.ErrorIs(err, merr.ErrConfigInvalid)
		s.Equal(tc.field, merr.ConfigField(err))
	}
}

// server 与 port 同时非法时，报的是 server（固定校验顺序）。
func (s *ConfigSuite) TestValidateOrder() {
	cfg := DefaultConfig()
	cfg.Server = ""
	cfg.Port = 0
	err := cfg.Validate()
	s.Error(err)
	s.Equal("server", merr.ConfigField(err))
}

func (s *ConfigSuite) TestSaveAndLoadFile() {
	cfg := DefaultConfig()
	cfg.Server = "xmpp.corp.example"
	cfg.Port = 5223
	cfg.Domain = "corp.example"
	cfg.UseTLS = false
	cfg.Priority = 7

	path := filepath.Join(s.T().TempDir(), "session.yaml")
	s.Require().NoError(cfg.SaveConfigFile(path))

	loaded, err := LoadConfigFile(path)
	s.Require().NoError(err)
	s.Equal(cfg, loaded)
}

func (s *ConfigSuite) TestLoadMissingFile() {
	_, err := LoadConfigFile(filepath.Join(s.T().TempDir(), "absent.yaml"))
	s.Error(err)
	s.ErrorIs(err, merr.ErrConfigInvalid)
}

func (s *ConfigSuite) TestSaveRejectsInvalid() {
	cfg := DefaultConfig()
	cfg.Port = 0
	err := cfg.SaveConfigFile(filepath.Join(s.T().TempDir(), "bad.yaml"))
	s.ErrorIs(err, merr.ErrConfigInvalid)
}

func TestConfig(t *testing.T) {
	suite.Run(t, new(ConfigSuite))
}
