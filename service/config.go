package service

import (
  "os"
  "path/filepath"

  "github.com/pkg/errors"
  "gopkg.in/yaml.v2"

  "github.com/kwf2030/idmap2/base"
  "github.com/kwf2030/idmap2/file"
)

const (
  DefaultIdmapDir = "/data/resource-cache"
  DefaultListen   = "127.0.0.1:9611"
)

type Config struct {
  // 存放idmap文件的目录，必须是绝对路径
  IdmapDir string `yaml:"idmap_dir"`

  // 监听地址
  Listen string `yaml:"listen"`

  // 最大连接数，0表示不限制
  MaxConns int `yaml:"max_conns"`

  // 同时处理的请求数
  Workers int `yaml:"workers"`

  // debug/info/warn/error
  LogLevel string `yaml:"log_level"`

  // 为空输出到stderr
  LogFile string `yaml:"log_file"`

  // 创建idmap时启用的overlay类别
  EnabledCategories []string `yaml:"enabled_categories"`
}

func DefaultConfig() *Config {
  return &Config{
    IdmapDir: DefaultIdmapDir,
    Listen:   DefaultListen,
    MaxConns: 64,
    Workers:  4,
    LogLevel: "info",
  }
}

// 文件中没有的字段使用默认值
func LoadConfig(path string) (*Config, error) {
  data, e := os.ReadFile(path)
  if e != nil {
    return nil, e
  }
  c := DefaultConfig()
  if e = yaml.Unmarshal(data, c); e != nil {
    return nil, errors.Wrapf(e, "parse config %s", path)
  }
  if e = c.Validate(); e != nil {
    return nil, errors.Wrapf(e, "config %s", path)
  }
  return c, nil
}

func (c *Config) Validate() error {
  if c.IdmapDir == "" || !filepath.IsAbs(c.IdmapDir) {
    return errors.Wrapf(base.ErrInvalidArgument, "idmap_dir %q must be an absolute path", c.IdmapDir)
  }
  if file.Exist(c.IdmapDir) && !file.IsDir(c.IdmapDir) {
    return errors.Wrapf(base.ErrInvalidArgument, "idmap_dir %s is not a directory", c.IdmapDir)
  }
  if c.MaxConns < 0 {
    return errors.Wrapf(base.ErrInvalidArgument, "max_conns %d", c.MaxConns)
  }
  if c.Workers < 1 {
    return errors.Wrapf(base.ErrInvalidArgument, "workers %d", c.Workers)
  }
  return nil
}
