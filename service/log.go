package service

import (
  "io"
  "os"
  "path/filepath"
  "strings"

  "github.com/rs/zerolog"
)

func ParseLogLevel(level string) zerolog.Level {
  switch strings.ToLower(level) {
  case "debug":
    return zerolog.DebugLevel
  case "info":
    return zerolog.InfoLevel
  case "warn":
    return zerolog.WarnLevel
  case "error":
    return zerolog.ErrorLevel
  case "disabled":
    return zerolog.Disabled
  }
  return zerolog.InfoLevel
}

// file为空时输出到stderr，返回的Closer在退出时关闭日志文件
func NewLogger(level, file string) (zerolog.Logger, io.Closer, error) {
  var w io.Writer = os.Stderr
  var closer io.Closer = nopCloser{}
  if file != "" {
    if e := os.MkdirAll(filepath.Dir(file), os.ModePerm); e != nil {
      return zerolog.Nop(), nil, e
    }
    f, e := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
    if e != nil {
      return zerolog.Nop(), nil, e
    }
    w, closer = f, f
  }
  zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
  lg := zerolog.New(w).Level(ParseLogLevel(level)).With().Timestamp().Logger()
  return lg, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error {
  return nil
}
