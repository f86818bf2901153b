package service

import (
  "io"
  "os"
  "path/filepath"

  "github.com/pkg/errors"
  "github.com/rs/zerolog"
  "golang.org/x/sync/errgroup"

  "github.com/kwf2030/idmap2/apk"
  "github.com/kwf2030/idmap2/base"
  "github.com/kwf2030/idmap2/file"
  "github.com/kwf2030/idmap2/idmap"
)

// 每个请求独立处理，不保存任何请求之间的状态，
// userID目前只用于日志
type Service struct {
  dir string

  categories []string

  logger zerolog.Logger
}

func New(cfg *Config, logger zerolog.Logger) (*Service, error) {
  if cfg == nil {
    return nil, base.ErrNilPointer
  }
  if e := cfg.Validate(); e != nil {
    return nil, e
  }
  return &Service{
    dir:        filepath.Clean(cfg.IdmapDir),
    categories: append([]string(nil), cfg.EnabledCategories...),
    logger:     logger,
  }, nil
}

func (s *Service) GetIdmapPath(overlayApkPath string, userID int32) (string, error) {
  if overlayApkPath == "" || !filepath.IsAbs(overlayApkPath) {
    return "", errors.Wrapf(base.ErrInvalidArgument, "overlay path %q is not absolute", overlayApkPath)
  }
  return idmap.CanonicalIdmapPathFor(s.dir, overlayApkPath), nil
}

// 文件不存在返回false
func (s *Service) RemoveIdmap(overlayApkPath string, userID int32) bool {
  p, e := s.GetIdmapPath(overlayApkPath, userID)
  if e != nil {
    s.logger.Warn().Err(e).Int32("user", userID).Msg("remove idmap")
    return false
  }
  ok, e := file.Remove(p)
  if e != nil {
    s.logger.Error().Err(e).Str("overlay", overlayApkPath).Str("idmap", p).Int32("user", userID).Msg("remove idmap")
    return false
  }
  s.logger.Debug().Str("overlay", overlayApkPath).Str("idmap", p).Bool("removed", ok).Int32("user", userID).Msg("remove idmap")
  return ok
}

// 失败返回("", false)，原因只写入日志
func (s *Service) CreateIdmap(targetApkPath, overlayApkPath string, ignoreCategories bool, userID int32) (string, bool) {
  p, e := s.createIdmap(targetApkPath, overlayApkPath, ignoreCategories, userID)
  if e != nil {
    s.logger.Error().Err(e).
      Str("target", targetApkPath).
      Str("overlay", overlayApkPath).
      Int32("user", userID).
      Msg("create idmap")
    return "", false
  }
  s.logger.Info().
    Str("target", targetApkPath).
    Str("overlay", overlayApkPath).
    Str("idmap", p).
    Int32("user", userID).
    Msg("create idmap")
  return p, true
}

func (s *Service) createIdmap(targetApkPath, overlayApkPath string, ignoreCategories bool, userID int32) (string, error) {
  p, e := s.GetIdmapPath(overlayApkPath, userID)
  if e != nil {
    return "", e
  }
  if targetApkPath == "" || !filepath.IsAbs(targetApkPath) {
    return "", errors.Wrapf(base.ErrInvalidArgument, "target path %q is not absolute", targetApkPath)
  }
  for _, apkPath := range []string{targetApkPath, overlayApkPath} {
    if !file.IsFile(apkPath) {
      return "", errors.Wrapf(base.ErrNotFound, "apk %s", apkPath)
    }
  }

  var target, overlay *apk.Assets
  var g errgroup.Group
  g.Go(func() error {
    var e error
    target, e = apk.LoadAssets(targetApkPath)
    return e
  })
  g.Go(func() error {
    var e error
    overlay, e = apk.LoadAssets(overlayApkPath)
    return e
  })
  if e = g.Wait(); e != nil {
    return "", e
  }

  m, e := idmap.FromApkAssets(targetApkPath, target, overlayApkPath, overlay, ignoreCategories, s.categories...)
  if e != nil {
    return "", e
  }
  if e = os.MkdirAll(filepath.Dir(p), 0755); e != nil {
    return "", errors.Wrap(e, "create idmap dir")
  }
  e = file.WriteAtomic(p, 0644, func(w io.Writer) error {
    return idmap.Write(w, m)
  })
  if e != nil {
    return "", errors.Wrapf(e, "write %s", p)
  }
  return p, nil
}
