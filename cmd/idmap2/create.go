package main

import (
  "flag"
  "fmt"
  "io"
  "os"
  "path/filepath"

  "github.com/pkg/errors"

  "github.com/kwf2030/idmap2/apk"
  "github.com/kwf2030/idmap2/file"
  "github.com/kwf2030/idmap2/idmap"
  "github.com/kwf2030/idmap2/service"
)

func runCreate(args []string) error {
  fs := flag.NewFlagSet("create", flag.ContinueOnError)
  targetPath := fs.String("target-apk-path", "", "input: path to apk which will have its resources overlaid")
  overlayPath := fs.String("overlay-apk-path", "", "input: path to apk which contains the new resource values")
  idmapPath := fs.String("idmap-path", "", "output: path to where to write idmap file (default: canonical path under --idmap-dir)")
  idmapDir := fs.String("idmap-dir", service.DefaultIdmapDir, "directory for the canonical idmap path")
  ignoreCategories := fs.Bool("ignore-categories", false, "disables overlay category filtering")
  var categories stringList
  fs.Var(&categories, "category", "enabled overlay category (repeatable)")
  if e := fs.Parse(args); e != nil {
    return e
  }
  if *targetPath == "" || *overlayPath == "" {
    fs.Usage()
    return errors.New("--target-apk-path and --overlay-apk-path are required")
  }

  target, e := filepath.Abs(*targetPath)
  if e != nil {
    return e
  }
  overlay, e := filepath.Abs(*overlayPath)
  if e != nil {
    return e
  }
  out := *idmapPath
  if out == "" {
    out = idmap.CanonicalIdmapPathFor(*idmapDir, overlay)
  }

  targetAssets, e := apk.LoadAssets(target)
  if e != nil {
    return errors.Wrap(e, "failed to load target apk")
  }
  overlayAssets, e := apk.LoadAssets(overlay)
  if e != nil {
    return errors.Wrap(e, "failed to load overlay apk")
  }
  m, e := idmap.FromApkAssets(target, targetAssets, overlay, overlayAssets, *ignoreCategories, categories...)
  if e != nil {
    return e
  }
  if e = os.MkdirAll(filepath.Dir(out), 0755); e != nil {
    return e
  }
  e = file.WriteAtomic(out, 0644, func(w io.Writer) error {
    return idmap.Write(w, m)
  })
  if e != nil {
    return errors.Wrapf(e, "failed to write %s", out)
  }
  fmt.Println(out)
  return nil
}
