package main

import (
  "flag"
  "fmt"
  "path/filepath"

  "github.com/pkg/errors"

  "github.com/kwf2030/idmap2/file"
  "github.com/kwf2030/idmap2/idmap"
  "github.com/kwf2030/idmap2/service"
)

func runVerify(args []string) error {
  fs := flag.NewFlagSet("verify", flag.ContinueOnError)
  idmapPath := fs.String("idmap-path", "", "input: path to idmap file to verify")
  if e := fs.Parse(args); e != nil {
    return e
  }
  if *idmapPath == "" {
    fs.Usage()
    return errors.New("--idmap-path is required")
  }
  m, e := readIdmap(*idmapPath)
  if e != nil {
    return e
  }
  if e = idmap.Verify(m.Header); e != nil {
    return e
  }
  sum, e := file.SHA256(*idmapPath)
  if e != nil {
    return e
  }
  fmt.Printf("%s: ok (sha256 %s)\n", *idmapPath, sum)
  return nil
}

func runPath(args []string) error {
  fs := flag.NewFlagSet("path", flag.ContinueOnError)
  overlayPath := fs.String("overlay-apk-path", "", "input: path to overlay apk")
  idmapDir := fs.String("idmap-dir", service.DefaultIdmapDir, "directory holding idmap files")
  if e := fs.Parse(args); e != nil {
    return e
  }
  if *overlayPath == "" {
    fs.Usage()
    return errors.New("--overlay-apk-path is required")
  }
  overlay, e := filepath.Abs(*overlayPath)
  if e != nil {
    return e
  }
  fmt.Println(idmap.CanonicalIdmapPathFor(*idmapDir, overlay))
  return nil
}
