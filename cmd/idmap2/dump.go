package main

import (
  "flag"
  "fmt"
  "os"
  "strconv"
  "strings"

  "github.com/pkg/errors"

  "github.com/kwf2030/idmap2/apk"
  "github.com/kwf2030/idmap2/file"
  "github.com/kwf2030/idmap2/idmap"
)

func readIdmap(p string) (*idmap.Idmap, error) {
  if !file.IsFile(p) {
    return nil, errors.Errorf("%s is not a file", p)
  }
  f, e := os.Open(p)
  if e != nil {
    return nil, e
  }
  defer f.Close()
  m, e := idmap.Read(f)
  if e != nil {
    return nil, errors.Wrapf(e, "failed to read %s", p)
  }
  return m, nil
}

// 目标apk打不开时仍然可以打印，资源名显示为???
func loadResolver(p string) (*apk.Assets, idmap.NameResolver) {
  a, e := apk.LoadAssets(p)
  if e != nil {
    logger.Warn().Err(e).Str("apk", p).Msg("resource names unavailable")
    return nil, nil
  }
  return a, a
}

func runDump(args []string) error {
  fs := flag.NewFlagSet("dump", flag.ContinueOnError)
  idmapPath := fs.String("idmap-path", "", "input: path to idmap file to pretty-print")
  verbose := fs.Bool("verbose", false, "annotate every byte of the idmap")
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
  _, names := loadResolver(m.Header.TargetPath)
  if *verbose {
    m.Accept(idmap.NewRawPrintVisitor(os.Stdout, names))
  } else {
    m.Accept(idmap.NewPrettyPrintVisitor(os.Stdout, names))
  }
  return nil
}

func runLookup(args []string) error {
  fs := flag.NewFlagSet("lookup", flag.ContinueOnError)
  idmapPath := fs.String("idmap-path", "", "input: path to idmap file")
  resid := fs.String("resid", "", "input: target resource id (0x7f010001) or name (package:type/entry)")
  if e := fs.Parse(args); e != nil {
    return e
  }
  if *idmapPath == "" || *resid == "" {
    fs.Usage()
    return errors.New("--idmap-path and --resid are required")
  }
  m, e := readIdmap(*idmapPath)
  if e != nil {
    return e
  }
  target, _ := loadResolver(m.Header.TargetPath)
  id, e := parseResid(*resid, target)
  if e != nil {
    return e
  }
  overlayId, ok := m.Lookup(id)
  if !ok {
    return errors.Errorf("0x%08x is not overlaid", id)
  }
  overlay, e := apk.LoadAssets(m.Header.OverlayPath)
  if e != nil {
    logger.Warn().Err(e).Str("apk", m.Header.OverlayPath).Msg("overlay value unavailable")
    fmt.Printf("0x%08x\n", overlayId)
    return nil
  }
  name, _ := overlay.QualifiedName(overlayId)
  value, _ := overlay.Value(overlayId)
  fmt.Printf("0x%08x %s %s\n", overlayId, name, value)
  return nil
}

func parseResid(s string, target *apk.Assets) (uint32, error) {
  if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
    n, e := strconv.ParseUint(s[2:], 16, 32)
    if e != nil {
      return 0, errors.Wrapf(e, "bad resource id %s", s)
    }
    return uint32(n), nil
  }
  if target == nil {
    return 0, errors.Errorf("cannot resolve %s without the target apk", s)
  }
  id := target.ResourceID(s)
  if id == 0 {
    return 0, errors.Errorf("no resource named %s in %s", s, target.Path)
  }
  return id, nil
}
