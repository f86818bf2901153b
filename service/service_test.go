package service

import (
  "bytes"
  "os"
  "path/filepath"
  "strings"
  "testing"

  "github.com/pkg/errors"
  "github.com/rs/zerolog"

  "github.com/kwf2030/idmap2/apk"
  "github.com/kwf2030/idmap2/base"
  "github.com/kwf2030/idmap2/idmap"
)

// target: string/app_name=0x7f010001, overlay: string/app_name=0x7f020005
func writeApks(t *testing.T) (string, string) {
  t.Helper()
  dir := t.TempDir()

  tb := apk.NewTableBuilder()
  tp := tb.Package(0x7f, "com.example.target")
  tp.String("string", "app_label", "Label")
  tp.String("string", "app_name", "Foo")
  target := filepath.Join(dir, "target", "base.apk")
  if e := os.MkdirAll(filepath.Dir(target), 0755); e != nil {
    t.Fatal(e)
  }
  if e := apk.WriteApk(target, map[string][]byte{apk.ResourcesArsc: tb.Bytes()}); e != nil {
    t.Fatal(e)
  }

  ob := apk.NewTableBuilder()
  op := ob.Package(0x7f, "com.example.overlay")
  op.Int("integer", "unused", 1)
  for i := 0; i < 5; i++ {
    op.Hole("string")
  }
  op.String("string", "app_name", "Bar")
  overlay := filepath.Join(dir, "overlay", "base.apk")
  if e := os.MkdirAll(filepath.Dir(overlay), 0755); e != nil {
    t.Fatal(e)
  }
  if e := apk.WriteApk(overlay, map[string][]byte{apk.ResourcesArsc: ob.Bytes()}); e != nil {
    t.Fatal(e)
  }
  return target, overlay
}

func newTestService(t *testing.T, logs *bytes.Buffer) *Service {
  t.Helper()
  cfg := DefaultConfig()
  cfg.IdmapDir = filepath.Join(t.TempDir(), "idmap")
  logger := zerolog.Nop()
  if logs != nil {
    logger = zerolog.New(logs)
  }
  s, e := New(cfg, logger)
  if e != nil {
    t.Fatal(e)
  }
  return s
}

func TestService(t *testing.T) {
  target, overlay := writeApks(t)
  s := newTestService(t, nil)

  p, ok := s.CreateIdmap(target, overlay, true, 0)
  if !ok {
    t.Fatal("create failed")
  }
  want, e := s.GetIdmapPath(overlay, 0)
  if e != nil || p != want {
    t.Fatalf("path %s, want %s (%v)", p, want, e)
  }
  f, e := os.Open(p)
  if e != nil {
    t.Fatal(e)
  }
  m, e := idmap.Read(f)
  f.Close()
  if e != nil {
    t.Fatal(e)
  }
  rt := m.Data[0].ResourceTypes
  if len(rt) != 1 || rt[0].EntryOffset != 1 || len(rt[0].Entries) != 1 || rt[0].Entries[0] != 0x7f020005 {
    t.Fatalf("resource types: %+v", rt)
  }
  if m.Header.TargetPath != target || m.Header.OverlayPath != overlay {
    t.Errorf("header paths: %s %s", m.Header.TargetPath, m.Header.OverlayPath)
  }

  // 临时文件不能留在目录中
  entries, e := os.ReadDir(filepath.Dir(p))
  if e != nil {
    t.Fatal(e)
  }
  if len(entries) != 1 {
    t.Errorf("idmap dir has %d files", len(entries))
  }

  if !s.RemoveIdmap(overlay, 0) {
    t.Error("first remove should succeed")
  }
  if s.RemoveIdmap(overlay, 0) {
    t.Error("second remove should report nothing removed")
  }
}

func TestServiceCreateTwice(t *testing.T) {
  target, overlay := writeApks(t)
  s := newTestService(t, nil)
  p1, ok := s.CreateIdmap(target, overlay, true, 0)
  if !ok {
    t.Fatal("first create failed")
  }
  b1, _ := os.ReadFile(p1)
  p2, ok := s.CreateIdmap(target, overlay, true, 10)
  if !ok || p1 != p2 {
    t.Fatalf("second create: %s %v", p2, ok)
  }
  b2, _ := os.ReadFile(p2)
  if !bytes.Equal(b1, b2) {
    t.Error("idmap changed between identical requests")
  }
}

func TestServiceCreateFailure(t *testing.T) {
  target, _ := writeApks(t)
  var logs bytes.Buffer
  s := newTestService(t, &logs)
  missing := filepath.Join(t.TempDir(), "missing.apk")
  p, ok := s.CreateIdmap(target, missing, true, 0)
  if ok || p != "" {
    t.Fatalf("create with missing overlay: %s %v", p, ok)
  }
  if !strings.Contains(logs.String(), "missing.apk") {
    t.Errorf("failure not logged: %s", logs.String())
  }
  if out, _ := s.GetIdmapPath(missing, 0); fileExists(out) {
    t.Error("failed create left a file")
  }
  if _, ok = s.CreateIdmap("relative/target.apk", missing, true, 0); ok {
    t.Error("relative target path")
  }
  // 目标是目录而不是apk文件
  if _, ok = s.CreateIdmap(filepath.Dir(target), target, true, 0); ok {
    t.Error("directory as target apk")
  }
}

func fileExists(p string) bool {
  _, e := os.Stat(p)
  return e == nil
}

func TestGetIdmapPath(t *testing.T) {
  s := newTestService(t, nil)
  a, e := s.GetIdmapPath("/vendor/overlay/Foo/Foo.apk", 0)
  if e != nil {
    t.Fatal(e)
  }
  b, _ := s.GetIdmapPath("/product/overlay/Foo/Foo.apk", 0)
  a2, _ := s.GetIdmapPath("/vendor/overlay/Foo/Foo.apk", 10)
  if a == b || a != a2 {
    t.Errorf("paths: %s %s %s", a, b, a2)
  }
  if _, e = s.GetIdmapPath("overlay/Foo.apk", 0); errors.Cause(e) != base.ErrInvalidArgument {
    t.Errorf("relative path: %v", e)
  }
  if s.RemoveIdmap("overlay/Foo.apk", 0) {
    t.Error("relative path removed")
  }
}

func TestNewService(t *testing.T) {
  if _, e := New(nil, zerolog.Nop()); e == nil {
    t.Error("nil config")
  }
  cfg := DefaultConfig()
  cfg.IdmapDir = "relative"
  if _, e := New(cfg, zerolog.Nop()); errors.Cause(e) != base.ErrInvalidArgument {
    t.Errorf("relative dir: %v", e)
  }
}

func TestLoadConfig(t *testing.T) {
  name := filepath.Join(t.TempDir(), "idmap2.yml")
  data := "idmap_dir: /tmp/idmap\nworkers: 8\nlog_level: debug\nenabled_categories:\n  - icon\n  - text\n"
  if e := os.WriteFile(name, []byte(data), 0644); e != nil {
    t.Fatal(e)
  }
  c, e := LoadConfig(name)
  if e != nil {
    t.Fatal(e)
  }
  if c.IdmapDir != "/tmp/idmap" || c.Workers != 8 || c.LogLevel != "debug" {
    t.Errorf("config: %+v", c)
  }
  if c.Listen != DefaultListen || c.MaxConns != 64 {
    t.Errorf("defaults lost: %+v", c)
  }
  if len(c.EnabledCategories) != 2 || c.EnabledCategories[1] != "text" {
    t.Errorf("categories: %v", c.EnabledCategories)
  }

  if e = os.WriteFile(name, []byte("workers: 0\n"), 0644); e != nil {
    t.Fatal(e)
  }
  if _, e = LoadConfig(name); errors.Cause(e) != base.ErrInvalidArgument {
    t.Errorf("zero workers: %v", e)
  }
  if e = os.WriteFile(name, []byte("workers: [\n"), 0644); e != nil {
    t.Fatal(e)
  }
  if _, e = LoadConfig(name); e == nil {
    t.Error("bad yaml")
  }

  // idmap_dir已存在但是普通文件
  data = "idmap_dir: " + name + "\n"
  if e = os.WriteFile(name, []byte(data), 0644); e != nil {
    t.Fatal(e)
  }
  if _, e = LoadConfig(name); errors.Cause(e) != base.ErrInvalidArgument {
    t.Errorf("idmap_dir is a file: %v", e)
  }
}

func TestParseLogLevel(t *testing.T) {
  for level, want := range map[string]zerolog.Level{
    "debug": zerolog.DebugLevel,
    "INFO":  zerolog.InfoLevel,
    "warn":  zerolog.WarnLevel,
    "error": zerolog.ErrorLevel,
    "":      zerolog.InfoLevel,
  } {
    if got := ParseLogLevel(level); got != want {
      t.Errorf("%q: %v", level, got)
    }
  }
}

func TestNewLoggerFile(t *testing.T) {
  name := filepath.Join(t.TempDir(), "log", "idmap2.log")
  lg, closer, e := NewLogger("warn", name)
  if e != nil {
    t.Fatal(e)
  }
  lg.Info().Msg("hidden")
  lg.Warn().Msg("shown")
  closer.Close()
  data, e := os.ReadFile(name)
  if e != nil {
    t.Fatal(e)
  }
  if strings.Contains(string(data), "hidden") || !strings.Contains(string(data), "shown") {
    t.Errorf("log: %s", data)
  }
}
