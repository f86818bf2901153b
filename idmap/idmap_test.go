package idmap

import (
  "bytes"
  "fmt"
  "path/filepath"
  "reflect"
  "strings"
  "testing"

  "github.com/pkg/errors"

  "github.com/kwf2030/idmap2/apk"
  "github.com/kwf2030/idmap2/base"
)

func writeApk(t *testing.T, dir, name string, b *apk.TableBuilder, categories string) (string, *apk.Assets) {
  t.Helper()
  p := filepath.Join(dir, name)
  files := map[string][]byte{apk.ResourcesArsc: b.Bytes()}
  if categories != "" {
    files[apk.CategoriesFile] = []byte(categories)
  }
  if e := apk.WriteApk(p, files); e != nil {
    t.Fatal(e)
  }
  a, e := apk.LoadAssets(p)
  if e != nil {
    t.Fatal(e)
  }
  return p, a
}

// target: string/app_label=0x7f010000, string/app_name=0x7f010001
// overlay: string/app_name=0x7f020005
func scenario(t *testing.T) (string, *apk.Assets, string, *apk.Assets) {
  t.Helper()
  dir := t.TempDir()

  tb := apk.NewTableBuilder()
  tp := tb.Package(0x7f, "com.example.target")
  tp.String("string", "app_label", "Label")
  tp.String("string", "app_name", "Foo")
  targetPath, target := writeApk(t, dir, "target.apk", tb, "")

  ob := apk.NewTableBuilder()
  op := ob.Package(0x7f, "com.example.overlay")
  op.Int("integer", "unused", 1)
  for i := 0; i < 5; i++ {
    op.Hole("string")
  }
  if id := op.String("string", "app_name", "Bar"); id != 0x7f020005 {
    t.Fatalf("overlay app_name: 0x%08x", id)
  }
  overlayPath, overlay := writeApk(t, dir, "overlay.apk", ob, "")
  return targetPath, target, overlayPath, overlay
}

func TestFromApkAssets(t *testing.T) {
  targetPath, target, overlayPath, overlay := scenario(t)
  m, e := FromApkAssets(targetPath, target, overlayPath, overlay, true)
  if e != nil {
    t.Fatal(e)
  }
  h := m.Header
  if h.Magic != Magic || h.Version != Version || h.TargetPath != targetPath || h.OverlayPath != overlayPath {
    t.Fatalf("header: %+v", h)
  }
  if h.TargetCrc == 0 || h.OverlayCrc == 0 || h.TargetCrc == h.OverlayCrc {
    t.Errorf("crc: 0x%08x 0x%08x", h.TargetCrc, h.OverlayCrc)
  }
  if len(m.Data) != 1 {
    t.Fatalf("data blocks: %d", len(m.Data))
  }
  d := m.Data[0]
  if d.Header.TargetPackageID != 0x7f || d.Header.TypeCount != 1 || len(d.ResourceTypes) != 1 {
    t.Fatalf("data header: %+v", d.Header)
  }
  rt := d.ResourceTypes[0]
  if rt.TargetType != 0x01 || rt.OverlayType != 0x02 || rt.EntryOffset != 1 {
    t.Errorf("resource type: %+v", rt)
  }
  if rt.EntryCount() != 1 || rt.Entry(0) != 0x7f020005 {
    t.Errorf("entries: %x", rt.Entries)
  }
  if v, ok := m.Lookup(0x7f010001); !ok || v != 0x7f020005 {
    t.Errorf("lookup app_name: 0x%08x %v", v, ok)
  }
  if _, ok := m.Lookup(0x7f010000); ok {
    t.Error("app_label is not overlaid")
  }
  if _, ok := m.Lookup(0x01010001); ok {
    t.Error("other package is not overlaid")
  }
}

// target: string/a..e (0..4), integer/n
// overlay: string/b, string/e, string/x, integer/n
func densityFixture(t *testing.T, categories string) (string, *apk.Assets, string, *apk.Assets) {
  t.Helper()
  dir := t.TempDir()

  tb := apk.NewTableBuilder()
  tp := tb.Package(0x7f, "com.example.target")
  for _, name := range []string{"a", "b", "c", "d", "e"} {
    tp.String("string", name, "target "+name)
  }
  tp.Int("integer", "n", 1)
  targetPath, target := writeApk(t, dir, "target.apk", tb, "")

  ob := apk.NewTableBuilder()
  op := ob.Package(0x7f, "com.example.overlay")
  op.Int("integer", "n", 2)
  op.String("string", "x", "overlay x")
  op.String("string", "e", "overlay e")
  op.String("string", "b", "overlay b")
  overlayPath, overlay := writeApk(t, dir, "overlay.apk", ob, categories)
  return targetPath, target, overlayPath, overlay
}

func TestDensity(t *testing.T) {
  targetPath, target, overlayPath, overlay := densityFixture(t, "")
  m, e := FromApkAssets(targetPath, target, overlayPath, overlay, false)
  if e != nil {
    t.Fatal(e)
  }
  d := m.Data[0]
  if d.Header.TypeCount != 2 {
    t.Fatalf("type count: %d", d.Header.TypeCount)
  }
  str, integer := d.ResourceTypes[0], d.ResourceTypes[1]
  if str.TargetType != 1 || integer.TargetType != 2 {
    t.Fatalf("type order: %d %d", str.TargetType, integer.TargetType)
  }
  // overlay中string是第2个类型，x/e/b的Id依次为0、1、2
  want := []uint32{0x7f020002, NoEntry, NoEntry, 0x7f020001}
  if str.EntryOffset != 1 || !reflect.DeepEqual(str.Entries, want) {
    t.Errorf("string: offset %d entries %x", str.EntryOffset, str.Entries)
  }
  if integer.OverlayType != 1 || integer.EntryOffset != 0 || !reflect.DeepEqual(integer.Entries, []uint32{0x7f010000}) {
    t.Errorf("integer: %+v", integer)
  }
  for _, rt := range d.ResourceTypes {
    for _, entry := range rt.Entries {
      if entry != NoEntry && base.PackageId(entry) != 0x7f {
        t.Errorf("bad slot 0x%08x", entry)
      }
    }
    last := rt.Entries[len(rt.Entries)-1]
    if last == NoEntry || rt.Entries[0] == NoEntry {
      t.Errorf("type %d: range not tight: %x", rt.TargetType, rt.Entries)
    }
  }
  // string/x在目标中不存在
  for _, rt := range d.ResourceTypes {
    for _, entry := range rt.Entries {
      if entry == 0x7f020000 {
        t.Error("string/x should be skipped")
      }
    }
  }
}

func TestCategories(t *testing.T) {
  targetPath, target, overlayPath, overlay := densityFixture(t, "icon:\n  - string/b\n")
  count := func(m *Idmap) int {
    n := 0
    for _, rt := range m.Data[0].ResourceTypes {
      for _, entry := range rt.Entries {
        if entry != NoEntry {
          n++
        }
      }
    }
    return n
  }

  m, e := FromApkAssets(targetPath, target, overlayPath, overlay, false)
  if e != nil {
    t.Fatal(e)
  }
  if _, ok := m.Lookup(0x7f010001); ok {
    t.Error("string/b is in a disabled category")
  }
  if _, ok := m.Lookup(0x7f010004); !ok || count(m) != 2 {
    t.Errorf("untagged entries should be mapped, got %d", count(m))
  }

  m, e = FromApkAssets(targetPath, target, overlayPath, overlay, false, "icon")
  if e != nil {
    t.Fatal(e)
  }
  if v, ok := m.Lookup(0x7f010001); !ok || v != 0x7f020002 || count(m) != 3 {
    t.Errorf("enabled category: 0x%08x %v %d", v, ok, count(m))
  }

  m, e = FromApkAssets(targetPath, target, overlayPath, overlay, true)
  if e != nil {
    t.Fatal(e)
  }
  if _, ok := m.Lookup(0x7f010001); !ok || count(m) != 3 {
    t.Error("ignoring categories maps every entry")
  }
}

func TestRoundTripAndDeterminism(t *testing.T) {
  targetPath, target, overlayPath, overlay := densityFixture(t, "")
  m1, e := FromApkAssets(targetPath, target, overlayPath, overlay, true)
  if e != nil {
    t.Fatal(e)
  }
  m2, e := FromApkAssets(targetPath, target, overlayPath, overlay, true)
  if e != nil {
    t.Fatal(e)
  }
  var b1, b2 bytes.Buffer
  if e = Write(&b1, m1); e != nil {
    t.Fatal(e)
  }
  if e = Write(&b2, m2); e != nil {
    t.Fatal(e)
  }
  if !bytes.Equal(b1.Bytes(), b2.Bytes()) {
    t.Fatal("two builds differ")
  }
  m3, e := Read(bytes.NewReader(b1.Bytes()))
  if e != nil {
    t.Fatal(e)
  }
  if !reflect.DeepEqual(m1, m3) {
    t.Errorf("round trip:\n%+v\n%+v", m1, m3)
  }
}

func TestBinaryLayout(t *testing.T) {
  m := &Idmap{
    Header: &Header{Magic: Magic, Version: Version, TargetCrc: 0x11223344, OverlayCrc: 0x55667788, TargetPath: "/t", OverlayPath: "/o"},
    Data: []*Data{{
      Header:        &DataHeader{TargetPackageID: 0x7f, TypeCount: 1},
      ResourceTypes: []*ResourceType{{TargetType: 1, OverlayType: 2, EntryOffset: 1, Entries: []uint32{0x7f020005}}},
    }},
  }
  var b bytes.Buffer
  if e := Write(&b, m); e != nil {
    t.Fatal(e)
  }
  want := []byte{
    0x49, 0x44, 0x4d, 0x50,
    0x01, 0x00, 0x00, 0x00,
    0x44, 0x33, 0x22, 0x11,
    0x88, 0x77, 0x66, 0x55,
    0x02, 0x00, 0x00, 0x00, '/', 't',
    0x02, 0x00, 0x00, 0x00, '/', 'o',
    0x7f,
    0x01, 0x00,
    0x01,
    0x02,
    0x01, 0x00,
    0x01, 0x00,
    0x05, 0x00, 0x02, 0x7f,
  }
  if !bytes.Equal(b.Bytes(), want) {
    t.Errorf("got  % x\nwant % x", b.Bytes(), want)
  }
}

func sampleBytes(t *testing.T) []byte {
  t.Helper()
  targetPath, target, overlayPath, overlay := scenario(t)
  m, e := FromApkAssets(targetPath, target, overlayPath, overlay, true)
  if e != nil {
    t.Fatal(e)
  }
  var b bytes.Buffer
  if e = Write(&b, m); e != nil {
    t.Fatal(e)
  }
  return b.Bytes()
}

func TestReadCorrupt(t *testing.T) {
  data := sampleBytes(t)
  for n := 0; n < len(data); n++ {
    m, e := Read(bytes.NewReader(data[:n]))
    if m != nil || errors.Cause(e) != ErrTruncated {
      t.Fatalf("truncated to %d bytes: %v %v", n, m, e)
    }
  }

  bad := append([]byte(nil), data...)
  bad[0] ^= 0xFF
  if _, e := Read(bytes.NewReader(bad)); errors.Cause(e) != ErrBadMagic {
    t.Errorf("magic: %v", e)
  }
  bad = append([]byte(nil), data...)
  bad[4] = 0x02
  if _, e := Read(bytes.NewReader(bad)); errors.Cause(e) != ErrBadVersion {
    t.Errorf("version: %v", e)
  }
  // 路径长度
  bad = append([]byte(nil), data...)
  bad[19] = 0x10
  if _, e := Read(bytes.NewReader(bad)); errors.Cause(e) != ErrBadString {
    t.Errorf("path length: %v", e)
  }
  bad = append([]byte(nil), data...)
  bad[20] = 0xFF
  if _, e := Read(bytes.NewReader(bad)); errors.Cause(e) != ErrBadString {
    t.Errorf("path utf-8: %v", e)
  }
  // 多出的字节不是完整的Data块
  bad = append(append([]byte(nil), data...), 0x7f)
  if _, e := Read(bytes.NewReader(bad)); errors.Cause(e) != ErrTruncated {
    t.Errorf("trailing byte: %v", e)
  }
}

func TestReadEntryRange(t *testing.T) {
  var b bytes.Buffer
  b.Write([]byte{1, 2, 0xFF, 0xFF, 2, 0})
  b.Write(make([]byte, 8))
  if _, e := ReadResourceType(&b); errors.Cause(e) != base.ErrCorrupt {
    t.Errorf("range overflow: %v", e)
  }
  if _, e := ReadResourceType(bytes.NewReader([]byte{1, 2, 0, 0, 0, 0})); errors.Cause(e) != base.ErrCorrupt {
    t.Errorf("zero entries: %v", e)
  }
}

func TestAcceptOrder(t *testing.T) {
  targetPath, target, overlayPath, overlay := densityFixture(t, "")
  m, e := FromApkAssets(targetPath, target, overlayPath, overlay, true)
  if e != nil {
    t.Fatal(e)
  }
  var got []string
  m.Accept(VisitorFunc(func(n Node) {
    switch n.(type) {
    case *Idmap:
      got = append(got, "idmap")
    case *Header:
      got = append(got, "header")
    case *Data:
      got = append(got, "data")
    case *DataHeader:
      got = append(got, "data header")
    case *ResourceType:
      got = append(got, "type")
    }
  }))
  want := []string{"idmap", "header", "data", "data header", "type", "type"}
  if !reflect.DeepEqual(got, want) {
    t.Errorf("got %v", got)
  }
}

func TestPrintVisitors(t *testing.T) {
  targetPath, target, overlayPath, overlay := scenario(t)
  m, e := FromApkAssets(targetPath, target, overlayPath, overlay, true)
  if e != nil {
    t.Fatal(e)
  }

  var b bytes.Buffer
  m.Accept(NewRawPrintVisitor(&b, nil))
  raw := b.String()
  for _, s := range []string{
    "00000000: 504d4449  magic\n",
    "00000004: 00000001  version\n",
    "0x7f010001 -> 0x7f020005 ???\n",
  } {
    if !strings.Contains(raw, s) {
      t.Errorf("raw dump has no %q:\n%s", s, raw)
    }
  }
  var data bytes.Buffer
  if e = Write(&data, m); e != nil {
    t.Fatal(e)
  }
  // 最后一行的偏移是最后一个资源项
  lines := strings.Split(strings.TrimSpace(raw), "\n")
  if !strings.HasPrefix(lines[len(lines)-1], fmt.Sprintf("%08x: 7f020005", data.Len()-4)) {
    t.Errorf("last line: %s (size %d)", lines[len(lines)-1], data.Len())
  }

  b.Reset()
  m.Accept(NewPrettyPrintVisitor(&b, target))
  pretty := b.String()
  want := "target apk path  : " + targetPath + "\n" +
    "overlay apk path : " + overlayPath + "\n" +
    "0x7f010001 -> 0x7f020005 com.example.target:string/app_name\n"
  if pretty != want {
    t.Errorf("pretty:\n%s\nwant:\n%s", pretty, want)
  }
}

func TestMultiPackageTarget(t *testing.T) {
  // 目标有多个包时只使用第一个包，不按包名区分
  dir := t.TempDir()
  tb := apk.NewTableBuilder()
  tb.Package(0x7e, "com.example.first").String("string", "app_name", "First")
  tb.Package(0x7f, "com.example.second").String("string", "app_name", "Second")
  targetPath, target := writeApk(t, dir, "target.apk", tb, "")

  ob := apk.NewTableBuilder()
  ob.Package(0x7f, "com.example.overlay").String("string", "app_name", "Bar")
  overlayPath, overlay := writeApk(t, dir, "overlay.apk", ob, "")

  m, e := FromApkAssets(targetPath, target, overlayPath, overlay, true)
  if e != nil {
    t.Fatal(e)
  }
  if m.Data[0].Header.TargetPackageID != 0x7e {
    t.Errorf("target package 0x%02x", m.Data[0].Header.TargetPackageID)
  }
  if _, ok := m.Lookup(0x7f010000); ok {
    t.Error("second package should not be mapped")
  }
}

func TestFromApkAssetsErrors(t *testing.T) {
  targetPath, target, overlayPath, overlay := scenario(t)
  if _, e := FromApkAssets(targetPath, nil, overlayPath, overlay, true); e == nil {
    t.Error("nil target")
  }
  if _, e := FromApkAssets(filepath.Join(t.TempDir(), "none.apk"), target, overlayPath, overlay, true); e == nil {
    t.Error("missing target file")
  }
  emptyPath, empty := writeApk(t, t.TempDir(), "empty.apk", apk.NewTableBuilder(), "")
  _, e := FromApkAssets(emptyPath, empty, overlayPath, overlay, true)
  if e == nil || !strings.Contains(e.Error(), "could not build idmap") {
    t.Errorf("no packages: %v", e)
  }
}

func TestVerify(t *testing.T) {
  targetPath, target, overlayPath, overlay := scenario(t)
  m, e := FromApkAssets(targetPath, target, overlayPath, overlay, true)
  if e != nil {
    t.Fatal(e)
  }
  if e = Verify(m.Header); e != nil {
    t.Fatal(e)
  }
  ob := apk.NewTableBuilder()
  ob.Package(0x7f, "com.example.overlay").String("string", "app_name", "Changed")
  if e = apk.WriteApk(overlayPath, map[string][]byte{apk.ResourcesArsc: ob.Bytes()}); e != nil {
    t.Fatal(e)
  }
  if e = Verify(m.Header); errors.Cause(e) != ErrStale {
    t.Errorf("rebuilt overlay: %v", e)
  }
}

func TestCanonicalIdmapPathFor(t *testing.T) {
  a := CanonicalIdmapPathFor("/data/idmap", "/vendor/overlay/a/Overlay.apk")
  b := CanonicalIdmapPathFor("/data/idmap", "/product/overlay/a/Overlay.apk")
  if a != CanonicalIdmapPathFor("/data/idmap", "/vendor/overlay/a/Overlay.apk") {
    t.Error("not deterministic")
  }
  if a == b {
    t.Error("same basename in different directories collides")
  }
  if a != CanonicalIdmapPathFor("/data/idmap", "/vendor/overlay//a/./Overlay.apk") {
    t.Error("equivalent paths should agree")
  }
  if filepath.Dir(a) != "/data/idmap" || !strings.HasSuffix(a, "@idmap") {
    t.Errorf("path %s", a)
  }
}
