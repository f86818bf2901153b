package idmap

import (
  "path/filepath"

  "github.com/pkg/errors"

  "github.com/kwf2030/idmap2/base"
  "github.com/kwf2030/idmap2/file"
)

const (
  // "IDMP"
  Magic uint32 = 0x504D4449

  // 格式版本，读取时必须完全一致
  Version uint32 = 0x01

  // 该资源项没有被overlay
  NoEntry uint32 = 0xFFFFFFFF

  // 路径字符串的最大字节数
  MaxPathLen = 4096
)

var (
  ErrTruncated  = errors.New("idmap: truncated stream")
  ErrBadMagic   = errors.New("idmap: bad magic")
  ErrBadVersion = errors.New("idmap: bad version")
  ErrBadString  = errors.New("idmap: bad string")
  ErrStale      = errors.New("idmap: stale")
)

type Header struct {
  Magic uint32

  Version uint32

  // 两个apk中resources.arsc的CRC32
  TargetCrc  uint32
  OverlayCrc uint32

  TargetPath  string
  OverlayPath string
}

type DataHeader struct {
  // 目标包Id
  TargetPackageID uint8

  // ResourceType个数
  TypeCount uint16
}

// Entries[i]对应目标资源项Id为EntryOffset+i，
// 值是overlay资源Id或NoEntry
type ResourceType struct {
  TargetType uint8

  OverlayType uint8

  EntryOffset uint16

  Entries []uint32
}

func (rt *ResourceType) EntryCount() uint16 {
  return uint16(len(rt.Entries))
}

// 越界返回NoEntry
func (rt *ResourceType) Entry(i int) uint32 {
  if i < 0 || i >= len(rt.Entries) {
    return NoEntry
  }
  return rt.Entries[i]
}

type Data struct {
  Header *DataHeader

  ResourceTypes []*ResourceType
}

type Idmap struct {
  Header *Header

  Data []*Data
}

// 把目标资源Id映射为overlay资源Id
func (m *Idmap) Lookup(targetResid uint32) (uint32, bool) {
  pkg, tp, entry := base.PackageId(targetResid), base.TypeId(targetResid), int(base.EntryId(targetResid))
  for _, d := range m.Data {
    if d.Header.TargetPackageID != pkg {
      continue
    }
    for _, rt := range d.ResourceTypes {
      if rt.TargetType != tp {
        continue
      }
      v := rt.Entry(entry - int(rt.EntryOffset))
      return v, v != NoEntry
    }
  }
  return NoEntry, false
}

// 同一个apk路径总是得到同一个idmap路径，
// 用路径的哈希命名，不同目录下同名的apk不会冲突
func CanonicalIdmapPathFor(dir, apkPath string) string {
  return filepath.Join(dir, file.SHA256String(filepath.Clean(apkPath))+"@idmap")
}
