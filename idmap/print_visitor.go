package idmap

import (
  "fmt"
  "io"

  "github.com/kwf2030/idmap2/base"
)

// 逐字段打印，每行是字节偏移、值和说明，用于调试二进制格式
type RawPrintVisitor struct {
  w         io.Writer
  names     NameResolver
  offset    int
  targetPkg uint8
}

// names用于解析目标资源名，可以为nil
func NewRawPrintVisitor(w io.Writer, names NameResolver) *RawPrintVisitor {
  return &RawPrintVisitor{w: w, names: names}
}

func (v *RawPrintVisitor) Visit(n Node) {
  switch n := n.(type) {
  case *Header:
    v.printUint32(n.Magic, "magic")
    v.printUint32(n.Version, "version")
    v.printUint32(n.TargetCrc, "target crc")
    v.printUint32(n.OverlayCrc, "overlay crc")
    v.printString(n.TargetPath, "target path")
    v.printString(n.OverlayPath, "overlay path")
  case *DataHeader:
    v.targetPkg = n.TargetPackageID
    v.printUint8(n.TargetPackageID, "target package id")
    v.printUint16(n.TypeCount, "type count")
  case *ResourceType:
    v.printUint8(n.TargetType, "target type")
    v.printUint8(n.OverlayType, "overlay type")
    v.printUint16(n.EntryOffset, "entry offset")
    v.printUint16(n.EntryCount(), "entry count")
    for i, entry := range n.Entries {
      if entry == NoEntry {
        v.printUint32(entry, "no entry")
        continue
      }
      target := base.ResId(v.targetPkg, n.TargetType, n.EntryOffset+uint16(i))
      v.printUint32(entry, fmt.Sprintf("0x%08x -> 0x%08x %s", target, entry, resolveName(v.names, target)))
    }
  }
}

func (v *RawPrintVisitor) printUint8(n uint8, label string) {
  fmt.Fprintf(v.w, "%08x:       %02x  %s\n", v.offset, n, label)
  v.offset++
}

func (v *RawPrintVisitor) printUint16(n uint16, label string) {
  fmt.Fprintf(v.w, "%08x:     %04x  %s\n", v.offset, n, label)
  v.offset += 2
}

func (v *RawPrintVisitor) printUint32(n uint32, label string) {
  fmt.Fprintf(v.w, "%08x: %08x  %s\n", v.offset, n, label)
  v.offset += 4
}

func (v *RawPrintVisitor) printString(s, label string) {
  v.printUint32(uint32(len(s)), label+" length")
  fmt.Fprintf(v.w, "%08x: ........  %s: %s\n", v.offset, label, s)
  v.offset += len(s)
}

// 只打印路径和映射关系
type PrettyPrintVisitor struct {
  w         io.Writer
  names     NameResolver
  targetPkg uint8
}

func NewPrettyPrintVisitor(w io.Writer, names NameResolver) *PrettyPrintVisitor {
  return &PrettyPrintVisitor{w: w, names: names}
}

func (v *PrettyPrintVisitor) Visit(n Node) {
  switch n := n.(type) {
  case *Header:
    fmt.Fprintf(v.w, "target apk path  : %s\n", n.TargetPath)
    fmt.Fprintf(v.w, "overlay apk path : %s\n", n.OverlayPath)
  case *DataHeader:
    v.targetPkg = n.TargetPackageID
  case *ResourceType:
    for i, entry := range n.Entries {
      if entry == NoEntry {
        continue
      }
      target := base.ResId(v.targetPkg, n.TargetType, n.EntryOffset+uint16(i))
      fmt.Fprintf(v.w, "0x%08x -> 0x%08x %s\n", target, entry, resolveName(v.names, target))
    }
  }
}
