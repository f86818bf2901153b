package apk

import (
  "unicode/utf16"

  "github.com/pkg/errors"

  "github.com/kwf2030/idmap2/base"
)

const (
  // Type.Offsets中表示该资源项在此配置下不存在
  NoEntry = 0xFFFFFFFF

  typeFlagSparse   = 0x01
  typeFlagOffset16 = 0x02

  EntryFlagComplex = 0x0001
  EntryFlagCompact = 0x0008
)

type Package struct {
  ChunkStart uint32

  *Header

  // 包Id，用户包是0x7F，系统包是0x01
  Id uint32

  // 包名（UTF-16，原本256个字节）
  Name string

  // 资源类型字符串池起始位置偏移（相对header）
  TypeStrPoolStart uint32

  LastPublicType uint32

  // 资源项名称字符串池起始位置偏移（相对header）
  KeyStrPoolStart uint32

  LastPublicKey uint32

  TypeStrPool *StrPool

  KeyStrPool *StrPool

  TypeSpecs []*TypeSpec

  Types []*Type
}

// 类型名，类型Id从1开始
func (p *Package) TypeName(id uint8) (string, bool) {
  if id == 0 {
    return "", false
  }
  return p.TypeStrPool.get(uint32(id) - 1)
}

func (p *Package) KeyName(key uint32) (string, bool) {
  return p.KeyStrPool.get(key)
}

type TypeSpec struct {
  *Header

  // 资源类型Id
  Id uint8

  // 资源项个数
  EntryCount uint32

  // 资源项标记，长度为EntryCount
  EntryFlags []uint32
}

type Type struct {
  *Header

  // 资源类型Id
  Id uint8

  Flags uint8

  // 资源项个数
  EntryCount uint32

  // 资源项起始位置偏移（相对header）
  EntryStart uint32

  // 配置描述
  Config *Config

  // 长度为EntryCount，不存在的资源项为nil
  Entries []*Entry
}

type Config struct {
  Size     uint32
  Mcc      uint16
  Mnc      uint16
  Language [2]byte
  Country  [2]byte

  // 剩余未解析的字节
  Rest []byte
}

// 默认配置（所有字段都是0）
func (c *Config) IsDefault() bool {
  if c == nil {
    return true
  }
  if c.Mcc != 0 || c.Mnc != 0 || c.Language != [2]byte{} || c.Country != [2]byte{} {
    return false
  }
  for _, b := range c.Rest {
    if b != 0 {
      return false
    }
  }
  return true
}

type Entry struct {
  Size uint16

  // Flags&EntryFlagComplex==0，Value有值，
  // 否则，ParentRef/Values有值
  Flags uint16

  // 资源项名称在KeyStrPool中的索引
  Key uint32

  Value *Value

  ParentRef uint32

  Values map[uint32]*Value
}

type Value struct {
  Size     uint16
  Res0     uint8
  DataType uint8
  Data     uint32
}

type ResTable struct {
  *Header

  // 资源包个数，通常一个app只有一个资源包
  PackageCount uint32

  // 全局字符串池
  StrPool *StrPool

  Packages []*Package
}

func ParseResTable(data []byte) (*ResTable, error) {
  r := newBytesReader(data)
  header, e := parseHeader(r)
  if e != nil {
    return nil, errors.Wrap(e, "resource table header")
  }
  if header.Type != ResTableChunk {
    return nil, errors.Wrapf(base.ErrCorrupt, "type 0x%04x is not a resource table", header.Type)
  }
  rt := &ResTable{Header: header}
  if rt.PackageCount, e = r.readUint32(); e != nil {
    return nil, e
  }
  if e = r.seek(uint32(header.HeaderSize)); e != nil {
    return nil, e
  }
  // 包个数来自文件，只作为容量提示，实际以读到的chunk为准
  rt.Packages = make([]*Package, 0, minUint32(rt.PackageCount, 16))
  for r.pos() < header.Size {
    start := r.pos()
    h, e := parseHeader(r)
    if e != nil {
      return nil, errors.Wrapf(e, "chunk at %d", start)
    }
    if e = r.seek(start); e != nil {
      return nil, e
    }
    switch h.Type {
    case ResStrPool:
      if rt.StrPool != nil {
        return nil, errors.Wrapf(base.ErrCorrupt, "second global string pool at %d", start)
      }
      if rt.StrPool, e = parseStrPool(r); e != nil {
        return nil, errors.Wrap(e, "global string pool")
      }
    case ResTablePackage:
      pkg, e := parsePackage(r)
      if e != nil {
        return nil, errors.Wrapf(e, "package %d", len(rt.Packages))
      }
      rt.Packages = append(rt.Packages, pkg)
    }
    if e = r.seek(start + h.Size); e != nil {
      return nil, e
    }
  }
  if uint32(len(rt.Packages)) != rt.PackageCount {
    return nil, errors.Wrapf(base.ErrCorrupt, "header declares %d packages, found %d", rt.PackageCount, len(rt.Packages))
  }
  return rt, nil
}

func parsePackage(r *bytesReader) (*Package, error) {
  chunkStart := r.pos()
  header, e := parseHeader(r)
  if e != nil {
    return nil, e
  }
  if header.HeaderSize < 284 {
    return nil, errors.Wrapf(base.ErrCorrupt, "package header size %d", header.HeaderSize)
  }
  pkg := &Package{ChunkStart: chunkStart, Header: header}
  if pkg.Id, e = r.readUint32(); e != nil {
    return nil, e
  }
  // 包名是固定的128个UTF-16字符，不足的会填充0
  raw, e := r.readN(256)
  if e != nil {
    return nil, e
  }
  name := make([]uint16, 0, 128)
  for i := 0; i < 256; i += 2 {
    c := uint16(raw[i]) | uint16(raw[i+1])<<8
    if c == 0 {
      break
    }
    name = append(name, c)
  }
  pkg.Name = string(utf16.Decode(name))
  for _, v := range []*uint32{&pkg.TypeStrPoolStart, &pkg.LastPublicType, &pkg.KeyStrPoolStart, &pkg.LastPublicKey} {
    if *v, e = r.readUint32(); e != nil {
      return nil, e
    }
  }

  chunkEnd := chunkStart + header.Size
  if pkg.TypeStrPoolStart >= header.Size || pkg.KeyStrPoolStart >= header.Size {
    return nil, errors.Wrapf(base.ErrCorrupt, "package 0x%02x: string pools outside chunk", pkg.Id)
  }
  if e = r.seek(chunkStart + pkg.TypeStrPoolStart); e != nil {
    return nil, e
  }
  if pkg.TypeStrPool, e = parseStrPool(r); e != nil {
    return nil, errors.Wrap(e, "type string pool")
  }
  if e = r.seek(chunkStart + pkg.KeyStrPoolStart); e != nil {
    return nil, e
  }
  if pkg.KeyStrPool, e = parseStrPool(r); e != nil {
    return nil, errors.Wrap(e, "key string pool")
  }

  off := chunkStart + uint32(header.HeaderSize)
  for off < chunkEnd {
    if e = r.seek(off); e != nil {
      return nil, e
    }
    h, e := parseHeader(r)
    if e != nil {
      return nil, errors.Wrapf(e, "package 0x%02x chunk at %d", pkg.Id, off)
    }
    if off+h.Size > chunkEnd {
      return nil, errors.Wrapf(base.ErrCorrupt, "chunk at %d overruns package 0x%02x", off, pkg.Id)
    }
    r.seek(off)
    switch h.Type {
    case ResTableTypeSpec:
      spec, e := parseTypeSpec(r)
      if e != nil {
        return nil, e
      }
      pkg.TypeSpecs = append(pkg.TypeSpecs, spec)
    case ResTableType:
      t, e := parseType(r)
      if e != nil {
        return nil, e
      }
      pkg.Types = append(pkg.Types, t)
    case ResTableTypeLibrary:
      // 共享库的包名映射，不参与资源名解析，其它未知chunk同样跳过
    }
    off += h.Size
  }
  return pkg, nil
}

func parseTypeSpec(r *bytesReader) (*TypeSpec, error) {
  chunkStart := r.pos()
  header, e := parseHeader(r)
  if e != nil {
    return nil, e
  }
  spec := &TypeSpec{Header: header}
  if spec.Id, e = r.readUint8(); e != nil {
    return nil, e
  }
  // 两个保留字段
  if _, e = r.readN(3); e != nil {
    return nil, e
  }
  if spec.EntryCount, e = r.readUint32(); e != nil {
    return nil, e
  }
  if e = r.seek(chunkStart + uint32(header.HeaderSize)); e != nil {
    return nil, e
  }
  if spec.EntryFlags, e = r.readUint32Array(spec.EntryCount); e != nil {
    return nil, errors.Wrapf(e, "type spec 0x%02x", spec.Id)
  }
  if r.pos() > chunkStart+header.Size {
    return nil, errors.Wrapf(base.ErrCorrupt, "type spec 0x%02x flags overrun chunk", spec.Id)
  }
  return spec, nil
}

func parseType(r *bytesReader) (*Type, error) {
  chunkStart := r.pos()
  header, e := parseHeader(r)
  if e != nil {
    return nil, e
  }
  t := &Type{Header: header}
  if t.Id, e = r.readUint8(); e != nil {
    return nil, e
  }
  if t.Flags, e = r.readUint8(); e != nil {
    return nil, e
  }
  if _, e = r.readUint16(); e != nil {
    return nil, e
  }
  if t.EntryCount, e = r.readUint32(); e != nil {
    return nil, e
  }
  if t.EntryStart, e = r.readUint32(); e != nil {
    return nil, e
  }
  if t.Config, e = parseConfig(r, chunkStart+uint32(header.HeaderSize)); e != nil {
    return nil, errors.Wrapf(e, "type 0x%02x config", t.Id)
  }
  if e = r.seek(chunkStart + uint32(header.HeaderSize)); e != nil {
    return nil, e
  }
  offsets, e := readEntryOffsets(r, t)
  if e != nil {
    return nil, errors.Wrapf(e, "type 0x%02x offsets", t.Id)
  }

  chunkEnd := chunkStart + header.Size
  for i, off := range offsets {
    if off == NoEntry {
      continue
    }
    start := uint64(chunkStart) + uint64(t.EntryStart) + uint64(off)
    if start >= uint64(chunkEnd) {
      return nil, errors.Wrapf(base.ErrCorrupt, "type 0x%02x entry %d offset %d outside chunk", t.Id, i, off)
    }
    if e = r.seek(uint32(start)); e != nil {
      return nil, e
    }
    if t.Entries[i], e = parseEntry(r, chunkEnd); e != nil {
      return nil, errors.Wrapf(e, "type 0x%02x entry %d", t.Id, i)
    }
  }
  return t, nil
}

// 返回长度为EntryCount的偏移数组，兼容sparse和16位偏移两种编码
func readEntryOffsets(r *bytesReader, t *Type) ([]uint32, error) {
  if t.EntryCount > 0xFFFF+1 {
    return nil, errors.Wrapf(base.ErrCorrupt, "entry count %d", t.EntryCount)
  }
  switch {
  case t.Flags&typeFlagSparse != 0:
    raw, e := r.readUint32Array(t.EntryCount)
    if e != nil {
      return nil, e
    }
    // sparse时EntryCount是实际存在的资源项个数，
    // 每项高16位是偏移/4，低16位是资源项Id
    maxId := uint32(0)
    for _, v := range raw {
      if v&0xFFFF >= maxId {
        maxId = v&0xFFFF + 1
      }
    }
    ret := make([]uint32, maxId)
    for i := range ret {
      ret[i] = NoEntry
    }
    for _, v := range raw {
      ret[v&0xFFFF] = (v >> 16) * 4
    }
    t.Entries = make([]*Entry, maxId)
    return ret, nil
  case t.Flags&typeFlagOffset16 != 0:
    ret := make([]uint32, t.EntryCount)
    for i := range ret {
      v, e := r.readUint16()
      if e != nil {
        return nil, e
      }
      if v == 0xFFFF {
        ret[i] = NoEntry
      } else {
        ret[i] = uint32(v) * 4
      }
    }
    t.Entries = make([]*Entry, t.EntryCount)
    return ret, nil
  default:
    ret, e := r.readUint32Array(t.EntryCount)
    if e != nil {
      return nil, e
    }
    t.Entries = make([]*Entry, t.EntryCount)
    return ret, nil
  }
}

func parseConfig(r *bytesReader, limit uint32) (*Config, error) {
  start := r.pos()
  size, e := r.readUint32()
  if e != nil {
    return nil, e
  }
  if size < 4 || uint64(start)+uint64(size) > uint64(limit) {
    return nil, errors.Wrapf(base.ErrCorrupt, "config size %d", size)
  }
  c := &Config{Size: size}
  raw, e := r.slice(start+4, start+size)
  if e != nil {
    return nil, e
  }
  if len(raw) >= 8 {
    c.Mcc = uint16(raw[0]) | uint16(raw[1])<<8
    c.Mnc = uint16(raw[2]) | uint16(raw[3])<<8
    copy(c.Language[:], raw[4:6])
    copy(c.Country[:], raw[6:8])
    c.Rest = raw[8:]
  } else {
    c.Rest = raw
  }
  return c, nil
}

func parseEntry(r *bytesReader, limit uint32) (*Entry, error) {
  start := r.pos()
  size, e := r.readUint16()
  if e != nil {
    return nil, e
  }
  flags, e := r.readUint16()
  if e != nil {
    return nil, e
  }
  if flags&EntryFlagCompact != 0 {
    // compact：第一个字段是Key，高8位Flags是数据类型
    data, e := r.readUint32()
    if e != nil {
      return nil, e
    }
    return &Entry{
      Size:  8,
      Flags: flags,
      Key:   uint32(size),
      Value: &Value{Size: 8, DataType: uint8(flags >> 8), Data: data},
    }, nil
  }
  key, e := r.readUint32()
  if e != nil {
    return nil, e
  }
  if size < 8 || uint64(start)+uint64(size) > uint64(limit) {
    return nil, errors.Wrapf(base.ErrCorrupt, "entry size %d at %d", size, start)
  }
  entry := &Entry{Size: size, Flags: flags, Key: key}

  if flags&EntryFlagComplex == 0 {
    if e = r.seek(start + uint32(size)); e != nil {
      return nil, e
    }
    entry.Value, e = parseValue(r, limit)
    return entry, e
  }

  if entry.ParentRef, e = r.readUint32(); e != nil {
    return nil, e
  }
  count, e := r.readUint32()
  if e != nil {
    return nil, e
  }
  if e = r.seek(start + uint32(size)); e != nil {
    return nil, e
  }
  // 每项12个字节（4个字节name+8个字节value）
  if uint64(count)*12 > uint64(limit-r.pos()) {
    return nil, errors.Wrapf(base.ErrCorrupt, "map entry with %d items at %d", count, start)
  }
  entry.Values = make(map[uint32]*Value, count)
  for i := uint32(0); i < count; i++ {
    name, e := r.readUint32()
    if e != nil {
      return nil, e
    }
    if entry.Values[name], e = parseValue(r, limit); e != nil {
      return nil, e
    }
  }
  return entry, nil
}

func parseValue(r *bytesReader, limit uint32) (*Value, error) {
  if r.pos()+8 > limit {
    return nil, errors.Wrapf(base.ErrCorrupt, "value at %d overruns chunk", r.pos())
  }
  v := &Value{}
  var e error
  if v.Size, e = r.readUint16(); e != nil {
    return nil, e
  }
  if v.Res0, e = r.readUint8(); e != nil {
    return nil, e
  }
  if v.DataType, e = r.readUint8(); e != nil {
    return nil, e
  }
  if v.Data, e = r.readUint32(); e != nil {
    return nil, e
  }
  return v, nil
}

func minUint32(a, b uint32) uint32 {
  if a < b {
    return a
  }
  return b
}
