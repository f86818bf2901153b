package apk

import (
  "unicode/utf16"

  "github.com/kwf2030/idmap2/base"
)

const (
  tableHeaderSize    = 12
  packageHeaderSize  = 288
  typeSpecHeaderSize = 16
  configSize         = 64
  typeHeaderSize     = 20 + configSize
)

// 生成resources.arsc，只有默认配置和简单资源项，
// 用于测试和工具
type TableBuilder struct {
  strs     []string
  strIndex map[string]uint32
  pkgs     []*PackageBuilder
}

type PackageBuilder struct {
  table *TableBuilder

  id   uint8
  name string

  types     []*typeBuilder
  typeIndex map[string]int

  keys     []string
  keyIndex map[string]uint32
}

type typeBuilder struct {
  name string

  // 下标是资源项Id，nil表示空洞
  entries []*entryBuilder
}

type entryBuilder struct {
  key      uint32
  dataType uint8
  data     uint32
}

func NewTableBuilder() *TableBuilder {
  return &TableBuilder{strIndex: make(map[string]uint32, 16)}
}

func (t *TableBuilder) str(s string) uint32 {
  if i, ok := t.strIndex[s]; ok {
    return i
  }
  i := uint32(len(t.strs))
  t.strs = append(t.strs, s)
  t.strIndex[s] = i
  return i
}

func (t *TableBuilder) Package(id uint8, name string) *PackageBuilder {
  p := &PackageBuilder{
    table:     t,
    id:        id,
    name:      name,
    typeIndex: make(map[string]int, 8),
    keyIndex:  make(map[string]uint32, 16),
  }
  t.pkgs = append(t.pkgs, p)
  return p
}

// 类型Id按声明顺序从1开始分配
func (p *PackageBuilder) Type(name string) uint8 {
  if i, ok := p.typeIndex[name]; ok {
    return uint8(i + 1)
  }
  p.types = append(p.types, &typeBuilder{name: name})
  p.typeIndex[name] = len(p.types) - 1
  return uint8(len(p.types))
}

// 占用一个资源项Id但不定义资源项
func (p *PackageBuilder) Hole(typeName string) {
  tb := p.types[p.Type(typeName)-1]
  tb.entries = append(tb.entries, nil)
}

func (p *PackageBuilder) Entry(typeName, name string, dataType uint8, data uint32) uint32 {
  tp := p.Type(typeName)
  tb := p.types[tp-1]
  key, ok := p.keyIndex[name]
  if !ok {
    key = uint32(len(p.keys))
    p.keys = append(p.keys, name)
    p.keyIndex[name] = key
  }
  tb.entries = append(tb.entries, &entryBuilder{key: key, dataType: dataType, data: data})
  return base.ResId(p.id, tp, uint16(len(tb.entries)-1))
}

func (p *PackageBuilder) String(typeName, name, value string) uint32 {
  return p.Entry(typeName, name, TypeString, p.table.str(value))
}

func (p *PackageBuilder) Int(typeName, name string, value int32) uint32 {
  return p.Entry(typeName, name, TypeIntDec, uint32(value))
}

func (p *PackageBuilder) Ref(typeName, name string, resid uint32) uint32 {
  return p.Entry(typeName, name, TypeReference, resid)
}

func (t *TableBuilder) Bytes() []byte {
  w := newBytesWriter()
  (&Header{Type: ResTableChunk, HeaderSize: tableHeaderSize}).writeTo(w)
  w.writeUint32(uint32(len(t.pkgs)))
  writeStrPool(w, t.strs)
  for _, p := range t.pkgs {
    p.writeTo(w)
  }
  w.putUint32(4, w.pos())
  return w.Bytes()
}

func (p *PackageBuilder) writeTo(w *bytesWriter) {
  start := w.pos()
  (&Header{Type: ResTablePackage, HeaderSize: packageHeaderSize}).writeTo(w)
  w.writeUint32(uint32(p.id))
  name := utf16.Encode([]rune(p.name))
  if len(name) > 127 {
    name = name[:127]
  }
  for i := 0; i < 128; i++ {
    if i < len(name) {
      w.writeUint16(name[i])
    } else {
      w.writeUint16(0)
    }
  }
  // typeStrings, lastPublicType, keyStrings, lastPublicKey, typeIdOffset
  w.writeUint32(0)
  w.writeUint32(uint32(len(p.types)))
  w.writeUint32(0)
  w.writeUint32(uint32(len(p.keys)))
  w.writeUint32(0)

  typeNames := make([]string, len(p.types))
  for i, tb := range p.types {
    typeNames[i] = tb.name
  }
  w.putUint32(start+268, w.pos()-start)
  writeStrPool(w, typeNames)
  w.putUint32(start+276, w.pos()-start)
  writeStrPool(w, p.keys)

  for i, tb := range p.types {
    tb.writeTo(w, uint8(i+1))
  }
  w.putUint32(start+4, w.pos()-start)
}

func (tb *typeBuilder) writeTo(w *bytesWriter, id uint8) {
  n := uint32(len(tb.entries))

  start := w.pos()
  (&Header{Type: ResTableTypeSpec, HeaderSize: typeSpecHeaderSize}).writeTo(w)
  w.writeUint8(id)
  w.writeUint8(0)
  w.writeUint16(0)
  w.writeUint32(n)
  for range tb.entries {
    w.writeUint32(0)
  }
  w.putUint32(start+4, w.pos()-start)

  start = w.pos()
  (&Header{Type: ResTableType, HeaderSize: typeHeaderSize}).writeTo(w)
  w.writeUint8(id)
  w.writeUint8(0)
  w.writeUint16(0)
  w.writeUint32(n)
  w.writeUint32(typeHeaderSize + 4*n)
  // 默认配置，除了size全是0
  w.writeUint32(configSize)
  w.Write(make([]byte, configSize-4))
  off := uint32(0)
  for _, entry := range tb.entries {
    if entry == nil {
      w.writeUint32(NoEntry)
      continue
    }
    w.writeUint32(off)
    off += 16
  }
  for _, entry := range tb.entries {
    if entry == nil {
      continue
    }
    w.writeUint16(8)
    w.writeUint16(0)
    w.writeUint32(entry.key)
    w.writeUint16(8)
    w.writeUint8(0)
    w.writeUint8(entry.dataType)
    w.writeUint32(entry.data)
  }
  w.putUint32(start+4, w.pos()-start)
}
