package apk

import (
  "unicode/utf16"
  "unicode/utf8"

  "github.com/pkg/errors"

  "github.com/kwf2030/idmap2/base"
)

// chunk类型
const (
  ResStrPool          = 0x0001
  ResTableChunk       = 0x0002
  ResTablePackage     = 0x0200
  ResTableType        = 0x0201
  ResTableTypeSpec    = 0x0202
  ResTableTypeLibrary = 0x0203
)

const strPoolUTF8 = 0x0100

type Header struct {
  // 类型
  Type uint16

  // Header大小
  HeaderSize uint16

  // Chunk大小
  Size uint32
}

// 读取chunk header并校验大小，chunk不能超出数据末尾
func parseHeader(r *bytesReader) (*Header, error) {
  start := r.pos()
  tp, e := r.readUint16()
  if e != nil {
    return nil, e
  }
  headerSize, e := r.readUint16()
  if e != nil {
    return nil, e
  }
  size, e := r.readUint32()
  if e != nil {
    return nil, e
  }
  if headerSize < 8 || uint32(headerSize) > size || uint64(start)+uint64(size) > uint64(r.len()) {
    return nil, errors.Wrapf(base.ErrCorrupt, "chunk 0x%04x at %d: header size %d, size %d", tp, start, headerSize, size)
  }
  return &Header{Type: tp, HeaderSize: headerSize, Size: size}, nil
}

func (h *Header) writeTo(w *bytesWriter) {
  w.writeUint16(h.Type)
  w.writeUint16(h.HeaderSize)
  w.writeUint32(h.Size)
}

type StrPool struct {
  // Chunk的起始位置（非协议字段）
  ChunkStart uint32

  *Header

  // 字符串个数
  StrCount uint32

  // 字符串样式个数
  StyleCount uint32

  // SortedFlag: 0x0001
  // UTF8Flag:   0x0100
  Flags uint32

  // 字符串起始位置偏移（相对Header）
  StrStart uint32

  // 字符串样式起始位置偏移（相对Header）
  StyleStart uint32

  Strs []string
}

func parseStrPool(r *bytesReader) (*StrPool, error) {
  chunkStart := r.pos()
  header, e := parseHeader(r)
  if e != nil {
    return nil, e
  }
  if header.Type != ResStrPool {
    return nil, errors.Wrapf(base.ErrCorrupt, "chunk at %d: type 0x%04x is not a string pool", chunkStart, header.Type)
  }
  p := &StrPool{ChunkStart: chunkStart, Header: header}
  for _, v := range []*uint32{&p.StrCount, &p.StyleCount, &p.Flags, &p.StrStart, &p.StyleStart} {
    if *v, e = r.readUint32(); e != nil {
      return nil, e
    }
  }
  if e = r.seek(chunkStart + uint32(header.HeaderSize)); e != nil {
    return nil, e
  }
  offsets, e := r.readUint32Array(p.StrCount)
  if e != nil {
    return nil, e
  }

  if p.StrCount > 0 {
    if p.StrStart > header.Size {
      return nil, errors.Wrapf(base.ErrCorrupt, "string pool at %d: strings start %d beyond size %d", chunkStart, p.StrStart, header.Size)
    }
    end := header.Size
    if p.StyleCount > 0 && p.StyleStart > p.StrStart {
      end = p.StyleStart
    }
    block, e := r.slice(chunkStart+p.StrStart, chunkStart+end)
    if e != nil {
      return nil, e
    }
    p.Strs = make([]string, p.StrCount)
    for i, off := range offsets {
      if p.Flags&strPoolUTF8 != 0 {
        p.Strs[i], e = str8(block, off)
      } else {
        p.Strs[i], e = str16(block, off)
      }
      if e != nil {
        return nil, errors.Wrapf(e, "string %d of pool at %d", i, chunkStart)
      }
    }
  }
  return p, r.seek(chunkStart + header.Size)
}

func (p *StrPool) get(i uint32) (string, bool) {
  if p == nil || i >= uint32(len(p.Strs)) {
    return "", false
  }
  return p.Strs[i], true
}

// 只写UTF-8字符串池，不写样式
func writeStrPool(w *bytesWriter, strs []string) {
  start := w.pos()
  strStart := uint32(28 + 4*len(strs))
  h := &Header{Type: ResStrPool, HeaderSize: 28}
  h.writeTo(w)
  w.writeUint32(uint32(len(strs)))
  w.writeUint32(0)
  w.writeUint32(strPoolUTF8)
  w.writeUint32(strStart)
  w.writeUint32(0)
  offsetsAt := w.pos()
  for range strs {
    w.writeUint32(0)
  }
  for i, str := range strs {
    w.putUint32(offsetsAt+uint32(i*4), w.pos()-start-strStart)
    writeLen8(w, utf8.RuneCountInString(str))
    writeLen8(w, len(str))
    w.WriteString(str)
    w.writeUint8(0)
  }
  w.align4()
  w.putUint32(start+4, w.pos()-start)
}

func writeLen8(w *bytesWriter, n int) {
  if n > 0x7F {
    w.writeUint8(uint8(n>>8&0x7F | 0x80))
  }
  w.writeUint8(uint8(n))
}

func str8(block []byte, offset uint32) (string, error) {
  r := newBytesReader(block)
  if e := r.seek(offset); e != nil {
    return "", e
  }
  // 字符个数，1或2个字节
  if _, e := readLen8(r); e != nil {
    return "", e
  }
  // 字节个数，1或2个字节
  n, e := readLen8(r)
  if e != nil {
    return "", e
  }
  b, e := r.readN(n)
  if e != nil {
    return "", e
  }
  return string(b), nil
}

func readLen8(r *bytesReader) (uint32, error) {
  b, e := r.readUint8()
  if e != nil {
    return 0, e
  }
  n := uint32(b)
  if b&0x80 != 0 {
    b2, e := r.readUint8()
    if e != nil {
      return 0, e
    }
    n = uint32(b&0x7F)<<8 | uint32(b2)
  }
  return n, nil
}

func str16(block []byte, offset uint32) (string, error) {
  r := newBytesReader(block)
  if e := r.seek(offset); e != nil {
    return "", e
  }
  // 2个字节表示字符串长度，若最高位为1则是4个字节
  u, e := r.readUint16()
  if e != nil {
    return "", e
  }
  n := uint32(u)
  if u&0x8000 != 0 {
    u2, e := r.readUint16()
    if e != nil {
      return "", e
    }
    n = uint32(u&0x7FFF)<<16 | uint32(u2)
  }
  if uint64(n)*2 > uint64(r.len()-r.pos()) {
    return "", errors.Wrapf(base.ErrCorrupt, "utf-16 string of %d units at %d", n, offset)
  }
  units := make([]uint16, n)
  for i := range units {
    units[i], _ = r.readUint16()
  }
  return string(utf16.Decode(units)), nil
}
