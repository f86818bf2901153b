package idmap

import (
  "bufio"
  "encoding/binary"
  "io"
  "unicode/utf8"

  "github.com/pkg/errors"

  "github.com/kwf2030/idmap2/base"
)

// 读取整个idmap，Data块一直读到流结束，至少要有一个，
// 流必须正好结束在Data块的边界上
func Read(r io.Reader) (*Idmap, error) {
  br := bufio.NewReader(r)
  h, e := ReadHeader(br)
  if e != nil {
    return nil, e
  }
  m := &Idmap{Header: h}
  for {
    if _, e = br.Peek(1); e == io.EOF {
      break
    } else if e != nil {
      return nil, errors.Wrap(e, "idmap: read")
    }
    d, e := ReadData(br)
    if e != nil {
      return nil, errors.Wrapf(e, "data block %d", len(m.Data))
    }
    m.Data = append(m.Data, d)
  }
  if len(m.Data) == 0 {
    return nil, errors.Wrap(ErrTruncated, "no data block")
  }
  return m, nil
}

func ReadHeader(r io.Reader) (*Header, error) {
  h := &Header{}
  var e error
  if h.Magic, e = readUint32(r); e != nil {
    return nil, e
  }
  if h.Magic != Magic {
    return nil, errors.Wrapf(ErrBadMagic, "0x%08x", h.Magic)
  }
  if h.Version, e = readUint32(r); e != nil {
    return nil, e
  }
  if h.Version != Version {
    return nil, errors.Wrapf(ErrBadVersion, "%d, want %d", h.Version, Version)
  }
  if h.TargetCrc, e = readUint32(r); e != nil {
    return nil, e
  }
  if h.OverlayCrc, e = readUint32(r); e != nil {
    return nil, e
  }
  if h.TargetPath, e = readString(r); e != nil {
    return nil, errors.Wrap(e, "target path")
  }
  if h.OverlayPath, e = readString(r); e != nil {
    return nil, errors.Wrap(e, "overlay path")
  }
  return h, nil
}

func ReadData(r io.Reader) (*Data, error) {
  h, e := ReadDataHeader(r)
  if e != nil {
    return nil, e
  }
  d := &Data{Header: h, ResourceTypes: make([]*ResourceType, 0, h.TypeCount)}
  for i := 0; i < int(h.TypeCount); i++ {
    rt, e := ReadResourceType(r)
    if e != nil {
      return nil, errors.Wrapf(e, "resource type %d of %d", i, h.TypeCount)
    }
    d.ResourceTypes = append(d.ResourceTypes, rt)
  }
  return d, nil
}

func ReadDataHeader(r io.Reader) (*DataHeader, error) {
  h := &DataHeader{}
  var e error
  if h.TargetPackageID, e = readUint8(r); e != nil {
    return nil, e
  }
  if h.TypeCount, e = readUint16(r); e != nil {
    return nil, e
  }
  return h, nil
}

func ReadResourceType(r io.Reader) (*ResourceType, error) {
  rt := &ResourceType{}
  var e error
  if rt.TargetType, e = readUint8(r); e != nil {
    return nil, e
  }
  if rt.OverlayType, e = readUint8(r); e != nil {
    return nil, e
  }
  if rt.EntryOffset, e = readUint16(r); e != nil {
    return nil, e
  }
  count, e := readUint16(r)
  if e != nil {
    return nil, e
  }
  if count == 0 || int(rt.EntryOffset)+int(count) > 0xFFFF+1 {
    return nil, errors.Wrapf(base.ErrCorrupt, "type 0x%02x: %d entries at offset %d", rt.TargetType, count, rt.EntryOffset)
  }
  b := make([]byte, 4*int(count))
  if e = readFull(r, b); e != nil {
    return nil, e
  }
  rt.Entries = make([]uint32, count)
  for i := range rt.Entries {
    rt.Entries[i] = binary.LittleEndian.Uint32(b[4*i:])
  }
  return rt, nil
}

// 不足时返回ErrTruncated
func readFull(r io.Reader, b []byte) error {
  if _, e := io.ReadFull(r, b); e != nil {
    if e == io.EOF || e == io.ErrUnexpectedEOF {
      return errors.Wrapf(ErrTruncated, "need %d bytes", len(b))
    }
    return errors.Wrap(e, "idmap: read")
  }
  return nil
}

func readUint8(r io.Reader) (uint8, error) {
  var b [1]byte
  if e := readFull(r, b[:]); e != nil {
    return 0, e
  }
  return b[0], nil
}

func readUint16(r io.Reader) (uint16, error) {
  var b [2]byte
  if e := readFull(r, b[:]); e != nil {
    return 0, e
  }
  return binary.LittleEndian.Uint16(b[:]), nil
}

func readUint32(r io.Reader) (uint32, error) {
  var b [4]byte
  if e := readFull(r, b[:]); e != nil {
    return 0, e
  }
  return binary.LittleEndian.Uint32(b[:]), nil
}

// 4个字节长度+UTF-8字节
func readString(r io.Reader) (string, error) {
  n, e := readUint32(r)
  if e != nil {
    return "", e
  }
  if n > MaxPathLen {
    return "", errors.Wrapf(ErrBadString, "length %d exceeds %d", n, MaxPathLen)
  }
  b := make([]byte, n)
  if e = readFull(r, b); e != nil {
    return "", e
  }
  if !utf8.Valid(b) {
    return "", errors.Wrap(ErrBadString, "invalid utf-8")
  }
  return string(b), nil
}
