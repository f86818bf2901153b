package idmap

import (
  "bufio"
  "encoding/binary"
  "io"

  "github.com/pkg/errors"
)

// 按二进制格式写出，所有整数都是小端序，
// 第一个写错误之后的写入都会被忽略，由Flush返回
type BinaryStreamVisitor struct {
  w *bufio.Writer
  e error
}

func NewBinaryStreamVisitor(w io.Writer) *BinaryStreamVisitor {
  return &BinaryStreamVisitor{w: bufio.NewWriter(w)}
}

func (v *BinaryStreamVisitor) Visit(n Node) {
  switch n := n.(type) {
  case *Header:
    v.writeUint32(n.Magic)
    v.writeUint32(n.Version)
    v.writeUint32(n.TargetCrc)
    v.writeUint32(n.OverlayCrc)
    v.writeString(n.TargetPath)
    v.writeString(n.OverlayPath)
  case *DataHeader:
    v.writeUint8(n.TargetPackageID)
    v.writeUint16(n.TypeCount)
  case *ResourceType:
    v.writeUint8(n.TargetType)
    v.writeUint8(n.OverlayType)
    v.writeUint16(n.EntryOffset)
    v.writeUint16(n.EntryCount())
    for _, entry := range n.Entries {
      v.writeUint32(entry)
    }
  }
}

func (v *BinaryStreamVisitor) Flush() error {
  if v.e != nil {
    return v.e
  }
  if e := v.w.Flush(); e != nil {
    return errors.Wrap(e, "idmap: write")
  }
  return nil
}

func (v *BinaryStreamVisitor) write(b []byte) {
  if v.e != nil {
    return
  }
  if _, e := v.w.Write(b); e != nil {
    v.e = errors.Wrap(e, "idmap: write")
  }
}

func (v *BinaryStreamVisitor) writeUint8(n uint8) {
  v.write([]byte{n})
}

func (v *BinaryStreamVisitor) writeUint16(n uint16) {
  var b [2]byte
  binary.LittleEndian.PutUint16(b[:], n)
  v.write(b[:])
}

func (v *BinaryStreamVisitor) writeUint32(n uint32) {
  var b [4]byte
  binary.LittleEndian.PutUint32(b[:], n)
  v.write(b[:])
}

func (v *BinaryStreamVisitor) writeString(s string) {
  v.writeUint32(uint32(len(s)))
  v.write([]byte(s))
}

// 序列化整个idmap
func Write(w io.Writer, m *Idmap) error {
  v := NewBinaryStreamVisitor(w)
  m.Accept(v)
  return v.Flush()
}
