package apk

import (
  "bytes"
  "encoding/binary"

  "github.com/pkg/errors"

  "github.com/kwf2030/idmap2/base"
)

type bytesReader struct {
  data []byte
  off  uint32
}

func newBytesReader(data []byte) *bytesReader {
  return &bytesReader{data: data}
}

func (r *bytesReader) pos() uint32 {
  return r.off
}

func (r *bytesReader) len() uint32 {
  return uint32(len(r.data))
}

func (r *bytesReader) seek(off uint32) error {
  if off > r.len() {
    return errors.Wrapf(base.ErrCorrupt, "seek to %d beyond %d bytes", off, r.len())
  }
  r.off = off
  return nil
}

// [start, end)，不移动读位置
func (r *bytesReader) slice(start, end uint32) ([]byte, error) {
  if start > end || end > r.len() {
    return nil, errors.Wrapf(base.ErrCorrupt, "slice [%d, %d) out of %d bytes", start, end, r.len())
  }
  return r.data[start:end], nil
}

func (r *bytesReader) readN(n uint32) ([]byte, error) {
  if uint64(r.off)+uint64(n) > uint64(r.len()) {
    return nil, errors.Wrapf(base.ErrCorrupt, "read %d bytes at offset %d", n, r.off)
  }
  ret := r.data[r.off : r.off+n]
  r.off += n
  return ret, nil
}

func (r *bytesReader) readUint8() (uint8, error) {
  b, e := r.readN(1)
  if e != nil {
    return 0, e
  }
  return b[0], nil
}

func (r *bytesReader) readUint16() (uint16, error) {
  b, e := r.readN(2)
  if e != nil {
    return 0, e
  }
  return binary.LittleEndian.Uint16(b), nil
}

func (r *bytesReader) readUint32() (uint32, error) {
  b, e := r.readN(4)
  if e != nil {
    return 0, e
  }
  return binary.LittleEndian.Uint32(b), nil
}

func (r *bytesReader) readUint32Array(count uint32) ([]uint32, error) {
  if count < 1 {
    return nil, nil
  }
  b, e := r.readN4(count)
  if e != nil {
    return nil, e
  }
  ret := make([]uint32, count)
  for i := range ret {
    ret[i] = binary.LittleEndian.Uint32(b[i*4:])
  }
  return ret, nil
}

func (r *bytesReader) readN4(count uint32) ([]byte, error) {
  if uint64(count)*4 > uint64(r.len()-r.off) {
    return nil, errors.Wrapf(base.ErrCorrupt, "array of %d uint32 at offset %d", count, r.off)
  }
  return r.readN(count * 4)
}

type bytesWriter struct {
  *bytes.Buffer
}

func newBytesWriter() *bytesWriter {
  return &bytesWriter{Buffer: &bytes.Buffer{}}
}

func (w *bytesWriter) pos() uint32 {
  return uint32(w.Len())
}

func (w *bytesWriter) writeUint8(n uint8) {
  w.WriteByte(n)
}

func (w *bytesWriter) writeUint16(n uint16) {
  var b [2]byte
  binary.LittleEndian.PutUint16(b[:], n)
  w.Write(b[:])
}

func (w *bytesWriter) writeUint32(n uint32) {
  var b [4]byte
  binary.LittleEndian.PutUint32(b[:], n)
  w.Write(b[:])
}

func (w *bytesWriter) writeUint32Array(arr []uint32) {
  for _, n := range arr {
    w.writeUint32(n)
  }
}

// 回填已写入位置的uint32（chunk大小等）
func (w *bytesWriter) putUint32(off, n uint32) {
  binary.LittleEndian.PutUint32(w.Bytes()[off:], n)
}

func (w *bytesWriter) align4() {
  for w.Len()%4 != 0 {
    w.WriteByte(0)
  }
}
