package base

import "errors"

var (
  ErrNilPointer      = errors.New("nil pointer")
  ErrInvalidArgument = errors.New("invalid argument")
  ErrNotFound        = errors.New("not found")
  ErrCorrupt         = errors.New("corrupt data")
)

// 资源Id：0xPPTTEEEE
func ResId(pkg, tp uint8, entry uint16) uint32 {
  return uint32(pkg)<<24 | uint32(tp)<<16 | uint32(entry)
}

func PackageId(resid uint32) uint8 {
  return uint8(resid >> 24)
}

func TypeId(resid uint32) uint8 {
  return uint8(resid >> 16)
}

func EntryId(resid uint32) uint16 {
  return uint16(resid)
}
