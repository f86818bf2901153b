package apk

import (
  "fmt"
  "strconv"
)

// Res_value.dataType
const (
  TypeNull       = 0x00
  TypeReference  = 0x01
  TypeAttribute  = 0x02
  TypeString     = 0x03
  TypeFloat      = 0x04
  TypeDimension  = 0x05
  TypeFraction   = 0x06
  TypeIntDec     = 0x10
  TypeIntHex     = 0x11
  TypeIntBool    = 0x12
  TypeColorARGB8 = 0x1c
  TypeColorRGB8  = 0x1d
  TypeColorARGB4 = 0x1e
  TypeColorRGB4  = 0x1f
)

// 把资源值转换为可读字符串，字符串类型从全局字符串池中取
func formatValue(pool *StrPool, v *Value) string {
  if v == nil {
    return ""
  }
  switch v.DataType {
  case TypeNull:
    return "@null"
  case TypeReference:
    return fmt.Sprintf("@0x%08x", v.Data)
  case TypeAttribute:
    return fmt.Sprintf("?0x%08x", v.Data)
  case TypeString:
    if s, ok := pool.get(v.Data); ok {
      return strconv.Quote(s)
    }
    return fmt.Sprintf("<string %d>", v.Data)
  case TypeIntDec:
    return strconv.FormatInt(int64(int32(v.Data)), 10)
  case TypeIntHex:
    return fmt.Sprintf("0x%08x", v.Data)
  case TypeIntBool:
    if v.Data == 0 {
      return "false"
    }
    return "true"
  case TypeColorARGB8, TypeColorRGB8, TypeColorARGB4, TypeColorRGB4:
    return fmt.Sprintf("#%08x", v.Data)
  }
  return fmt.Sprintf("<type 0x%02x 0x%08x>", v.DataType, v.Data)
}

func formatEntry(pool *StrPool, entry *Entry) string {
  if entry.Flags&EntryFlagComplex == 0 {
    return formatValue(pool, entry.Value)
  }
  return fmt.Sprintf("<bag parent=0x%08x items=%d>", entry.ParentRef, len(entry.Values))
}
