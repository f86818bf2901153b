package idmap

import (
  "sort"
  "unicode/utf8"

  "github.com/pkg/errors"

  "github.com/kwf2030/idmap2/apk"
  "github.com/kwf2030/idmap2/base"
)

// 一个目标类型的匹配结果
type typeMatch struct {
  overlayType uint8

  // 目标资源项Id --> overlay资源Id
  entries map[uint16]uint32
}

// 根据资源名把overlay的资源项匹配到目标的资源项上，
// 目标和overlay都只取资源表中的第一个包。
// ignoreCategories为false时，声明了类别的资源项只有类别在enabledCategories中才会被映射，
// 没有声明类别的资源项总是被映射
func FromApkAssets(targetPath string, target *apk.Assets, overlayPath string, overlay *apk.Assets, ignoreCategories bool, enabledCategories ...string) (*Idmap, error) {
  m, e := fromApkAssets(targetPath, target, overlayPath, overlay, ignoreCategories, enabledCategories)
  if e != nil {
    return nil, errors.Wrap(e, "could not build idmap")
  }
  return m, nil
}

func fromApkAssets(targetPath string, target *apk.Assets, overlayPath string, overlay *apk.Assets, ignoreCategories bool, enabledCategories []string) (*Idmap, error) {
  if target == nil || overlay == nil {
    return nil, base.ErrNilPointer
  }
  for _, p := range []string{targetPath, overlayPath} {
    if len(p) > MaxPathLen || !utf8.ValidString(p) {
      return nil, errors.Wrapf(ErrBadString, "path %q", p)
    }
  }
  targetCrc, e := crc(targetPath)
  if e != nil {
    return nil, e
  }
  overlayCrc, e := crc(overlayPath)
  if e != nil {
    return nil, e
  }
  if len(target.Packages()) == 0 {
    return nil, errors.Errorf("target %s: no packages in resource table", targetPath)
  }
  if len(overlay.Packages()) == 0 {
    return nil, errors.Errorf("overlay %s: no packages in resource table", overlayPath)
  }
  targetPkg, overlayPkg := target.Packages()[0], overlay.Packages()[0]

  enabled := make(map[string]bool, len(enabledCategories))
  for _, c := range enabledCategories {
    enabled[c] = true
  }

  matches := make(map[uint8]*typeMatch, 16)
  for _, overlayId := range overlay.ResourceIDs(overlayPkg) {
    name, ok := overlay.TypeAndEntryName(overlayId)
    if !ok {
      continue
    }
    targetId := target.ResourceID(targetPkg.Name + ":" + name)
    if targetId == 0 || uint32(base.PackageId(targetId)) != targetPkg.Id {
      continue
    }
    if !ignoreCategories {
      if c := overlay.Category(overlayId); c != "" && !enabled[c] {
        continue
      }
    }
    tp := base.TypeId(targetId)
    tm, ok := matches[tp]
    if !ok {
      tm = &typeMatch{overlayType: base.TypeId(overlayId), entries: make(map[uint16]uint32, 16)}
      matches[tp] = tm
    }
    tm.entries[base.EntryId(targetId)] = overlayId
  }
  if len(matches) > 0xFF {
    return nil, errors.Errorf("%d resource types", len(matches))
  }

  types := make([]uint8, 0, len(matches))
  for tp := range matches {
    types = append(types, tp)
  }
  sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

  data := &Data{
    Header:        &DataHeader{TargetPackageID: uint8(targetPkg.Id), TypeCount: uint16(len(types))},
    ResourceTypes: make([]*ResourceType, 0, len(types)),
  }
  for _, tp := range types {
    rt, e := denseResourceType(tp, matches[tp])
    if e != nil {
      return nil, e
    }
    data.ResourceTypes = append(data.ResourceTypes, rt)
  }

  return &Idmap{
    Header: &Header{
      Magic:       Magic,
      Version:     Version,
      TargetCrc:   targetCrc,
      OverlayCrc:  overlayCrc,
      TargetPath:  targetPath,
      OverlayPath: overlayPath,
    },
    Data: []*Data{data},
  }, nil
}

// 从最小到最大的目标资源项Id连续存放，没有匹配的位置填NoEntry
func denseResourceType(tp uint8, tm *typeMatch) (*ResourceType, error) {
  first, last := uint16(0xFFFF), uint16(0)
  for id := range tm.entries {
    if id < first {
      first = id
    }
    if id > last {
      last = id
    }
  }
  count := int(last) - int(first) + 1
  if count > 0xFFFF {
    return nil, errors.Errorf("type 0x%02x: entry range [%d, %d] too large", tp, first, last)
  }
  rt := &ResourceType{
    TargetType:  tp,
    OverlayType: tm.overlayType,
    EntryOffset: first,
    Entries:     make([]uint32, count),
  }
  for i := range rt.Entries {
    rt.Entries[i] = NoEntry
  }
  for id, overlayId := range tm.entries {
    rt.Entries[id-first] = overlayId
  }
  return rt, nil
}

func crc(path string) (uint32, error) {
  z, e := apk.OpenZip(path)
  if e != nil {
    return 0, e
  }
  defer z.Close()
  return z.Crc(apk.ResourcesArsc)
}

// 重新计算两个apk的CRC，和idmap中记录的不一致返回ErrStale
func Verify(h *Header) error {
  if h == nil {
    return base.ErrNilPointer
  }
  targetCrc, e := crc(h.TargetPath)
  if e != nil {
    return e
  }
  if targetCrc != h.TargetCrc {
    return errors.Wrapf(ErrStale, "target %s: crc 0x%08x, idmap has 0x%08x", h.TargetPath, targetCrc, h.TargetCrc)
  }
  overlayCrc, e := crc(h.OverlayPath)
  if e != nil {
    return e
  }
  if overlayCrc != h.OverlayCrc {
    return errors.Wrapf(ErrStale, "overlay %s: crc 0x%08x, idmap has 0x%08x", h.OverlayPath, overlayCrc, h.OverlayCrc)
  }
  return nil
}
