package apk

import (
  "sort"

  "github.com/pkg/errors"

  "github.com/kwf2030/idmap2/base"
)

type resName struct {
  pkg *Package

  // type/entry
  name string
}

// 一个apk的资源：资源表、名称索引和overlay声明的类别
type Assets struct {
  Path string

  Table *ResTable

  Categories *Categories

  names map[uint32]*resName

  // package:type/entry --> 资源Id
  ids map[string]uint32

  // 每个包中存在的资源Id（升序）
  pkgIds map[*Package][]uint32
}

func LoadAssets(path string) (*Assets, error) {
  z, e := OpenZip(path)
  if e != nil {
    return nil, e
  }
  defer z.Close()
  data, e := z.Uncompress(ResourcesArsc)
  if e != nil {
    return nil, e
  }
  table, e := ParseResTable(data)
  if e != nil {
    return nil, errors.Wrapf(e, "%s: %s", path, ResourcesArsc)
  }
  var categories *Categories
  if z.Has(CategoriesFile) {
    raw, e := z.Uncompress(CategoriesFile)
    if e != nil {
      return nil, e
    }
    if categories, e = ParseCategories(raw); e != nil {
      return nil, errors.Wrapf(e, "%s: %s", path, CategoriesFile)
    }
  }
  return NewAssets(path, table, categories)
}

func NewAssets(path string, table *ResTable, categories *Categories) (*Assets, error) {
  if table == nil {
    return nil, base.ErrNilPointer
  }
  a := &Assets{
    Path:       path,
    Table:      table,
    Categories: categories,
    names:      make(map[uint32]*resName, 1024),
    ids:        make(map[string]uint32, 1024),
    pkgIds:     make(map[*Package][]uint32, len(table.Packages)),
  }
  for _, pkg := range table.Packages {
    if pkg.Id == 0 || pkg.Id > 0xFF {
      return nil, errors.Wrapf(base.ErrCorrupt, "package %q: id 0x%x", pkg.Name, pkg.Id)
    }
    seen := make(map[uint32]bool, 256)
    for _, t := range pkg.Types {
      typeName, ok := pkg.TypeName(t.Id)
      if !ok {
        return nil, errors.Wrapf(base.ErrCorrupt, "package %q: no name for type 0x%02x", pkg.Name, t.Id)
      }
      for i, entry := range t.Entries {
        // 遍历时注意Entries的元素可能为nil
        if entry == nil || i > 0xFFFF {
          continue
        }
        keyName, ok := pkg.KeyName(entry.Key)
        if !ok {
          return nil, errors.Wrapf(base.ErrCorrupt, "package %q: type %s entry %d: key %d out of range", pkg.Name, typeName, i, entry.Key)
        }
        id := base.ResId(uint8(pkg.Id), t.Id, uint16(i))
        if !seen[id] {
          seen[id] = true
          a.pkgIds[pkg] = append(a.pkgIds[pkg], id)
        }
        if _, ok := a.names[id]; ok {
          continue
        }
        name := typeName + "/" + keyName
        a.names[id] = &resName{pkg: pkg, name: name}
        if _, ok := a.ids[pkg.Name+":"+name]; !ok {
          a.ids[pkg.Name+":"+name] = id
        }
      }
    }
    arr := a.pkgIds[pkg]
    sort.Slice(arr, func(i, j int) bool { return arr[i] < arr[j] })
  }
  return a, nil
}

func (a *Assets) Packages() []*Package {
  return a.Table.Packages
}

// 包中所有存在的资源Id（升序）
func (a *Assets) ResourceIDs(pkg *Package) []uint32 {
  return a.pkgIds[pkg]
}

// package:type/entry
func (a *Assets) QualifiedName(resid uint32) (string, bool) {
  n, ok := a.names[resid]
  if !ok {
    return "", false
  }
  return n.pkg.Name + ":" + n.name, true
}

// type/entry
func (a *Assets) TypeAndEntryName(resid uint32) (string, bool) {
  n, ok := a.names[resid]
  if !ok {
    return "", false
  }
  return n.name, true
}

// 不存在返回0
func (a *Assets) ResourceID(name string) uint32 {
  return a.ids[name]
}

// 资源项所属的类别，没有声明类别返回""
func (a *Assets) Category(resid uint32) string {
  n, ok := a.names[resid]
  if !ok {
    return ""
  }
  return a.Categories.Match(n.name)
}

// 资源值，优先取默认配置
func (a *Assets) Value(resid uint32) (string, bool) {
  n, ok := a.names[resid]
  if !ok {
    return "", false
  }
  tp, index := base.TypeId(resid), int(base.EntryId(resid))
  var found *Entry
  for _, t := range n.pkg.Types {
    if t.Id != tp || index >= len(t.Entries) || t.Entries[index] == nil {
      continue
    }
    if found == nil || t.Config.IsDefault() {
      found = t.Entries[index]
      if t.Config.IsDefault() {
        break
      }
    }
  }
  if found == nil {
    return "", false
  }
  return formatEntry(a.Table.StrPool, found), true
}
