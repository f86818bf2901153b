package apk

import (
  "path"
  "sort"

  "github.com/pkg/errors"
  "gopkg.in/yaml.v2"
)

// overlay在此文件中声明资源项所属的类别
const CategoriesFile = "assets/overlay_categories.yml"

// 文件格式：
//   icon:
//     - drawable/ic_*
//     - mipmap/*
//   text:
//     - string/app_name
type Categories struct {
  names    []string
  patterns map[string][]string
}

func ParseCategories(data []byte) (*Categories, error) {
  conf := make(map[string][]string, 8)
  if e := yaml.Unmarshal(data, &conf); e != nil {
    return nil, errors.Wrap(e, "parse categories")
  }
  c := &Categories{names: make([]string, 0, len(conf)), patterns: conf}
  for name, arr := range conf {
    if name == "" {
      return nil, errors.New("parse categories: empty category name")
    }
    for _, p := range arr {
      // 提前检查模式是否合法
      if _, e := path.Match(p, ""); e != nil {
        return nil, errors.Wrapf(e, "category %s: pattern %q", name, p)
      }
    }
    c.names = append(c.names, name)
  }
  sort.Strings(c.names)
  return c, nil
}

// 按类别名排序后第一个匹配的类别，没有匹配返回""
func (c *Categories) Match(typeAndEntry string) string {
  if c == nil {
    return ""
  }
  for _, name := range c.names {
    for _, p := range c.patterns[name] {
      if ok, _ := path.Match(p, typeAndEntry); ok {
        return name
      }
    }
  }
  return ""
}

func (c *Categories) Names() []string {
  if c == nil {
    return nil
  }
  return append([]string(nil), c.names...)
}
