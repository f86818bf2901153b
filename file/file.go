package file

import (
  "os"

  "github.com/kwf2030/idmap2/base"
)

// path为空或stat失败时返回nil
func stat(path string) os.FileInfo {
  if path == "" {
    return nil
  }
  fi, e := os.Stat(path)
  if e != nil {
    return nil
  }
  return fi
}

func Exist(path string) bool {
  return stat(path) != nil
}

// apk、idmap都必须是普通文件
func IsFile(path string) bool {
  fi := stat(path)
  return fi != nil && fi.Mode().IsRegular()
}

func IsDir(path string) bool {
  fi := stat(path)
  return fi != nil && fi.IsDir()
}

// 删除普通文件，文件不存在时返回false（不是错误）
func Remove(path string) (bool, error) {
  if path == "" {
    return false, base.ErrInvalidArgument
  }
  f, e := os.Lstat(path)
  if e != nil {
    if os.IsNotExist(e) {
      return false, nil
    }
    return false, e
  }
  if f.IsDir() {
    return false, base.ErrInvalidArgument
  }
  if e = os.Remove(path); e != nil {
    if os.IsNotExist(e) {
      return false, nil
    }
    return false, e
  }
  return true, nil
}
