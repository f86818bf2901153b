package file

import (
  "io"
  "os"
  "path/filepath"

  "github.com/pkg/errors"

  "github.com/kwf2030/idmap2/base"
)

// 先写同目录下的临时文件，成功后rename覆盖path，
// 读者要么看到旧文件，要么看到完整的新文件
func WriteAtomic(path string, perm os.FileMode, write func(io.Writer) error) (e error) {
  if path == "" || write == nil {
    return base.ErrInvalidArgument
  }
  dir, name := filepath.Split(path)
  if dir == "" {
    dir = "."
  }
  tmp, e := os.CreateTemp(dir, "."+name+".tmp*")
  if e != nil {
    return errors.Wrapf(e, "create temp file for %s", path)
  }
  defer func() {
    if e != nil {
      tmp.Close()
      os.Remove(tmp.Name())
    }
  }()
  if e = write(tmp); e != nil {
    return e
  }
  if e = tmp.Sync(); e != nil {
    return errors.Wrapf(e, "sync %s", tmp.Name())
  }
  if e = tmp.Chmod(perm); e != nil {
    return errors.Wrapf(e, "chmod %s", tmp.Name())
  }
  if e = tmp.Close(); e != nil {
    return errors.Wrapf(e, "close %s", tmp.Name())
  }
  if e = os.Rename(tmp.Name(), path); e != nil {
    return errors.Wrapf(e, "rename %s", tmp.Name())
  }
  return nil
}
