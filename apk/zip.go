package apk

import (
  "io"
  "sort"
  "time"

  "github.com/klauspost/compress/zip"
  "github.com/pkg/errors"

  "github.com/kwf2030/idmap2/base"
  "github.com/kwf2030/idmap2/file"
)

const ResourcesArsc = "resources.arsc"

// 解压后的单个文件上限
const maxEntrySize = 1 << 30

type ZipFile struct {
  path string
  rc   *zip.ReadCloser
}

func OpenZip(path string) (*ZipFile, error) {
  if path == "" {
    return nil, base.ErrInvalidArgument
  }
  rc, e := zip.OpenReader(path)
  if e != nil {
    return nil, errors.Wrapf(e, "open zip %s", path)
  }
  return &ZipFile{path: path, rc: rc}, nil
}

func (z *ZipFile) find(name string) (*zip.File, error) {
  for _, f := range z.rc.File {
    if f.Name == name {
      return f, nil
    }
  }
  return nil, errors.Wrapf(base.ErrNotFound, "%s: no entry %s", z.path, name)
}

func (z *ZipFile) Has(name string) bool {
  _, e := z.find(name)
  return e == nil
}

// 读取整个文件到内存
func (z *ZipFile) Uncompress(name string) ([]byte, error) {
  f, e := z.find(name)
  if e != nil {
    return nil, e
  }
  if f.UncompressedSize64 > maxEntrySize {
    return nil, errors.Errorf("%s: entry %s too large (%d bytes)", z.path, name, f.UncompressedSize64)
  }
  r, e := f.Open()
  if e != nil {
    return nil, errors.Wrapf(e, "%s: open entry %s", z.path, name)
  }
  defer r.Close()
  data := make([]byte, f.UncompressedSize64)
  // zip的Reader读到末尾时会校验CRC
  if _, e = io.ReadFull(r, data); e != nil {
    return nil, errors.Wrapf(e, "%s: read entry %s", z.path, name)
  }
  if _, e = io.Copy(io.Discard, r); e != nil {
    return nil, errors.Wrapf(e, "%s: verify entry %s", z.path, name)
  }
  return data, nil
}

// 中央目录中记录的CRC32，不需要解压
func (z *ZipFile) Crc(name string) (uint32, error) {
  f, e := z.find(name)
  if e != nil {
    return 0, e
  }
  return f.CRC32, nil
}

func (z *ZipFile) Close() error {
  return z.rc.Close()
}

// 生成apk（zip），resources.arsc不压缩，其余deflate，
// 修改时间固定，同样的输入得到同样的文件
func WriteApk(path string, files map[string][]byte) error {
  names := make([]string, 0, len(files))
  for name := range files {
    names = append(names, name)
  }
  sort.Strings(names)
  return file.WriteAtomic(path, 0644, func(w io.Writer) error {
    zw := zip.NewWriter(w)
    for _, name := range names {
      h := &zip.FileHeader{
        Name:     name,
        Method:   zip.Deflate,
        Modified: time.Date(2008, 1, 1, 0, 0, 0, 0, time.UTC),
      }
      if name == ResourcesArsc {
        h.Method = zip.Store
      }
      fw, e := zw.CreateHeader(h)
      if e != nil {
        return errors.Wrapf(e, "zip entry %s", name)
      }
      if _, e = fw.Write(files[name]); e != nil {
        return errors.Wrapf(e, "zip entry %s", name)
      }
    }
    return zw.Close()
  })
}
