package file

import (
  "crypto/sha256"
  "encoding/hex"
  "hash"
  "io"
  "os"
)

func SHA256(path string) (string, error) {
  return Hash(path, sha256.New())
}

func SHA256String(s string) string {
  sum := sha256.Sum256([]byte(s))
  return hex.EncodeToString(sum[:])
}

func Hash(path string, hash hash.Hash) (string, error) {
  f, e := os.Open(path)
  if e != nil {
    return "", e
  }
  defer f.Close()
  if _, e = io.Copy(hash, f); e != nil {
    return "", e
  }
  return hex.EncodeToString(hash.Sum(nil)), nil
}
