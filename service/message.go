package service

const (
  MethodGetIdmapPath = "getIdmapPath"
  MethodRemoveIdmap  = "removeIdmap"
  MethodCreateIdmap  = "createIdmap"
)

type Param map[string]interface{}

type Result map[string]interface{}

// 请求/响应
type Message struct {
  // 请求的ID，响应中会带有相同的ID
  Id int32 `json:"id,omitempty"`

  Method string `json:"method,omitempty"`

  // 请求参数：
  // overlayApkPath(string)、targetApkPath(string)、ignoreCategories(bool)、userId(int)
  Param Param `json:"params,omitempty"`

  // 响应数据：
  // getIdmapPath、createIdmap是path(string)，createIdmap失败时为空，
  // removeIdmap是removed(bool)
  Result Result `json:"result,omitempty"`

  // 请求本身不合法时的错误信息
  Error string `json:"error,omitempty"`
}
