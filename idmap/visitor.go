package idmap

// 节点只有五种：*Idmap、*Header、*Data、*DataHeader、*ResourceType，
// Visitor用type switch区分
type Node interface {
  Accept(v Visitor)
}

type Visitor interface {
  Visit(n Node)
}

type VisitorFunc func(n Node)

func (f VisitorFunc) Visit(n Node) {
  f(n)
}

// 根据资源Id查资源名（package:type/entry），打印时使用
type NameResolver interface {
  QualifiedName(resid uint32) (string, bool)
}

const unknownName = "???"

func resolveName(r NameResolver, resid uint32) string {
  if r == nil {
    return unknownName
  }
  name, ok := r.QualifiedName(resid)
  if !ok {
    return unknownName
  }
  return name
}

// 访问顺序即二进制格式中的字段顺序：Idmap、Header、每个Data
func (m *Idmap) Accept(v Visitor) {
  v.Visit(m)
  m.Header.Accept(v)
  for _, d := range m.Data {
    d.Accept(v)
  }
}

func (h *Header) Accept(v Visitor) {
  v.Visit(h)
}

// Data、DataHeader、每个ResourceType
func (d *Data) Accept(v Visitor) {
  v.Visit(d)
  d.Header.Accept(v)
  for _, rt := range d.ResourceTypes {
    rt.Accept(v)
  }
}

func (h *DataHeader) Accept(v Visitor) {
  v.Visit(h)
}

func (rt *ResourceType) Accept(v Visitor) {
  v.Visit(rt)
}
