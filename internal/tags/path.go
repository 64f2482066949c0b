package tags

import "strings"

// Path 预解析的点分路径，如 状态.生命值
type Path struct {
	segs []string
}

// ParsePath 解析点分路径，忽略空段
func ParsePath(raw string) Path {
	parts := strings.Split(raw, ".")
	segs := parts[:0]
	for _, p := range parts {
		if p != "" {
			segs = append(segs, p)
		}
	}
	return Path{segs: segs}
}

// Segments 返回路径段（不可修改）
func (p Path) Segments() []string {
	return p.segs
}

func (p Path) Len() int {
	return len(p.segs)
}

func (p Path) IsZero() bool {
	return len(p.segs) == 0
}

// Last 最后一段
func (p Path) Last() string {
	if len(p.segs) == 0 {
		return ""
	}
	return p.segs[len(p.segs)-1]
}

// Parent 去掉最后一段
func (p Path) Parent() Path {
	if len(p.segs) == 0 {
		return p
	}
	return Path{segs: p.segs[:len(p.segs)-1]}
}

// Join 追加路径段
func (p Path) Join(other Path) Path {
	segs := make([]string, 0, len(p.segs)+len(other.segs))
	segs = append(segs, p.segs...)
	segs = append(segs, other.segs...)
	return Path{segs: segs}
}

func (p Path) String() string {
	return strings.Join(p.segs, ".")
}
