package services

import (
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"

	"github.com/aiwuxian/apocalypse/internal/models"
	"github.com/aiwuxian/apocalypse/internal/tags"
)

// EffectOp 效果操作
type EffectOp int

const (
	EffectDelete EffectOp = iota // <路径>.empty
	EffectAdd                    // <路径>.<整数>
	EffectSet                    // <路径>.<字符串>
)

func (op EffectOp) String() string {
	switch op {
	case EffectDelete:
		return "delete"
	case EffectAdd:
		return "add"
	case EffectSet:
		return "set"
	}
	return "unknown"
}

// Effect 预解析的效果：目标角色、路径与操作
type Effect struct {
	Raw         string
	CharacterID string
	Path        tags.Path
	Op          EffectOp
	Value       models.TagValue
}

var (
	effectPattern  = regexp.MustCompile(`^(.+)\.(-?\d+|[^.]+)$`)
	integerPattern = regexp.MustCompile(`^-?\d+$`)
)

// ParseEffect 解析效果字符串
func ParseEffect(raw string) (Effect, error) {
	e := Effect{Raw: raw}
	if p, ok := strings.CutSuffix(raw, "."+models.EmptySentinel); ok && p != "" {
		e.CharacterID, e.Path = resolveTarget(tags.ParsePath(p))
		e.Op = EffectDelete
		return e, nil
	}

	m := effectPattern.FindStringSubmatch(raw)
	if m == nil {
		return e, fmt.Errorf("无法解析效果: %q", raw)
	}
	e.CharacterID, e.Path = resolveTarget(tags.ParsePath(m[1]))
	if e.Path.IsZero() {
		return e, fmt.Errorf("效果缺少标签路径: %q", raw)
	}
	if integerPattern.MatchString(m[2]) {
		n, err := strconv.Atoi(m[2])
		if err != nil {
			return e, fmt.Errorf("效果数值超出范围 %q: %w", raw, err)
		}
		e.Op, e.Value = EffectAdd, models.Number(float64(n))
		return e, nil
	}
	e.Op, e.Value = EffectSet, models.String(m[2])
	return e, nil
}

// EffectService 应用效果到标签存储；解析结果按原始字符串缓存
type EffectService struct {
	tags  *tags.Store
	cache map[string]Effect
}

func NewEffectService(store *tags.Store) *EffectService {
	return &EffectService{
		tags:  store,
		cache: make(map[string]Effect),
	}
}

// Compile 解析并缓存
func (es *EffectService) Compile(raw string) (Effect, error) {
	if e, ok := es.cache[raw]; ok {
		return e, nil
	}
	e, err := ParseEffect(raw)
	if err != nil {
		return e, err
	}
	es.cache[raw] = e
	return e, nil
}

// Apply 应用单条效果；空字符串忽略，无法解析的效果记录日志后跳过
func (es *EffectService) Apply(raw string) bool {
	if raw == "" {
		return false
	}
	e, err := es.Compile(raw)
	if err != nil {
		log.Printf("⚠️ [效果] %v", err)
		return false
	}
	es.apply(e)
	return true
}

// ApplyAll 按顺序应用，返回成功应用的条数
func (es *EffectService) ApplyAll(effects []string) int {
	n := 0
	for _, raw := range effects {
		if es.Apply(raw) {
			n++
		}
	}
	return n
}

func (es *EffectService) apply(e Effect) {
	switch e.Op {
	case EffectDelete:
		es.tags.DeletePath(e.CharacterID, e.Path)
	case EffectAdd, EffectSet:
		es.tags.SetPath(e.CharacterID, e.Path, e.Value)
	}
}

// ApplyDeltas 按 {路径: 数值} 叠加，sign 为 -1 时撤销
func (es *EffectService) ApplyDeltas(deltas map[string]float64, sign float64) {
	for path, d := range deltas {
		charID, p := resolveTarget(tags.ParsePath(path))
		es.tags.SetPath(charID, p, models.Number(d*sign))
	}
}
