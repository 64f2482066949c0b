package services

import (
	"strconv"
	"strings"

	"github.com/aiwuxian/apocalypse/internal/models"
	"github.com/aiwuxian/apocalypse/internal/tags"
)

// NPCPrefix 引用其他角色标签的路径前缀：NPC.<角色ID>.<路径>
const NPCPrefix = "NPC"

// ConditionKind 条件类型
type ConditionKind int

const (
	CondNotEmpty ConditionKind = iota
	CondEmpty
	CondFaction  // faction:<阵营>
	CondAttitude // attitude:<立场>
	CondCompare  // >n <n =n
)

// Condition 预解析的条件表达式
type Condition struct {
	Kind ConditionKind
	Raw  string
	Arg  string  // 阵营或立场
	Op   byte    // '>' '<' '='；无法解析时为0
	Num  float64 // 比较阈值
}

// ParseCondition 解析条件字符串
func ParseCondition(raw string) Condition {
	switch raw {
	case "!empty":
		return Condition{Kind: CondNotEmpty, Raw: raw}
	case "empty":
		return Condition{Kind: CondEmpty, Raw: raw}
	}
	c := Condition{Kind: CondCompare, Raw: raw}
	if arg, ok := strings.CutPrefix(raw, "faction:"); ok {
		c.Kind, c.Arg = CondFaction, arg
	} else if arg, ok := strings.CutPrefix(raw, "attitude:"); ok {
		c.Kind, c.Arg = CondAttitude, arg
	}
	if raw != "" {
		switch raw[0] {
		case '>', '<', '=':
			if n, ok := parseLeadingFloat(raw[1:]); ok {
				c.Op, c.Num = raw[0], n
			}
		}
	}
	return c
}

// 与 parseFloat 一致：取最长的数字前缀
func parseLeadingFloat(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	for end := len(s); end > 0; end-- {
		if n, err := strconv.ParseFloat(s[:end], 64); err == nil {
			return n, true
		}
	}
	return 0, false
}

// Requirement 一条标签要求：角色 + 路径 + 条件
type Requirement struct {
	CharacterID string
	Path        tags.Path
	Cond        Condition
}

// ParseRequirement 解析 requireTags 中的一项；NPC.<id>.<路径> 指向其他角色
func ParseRequirement(path, cond string) Requirement {
	charID, p := resolveTarget(tags.ParsePath(path))
	return Requirement{CharacterID: charID, Path: p, Cond: ParseCondition(cond)}
}

// ParseRequirements 解析整张 requireTags 表
func ParseRequirements(m map[string]string) []Requirement {
	if len(m) == 0 {
		return nil
	}
	out := make([]Requirement, 0, len(m))
	for path, cond := range m {
		out = append(out, ParseRequirement(path, cond))
	}
	return out
}

func resolveTarget(p tags.Path) (string, tags.Path) {
	segs := p.Segments()
	if len(segs) > 2 && segs[0] == NPCPrefix {
		return segs[1], tags.ParsePath(strings.Join(segs[2:], "."))
	}
	return tags.PlayerID, p
}

// ConditionEvaluator 对角色标签求值条件
type ConditionEvaluator struct {
	chars *CharacterService
}

func NewConditionEvaluator(chars *CharacterService) *ConditionEvaluator {
	return &ConditionEvaluator{chars: chars}
}

// Check 读取标签并求值
func (ce *ConditionEvaluator) Check(r Requirement) bool {
	v := ce.chars.Store().GetPath(r.CharacterID, r.Path)
	return ce.Evaluate(v, r.Cond)
}

// CheckAll 所有要求均满足
func (ce *ConditionEvaluator) CheckAll(rs []Requirement) bool {
	for _, r := range rs {
		if !ce.Check(r) {
			return false
		}
	}
	return true
}

// Evaluate 按条件求值一个标签值
func (ce *ConditionEvaluator) Evaluate(v models.TagValue, c Condition) bool {
	switch c.Kind {
	case CondNotEmpty:
		return !v.IsEmpty()
	case CondEmpty:
		return v.IsEmpty()
	}

	// 标签值是角色ID时检查该角色的阵营或对玩家的立场
	if !v.IsNum && v.Str != "" {
		if ch, ok := ce.chars.Character(v.Str); ok {
			switch c.Kind {
			case CondFaction:
				return ch.Faction == c.Arg
			case CondAttitude:
				return ce.chars.Relationship(ch.ID, tags.PlayerID).Stance == c.Arg
			}
		}
	}

	if !v.IsNum {
		return v.Str == c.Raw
	}
	switch c.Op {
	case '>':
		return v.Num > c.Num
	case '<':
		return v.Num < c.Num
	case '=':
		return v.Num == c.Num
	}
	return false
}
