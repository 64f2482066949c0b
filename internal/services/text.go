package services

import (
	"regexp"
	"strconv"
	"strings"
)

// CombatDescriber 战斗描述来源
type CombatDescriber interface {
	Active() bool
	Description() string
	ActorDescription() string
	TargetListDescription(kind string) string
	ResultDescription() string
}

type placeholderHandler func(tr *TextRenderer, arg string) string

// 占位符类型 -> 处理函数
var placeholderHandlers = map[string]placeholderHandler{
	"tagValue":          (*TextRenderer).tagValue,
	"charName":          (*TextRenderer).charName,
	"exam100":           (*TextRenderer).exam100,
	"exam150":           (*TextRenderer).exam150,
	"examAll":           (*TextRenderer).examAll,
	"combatDescription": (*TextRenderer).combatDescription,
	"combatActor":       (*TextRenderer).combatActor,
	"combatTargets":     (*TextRenderer).combatTargets,
	"combatResult":      (*TextRenderer).combatResult,
}

var placeholderPattern = regexp.MustCompile(`\{\{(.*?)\}\}`)

// TextRenderer 替换卡牌文本中的 {{类型:参数}} 占位符
type TextRenderer struct {
	chars  *CharacterService
	combat CombatDescriber
}

func NewTextRenderer(chars *CharacterService, combat CombatDescriber) *TextRenderer {
	return &TextRenderer{chars: chars, combat: combat}
}

// Render 未知类型的占位符原样保留
func (tr *TextRenderer) Render(template string) string {
	if !strings.Contains(template, "{{") {
		return template
	}
	return placeholderPattern.ReplaceAllStringFunc(template, func(m string) string {
		inner := m[2 : len(m)-2]
		kind, arg, _ := strings.Cut(inner, ":")
		h, ok := placeholderHandlers[kind]
		if !ok {
			return m
		}
		return h(tr, arg)
	})
}

func (tr *TextRenderer) tagValue(path string) string {
	return tr.chars.PlayerTag(path).String()
}

func (tr *TextRenderer) charName(string) string {
	id := tr.chars.PlayerTag(TagInteractTarget).String()
	if id == "" {
		return ""
	}
	if c, ok := tr.chars.Character(id); ok {
		return c.Name
	}
	return ""
}

func (tr *TextRenderer) numeric(path string) float64 {
	v := tr.chars.PlayerTag(path)
	if v.IsNum {
		return v.Num
	}
	return 0
}

func (tr *TextRenderer) exam100(path string) string {
	return strconv.Itoa(ExamScore(tr.numeric(path), 100))
}

func (tr *TextRenderer) exam150(path string) string {
	return strconv.Itoa(ExamScore(tr.numeric(path), 150))
}

func (tr *TextRenderer) examAll(string) string {
	return strconv.Itoa(Exam(tr.chars).Total)
}

func (tr *TextRenderer) combatActive() bool {
	return tr.combat != nil && tr.combat.Active()
}

func (tr *TextRenderer) combatDescription(string) string {
	if !tr.combatActive() {
		return ""
	}
	return tr.combat.Description()
}

func (tr *TextRenderer) combatActor(string) string {
	if !tr.combatActive() {
		return ""
	}
	return tr.combat.ActorDescription()
}

func (tr *TextRenderer) combatTargets(kind string) string {
	if !tr.combatActive() {
		return ""
	}
	return tr.combat.TargetListDescription(kind)
}

func (tr *TextRenderer) combatResult(string) string {
	if !tr.combatActive() {
		return ""
	}
	return tr.combat.ResultDescription()
}
