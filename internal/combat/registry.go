package combat

import (
	"fmt"
	"math"

	"github.com/aiwuxian/apocalypse/internal/models"
	"github.com/aiwuxian/apocalypse/internal/tags"
)

// CharacterSource 角色及其标签
type CharacterSource interface {
	Character(id string) (*models.Character, bool)
	Tag(characterID, path string) models.TagValue
	Children(characterID, path string) []string
}

// 角色标签 -> 战斗属性，缺失时使用默认值
var characterStatTags = []struct {
	key      string
	path     string
	fallback int
}{
	{"hp", "状态.生命值", 100},
	{"maxHp", "状态.生命值上限", 100},
	{"mp", "状态.魔力值", 100},
	{"maxMp", "状态.魔力值上限", 100},
	{"sp", "状态.体力值", 100},
	{"maxSp", "状态.体力值上限", 100},
	{"strength", "属性.力量", 10},
	{"agility", "属性.敏捷", 10},
	{"intelligence", "属性.智力", 10},
	{"constitution", "属性.体质", 10},
	{"wisdom", "属性.感知", 10},
	{"charisma", "属性.魅力", 10},
}

// Update 对战斗单位的部分更新；Stats 按键浅合并
type Update struct {
	Name    *string
	Faction *string
	Stats   map[string]int
	Status  *Status
	Skills  []string
}

// Registry 战斗单位登记表，保持插入顺序
type Registry struct {
	chars      CharacterSource
	factions   *FactionTable
	combatants map[string]*Combatant
	order      []string
}

func NewRegistry(chars CharacterSource, factions *FactionTable) *Registry {
	return &Registry{
		chars:      chars,
		factions:   factions,
		combatants: make(map[string]*Combatant),
	}
}

// BaseInitiative 先攻基础值 = floor(敏捷*1.5)
func BaseInitiative(agility int) int {
	return int(math.Floor(float64(agility) * 1.5))
}

// CreateFromCharacter 由角色标签创建战斗单位
func (r *Registry) CreateFromCharacter(id string) (*Combatant, error) {
	name, faction := id, FactionNeutral
	if id == tags.PlayerID {
		name, faction = "你", FactionPlayer
	}
	if ch, ok := r.chars.Character(id); ok {
		if ch.Name != "" {
			name = ch.Name
		}
		if ch.Faction != "" {
			faction = ch.Faction
		}
	} else if id != tags.PlayerID {
		return nil, fmt.Errorf("角色不存在: %s", id)
	}

	values := make(map[string]int, len(characterStatTags))
	for _, st := range characterStatTags {
		values[st.key] = st.fallback
		if f, ok := r.chars.Tag(id, st.path).Float(); ok {
			values[st.key] = int(f)
		}
	}
	var stats Stats
	stats.Apply(values)
	stats.BaseInitiative = BaseInitiative(stats.Agility)

	var skills []string
	for _, skill := range r.chars.Children(id, "技能") {
		if f, ok := r.chars.Tag(id, "技能."+skill).Float(); ok && f > 0 {
			skills = append(skills, skill)
		}
	}

	c := &Combatant{
		ID:      id,
		Name:    name,
		Faction: faction,
		Stats:   stats,
		Skills:  skills,
		AI:      r.characterAI(id, faction),
	}
	r.Add(c)
	return c, nil
}

// 玩家无AI；与玩家友好的阵营为支援型，敌对的为进攻型
func (r *Registry) characterAI(id, faction string) AIType {
	if id == tags.PlayerID || faction == FactionPlayer {
		return AINone
	}
	switch r.factions.Relation(faction, FactionPlayer) {
	case Friendly:
		return AISupport
	case Hostile:
		return AIAggressive
	}
	return AINone
}

// EntitySpec 由模板生成实体时的参数
type EntitySpec struct {
	ID           string
	Name         string
	Faction      string
	Stats        map[string]float64
	Skills       []string
	AIType       string
	Illustration string
}

// CreateFromEntity 由模板创建战斗单位
func (r *Registry) CreateFromEntity(spec EntitySpec) *Combatant {
	values := make(map[string]int, len(spec.Stats))
	for k, v := range spec.Stats {
		values[k] = int(math.Floor(v))
	}
	var stats Stats
	stats.Apply(values)
	if _, ok := spec.Stats["baseInitiative"]; !ok {
		stats.BaseInitiative = BaseInitiative(stats.Agility)
	}
	if _, ok := spec.Stats["maxHp"]; !ok {
		stats.MaxHP = stats.HP
	}

	c := &Combatant{
		ID:           spec.ID,
		Name:         spec.Name,
		Faction:      spec.Faction,
		Stats:        stats,
		Skills:       append([]string(nil), spec.Skills...),
		Illustration: spec.Illustration,
		AI:           ParseAIType(spec.AIType),
	}
	r.Add(c)
	return c
}

// ScaleStats 等级成长：base + growth*(level-1)，仅对两边都有的键
func ScaleStats(base, growth map[string]float64, level int) map[string]float64 {
	out := make(map[string]float64, len(base))
	for k, v := range base {
		out[k] = v
		if g, ok := growth[k]; ok && level > 1 {
			out[k] = v + g*float64(level-1)
		}
	}
	return out
}

// Add 登记战斗单位；同ID覆盖但保留原顺序
func (r *Registry) Add(c *Combatant) {
	if _, ok := r.combatants[c.ID]; !ok {
		r.order = append(r.order, c.ID)
	}
	r.combatants[c.ID] = c
}

func (r *Registry) Get(id string) (*Combatant, bool) {
	c, ok := r.combatants[id]
	return c, ok
}

// Update 部分更新
func (r *Registry) Update(id string, u Update) (*Combatant, bool) {
	c, ok := r.combatants[id]
	if !ok {
		return nil, false
	}
	if u.Name != nil {
		c.Name = *u.Name
	}
	if u.Faction != nil {
		c.Faction = *u.Faction
	}
	if u.Stats != nil {
		c.Stats.Apply(u.Stats)
	}
	if u.Status != nil {
		c.Status = *u.Status
	}
	if u.Skills != nil {
		c.Skills = append([]string(nil), u.Skills...)
	}
	return c, true
}

// All 按插入顺序返回
func (r *Registry) All() []*Combatant {
	out := make([]*Combatant, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.combatants[id])
	}
	return out
}

// ByFaction 某阵营的全部单位
func (r *Registry) ByFaction(faction string) []*Combatant {
	var out []*Combatant
	for _, c := range r.All() {
		if c.Faction == faction {
			out = append(out, c)
		}
	}
	return out
}

func (r *Registry) Clear() {
	r.combatants = make(map[string]*Combatant)
	r.order = nil
}

func (r *Registry) Len() int {
	return len(r.order)
}

// factionsInOrder 按首次出现顺序列出阵营
func (r *Registry) factionsInOrder() []string {
	seen := make(map[string]bool)
	var out []string
	for _, c := range r.All() {
		if !seen[c.Faction] {
			seen[c.Faction] = true
			out = append(out, c.Faction)
		}
	}
	return out
}
