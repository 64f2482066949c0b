package services

import (
	"sort"

	"github.com/aiwuxian/apocalypse/internal/models"
	"github.com/aiwuxian/apocalypse/internal/tags"
)

// 关系立场
const (
	StanceFriendly = "友好"
	StanceNeutral  = "中立"
	StanceHostile  = "敌对"

	friendlyThreshold = 50
	hostileThreshold  = -50
)

// 玩家标签路径
const (
	TagCurrentLocation = "位置.当前地点"
	TagTargetLocation  = "位置.目标地点"
	TagInteractTarget  = "目标.交互角色"
	TagTalkTarget      = "目标.交谈角色"
	TagSearchTarget    = "目标.寻找角色"
	TagLocationPanel   = "系统.地点面板"

	DefaultLocation = "复苏队基地"
	PanelUnlocked   = "已解锁"
)

// DefaultTags 角色没有配置标签时使用的初始标签
func DefaultTags() map[string]any {
	return map[string]any{
		"状态": map[string]any{"生命值": 100.0, "熵减抗性": 0.0, "精力": 100.0, "快乐": 50.0},
		"位置": map[string]any{"当前地点": DefaultLocation, "目标地点": ""},
		"装备": map[string]any{"头部": "", "身体": "", "武器": ""},
		"物品": map[string]any{},
		"属性": map[string]any{},
		"技能": map[string]any{},
	}
}

// CharacterService 角色名册、关系与标签访问
type CharacterService struct {
	tags       *tags.Store
	characters map[string]*models.Character
}

func NewCharacterService(store *tags.Store) *CharacterService {
	return &CharacterService{
		tags:       store,
		characters: make(map[string]*models.Character),
	}
}

// Load 载入角色名册并初始化每个角色的标签
func (cs *CharacterService) Load(chars map[string]models.Character, playerDefaults map[string]any, tagsConfig models.TagsConfig) {
	cs.characters = make(map[string]*models.Character, len(chars)+1)
	for id, c := range chars {
		cs.tags.Init(id, initialTags(id, c.Tags, playerDefaults, tagsConfig))
		c := copyCharacter(c)
		c.ID = id
		cs.characters[id] = &c
	}
	if _, ok := cs.characters[tags.PlayerID]; !ok {
		player := models.Character{ID: tags.PlayerID, Name: "你", Faction: "玩家"}
		cs.characters[tags.PlayerID] = &player
		cs.tags.Init(tags.PlayerID, initialTags(tags.PlayerID, nil, playerDefaults, tagsConfig))
	}
}

func initialTags(id string, own, playerDefaults map[string]any, tagsConfig models.TagsConfig) map[string]any {
	var base map[string]any
	switch {
	case len(own) > 0:
		base = own
	case id == tags.PlayerID && len(playerDefaults) > 0:
		base = playerDefaults
	case id == tags.PlayerID && len(tagsConfig) > 0:
		base = defaultsFromConfig(tagsConfig)
	default:
		return DefaultTags()
	}
	if _, ok := base["位置"]; !ok {
		merged := make(map[string]any, len(base)+1)
		for k, v := range base {
			merged[k] = v
		}
		merged["位置"] = DefaultTags()["位置"]
		base = merged
	}
	return base
}

// 标签配置中带 defaultValue 的条目
func defaultsFromConfig(tc models.TagsConfig) map[string]any {
	out := make(map[string]any, len(tc))
	for category, group := range tc {
		sub := make(map[string]any)
		for name, cfg := range group {
			if cfg.DefaultValue != nil {
				sub[name] = cfg.DefaultValue
			}
		}
		out[category] = sub
	}
	return out
}

func copyCharacter(c models.Character) models.Character {
	if c.Relationships != nil {
		rels := make(map[string]models.Relationship, len(c.Relationships))
		for k, v := range c.Relationships {
			rels[k] = v
		}
		c.Relationships = rels
	}
	c.Tags = nil
	return c
}

// Character 获取角色
func (cs *CharacterService) Character(id string) (*models.Character, bool) {
	c, ok := cs.characters[id]
	return c, ok
}

// Characters 所有角色（按ID排序）
func (cs *CharacterService) Characters() []*models.Character {
	ids := make([]string, 0, len(cs.characters))
	for id := range cs.characters {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]*models.Character, len(ids))
	for i, id := range ids {
		out[i] = cs.characters[id]
	}
	return out
}

// CharactersAt 当前位于某地点的角色
func (cs *CharacterService) CharactersAt(location string) []*models.Character {
	var out []*models.Character
	for _, c := range cs.Characters() {
		if cs.tags.Get(c.ID, TagCurrentLocation).String() == location {
			out = append(out, c)
		}
	}
	return out
}

// Tag 读取角色标签
func (cs *CharacterService) Tag(characterID, path string) models.TagValue {
	return cs.tags.Get(characterID, path)
}

// Set 写入角色标签
func (cs *CharacterService) Set(characterID, path string, v models.TagValue) {
	cs.tags.Set(characterID, path, v)
}

// Children 标签子树下的直接子节点
func (cs *CharacterService) Children(characterID, path string) []string {
	return cs.tags.Children(characterID, path)
}

// PlayerTag 读取玩家标签
func (cs *CharacterService) PlayerTag(path string) models.TagValue {
	return cs.tags.Get(tags.PlayerID, path)
}

// SetPlayerTag 写入玩家标签
func (cs *CharacterService) SetPlayerTag(path string, v models.TagValue) {
	cs.tags.Set(tags.PlayerID, path, v)
}

// Store 底层标签存储
func (cs *CharacterService) Store() *tags.Store {
	return cs.tags
}

// Relationship from 对 to 的关系；没有记录时为中立
func (cs *CharacterService) Relationship(from, to string) models.Relationship {
	if c, ok := cs.characters[from]; ok {
		if rel, ok := c.Relationships[to]; ok {
			if rel.Stance == "" {
				rel.Stance = StanceNeutral
			}
			return rel
		}
	}
	return models.Relationship{Stance: StanceNeutral}
}

// UpdateRelationship 叠加好感度与信任度，并按好感度更新立场
func (cs *CharacterService) UpdateRelationship(from, to string, affinity, trust float64) (models.Relationship, bool) {
	c, ok := cs.characters[from]
	if !ok {
		return models.Relationship{}, false
	}
	rel := cs.Relationship(from, to)
	rel.Affinity += affinity
	rel.Trust += trust
	switch {
	case rel.Affinity >= friendlyThreshold:
		rel.Stance = StanceFriendly
	case rel.Affinity <= hostileThreshold:
		rel.Stance = StanceHostile
	}
	if c.Relationships == nil {
		c.Relationships = make(map[string]models.Relationship)
	}
	c.Relationships[to] = rel
	return rel, true
}

// PlayerRelationships 其他角色对玩家的关系
func (cs *CharacterService) PlayerRelationships() map[string]models.Relationship {
	out := make(map[string]models.Relationship)
	for _, c := range cs.Characters() {
		if c.ID == tags.PlayerID {
			continue
		}
		out[c.ID] = cs.Relationship(c.ID, tags.PlayerID)
	}
	return out
}

// Snapshot 名册副本（标签由标签存储单独保存）
func (cs *CharacterService) Snapshot() map[string]models.Character {
	out := make(map[string]models.Character, len(cs.characters))
	for id, c := range cs.characters {
		out[id] = copyCharacter(*c)
	}
	return out
}

// Restore 整体替换名册
func (cs *CharacterService) Restore(chars map[string]models.Character) {
	cs.characters = make(map[string]*models.Character, len(chars))
	for id, c := range chars {
		c := copyCharacter(c)
		c.ID = id
		cs.characters[id] = &c
	}
}
