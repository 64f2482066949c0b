package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Card 卡牌
type Card struct {
	ID               string            `json:"id"`
	Name             string            `json:"name"`
	Type             string            `json:"type"`    // event, location, character, etc.
	CardSet          string            `json:"cardSet"` // 所属卡包
	Description      string            `json:"description"`
	RequireTags      map[string]string `json:"requireTags,omitempty"`
	BaseWeight       float64           `json:"baseWeight"`
	MustDraw         bool              `json:"mustDraw,omitempty"`
	Priority         int               `json:"priority,omitempty"`
	TimeConsumption  *int              `json:"timeConsumption,omitempty"` // 为空时使用默认值
	DateRestrictions *DateRestrictions `json:"dateRestrictions,omitempty"`
	Choices          []Choice          `json:"choices"`
}

// DateRestrictions 日期限制（闭区间，YYYY-MM-DD）
type DateRestrictions struct {
	After   string    `json:"after,omitempty"`
	Before  string    `json:"before,omitempty"`
	Between [2]string `json:"between,omitempty"`
}

// HasBetween 是否设置了区间限制
func (d *DateRestrictions) HasBetween() bool {
	return d.Between[0] != "" && d.Between[1] != ""
}

// Choice 卡牌选项
type Choice struct {
	Text             string            `json:"text"`
	Description      string            `json:"description,omitempty"`
	Effects          []string          `json:"effects,omitempty"`
	RequireTags      map[string]string `json:"requireTags,omitempty"`
	SpecialMechanism string            `json:"specialMechanism,omitempty"`
	ConsumeCard      bool              `json:"consumeCard,omitempty"`
	DisabledDisplay  string            `json:"disabledDisplay,omitempty"` // 不可选时显示的文字
}

// Character 角色
type Character struct {
	ID            string                  `json:"id"`
	Name          string                  `json:"name"`
	Title         string                  `json:"title,omitempty"`
	Faction       string                  `json:"faction,omitempty"`
	Description   string                  `json:"description,omitempty"`
	AttackEnding  string                  `json:"attackEnding,omitempty"` // 攻击该角色时解锁的结局
	Tags          map[string]any          `json:"tags,omitempty"`
	Relationships map[string]Relationship `json:"relationships,omitempty"`
}

// Relationship 角色之间的关系（有向）
type Relationship struct {
	Affinity float64 `json:"好感度"`
	Trust    float64 `json:"信任度"`
	Stance   string  `json:"立场"` // 友好、中立、敌对
}

// TagConfig 标签配置
type TagConfig struct {
	Color        string      `json:"color,omitempty"`
	Priority     int         `json:"priority,omitempty"`
	Description  string      `json:"description,omitempty"`
	Type         string      `json:"type,omitempty"` // consumable, equipment
	DefaultValue any         `json:"defaultValue,omitempty"`
	Effects      ItemEffects `json:"effects,omitempty"`
	Slot         string      `json:"slot,omitempty"` // 装备槽位
}

// TagsConfig 分类 -> 标签名 -> 配置
type TagsConfig map[string]map[string]TagConfig

// Lookup 按标签名查找配置（跨分类）
func (tc TagsConfig) Lookup(name string) (TagConfig, bool) {
	for _, group := range tc {
		if cfg, ok := group[name]; ok {
			return cfg, true
		}
	}
	return TagConfig{}, false
}

// ItemEffects 物品效果：效果字符串列表或 {路径: 数值} 映射
type ItemEffects struct {
	List   []string
	Deltas map[string]float64
}

func (e ItemEffects) MarshalJSON() ([]byte, error) {
	if e.Deltas != nil {
		return json.Marshal(e.Deltas)
	}
	if e.List != nil {
		return json.Marshal(e.List)
	}
	return []byte("null"), nil
}

func (e *ItemEffects) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	if len(data) > 0 && data[0] == '[' {
		return json.Unmarshal(data, &e.List)
	}
	if len(data) > 0 && data[0] == '{' {
		return json.Unmarshal(data, &e.Deltas)
	}
	return fmt.Errorf("无法解析物品效果: %s", string(data))
}

// Countdown 倒计时
type Countdown struct {
	Name string    `json:"name"`
	Date time.Time `json:"date"`
}

// Location 地点
type Location struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Connections []string           `json:"connections"`
	Tags        map[string]float64 `json:"tags,omitempty"` // 熵减程度、复苏程度
}

// CardSetCategory 卡包分类
type CardSetCategory struct {
	Category string   `json:"category"`
	Sets     []string `json:"sets"`
	Default  bool     `json:"default"`
}

// CombatConfig 遭遇战配置
type CombatConfig struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	Description  string           `json:"description"`
	Location     string           `json:"location"`
	Participants []CombatEntrySet `json:"participants"`
}

// CombatEntrySet 遭遇中的一组实体
type CombatEntrySet struct {
	EntityID string `json:"entityId"`
	Count    int    `json:"count"`
	Level    int    `json:"level"`
}

// EntityData 战斗实体模板
type EntityData struct {
	ID           string             `json:"id"`
	Name         string             `json:"name"`
	Faction      string             `json:"faction"`
	Description  string             `json:"description,omitempty"`
	Illustration string             `json:"illustration,omitempty"`
	BaseStats    map[string]float64 `json:"baseStats"`
	LevelGrowth  map[string]float64 `json:"levelGrowth,omitempty"`
	Skills       []string           `json:"skills,omitempty"`
	AIType       string             `json:"aiType,omitempty"` // aggressive, defensive, support
}

// FactionRelation 阵营关系
type FactionRelation struct {
	Faction1 string `json:"faction1"`
	Faction2 string `json:"faction2"`
	Relation string `json:"relation"` // friendly, hostile, neutral
}

// SaveData 存档内容
type SaveData struct {
	Tags          map[string]map[string]any `json:"tags"`
	Date          time.Time                 `json:"date"`
	DaysPassed    int                       `json:"daysPassed"`
	Countdowns    []Countdown               `json:"countdowns"`
	CurrentCard   *Card                     `json:"currentCard,omitempty"`
	ConsumedCards []string                  `json:"consumedCards"`
	EnabledSets   []string                  `json:"enabledSets,omitempty"`
	Characters    map[string]Character      `json:"characters"`
}

// SaveGame 存档槽位记录
type SaveGame struct {
	ID        string    `json:"id"`
	Owner     string    `json:"owner"`
	Slot      int       `json:"slot"`
	GameDate  time.Time `json:"game_date"`
	Data      SaveData  `json:"data"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SaveSlot 存档槽位概要
type SaveSlot struct {
	Slot      int       `json:"slot"`
	GameDate  time.Time `json:"game_date"`
	UpdatedAt time.Time `json:"updated_at"`
}
