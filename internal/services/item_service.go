package services

import (
	"errors"
	"fmt"
	"log"

	"github.com/aiwuxian/apocalypse/internal/models"
	"github.com/aiwuxian/apocalypse/internal/tags"
)

// 物品类型
const (
	ItemConsumable = "consumable"
	ItemEquipment  = "equipment"

	inventoryRoot = "物品"
	equipmentRoot = "装备"
)

// EquipmentSlots 装备槽位
var EquipmentSlots = []string{"头部", "身体", "武器"}

var (
	ErrInsufficientItems = errors.New("物品数量不足")
	ErrNotConsumable     = errors.New("该物品不是消耗品")
	ErrNotEquipment      = errors.New("该物品不是装备")
	ErrEmptySlot         = errors.New("装备槽为空")
)

// ItemService 玩家物品栏与装备
type ItemService struct {
	chars   *CharacterService
	effects *EffectService
	config  models.TagsConfig
}

func NewItemService(chars *CharacterService, effects *EffectService, config models.TagsConfig) *ItemService {
	return &ItemService{chars: chars, effects: effects, config: config}
}

func itemPath(name string) string {
	return inventoryRoot + "." + name
}

func slotPath(slot string) string {
	return equipmentRoot + "." + slot
}

// Config 物品配置：先查物品分类，再跨分类查找
func (is *ItemService) Config(name string) (models.TagConfig, bool) {
	if group, ok := is.config[inventoryRoot]; ok {
		if cfg, ok := group[name]; ok {
			return cfg, true
		}
	}
	return is.config.Lookup(name)
}

// Count 物品数量
func (is *ItemService) Count(name string) int {
	v := is.chars.PlayerTag(itemPath(name))
	if !v.IsNum {
		return 0
	}
	return int(v.Num)
}

// Inventory 数量大于0的物品
func (is *ItemService) Inventory() map[string]int {
	out := make(map[string]int)
	for _, name := range is.chars.Children(tags.PlayerID, inventoryRoot) {
		if n := is.Count(name); n > 0 {
			out[name] = n
		}
	}
	return out
}

// Add 增加物品
func (is *ItemService) Add(name string, amount int) {
	is.chars.SetPlayerTag(itemPath(name), models.Number(float64(amount)))
}

// Remove 减少物品；数量不足时不变
func (is *ItemService) Remove(name string, amount int) error {
	if is.Count(name) < amount {
		return fmt.Errorf("%w: %s", ErrInsufficientItems, name)
	}
	is.chars.SetPlayerTag(itemPath(name), models.Number(-float64(amount)))
	return nil
}

// UseConsumable 应用效果并消耗一个
func (is *ItemService) UseConsumable(name string) error {
	cfg, ok := is.Config(name)
	if !ok || cfg.Type != ItemConsumable {
		return fmt.Errorf("%w: %s", ErrNotConsumable, name)
	}
	if is.Count(name) < 1 {
		return fmt.Errorf("%w: %s", ErrInsufficientItems, name)
	}
	is.effects.ApplyAll(cfg.Effects.List)
	is.effects.ApplyDeltas(cfg.Effects.Deltas, 1)
	log.Printf("🎒 [物品] 使用 %s", name)
	return is.Remove(name, 1)
}

// Equip 装备到对应槽位；槽位已有装备时先卸下
func (is *ItemService) Equip(name string) error {
	cfg, ok := is.Config(name)
	if !ok || cfg.Type != ItemEquipment || cfg.Slot == "" {
		return fmt.Errorf("%w: %s", ErrNotEquipment, name)
	}
	if is.Count(name) < 1 {
		return fmt.Errorf("%w: %s", ErrInsufficientItems, name)
	}
	if current := is.chars.PlayerTag(slotPath(cfg.Slot)).String(); current != "" {
		if err := is.Unequip(cfg.Slot); err != nil {
			return err
		}
	}
	is.chars.SetPlayerTag(slotPath(cfg.Slot), models.String(name))
	is.effects.ApplyDeltas(cfg.Effects.Deltas, 1)
	if len(cfg.Effects.List) > 0 {
		log.Printf("⚠️ [物品] 装备 %s 的效果列表无法撤销，已忽略", name)
	}
	log.Printf("🎒 [物品] 装备 %s -> %s", name, cfg.Slot)
	return is.Remove(name, 1)
}

// Unequip 卸下装备，撤销效果并放回物品栏
func (is *ItemService) Unequip(slot string) error {
	name := is.chars.PlayerTag(slotPath(slot)).String()
	if name == "" {
		return fmt.Errorf("%w: %s", ErrEmptySlot, slot)
	}
	if cfg, ok := is.Config(name); ok {
		is.effects.ApplyDeltas(cfg.Effects.Deltas, -1)
	}
	is.Add(name, 1)
	is.chars.SetPlayerTag(slotPath(slot), models.String(""))
	log.Printf("🎒 [物品] 卸下 %s（%s）", name, slot)
	return nil
}

// Equipped 已装备的物品：槽位 -> 物品名
func (is *ItemService) Equipped() map[string]string {
	out := make(map[string]string)
	for _, slot := range EquipmentSlots {
		if name := is.chars.PlayerTag(slotPath(slot)).String(); name != "" {
			out[slot] = name
		}
	}
	return out
}
