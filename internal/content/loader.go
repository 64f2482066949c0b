// Package content 读取只读的游戏内容目录（卡牌、角色、标签配置、遭遇、地点）
package content

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path"
	"sort"

	"github.com/aiwuxian/apocalypse/internal/models"
)

// DefaultCardSet 未指定卡包的卡牌归入基础卡包
const DefaultCardSet = "基础"

var (
	ErrEncounterNotFound = errors.New("遭遇配置不存在")
	ErrEntityNotFound    = errors.New("战斗实体不存在")
)

// Bundle 一份加载完成的内容，多个会话共享，加载后不再修改
type Bundle struct {
	CardSets   map[string][]models.Card
	SetOrder   []string
	Categories []models.CardSetCategory
	Characters map[string]models.Character
	PlayerTags map[string]any
	TagsConfig models.TagsConfig
	Locations  map[string]models.Location
	Factions   []models.FactionRelation

	encounters map[string]*models.CombatConfig
	entities   map[string]*models.EntityData
}

// Load 从目录加载
func Load(dir string) (*Bundle, error) {
	b, err := LoadFS(os.DirFS(dir))
	if err != nil {
		return nil, fmt.Errorf("加载内容目录 %s 失败: %w", dir, err)
	}
	return b, nil
}

// LoadFS 从文件系统加载；除 characters.json 外的文件均可缺省
func LoadFS(fsys fs.FS) (*Bundle, error) {
	b := &Bundle{
		CardSets:   make(map[string][]models.Card),
		Characters: make(map[string]models.Character),
		Locations:  make(map[string]models.Location),
		encounters: make(map[string]*models.CombatConfig),
		entities:   make(map[string]*models.EntityData),
	}

	if err := b.loadCards(fsys); err != nil {
		return nil, err
	}
	if err := b.loadCharacters(fsys); err != nil {
		return nil, err
	}
	if _, err := readOptional(fsys, "cardSets.json", &b.Categories); err != nil {
		return nil, err
	}
	if _, err := readOptional(fsys, "playerTags.json", &b.PlayerTags); err != nil {
		return nil, err
	}
	if _, err := readOptional(fsys, "tagsConfig.json", &b.TagsConfig); err != nil {
		return nil, err
	}
	if err := b.loadLocations(fsys); err != nil {
		return nil, err
	}
	if _, err := readOptional(fsys, "factions.json", &b.Factions); err != nil {
		return nil, err
	}
	if err := b.loadEncounters(fsys); err != nil {
		return nil, err
	}
	if err := b.loadEntities(fsys); err != nil {
		return nil, err
	}

	log.Printf("📦 内容加载完成: %d 个卡包, %d 个角色, %d 个地点, %d 个遭遇",
		len(b.CardSets), len(b.Characters), len(b.Locations), len(b.encounters))
	return b, nil
}

func readOptional(fsys fs.FS, name string, v any) (bool, error) {
	data, err := fs.ReadFile(fsys, name)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("读取 %s 失败: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("解析 %s 失败: %w", name, err)
	}
	return true, nil
}

// 目录下所有 .json 文件，按文件名排序
func jsonFiles(fsys fs.FS, dir string) ([]string, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("读取目录 %s 失败: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && path.Ext(e.Name()) == ".json" {
			names = append(names, path.Join(dir, e.Name()))
		}
	}
	sort.Strings(names)
	return names, nil
}

func (b *Bundle) loadCards(fsys fs.FS) error {
	files, err := jsonFiles(fsys, "cards")
	if err != nil {
		return err
	}
	files = append([]string{"cards.json"}, files...)

	seen := make(map[string]string)
	for _, name := range files {
		var cards []models.Card
		found, err := readOptional(fsys, name, &cards)
		if err != nil {
			return err
		}
		if !found {
			continue
		}
		for _, card := range cards {
			if card.ID == "" {
				return fmt.Errorf("%s 中存在缺少ID的卡牌: %s", name, card.Name)
			}
			if prev, dup := seen[card.ID]; dup {
				return fmt.Errorf("卡牌ID重复: %s（%s 与 %s）", card.ID, prev, name)
			}
			seen[card.ID] = name
			if card.CardSet == "" {
				card.CardSet = DefaultCardSet
			}
			if _, ok := b.CardSets[card.CardSet]; !ok {
				b.SetOrder = append(b.SetOrder, card.CardSet)
			}
			b.CardSets[card.CardSet] = append(b.CardSets[card.CardSet], card)
		}
	}
	return nil
}

func (b *Bundle) loadCharacters(fsys fs.FS) error {
	var chars map[string]models.Character
	found, err := readOptional(fsys, "characters.json", &chars)
	if err != nil {
		return err
	}
	if !found {
		return errors.New("缺少 characters.json")
	}
	for id, c := range chars {
		c.ID = id
		b.Characters[id] = c
	}
	return nil
}

func (b *Bundle) loadLocations(fsys fs.FS) error {
	var locations map[string]models.Location
	if _, err := readOptional(fsys, "locations.json", &locations); err != nil {
		return err
	}
	for id, loc := range locations {
		loc.ID = id
		b.Locations[id] = loc
	}
	for id, loc := range b.Locations {
		for _, to := range loc.Connections {
			if _, ok := b.Locations[to]; !ok {
				log.Printf("⚠️ 地点 %s 连接到未知地点 %s", id, to)
			}
		}
	}
	return nil
}

func (b *Bundle) loadEncounters(fsys fs.FS) error {
	files, err := jsonFiles(fsys, "combats")
	if err != nil {
		return err
	}
	for _, name := range files {
		var configs []models.CombatConfig
		if _, err := readOptional(fsys, name, &configs); err != nil {
			return err
		}
		for i := range configs {
			cfg := configs[i]
			if cfg.ID == "" {
				return fmt.Errorf("%s 中存在缺少ID的遭遇", name)
			}
			b.encounters[cfg.ID] = &cfg
		}
	}
	return nil
}

func (b *Bundle) loadEntities(fsys fs.FS) error {
	files, err := jsonFiles(fsys, "entities")
	if err != nil {
		return err
	}
	for _, name := range files {
		var entities []models.EntityData
		if _, err := readOptional(fsys, name, &entities); err != nil {
			return err
		}
		for i := range entities {
			ent := entities[i]
			if ent.ID == "" {
				return fmt.Errorf("%s 中存在缺少ID的战斗实体", name)
			}
			if ent.Faction == "" {
				return fmt.Errorf("战斗实体 %s 缺少阵营", ent.ID)
			}
			b.entities[ent.ID] = &ent
		}
	}
	for id, cfg := range b.encounters {
		for _, p := range cfg.Participants {
			if _, ok := b.entities[p.EntityID]; !ok {
				log.Printf("⚠️ 遭遇 %s 引用了未知实体 %s", id, p.EntityID)
			}
		}
	}
	return nil
}

// Encounter 按ID查找遭遇配置
func (b *Bundle) Encounter(_ context.Context, id string) (*models.CombatConfig, error) {
	cfg, ok := b.encounters[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEncounterNotFound, id)
	}
	return cfg, nil
}

// Entity 按ID查找实体模板
func (b *Bundle) Entity(_ context.Context, id string) (*models.EntityData, error) {
	ent, ok := b.entities[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEntityNotFound, id)
	}
	return ent, nil
}

// DefaultCardSets 默认启用的卡包：标记为默认的分类中的卡包；没有分类文件时启用全部
func (b *Bundle) DefaultCardSets() []string {
	if len(b.Categories) == 0 {
		return append([]string(nil), b.SetOrder...)
	}
	var out []string
	seen := make(map[string]bool)
	for _, cat := range b.Categories {
		if !cat.Default {
			continue
		}
		for _, s := range cat.Sets {
			if !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
	}
	return out
}

// CharacterIDs 所有角色ID（排序）
func (b *Bundle) CharacterIDs() []string {
	ids := make([]string, 0, len(b.Characters))
	for id := range b.Characters {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
