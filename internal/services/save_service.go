package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/aiwuxian/apocalypse/internal/combat"
	"github.com/aiwuxian/apocalypse/internal/models"
	"github.com/aiwuxian/apocalypse/internal/tags"
	"github.com/google/uuid"
)

var ErrInvalidSlot = errors.New("无效的存档槽位")

// SaveRepository 存档的持久化
type SaveRepository interface {
	UpsertSave(ctx context.Context, save *models.SaveGame) error
	GetSave(ctx context.Context, owner string, slot int) (*models.SaveGame, error)
	ListSaves(ctx context.Context, owner string) ([]models.SaveSlot, error)
	DeleteSave(ctx context.Context, owner string, slot int) error
}

// Snapshot 当前局面的存档数据；战斗状态不保存
func (g *Game) Snapshot() models.SaveData {
	data := models.SaveData{
		Tags:          g.Tags.SnapshotAll(),
		Date:          g.Dates.Current(),
		DaysPassed:    g.Dates.DaysPassed(),
		Countdowns:    g.Dates.Countdowns(),
		ConsumedCards: g.Cards.ConsumedCards(),
		EnabledSets:   g.Cards.EnabledSets(),
		Characters:    g.Chars.Snapshot(),
	}
	delete(data.Tags[tags.PlayerID], combat.TagRoot)
	if card := g.Cards.Current(); card != nil {
		c := *card
		data.CurrentCard = &c
	}
	return data
}

// Restore 用存档替换当前局面
func (g *Game) Restore(ctx context.Context, data models.SaveData) error {
	if g.Combat.Active() {
		g.Combat.End()
	}
	g.pending, g.afterChoice, g.ending, g.lastResult = nil, nil, nil, ""

	g.Chars.Restore(data.Characters)
	g.Tags.Restore(data.Tags)
	// 存档里残留的战斗标签没有对应的战斗
	g.Tags.Delete(tags.PlayerID, combat.TagRoot)
	g.Dates.Restore(data.Date, data.DaysPassed, data.Countdowns)
	if len(data.EnabledSets) > 0 {
		g.Cards.SetEnabled(data.EnabledSets)
	}
	g.Cards.SetConsumedCards(data.ConsumedCards)
	if err := g.Cards.Load(); err != nil {
		return fmt.Errorf("加载卡池失败: %w", err)
	}

	if data.CurrentCard != nil {
		g.Cards.SetCurrent(data.CurrentCard)
		return nil
	}
	if g.checkEnd() {
		return nil
	}
	return g.DrawNext(ctx)
}

// SaveService 存档槽位管理
type SaveService struct {
	repo  SaveRepository
	slots int
}

func NewSaveService(repo SaveRepository, slots int) *SaveService {
	return &SaveService{repo: repo, slots: slots}
}

func (ss *SaveService) checkSlot(slot int) error {
	if slot < 1 || slot > ss.slots {
		return fmt.Errorf("%w: %d（可用 1-%d）", ErrInvalidSlot, slot, ss.slots)
	}
	return nil
}

// Slots 槽位数量
func (ss *SaveService) Slots() int {
	return ss.slots
}

// Save 保存到槽位，已有存档时覆盖
func (ss *SaveService) Save(ctx context.Context, owner string, slot int, g *Game) (*models.SaveGame, error) {
	if err := ss.checkSlot(slot); err != nil {
		return nil, err
	}
	now := time.Now()
	save := &models.SaveGame{
		ID:        uuid.New().String(),
		Owner:     owner,
		Slot:      slot,
		GameDate:  g.Dates.Current(),
		Data:      g.Snapshot(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := ss.repo.UpsertSave(ctx, save); err != nil {
		return nil, fmt.Errorf("保存游戏失败: %w", err)
	}
	log.Printf("💾 [存档] %s 槽位 %d，游戏日期 %s", owner, slot, save.GameDate.Format(DateLayout))
	return save, nil
}

// Load 读取槽位并恢复到会话
func (ss *SaveService) Load(ctx context.Context, owner string, slot int, g *Game) error {
	if err := ss.checkSlot(slot); err != nil {
		return err
	}
	save, err := ss.repo.GetSave(ctx, owner, slot)
	if err != nil {
		return fmt.Errorf("读取存档失败: %w", err)
	}
	if err := g.Restore(ctx, save.Data); err != nil {
		return fmt.Errorf("恢复存档失败: %w", err)
	}
	log.Printf("💾 [存档] 读取 %s 槽位 %d", owner, slot)
	return nil
}

// List 已使用的槽位
func (ss *SaveService) List(ctx context.Context, owner string) ([]models.SaveSlot, error) {
	slots, err := ss.repo.ListSaves(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("获取存档列表失败: %w", err)
	}
	return slots, nil
}

// Delete 删除槽位
func (ss *SaveService) Delete(ctx context.Context, owner string, slot int) error {
	if err := ss.checkSlot(slot); err != nil {
		return err
	}
	if err := ss.repo.DeleteSave(ctx, owner, slot); err != nil {
		return fmt.Errorf("删除存档失败: %w", err)
	}
	return nil
}
