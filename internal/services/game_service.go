package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/aiwuxian/apocalypse/internal/combat"
	"github.com/aiwuxian/apocalypse/internal/content"
	"github.com/aiwuxian/apocalypse/internal/models"
	"github.com/aiwuxian/apocalypse/internal/random"
	"github.com/aiwuxian/apocalypse/internal/tags"
	"github.com/google/uuid"
)

// 结局类型
const (
	EndingDeath        = "death"
	EndingBadHappiness = "bad_happiness"
	EndingBadEnergy    = "bad_energy"
	EndingGaokao       = "gaokao"
	EndingNormal       = "normal"
)

// FillerCardID 卡池为空时的填充卡
const FillerCardID = "empty"

var (
	ErrGameEnded         = errors.New("游戏已经结束")
	ErrNoCurrentCard     = errors.New("当前没有卡牌")
	ErrChoiceUnavailable = errors.New("该选项不可用")
)

// Ending 游戏结局
type Ending struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
}

// GameDeps 创建会话所需的依赖
type GameDeps struct {
	Bundle   *content.Bundle
	Config   models.GameConfig
	Rank     RankLookup
	Narrator Narrator
	Rand     *rand.Rand // 为空时按 Config.Seed 创建
}

// Game 一局游戏：持有所有核心组件的实例。非并发安全，由调用方串行访问。
type Game struct {
	ID string

	Tags    *tags.Store
	Chars   *CharacterService
	Dates   *DateService
	Eval    *ConditionEvaluator
	Cards   *CardService
	Effects *EffectService
	Text    *TextRenderer
	Combat  *combat.Engine
	Items   *ItemService
	World   *WorldService
	Events  *EventBus

	bundle   *content.Bundle
	config   models.GameConfig
	rank     RankLookup
	narrator Narrator
	seed     int64

	pending     *PendingSelection
	afterChoice func(ctx context.Context)
	ending      *Ending
	lastResult  string
	unsubscribe func()
}

func NewGame(deps GameDeps) (*Game, error) {
	if deps.Bundle == nil {
		return nil, errors.New("缺少游戏内容")
	}
	cfg := deps.Config
	cfg.ApplyDefaults()

	rng, seed := deps.Rand, int64(0)
	if rng == nil {
		var err error
		rng, seed, err = random.New(cfg.Seed)
		if err != nil {
			return nil, fmt.Errorf("创建随机数源失败: %w", err)
		}
	}

	store := tags.New()
	chars := NewCharacterService(store)
	dates, err := NewDateService(store, cfg)
	if err != nil {
		return nil, fmt.Errorf("初始化日期失败: %w", err)
	}
	eval := NewConditionEvaluator(chars)
	effects := NewEffectService(store)

	relations := deps.Bundle.Factions
	if len(relations) == 0 {
		relations = combat.DefaultFactionRelations()
	}
	engine := combat.NewEngine(chars, deps.Bundle, combat.NewFactionTable(relations), combat.NewDice(rng))

	g := &Game{
		ID:       uuid.New().String(),
		Tags:     store,
		Chars:    chars,
		Dates:    dates,
		Eval:     eval,
		Cards:    NewCardService(eval, dates, rng),
		Effects:  effects,
		Text:     NewTextRenderer(chars, engine),
		Combat:   engine,
		Items:    NewItemService(chars, effects, deps.Bundle.TagsConfig),
		World:    NewWorldService(chars, deps.Bundle.Locations),
		Events:   NewEventBus(),
		bundle:   deps.Bundle,
		config:   cfg,
		rank:     deps.Rank,
		narrator: deps.Narrator,
		seed:     seed,
	}
	for _, name := range deps.Bundle.SetOrder {
		g.Cards.RegisterSet(name, deps.Bundle.CardSets[name])
	}
	g.Cards.SetEnabled(deps.Bundle.DefaultCardSets())
	g.unsubscribe = store.Subscribe(g.onTagChange)
	return g, nil
}

func (g *Game) onTagChange(c tags.Change) {
	if c.Deleted {
		log.Printf("🏷️ [标签] %s %s: %s -> (删除)", c.CharacterID, c.Path, c.Old)
	} else {
		log.Printf("🏷️ [标签] %s %s: %s -> %s", c.CharacterID, c.Path, c.Old, c.New)
	}
	g.Events.Publish(EventTagChanged, c)
}

// Close 释放订阅
func (g *Game) Close() {
	if g.unsubscribe != nil {
		g.unsubscribe()
		g.unsubscribe = nil
	}
	g.Events.Close()
}

// Start 重置所有状态并抽第一张卡
func (g *Game) Start(ctx context.Context) error {
	if g.Combat.Active() {
		g.Combat.End()
	}
	g.Chars.Load(g.bundle.Characters, g.bundle.PlayerTags, g.bundle.TagsConfig)
	g.Dates.Reset()
	for _, c := range g.config.Countdowns {
		date, err := ParseDate(c.Date)
		if err != nil {
			return fmt.Errorf("倒计时 %s: %w", c.Name, err)
		}
		g.Dates.AddCountdown(c.Name, date)
	}
	if err := g.Cards.Reset(); err != nil {
		return fmt.Errorf("重置卡池失败: %w", err)
	}
	g.pending, g.afterChoice, g.ending, g.lastResult = nil, nil, nil, ""

	log.Printf("🎮 [游戏] %s 开始，日期 %s，种子 %d", g.ID, g.Dates.Current().Format(DateLayout), g.seed)
	return g.DrawNext(ctx)
}

// Ending 结局；游戏未结束时为 nil
func (g *Game) Ending() *Ending {
	return g.ending
}

// Pending 等待中的选择
func (g *Game) Pending() *PendingSelection {
	return g.pending
}

// LastResult 上一个选项的结果文本
func (g *Game) LastResult() string {
	return g.lastResult
}

func (g *Game) endGame(kind, message string) {
	if g.ending != nil {
		return
	}
	g.ending = &Ending{Type: kind, Message: message}
	log.Printf("🏁 [游戏] %s 结束: %s", g.ID, kind)
	g.Events.Publish(EventGameEnd, *g.ending)
}

func (g *Game) openSelection(p *PendingSelection) {
	g.pending = p
	g.Events.Publish(EventSelectionRequested, p.View())
}

// DrawNext 抽下一张卡；卡池为空时按配置跳过日期或给出填充卡
func (g *Game) DrawNext(ctx context.Context) error {
	if g.ending != nil {
		return nil
	}
	if card := g.Cards.Draw(); card != nil {
		g.Events.Publish(EventCardDrawn, card.ID)
		return nil
	}
	if g.config.EmptyPoolPolicy == models.EmptyPoolFiller {
		return g.fillerOrEnd(ctx)
	}
	return g.skipDays(ctx)
}

// 每次跳过一天重新抽卡，直到抽到卡或到达结束日期
func (g *Game) skipDays(ctx context.Context) error {
	for !g.Dates.AtEnd() {
		if err := ctx.Err(); err != nil {
			return err
		}
		g.Dates.Advance(1)
		if g.checkEnd() {
			return nil
		}
		if card := g.Cards.Draw(); card != nil {
			g.Events.Publish(EventCardDrawn, card.ID)
			return nil
		}
	}
	return g.Dispatch(ctx, string(MechGaokao), nil)
}

func (g *Game) fillerOrEnd(ctx context.Context) error {
	if g.Dates.AtEnd() {
		return g.Dispatch(ctx, string(MechGaokao), nil)
	}
	card := g.fillerCard(ctx)
	g.Cards.SetCurrent(card)
	g.Events.Publish(EventCardDrawn, card.ID)
	return nil
}

func (g *Game) fillerCard(ctx context.Context) *models.Card {
	description := "今天什么特别的事情都没有发生。"
	if g.narrator != nil {
		day := QuietDay{
			Date:     g.Dates.Current().Format(DateLayout),
			Location: g.Chars.PlayerTag(TagCurrentLocation).String(),
		}
		for _, leaf := range g.Tags.Leaves(tags.PlayerID, "状态") {
			day.Status = append(day.Status, fmt.Sprintf("%s: %s", leaf.Path, leaf.Value))
		}
		text, err := g.narrator.NarrateQuietDay(ctx, day)
		switch {
		case err == nil && text != "":
			description = text
		case err != nil && !errors.Is(err, ErrNarratorDisabled):
			log.Printf("⚠️ [叙述] %v", err)
		}
	}
	return &models.Card{
		ID:          FillerCardID,
		Name:        "平静的一天",
		Type:        "event",
		CardSet:     content.DefaultCardSet,
		Description: description,
		BaseWeight:  1,
		Choices: []models.Choice{{
			Text:        "继续",
			Description: "生活继续前进。",
		}},
	}
}

// Choose 选择当前卡牌的一个选项：效果、消耗、机制、推进日期、结局检查、抽下一张卡
func (g *Game) Choose(ctx context.Context, index int) (string, error) {
	if g.ending != nil {
		return "", ErrGameEnded
	}
	if g.pending != nil {
		return "", ErrSelectionPending
	}
	card := g.Cards.Current()
	if card == nil {
		return "", ErrNoCurrentCard
	}
	if !g.Cards.ChoiceAvailable(card, index) {
		return "", fmt.Errorf("%w: %d", ErrChoiceUnavailable, index)
	}
	choice := card.Choices[index]

	// 机制失败时回滚到选择之前的局面
	tagsBefore, lastBefore := g.Tags.SnapshotAll(), g.lastResult

	g.Effects.ApplyAll(choice.Effects)
	result := choice.Text
	if choice.Description != "" {
		result += "\n" + choice.Description
	}
	g.lastResult = g.Text.Render(result)

	if err := g.Dispatch(ctx, choice.SpecialMechanism, card); err != nil {
		log.Printf("⚠️ [游戏] 机制 %s 失败，回滚选项效果", choice.SpecialMechanism)
		g.Tags.Restore(tagsBefore)
		g.pending, g.ending, g.lastResult = nil, nil, lastBefore
		return "", fmt.Errorf("执行机制 %s 失败: %w", choice.SpecialMechanism, err)
	}
	if choice.ConsumeCard {
		g.Cards.Consume(card)
	}
	g.Cards.SetCurrent(nil)
	if g.ending != nil {
		return g.lastResult, nil
	}

	if g.pending != nil {
		g.afterChoice = func(ctx context.Context) {
			if err := g.finishChoice(ctx, card); err != nil {
				log.Printf("❌ [游戏] 继续流程失败: %v", err)
			}
		}
		return g.lastResult, nil
	}
	return g.lastResult, g.finishChoice(ctx, card)
}

func (g *Game) finishChoice(ctx context.Context, card *models.Card) error {
	if days := g.Dates.CardTimeConsumption(card); days > 0 {
		g.Dates.Advance(days)
	}
	if g.checkEnd() {
		return nil
	}
	return g.DrawNext(ctx)
}

// checkEnd 生命、死亡标记、快乐、精力的结局检查
func (g *Game) checkEnd() bool {
	if g.ending != nil {
		return true
	}
	if v := g.Chars.PlayerTag("状态.生命值"); v.IsNum && v.Num <= 0 {
		g.endGame(EndingDeath, "你死了...")
	} else if !g.Chars.PlayerTag("状态.死亡").IsEmpty() {
		g.endGame(EndingDeath, "你死了...")
	} else if v := g.Chars.PlayerTag("状态.快乐"); v.IsNum && v.Num <= 0 {
		g.endGame(EndingBadHappiness, "你失败了！快乐归零，道心破碎")
	} else if v := g.Chars.PlayerTag("状态.精力"); v.IsNum && v.Num <= 0 {
		g.endGame(EndingBadEnergy, "你失败了！精力耗尽，疲惫不堪")
	}
	return g.ending != nil
}

// ResolveSelection 回传选项，继续挂起的操作
func (g *Game) ResolveSelection(ctx context.Context, selectionID, optionID string) error {
	p := g.pending
	if p == nil {
		return ErrNoPendingSelection
	}
	if p.ID != selectionID || !p.Has(optionID) {
		return fmt.Errorf("%w: %s/%s", ErrInvalidSelection, selectionID, optionID)
	}
	g.pending = nil
	if err := p.Resolve(ctx, optionID); err != nil {
		return err
	}
	g.Events.Publish(EventSelectionResolved, map[string]string{"id": p.ID, "option": optionID})
	g.continueChoice(ctx)
	return nil
}

// CancelSelection 放弃挂起的操作并清理临时标签
func (g *Game) CancelSelection(ctx context.Context) error {
	p := g.pending
	if p == nil {
		return ErrNoPendingSelection
	}
	g.pending = nil
	p.Cancel()
	g.Events.Publish(EventSelectionCancelled, map[string]string{"id": p.ID})
	g.continueChoice(ctx)
	return nil
}

// 选择链结束后继续被挂起的选项流程
func (g *Game) continueChoice(ctx context.Context) {
	if g.pending != nil || g.afterChoice == nil {
		return
	}
	next := g.afterChoice
	g.afterChoice = nil
	next(ctx)
}

// SelectDestination 选择目的地；观察类卡牌随之跳过
func (g *Game) SelectDestination(ctx context.Context, location string) error {
	if g.ending != nil {
		return ErrGameEnded
	}
	skip, err := g.World.SelectDestination(location, g.Cards.Current())
	if err != nil {
		return err
	}
	if skip && g.pending == nil {
		return g.DrawNext(ctx)
	}
	return nil
}

// EnableCardSets 替换启用的卡包并重新加载卡池
func (g *Game) EnableCardSets(names []string) error {
	g.Cards.SetEnabled(names)
	return g.Cards.Load()
}

// CountdownView 倒计时展示
type CountdownView struct {
	Name          string `json:"name"`
	Date          string `json:"date"`
	DaysRemaining int    `json:"daysRemaining"`
}

// CardView 渲染后的卡牌
type CardView struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	CardSet     string        `json:"cardSet"`
	Description string        `json:"description"`
	Choices     []ChoiceState `json:"choices"`
}

// GameView 当前局面
type GameView struct {
	ID         string            `json:"id"`
	Date       string            `json:"date"`
	DaysLeft   int               `json:"daysLeft"`
	Countdowns []CountdownView   `json:"countdowns"`
	Card       *CardView         `json:"card,omitempty"`
	LastResult string            `json:"lastResult,omitempty"`
	Pending    *PendingSelection `json:"pending,omitempty"`
	Ending     *Ending           `json:"ending,omitempty"`
	Location   string            `json:"location"`
	InCombat   bool              `json:"inCombat"`
	PlayerTags map[string]any    `json:"playerTags"`
	Inventory  map[string]int    `json:"inventory"`
	Equipped   map[string]string `json:"equipped"`
}

// View 当前局面的只读视图
func (g *Game) View() GameView {
	v := GameView{
		ID:         g.ID,
		Date:       g.Dates.Current().Format(DateLayout),
		DaysLeft:   g.Dates.DaysLeft(),
		LastResult: g.lastResult,
		Pending:    g.pending,
		Ending:     g.ending,
		Location:   g.World.CurrentLocation(),
		InCombat:   g.Combat.Active(),
		PlayerTags: g.Tags.Snapshot(tags.PlayerID),
		Inventory:  g.Items.Inventory(),
		Equipped:   g.Items.Equipped(),
	}
	for _, c := range g.Dates.Countdowns() {
		v.Countdowns = append(v.Countdowns, CountdownView{
			Name:          c.Name,
			Date:          c.Date.Format(DateLayout),
			DaysRemaining: g.Dates.DaysRemaining(c),
		})
	}
	if card := g.Cards.Current(); card != nil {
		v.Card = &CardView{
			ID:          card.ID,
			Name:        card.Name,
			CardSet:     card.CardSet,
			Description: g.Text.Render(card.Description),
			Choices:     g.Cards.Choices(card),
		}
		for i := range v.Card.Choices {
			v.Card.Choices[i].Text = g.Text.Render(v.Card.Choices[i].Text)
		}
	}
	return v
}

// Date 当前游戏日期
func (g *Game) Date() time.Time {
	return g.Dates.Current()
}
