package services

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/aiwuxian/apocalypse/internal/models"
)

// recentHistorySize 最近抽到的卡牌记录长度
const recentHistorySize = 3

// 预编译的卡牌：日期窗口与标签要求只解析一次
type poolCard struct {
	card         *models.Card
	after        time.Time
	before       time.Time
	requirements []Requirement
	choiceReqs   [][]Requirement
}

func compileCard(card *models.Card) (*poolCard, error) {
	pc := &poolCard{
		card:         card,
		requirements: ParseRequirements(card.RequireTags),
		choiceReqs:   make([][]Requirement, len(card.Choices)),
	}
	for i, ch := range card.Choices {
		pc.choiceReqs[i] = ParseRequirements(ch.RequireTags)
	}

	dr := card.DateRestrictions
	if dr == nil {
		return pc, nil
	}
	var err error
	if dr.After != "" {
		if pc.after, err = ParseDate(dr.After); err != nil {
			return nil, err
		}
	}
	if dr.Before != "" {
		if pc.before, err = ParseDate(dr.Before); err != nil {
			return nil, err
		}
	}
	if dr.HasBetween() {
		lo, err := ParseDate(dr.Between[0])
		if err != nil {
			return nil, err
		}
		hi, err := ParseDate(dr.Between[1])
		if err != nil {
			return nil, err
		}
		// between 与 after/before 同时存在时取交集
		if pc.after.IsZero() || lo.After(pc.after) {
			pc.after = lo
		}
		if pc.before.IsZero() || hi.Before(pc.before) {
			pc.before = hi
		}
	}
	return pc, nil
}

func (pc *poolCard) inWindow(date time.Time) bool {
	if !pc.after.IsZero() && date.Before(pc.after) {
		return false
	}
	if !pc.before.IsZero() && date.After(pc.before) {
		return false
	}
	return true
}

func (pc *poolCard) weight() float64 {
	if pc.card.BaseWeight == 0 {
		return 1
	}
	return pc.card.BaseWeight
}

// CardService 卡池：按启用的卡包加载、筛选与加权抽卡
type CardService struct {
	eval  *ConditionEvaluator
	dates *DateService
	rng   *rand.Rand

	sets     map[string][]models.Card
	setOrder []string
	enabled  map[string]bool

	pool     []*poolCard
	byID     map[string]*poolCard
	consumed []string
	history  []string
	current  *models.Card
}

func NewCardService(eval *ConditionEvaluator, dates *DateService, rng *rand.Rand) *CardService {
	return &CardService{
		eval:    eval,
		dates:   dates,
		rng:     rng,
		sets:    make(map[string][]models.Card),
		enabled: make(map[string]bool),
		byID:    make(map[string]*poolCard),
	}
}

// RegisterSet 注册卡包内容；不会改变当前卡池
func (cs *CardService) RegisterSet(name string, cards []models.Card) {
	if _, ok := cs.sets[name]; !ok {
		cs.setOrder = append(cs.setOrder, name)
	}
	cs.sets[name] = cards
}

// Sets 已注册的卡包（注册顺序）
func (cs *CardService) Sets() []string {
	return append([]string(nil), cs.setOrder...)
}

// EnableSet 启用卡包，下次 Load 生效
func (cs *CardService) EnableSet(name string) bool {
	if _, ok := cs.sets[name]; !ok {
		return false
	}
	cs.enabled[name] = true
	return true
}

// SetEnabled 整体替换启用的卡包，忽略未注册的名字
func (cs *CardService) SetEnabled(names []string) {
	cs.enabled = make(map[string]bool, len(names))
	for _, n := range names {
		if !cs.EnableSet(n) {
			log.Printf("⚠️ [卡池] 未知卡包: %s", n)
		}
	}
}

// EnabledSets 启用的卡包（注册顺序）
func (cs *CardService) EnabledSets() []string {
	var out []string
	for _, n := range cs.setOrder {
		if cs.enabled[n] {
			out = append(out, n)
		}
	}
	return out
}

// Load 用所有启用卡包的并集替换卡池，已消耗的卡牌不会回到卡池
func (cs *CardService) Load() error {
	consumed := cs.consumedSet()
	pool := make([]*poolCard, 0)
	byID := make(map[string]*poolCard)
	for _, name := range cs.EnabledSets() {
		cards := cs.sets[name]
		for i := range cards {
			card := &cards[i]
			if consumed[card.ID] {
				continue
			}
			if _, dup := byID[card.ID]; dup {
				log.Printf("⚠️ [卡池] 卡牌 %s 在多个卡包中出现，忽略 %s 中的副本", card.ID, name)
				continue
			}
			pc, err := compileCard(card)
			if err != nil {
				return fmt.Errorf("加载卡牌 %s 失败: %w", card.ID, err)
			}
			pool = append(pool, pc)
			byID[card.ID] = pc
		}
	}
	cs.pool = pool
	cs.byID = byID
	log.Printf("🃏 [卡池] 已加载 %d 张卡牌（卡包: %v）", len(pool), cs.EnabledSets())
	return nil
}

func (cs *CardService) consumedSet() map[string]bool {
	m := make(map[string]bool, len(cs.consumed))
	for _, id := range cs.consumed {
		m[id] = true
	}
	return m
}

func (cs *CardService) dropConsumed() {
	if len(cs.consumed) == 0 {
		return
	}
	consumed := cs.consumedSet()
	kept := cs.pool[:0]
	for _, pc := range cs.pool {
		if consumed[pc.card.ID] {
			delete(cs.byID, pc.card.ID)
			continue
		}
		kept = append(kept, pc)
	}
	cs.pool = kept
}

func (cs *CardService) compiled(card *models.Card) *poolCard {
	if pc, ok := cs.byID[card.ID]; ok && pc.card == card {
		return pc
	}
	pc, err := compileCard(card)
	if err != nil {
		log.Printf("⚠️ [卡池] %v", err)
		return nil
	}
	return pc
}

// CanDraw 日期窗口与标签要求同时满足
func (cs *CardService) CanDraw(card *models.Card) bool {
	pc := cs.compiled(card)
	if pc == nil {
		return false
	}
	return cs.canDraw(pc)
}

func (cs *CardService) canDraw(pc *poolCard) bool {
	return pc.inWindow(cs.dates.Current()) && cs.eval.CheckAll(pc.requirements)
}

// Draw 抽一张卡；没有可抽的卡时返回 nil
func (cs *CardService) Draw() *models.Card {
	cs.dropConsumed()

	var eligible []*poolCard
	for _, pc := range cs.pool {
		if cs.canDraw(pc) {
			eligible = append(eligible, pc)
		}
	}
	if len(eligible) == 0 {
		cs.current = nil
		return nil
	}

	picked := mustDraw(eligible)
	if picked == nil {
		picked = cs.weightedPick(eligible)
	}
	if picked == nil {
		cs.current = nil
		return nil
	}
	cs.remember(picked.card.ID)
	cs.current = picked.card
	log.Printf("🃏 [卡池] 抽到 %s（可抽 %d 张）", picked.card.ID, len(eligible))
	return picked.card
}

// 必抽卡中按 (优先级, 权重) 取最大，相同时保持卡池顺序
func mustDraw(eligible []*poolCard) *poolCard {
	var best *poolCard
	for _, pc := range eligible {
		if !pc.card.MustDraw {
			continue
		}
		if best == nil ||
			pc.card.Priority > best.card.Priority ||
			(pc.card.Priority == best.card.Priority && pc.weight() > best.weight()) {
			best = pc
		}
	}
	return best
}

func (cs *CardService) weightedPick(eligible []*poolCard) *poolCard {
	total := 0.0
	for _, pc := range eligible {
		total += pc.weight()
	}
	r := cs.rng.Float64() * total
	for _, pc := range eligible {
		w := pc.weight()
		if r < w {
			return pc
		}
		r -= w
	}
	return nil
}

func (cs *CardService) remember(id string) {
	if len(cs.history) >= recentHistorySize {
		cs.history = cs.history[1:]
	}
	cs.history = append(cs.history, id)
}

// RecentDraws 最近抽到的卡牌ID（旧到新）
func (cs *CardService) RecentDraws() []string {
	return append([]string(nil), cs.history...)
}

// Consume 从卡池移除并永久记录
func (cs *CardService) Consume(card *models.Card) {
	for i, pc := range cs.pool {
		if pc.card.ID != card.ID {
			continue
		}
		cs.pool = append(cs.pool[:i], cs.pool[i+1:]...)
		delete(cs.byID, card.ID)
		cs.consumed = append(cs.consumed, card.ID)
		log.Printf("🃏 [卡池] %s 已消耗，剩余 %d 张", card.ID, len(cs.pool))
		return
	}
}

// ConsumedCards 已消耗的卡牌ID
func (cs *CardService) ConsumedCards() []string {
	return append([]string(nil), cs.consumed...)
}

// SetConsumedCards 替换已消耗列表并立即从卡池移除
func (cs *CardService) SetConsumedCards(ids []string) {
	cs.consumed = append([]string(nil), ids...)
	cs.dropConsumed()
}

// PoolSize 当前卡池大小
func (cs *CardService) PoolSize() int {
	return len(cs.pool)
}

// Lookup 按ID在已注册卡包中查找卡牌
func (cs *CardService) Lookup(id string) (*models.Card, bool) {
	if pc, ok := cs.byID[id]; ok {
		return pc.card, true
	}
	for _, name := range cs.setOrder {
		cards := cs.sets[name]
		for i := range cards {
			if cards[i].ID == id {
				return &cards[i], true
			}
		}
	}
	return nil, false
}

func (cs *CardService) Current() *models.Card {
	return cs.current
}

func (cs *CardService) SetCurrent(card *models.Card) {
	cs.current = card
}

// Reset 清空消耗与抽卡记录并重新加载
func (cs *CardService) Reset() error {
	cs.consumed = nil
	cs.history = nil
	cs.current = nil
	return cs.Load()
}

// ChoiceAvailable 选项的标签要求是否满足；越界时为 false
func (cs *CardService) ChoiceAvailable(card *models.Card, index int) bool {
	if card == nil || index < 0 || index >= len(card.Choices) {
		return false
	}
	pc := cs.compiled(card)
	if pc == nil {
		return false
	}
	return cs.eval.CheckAll(pc.choiceReqs[index])
}

// ChoiceState 选项的展示状态
type ChoiceState struct {
	Index       int    `json:"index"`
	Text        string `json:"text"`
	Available   bool   `json:"available"`
	DisplayText string `json:"displayText,omitempty"`
}

// Choices 可见的选项：不可用且没有 disabledDisplay 的选项隐藏
func (cs *CardService) Choices(card *models.Card) []ChoiceState {
	if card == nil {
		return nil
	}
	out := make([]ChoiceState, 0, len(card.Choices))
	for i, ch := range card.Choices {
		ok := cs.ChoiceAvailable(card, i)
		if !ok && ch.DisabledDisplay == "" {
			continue
		}
		st := ChoiceState{Index: i, Text: ch.Text, Available: ok}
		if !ok {
			st.DisplayText = ch.DisabledDisplay
		}
		out = append(out, st)
	}
	return out
}
