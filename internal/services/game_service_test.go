package services_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/aiwuxian/apocalypse/internal/combat"
	"github.com/aiwuxian/apocalypse/internal/content"
	"github.com/aiwuxian/apocalypse/internal/models"
	"github.com/aiwuxian/apocalypse/internal/random"
	"github.com/aiwuxian/apocalypse/internal/services"
	"github.com/aiwuxian/apocalypse/internal/services/mocks"
	"github.com/aiwuxian/apocalypse/internal/tags"
	"go.uber.org/mock/gomock"
)

const testCharacters = `{
	"player": {"name": "你", "faction": "玩家"},
	"suYuQing": {"name": "苏雨晴", "faction": "复苏队", "attackEnding": "冰河派",
		"tags": {"位置": {"当前地点": "复苏队基地"}}}
}`

func newTestGame(t *testing.T, cards string, cfg models.GameConfig, rank services.RankLookup, narrator services.Narrator) *services.Game {
	t.Helper()
	bundle, err := content.LoadFS(fstest.MapFS{
		"cards.json":      {Data: []byte(cards)},
		"characters.json": {Data: []byte(testCharacters)},
		"combats/patrol.json": {Data: []byte(`[
			{"id": "crystal_patrol", "name": "晶体巡逻队", "participants": [{"entityId": "crystal", "count": 1, "level": 1}]}
		]`)},
		"entities/crystal.json": {Data: []byte(`[
			{"id": "crystal", "name": "晶体生物", "faction": "晶体生物", "baseStats": {"hp": 500}, "aiType": "aggressive"}
		]`)},
	})
	if err != nil {
		t.Fatalf("LoadFS: %v", err)
	}
	if cfg.StartDate == "" {
		cfg.StartDate, cfg.EndDate = "2019-08-12", "2019-09-30"
	}
	rng, _, _ := random.New(99)
	g, err := services.NewGame(services.GameDeps{
		Bundle:   bundle,
		Config:   cfg,
		Rank:     rank,
		Narrator: narrator,
		Rand:     rng,
	})
	if err != nil {
		t.Fatalf("NewGame: %v", err)
	}
	t.Cleanup(g.Close)
	if err := g.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return g
}

const dailyCards = `[
	{"id": "morning", "name": "清晨", "description": "生命值{{tagValue:状态.生命值}}", "timeConsumption": 1,
	 "choices": [
		{"text": "起床", "description": "你起床了", "effects": ["状态.精力.-10"]},
		{"text": "摔倒", "effects": ["状态.生命值.-100"]},
		{"text": "发呆", "effects": ["状态.快乐.-50"]},
		{"text": "熬夜", "effects": ["状态.精力.-100"]},
		{"text": "离开", "specialMechanism": "gameOver"}
	 ]}
]`

func TestChooseAdvancesDateAndDraws(t *testing.T) {
	g := newTestGame(t, dailyCards, models.GameConfig{}, nil, nil)
	ctx := context.Background()

	view := g.View()
	if view.Card == nil || view.Card.ID != "morning" || view.Card.Description != "生命值100" {
		t.Fatalf("first card = %+v", view.Card)
	}

	result, err := g.Choose(ctx, 0)
	if err != nil {
		t.Fatalf("Choose: %v", err)
	}
	if result != "起床\n你起床了" {
		t.Errorf("result = %q", result)
	}
	if got := g.Chars.PlayerTag("状态.精力").String(); got != "90" {
		t.Errorf("精力 = %s, want 90", got)
	}
	if got := g.Date().Format(services.DateLayout); got != "2019-08-13" {
		t.Errorf("date = %s, want 2019-08-13", got)
	}
	if g.Cards.Current() == nil || g.Cards.Current().ID != "morning" {
		t.Error("next card not drawn")
	}

	if _, err := g.Choose(ctx, 9); !errors.Is(err, services.ErrChoiceUnavailable) {
		t.Errorf("err = %v, want ErrChoiceUnavailable", err)
	}
}

func TestEndings(t *testing.T) {
	tests := []struct {
		name   string
		choice int
		want   string
	}{
		{"生命值归零", 1, services.EndingDeath},
		{"快乐归零", 2, services.EndingBadHappiness},
		{"精力耗尽", 3, services.EndingBadEnergy},
		{"主动结束", 4, services.EndingNormal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newTestGame(t, dailyCards, models.GameConfig{}, nil, nil)
			events, cancel := g.Events.Subscribe()
			defer cancel()

			if _, err := g.Choose(context.Background(), tt.choice); err != nil {
				t.Fatalf("Choose: %v", err)
			}
			ending := g.Ending()
			if ending == nil || ending.Type != tt.want {
				t.Fatalf("ending = %+v, want %s", ending, tt.want)
			}
			if _, err := g.Choose(context.Background(), 0); !errors.Is(err, services.ErrGameEnded) {
				t.Errorf("err = %v, want ErrGameEnded", err)
			}

			found := false
			for len(events) > 0 {
				ev := <-events
				if ev.Type != services.EventGameEnd {
					continue
				}
				found = true
				// 事件携带副本，不与局面共享
				data, ok := ev.Data.(services.Ending)
				if !ok || data != *ending {
					t.Errorf("gameEnd data = %#v, want %+v", ev.Data, *ending)
				}
			}
			if !found {
				t.Error("gameEnd event not published")
			}
		})
	}
}

const onceCard = `[
	{"id": "once", "name": "唯一的事件", "timeConsumption": 1,
	 "choices": [{"text": "结束", "consumeCard": true}]}
]`

func TestEmptyPoolSkipsToGaokao(t *testing.T) {
	ctrl := gomock.NewController(t)
	rank := mocks.NewMockRankLookup(ctrl)
	rank.EXPECT().QueryRank(gomock.Any(), 0).Return(1234, nil)

	g := newTestGame(t, onceCard, models.GameConfig{StartDate: "2019-08-12", EndDate: "2019-08-20"}, rank, nil)
	if _, err := g.Choose(context.Background(), 0); err != nil {
		t.Fatalf("Choose: %v", err)
	}

	ending := g.Ending()
	if ending == nil || ending.Type != services.EndingGaokao {
		t.Fatalf("ending = %+v, want gaokao", ending)
	}
	if !strings.Contains(ending.Message, "排名：1234") || !strings.Contains(ending.Message, "总分：0") {
		t.Errorf("message = %s", ending.Message)
	}
	if got := g.Date().Format(services.DateLayout); got != "2019-08-20" {
		t.Errorf("date = %s, want end date", got)
	}
}

func TestGaokaoRankFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	rank := mocks.NewMockRankLookup(ctrl)
	rank.EXPECT().QueryRank(gomock.Any(), gomock.Any()).Return(services.RankNotFound, errors.New("table missing"))

	g := newTestGame(t, dailyCards, models.GameConfig{}, rank, nil)
	if err := g.Dispatch(context.Background(), string(services.MechGaokao), nil); err != nil {
		t.Fatal(err)
	}
	if e := g.Ending(); e == nil || !strings.Contains(e.Message, "排名：未找到") {
		t.Errorf("ending = %+v", e)
	}
}

func TestEmptyPoolFillerUsesNarrator(t *testing.T) {
	ctrl := gomock.NewController(t)
	narrator := mocks.NewMockNarrator(ctrl)
	gomock.InOrder(
		narrator.EXPECT().NarrateQuietDay(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, day services.QuietDay) (string, error) {
				if day.Location != services.DefaultLocation || day.Date != "2019-08-13" {
					t.Errorf("day = %+v", day)
				}
				return "风很轻。", nil
			}),
		narrator.EXPECT().NarrateQuietDay(gomock.Any(), gomock.Any()).Return("", errors.New("timeout")),
	)

	cfg := models.GameConfig{EmptyPoolPolicy: models.EmptyPoolFiller}
	g := newTestGame(t, onceCard, cfg, nil, narrator)
	ctx := context.Background()

	if _, err := g.Choose(ctx, 0); err != nil {
		t.Fatal(err)
	}
	card := g.Cards.Current()
	if card == nil || card.ID != services.FillerCardID || card.Description != "风很轻。" {
		t.Fatalf("filler = %+v", card)
	}

	result, err := g.Choose(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if result != "继续\n生活继续前进。" {
		t.Errorf("result = %q", result)
	}
	if got := g.Cards.Current().Description; got != "今天什么特别的事情都没有发生。" {
		t.Errorf("fallback description = %q", got)
	}
	if got := g.Date().Format(services.DateLayout); got != "2019-08-16" {
		t.Errorf("date = %s, want default consumption of 3 days", got)
	}
}

const searchCard = `[
	{"id": "search", "name": "寻人", "timeConsumption": 2,
	 "choices": [{"text": "四处看看", "specialMechanism": "findCharacter"}]}
]`

func TestPendingSelectionDefersFlow(t *testing.T) {
	g := newTestGame(t, searchCard, models.GameConfig{}, nil, nil)
	ctx := context.Background()
	events, cancel := g.Events.Subscribe()
	defer cancel()

	if _, err := g.Choose(ctx, 0); err != nil {
		t.Fatal(err)
	}
	p := g.Pending()
	if p == nil || p.Kind != services.SelectCharacter || len(p.Options) != 1 || p.Options[0].ID != "suYuQing" {
		t.Fatalf("pending = %+v", p)
	}
	var requested *services.SelectionView
	for len(events) > 0 {
		if ev := <-events; ev.Type == services.EventSelectionRequested {
			view, ok := ev.Data.(services.SelectionView)
			if !ok {
				t.Fatalf("selectionRequested data = %T, want SelectionView", ev.Data)
			}
			requested = &view
		}
	}
	if requested == nil || requested.ID != p.ID || len(requested.Options) != 1 {
		t.Fatalf("selectionRequested = %+v", requested)
	}
	p.Options[0].Label = "已改变"
	if requested.Options[0].Label == "已改变" {
		t.Error("event shares options with the pending selection")
	}
	if g.Date().Format(services.DateLayout) != "2019-08-12" {
		t.Error("date advanced before the selection resolved")
	}
	if _, err := g.Choose(ctx, 0); !errors.Is(err, services.ErrSelectionPending) {
		t.Errorf("err = %v, want ErrSelectionPending", err)
	}
	if err := g.ResolveSelection(ctx, p.ID, "nobody"); !errors.Is(err, services.ErrInvalidSelection) {
		t.Errorf("err = %v, want ErrInvalidSelection", err)
	}

	if err := g.ResolveSelection(ctx, p.ID, "suYuQing"); err != nil {
		t.Fatalf("ResolveSelection: %v", err)
	}
	if got := g.Chars.PlayerTag(services.TagSearchTarget).String(); got != "suYuQing" {
		t.Errorf("寻找角色 = %s", got)
	}
	if g.Pending() != nil || g.Cards.Current() == nil {
		t.Error("flow did not continue after selection")
	}
	if got := g.Date().Format(services.DateLayout); got != "2019-08-14" {
		t.Errorf("date = %s, want 2019-08-14", got)
	}

	// 取消同样继续流程
	if _, err := g.Choose(ctx, 0); err != nil {
		t.Fatal(err)
	}
	if err := g.CancelSelection(ctx); err != nil {
		t.Fatal(err)
	}
	if got := g.Date().Format(services.DateLayout); got != "2019-08-16" {
		t.Errorf("date after cancel = %s", got)
	}
	if err := g.CancelSelection(ctx); !errors.Is(err, services.ErrNoPendingSelection) {
		t.Errorf("err = %v, want ErrNoPendingSelection", err)
	}
}

const interactionCards = `[
	{"id": "meet", "name": "相遇",
	 "choices": [
		{"text": "交谈", "effects": ["目标.交互角色.suYuQing"], "specialMechanism": "characterInteraction"},
		{"text": "攻击", "effects": ["目标.交互角色.suYuQing"], "specialMechanism": "characterAttack"},
		{"text": "打开地图", "specialMechanism": "unlockLocationPanel"},
		{"text": "未知", "specialMechanism": "notAMechanism"}
	 ]}
]`

func TestInteractionMechanisms(t *testing.T) {
	ctx := context.Background()

	g := newTestGame(t, interactionCards, models.GameConfig{}, nil, nil)
	if _, err := g.Choose(ctx, 0); err != nil {
		t.Fatal(err)
	}
	if got := g.Chars.PlayerTag(services.TagTalkTarget).String(); got != "suYuQing" {
		t.Errorf("交谈角色 = %s", got)
	}
	if !g.Chars.PlayerTag(services.TagInteractTarget).IsEmpty() {
		t.Error("交互角色 should be cleared")
	}

	if _, err := g.Choose(ctx, 1); err != nil {
		t.Fatal(err)
	}
	if got := g.Chars.PlayerTag("结局.冰河派").String(); got != "1" {
		t.Errorf("结局.冰河派 = %q", got)
	}
	if !g.Chars.PlayerTag(services.TagTalkTarget).IsEmpty() {
		t.Error("交谈角色 should be cleared after attack")
	}

	if _, err := g.Choose(ctx, 2); err != nil {
		t.Fatal(err)
	}
	if !g.World.PanelUnlocked() {
		t.Error("panel not unlocked")
	}

	if _, err := g.Choose(ctx, 3); err != nil {
		t.Errorf("unknown mechanism should be ignored: %v", err)
	}
}

const combatCards = `[
	{"id": "ambush", "name": "伏击",
	 "choices": [{"text": "迎战", "effects": ["战斗.类型.crystal_patrol"], "specialMechanism": "startCombat"}]}
]`

func TestCombatActionSelection(t *testing.T) {
	g := newTestGame(t, combatCards, models.GameConfig{}, nil, nil)
	ctx := context.Background()

	if _, err := g.Choose(ctx, 0); err != nil {
		t.Fatalf("Choose: %v", err)
	}
	if !g.Combat.Active() {
		t.Fatal("combat not started")
	}

	for i := 0; i < 10; i++ {
		if actor := g.Combat.CurrentActor(); actor != nil && actor.ID == tags.PlayerID {
			break
		}
		g.Dispatch(ctx, string(services.MechExecuteCombatAIAction), nil)
		g.Dispatch(ctx, string(services.MechNextCombatTurn), nil)
	}
	if actor := g.Combat.CurrentActor(); actor == nil || actor.ID != tags.PlayerID {
		t.Fatalf("player never got a turn: %+v", actor)
	}

	g.Chars.SetPlayerTag(combat.TagSelectType, models.String(string(combat.ActionAttack)))
	if err := g.Dispatch(ctx, string(services.MechExecuteCombatAction), nil); err != nil {
		t.Fatal(err)
	}
	p := g.Pending()
	if p == nil || p.Kind != services.SelectCombatTarget || len(p.Options) == 0 {
		t.Fatalf("pending = %+v", p)
	}
	if err := g.ResolveSelection(ctx, p.ID, p.Options[0].ID); err != nil {
		t.Fatalf("ResolveSelection: %v", err)
	}
	if g.Combat.LastResult() == nil {
		t.Error("attack not executed")
	}
	if !g.Chars.PlayerTag(combat.TagSelectType).IsEmpty() {
		t.Error("selection tags should be cleared")
	}

	if err := g.Dispatch(ctx, string(services.MechEndCombat), nil); err != nil {
		t.Fatal(err)
	}
	if g.Combat.Active() {
		t.Error("combat still active after endCombat")
	}
}

const brokenCombatCards = `[
	{"id": "mirage", "name": "海市蜃楼",
	 "choices": [{"text": "追上去", "consumeCard": true,
		"effects": ["状态.精力.-10", "战斗.类型.nowhere"], "specialMechanism": "startCombat"}]}
]`

func TestChooseRollsBackFailedMechanism(t *testing.T) {
	g := newTestGame(t, brokenCombatCards, models.GameConfig{}, nil, nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		result, err := g.Choose(ctx, 0)
		if err == nil {
			t.Fatalf("attempt %d: expected mechanism error", i)
		}
		if result != "" || g.LastResult() != "" {
			t.Errorf("attempt %d: result = %q, last = %q", i, result, g.LastResult())
		}
		if got := g.Chars.PlayerTag("状态.精力").String(); got != "100" {
			t.Errorf("attempt %d: 精力 = %s, want 100", i, got)
		}
		if !g.Chars.PlayerTag(combat.TagType).IsEmpty() {
			t.Errorf("attempt %d: 战斗.类型 left behind", i)
		}
		if g.Cards.Current() == nil || g.Cards.Current().ID != "mirage" {
			t.Fatalf("attempt %d: current card = %+v", i, g.Cards.Current())
		}
		if len(g.Cards.ConsumedCards()) != 0 {
			t.Errorf("attempt %d: consumed = %v", i, g.Cards.ConsumedCards())
		}
	}
	if g.Combat.Active() || g.Pending() != nil || g.Ending() != nil {
		t.Error("failed mechanism left state behind")
	}
}

func TestRestoreDropsCombatState(t *testing.T) {
	g := newTestGame(t, combatCards, models.GameConfig{}, nil, nil)
	ctx := context.Background()

	before := g.Snapshot()
	if _, err := g.Choose(ctx, 0); err != nil {
		t.Fatal(err)
	}
	if !g.Combat.Active() {
		t.Fatal("combat not started")
	}

	// 战斗中存档不带战斗标签
	mid := g.Snapshot()
	if _, ok := mid.Tags[tags.PlayerID][combat.TagRoot]; ok {
		t.Errorf("snapshot kept combat tags: %v", mid.Tags[tags.PlayerID][combat.TagRoot])
	}

	// 旧存档里残留的战斗标签在读档时清掉
	mid.Tags[tags.PlayerID][combat.TagRoot] = map[string]any{"状态": combat.StatusActive, "当前行动者": "crystal_0"}
	if err := g.Restore(ctx, mid); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if g.Combat.Active() {
		t.Error("combat still active after restore")
	}
	for _, p := range []string{combat.TagStatus, combat.TagActor, combat.TagType} {
		if v := g.Chars.PlayerTag(p); !v.IsEmpty() {
			t.Errorf("%s = %v after restore", p, v)
		}
	}

	if err := g.Restore(ctx, before); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if g.Combat.Active() || !g.Chars.PlayerTag(combat.TagStatus).IsEmpty() {
		t.Error("combat state survived restoring a pre-combat save")
	}
}

func TestCombatActionFailsSoft(t *testing.T) {
	g := newTestGame(t, dailyCards, models.GameConfig{}, nil, nil)
	ctx := context.Background()

	g.Chars.SetPlayerTag(combat.TagSelectType, models.String(string(combat.ActionAttack)))
	if err := g.Dispatch(ctx, string(services.MechExecuteCombatAction), nil); err != nil {
		t.Fatalf("executeCombatAction without combat should not fail: %v", err)
	}
	if g.Pending() != nil {
		t.Error("no selection should open outside combat")
	}
	if !g.Chars.PlayerTag(combat.TagSelectType).IsEmpty() {
		t.Error("selection tags should be cleared on failure")
	}

	if err := g.Dispatch(ctx, string(services.MechExecuteCombatAIAction), nil); err != nil {
		t.Fatal(err)
	}
	if got := g.Chars.PlayerTag(combat.TagActor); !got.IsEmpty() {
		t.Errorf("当前行动者 = %v, want cleared", got)
	}
}

func TestSnapshotRestore(t *testing.T) {
	g := newTestGame(t, onceCard, models.GameConfig{}, nil, nil)
	ctx := context.Background()

	g.Chars.SetPlayerTag("技能.数学", models.Number(900))
	snap := g.Snapshot()
	if snap.CurrentCard == nil || snap.CurrentCard.ID != "once" {
		t.Fatalf("snapshot card = %+v", snap.CurrentCard)
	}

	if _, err := g.Choose(ctx, 0); err != nil {
		t.Fatal(err)
	}
	g.Chars.SetPlayerTag("技能.数学", models.Number(100))

	if err := g.Restore(ctx, snap); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if got := g.Chars.PlayerTag("技能.数学").String(); got != "900" {
		t.Errorf("技能.数学 = %s, want 900", got)
	}
	if got := g.Date().Format(services.DateLayout); got != "2019-08-12" {
		t.Errorf("date = %s", got)
	}
	if g.Cards.Current() == nil || g.Cards.Current().ID != "once" || g.Cards.PoolSize() != 1 {
		t.Errorf("card state not restored: pool %d", g.Cards.PoolSize())
	}
	if g.Ending() != nil {
		t.Error("ending should be cleared by restore")
	}
}

func TestSaveServiceSlots(t *testing.T) {
	g := newTestGame(t, dailyCards, models.GameConfig{}, nil, nil)
	ss := services.NewSaveService(&memoryRepo{saves: map[int]*models.SaveGame{}}, 3)
	ctx := context.Background()

	if _, err := ss.Save(ctx, "alice", 0, g); !errors.Is(err, services.ErrInvalidSlot) {
		t.Errorf("err = %v, want ErrInvalidSlot", err)
	}
	if _, err := ss.Save(ctx, "alice", 2, g); err != nil {
		t.Fatalf("Save: %v", err)
	}
	g.Choose(ctx, 0)
	if err := ss.Load(ctx, "alice", 2, g); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := g.Chars.PlayerTag("状态.精力").String(); got != "100" {
		t.Errorf("精力 after load = %s, want 100", got)
	}
	if err := ss.Load(ctx, "alice", 3, g); err == nil {
		t.Error("loading an empty slot should fail")
	}
}

type memoryRepo struct {
	saves map[int]*models.SaveGame
}

var errMissing = errors.New("missing")

func (m *memoryRepo) UpsertSave(_ context.Context, save *models.SaveGame) error {
	m.saves[save.Slot] = save
	return nil
}

func (m *memoryRepo) GetSave(_ context.Context, _ string, slot int) (*models.SaveGame, error) {
	if s, ok := m.saves[slot]; ok {
		return s, nil
	}
	return nil, errMissing
}

func (m *memoryRepo) ListSaves(context.Context, string) ([]models.SaveSlot, error) {
	var out []models.SaveSlot
	for _, s := range m.saves {
		out = append(out, models.SaveSlot{Slot: s.Slot, GameDate: s.GameDate})
	}
	return out, nil
}

func (m *memoryRepo) DeleteSave(_ context.Context, _ string, slot int) error {
	delete(m.saves, slot)
	return nil
}
