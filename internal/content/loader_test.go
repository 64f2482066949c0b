package content

import (
	"context"
	"errors"
	"strings"
	"testing"
	"testing/fstest"
)

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"cards.json": {Data: []byte(`[
			{"id": "morning", "name": "清晨", "description": "新的一天", "baseWeight": 2, "choices": [{"text": "起床"}]},
			{"id": "exam", "name": "模拟考", "cardSet": "高考", "choices": []}
		]`)},
		"cards/wasteland.json": {Data: []byte(`[
			{"id": "crystal_storm", "name": "晶体风暴", "cardSet": "荒原", "mustDraw": true, "priority": 3, "choices": []}
		]`)},
		"cardSets.json": {Data: []byte(`[
			{"category": "主线", "sets": ["基础", "高考"], "default": true},
			{"category": "扩展", "sets": ["荒原"]}
		]`)},
		"characters.json": {Data: []byte(`{
			"player": {"name": "你", "faction": "玩家"},
			"suYuQing": {"name": "苏雨晴", "faction": "复苏队", "attackEnding": "冰河派",
				"tags": {"位置": {"当前地点": "复苏队基地"}}}
		}`)},
		"tagsConfig.json": {Data: []byte(`{
			"物品": {
				"绷带": {"type": "consumable", "effects": ["状态.生命值.10"]},
				"护目镜": {"type": "equipment", "slot": "头部", "effects": {"属性.感知": 2}}
			}
		}`)},
		"locations.json": {Data: []byte(`{
			"复苏队基地": {"name": "复苏队基地", "connections": ["荒原"]},
			"荒原": {"name": "荒原", "connections": ["复苏队基地"]}
		}`)},
		"combats/crystal_encounters.json": {Data: []byte(`[
			{"id": "crystal_patrol", "name": "晶体巡逻队", "participants": [{"entityId": "crystal", "count": 2, "level": 1}]}
		]`)},
		"entities/combat_entities.json": {Data: []byte(`[
			{"id": "crystal", "name": "晶体生物", "faction": "晶体生物", "baseStats": {"hp": 30}, "aiType": "aggressive"}
		]`)},
	}
}

func TestLoadFS(t *testing.T) {
	b, err := LoadFS(testFS())
	if err != nil {
		t.Fatalf("LoadFS: %v", err)
	}

	if got := strings.Join(b.SetOrder, ","); got != "基础,高考,荒原" {
		t.Fatalf("SetOrder = %s", got)
	}
	if len(b.CardSets[DefaultCardSet]) != 1 || b.CardSets[DefaultCardSet][0].BaseWeight != 2 {
		t.Fatalf("default set: %#v", b.CardSets[DefaultCardSet])
	}
	if got := strings.Join(b.DefaultCardSets(), ","); got != "基础,高考" {
		t.Fatalf("DefaultCardSets = %s", got)
	}

	su, ok := b.Characters["suYuQing"]
	if !ok || su.ID != "suYuQing" || su.AttackEnding != "冰河派" {
		t.Fatalf("character: %#v", su)
	}

	bandage, ok := b.TagsConfig.Lookup("绷带")
	if !ok || len(bandage.Effects.List) != 1 {
		t.Fatalf("bandage config: %#v", bandage)
	}
	goggles, _ := b.TagsConfig.Lookup("护目镜")
	if goggles.Effects.Deltas["属性.感知"] != 2 || goggles.Slot != "头部" {
		t.Fatalf("goggles config: %#v", goggles)
	}

	if b.Locations["荒原"].ID != "荒原" {
		t.Fatalf("location id not filled")
	}

	ctx := context.Background()
	cfg, err := b.Encounter(ctx, "crystal_patrol")
	if err != nil || len(cfg.Participants) != 1 {
		t.Fatalf("Encounter: %#v, %v", cfg, err)
	}
	if _, err := b.Encounter(ctx, "nope"); !errors.Is(err, ErrEncounterNotFound) {
		t.Fatalf("expected ErrEncounterNotFound, got %v", err)
	}
	if _, err := b.Entity(ctx, "nope"); !errors.Is(err, ErrEntityNotFound) {
		t.Fatalf("expected ErrEntityNotFound, got %v", err)
	}
}

func TestLoadFSErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(fstest.MapFS)
		want   string
	}{
		{
			name:   "missing characters",
			mutate: func(m fstest.MapFS) { delete(m, "characters.json") },
			want:   "characters.json",
		},
		{
			name: "duplicate card id",
			mutate: func(m fstest.MapFS) {
				m["cards/dup.json"] = &fstest.MapFile{Data: []byte(`[{"id": "morning"}]`)}
			},
			want: "卡牌ID重复",
		},
		{
			name: "card without id",
			mutate: func(m fstest.MapFS) {
				m["cards.json"] = &fstest.MapFile{Data: []byte(`[{"name": "无名"}]`)}
			},
			want: "缺少ID",
		},
		{
			name: "bad json",
			mutate: func(m fstest.MapFS) {
				m["locations.json"] = &fstest.MapFile{Data: []byte(`{`)}
			},
			want: "解析 locations.json 失败",
		},
		{
			name: "entity without faction",
			mutate: func(m fstest.MapFS) {
				m["entities/bad.json"] = &fstest.MapFile{Data: []byte(`[{"id": "ghost"}]`)}
			},
			want: "缺少阵营",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fsys := testFS()
			tt.mutate(fsys)
			_, err := LoadFS(fsys)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestDefaultCardSetsWithoutCategories(t *testing.T) {
	fsys := testFS()
	delete(fsys, "cardSets.json")
	b, err := LoadFS(fsys)
	if err != nil {
		t.Fatalf("LoadFS: %v", err)
	}
	if got := len(b.DefaultCardSets()); got != 3 {
		t.Fatalf("expected every set enabled, got %d", got)
	}
}
