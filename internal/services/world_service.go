package services

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/aiwuxian/apocalypse/internal/models"
)

// ObserveCardPrefix 观察类卡牌在选定目的地后跳过
const ObserveCardPrefix = "observe_"

var (
	ErrUnreachableLocation = errors.New("无法前往该地点")
	ErrLocationPanelLocked = errors.New("地点面板尚未解锁")
)

// WorldService 地点图与目的地选择
type WorldService struct {
	chars     *CharacterService
	locations map[string]models.Location
}

func NewWorldService(chars *CharacterService, locations map[string]models.Location) *WorldService {
	return &WorldService{chars: chars, locations: locations}
}

// Location 按ID获取地点
func (ws *WorldService) Location(id string) (models.Location, bool) {
	loc, ok := ws.locations[id]
	return loc, ok
}

// Locations 所有地点（按ID排序）
func (ws *WorldService) Locations() []models.Location {
	ids := make([]string, 0, len(ws.locations))
	for id := range ws.locations {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]models.Location, len(ids))
	for i, id := range ids {
		out[i] = ws.locations[id]
	}
	return out
}

// CurrentLocation 玩家当前所在地点ID
func (ws *WorldService) CurrentLocation() string {
	return ws.chars.PlayerTag(TagCurrentLocation).String()
}

// PanelUnlocked 地点面板是否已解锁
func (ws *WorldService) PanelUnlocked() bool {
	return ws.chars.PlayerTag(TagLocationPanel).String() == PanelUnlocked
}

// Reachable 从当前地点可以直接前往的地点
func (ws *WorldService) Reachable() []models.Location {
	cur, ok := ws.locations[ws.CurrentLocation()]
	if !ok {
		return nil
	}
	out := make([]models.Location, 0, len(cur.Connections))
	for _, id := range cur.Connections {
		if loc, ok := ws.locations[id]; ok {
			out = append(out, loc)
		}
	}
	return out
}

// SelectDestination 设置目标地点；返回当前卡牌是否应当跳过
func (ws *WorldService) SelectDestination(target string, current *models.Card) (bool, error) {
	if !ws.PanelUnlocked() {
		return false, ErrLocationPanelLocked
	}
	reachable := false
	for _, loc := range ws.Reachable() {
		if loc.ID == target {
			reachable = true
			break
		}
	}
	if !reachable {
		return false, fmt.Errorf("%w: %s -> %s", ErrUnreachableLocation, ws.CurrentLocation(), target)
	}
	ws.chars.SetPlayerTag(TagTargetLocation, models.String(target))
	log.Printf("🧭 [地点] 目标地点: %s", target)
	return current != nil && strings.HasPrefix(current.ID, ObserveCardPrefix), nil
}

// MoveToTarget 前往目标地点并清除目标；没有目标时返回 false
func (ws *WorldService) MoveToTarget() bool {
	target := ws.chars.PlayerTag(TagTargetLocation).String()
	if target == "" {
		return false
	}
	ws.chars.SetPlayerTag(TagCurrentLocation, models.String(target))
	ws.chars.SetPlayerTag(TagTargetLocation, models.String(""))
	log.Printf("🧭 [地点] 抵达 %s", target)
	return true
}
