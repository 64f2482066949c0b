package services

import (
	"fmt"
	"log"
	"math"
	"time"

	"github.com/aiwuxian/apocalypse/internal/models"
	"github.com/aiwuxian/apocalypse/internal/tags"
)

// DateLayout 内容与配置中的日期格式
const DateLayout = "2006-01-02"

// ModifierRoot 周期性修正所在的玩家标签子树
const ModifierRoot = "变化"

// ParseDate 解析 YYYY-MM-DD（UTC零点）
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("日期格式错误 %q: %w", s, err)
	}
	return t, nil
}

// DateService 游戏日历、周期修正与倒计时
type DateService struct {
	tags *tags.Store

	start, end         time.Time
	current            time.Time
	interval           int
	defaultConsumption int
	daysPassed         int
	countdowns         []models.Countdown
}

func NewDateService(store *tags.Store, cfg models.GameConfig) (*DateService, error) {
	start, err := ParseDate(cfg.StartDate)
	if err != nil {
		return nil, fmt.Errorf("解析开始日期失败: %w", err)
	}
	end, err := ParseDate(cfg.EndDate)
	if err != nil {
		return nil, fmt.Errorf("解析结束日期失败: %w", err)
	}
	if end.Before(start) {
		return nil, fmt.Errorf("结束日期 %s 早于开始日期 %s", cfg.EndDate, cfg.StartDate)
	}
	interval := cfg.TriggerInterval
	if interval <= 0 {
		interval = 3
	}
	consumption := cfg.DefaultTimeConsumption
	if consumption <= 0 {
		consumption = 3
	}
	return &DateService{
		tags:               store,
		start:              start,
		end:                end,
		current:            start,
		interval:           interval,
		defaultConsumption: consumption,
	}, nil
}

func (ds *DateService) Current() time.Time {
	return ds.current
}

func (ds *DateService) Start() time.Time {
	return ds.start
}

func (ds *DateService) End() time.Time {
	return ds.end
}

func (ds *DateService) DaysPassed() int {
	return ds.daysPassed
}

// AtEnd 是否已到达结束日期
func (ds *DateService) AtEnd() bool {
	return !ds.current.Before(ds.end)
}

// DaysLeft 距结束日期的天数
func (ds *DateService) DaysLeft() int {
	return daysBetween(ds.current, ds.end)
}

// Advance 推进日期（不超过结束日期），累计天数每满一个周期应用一次修正，返回触发次数
func (ds *DateService) Advance(days int) int {
	if days <= 0 {
		return 0
	}
	next := ds.current.AddDate(0, 0, days)
	if next.After(ds.end) {
		next = ds.end
	}
	ds.current = next

	ds.daysPassed += days
	ticks := 0
	for ds.daysPassed >= ds.interval {
		ds.applyModifiers()
		ds.daysPassed -= ds.interval
		ticks++
	}
	if ticks > 0 {
		log.Printf("📅 [日期] %s，周期修正触发 %d 次", ds.current.Format(DateLayout), ticks)
	}
	return ticks
}

// 变化.<路径> 下的每个数值叶子叠加到玩家的 <路径>
func (ds *DateService) applyModifiers() {
	for _, leaf := range ds.tags.Leaves(tags.PlayerID, ModifierRoot) {
		if !leaf.Value.IsNum {
			continue
		}
		ds.tags.SetPath(tags.PlayerID, leaf.Path, leaf.Value)
	}
}

// CardTimeConsumption 卡牌消耗的天数，未设置时使用默认值
func (ds *DateService) CardTimeConsumption(card *models.Card) int {
	if card == nil || card.TimeConsumption == nil {
		return ds.defaultConsumption
	}
	return *card.TimeConsumption
}

// AddCountdown 添加倒计时，同名时替换
func (ds *DateService) AddCountdown(name string, date time.Time) {
	for i, c := range ds.countdowns {
		if c.Name == name {
			ds.countdowns[i].Date = date
			return
		}
	}
	ds.countdowns = append(ds.countdowns, models.Countdown{Name: name, Date: date})
}

// RemoveCountdown 删除倒计时
func (ds *DateService) RemoveCountdown(name string) {
	for i, c := range ds.countdowns {
		if c.Name == name {
			ds.countdowns = append(ds.countdowns[:i], ds.countdowns[i+1:]...)
			return
		}
	}
}

// Countdowns 倒计时副本
func (ds *DateService) Countdowns() []models.Countdown {
	return append([]models.Countdown(nil), ds.countdowns...)
}

// SetCountdowns 整体替换倒计时
func (ds *DateService) SetCountdowns(cs []models.Countdown) {
	ds.countdowns = append([]models.Countdown(nil), cs...)
}

// DaysRemaining 距倒计时目标的天数，不为负
func (ds *DateService) DaysRemaining(c models.Countdown) int {
	return daysBetween(ds.current, c.Date)
}

func daysBetween(from, to time.Time) int {
	d := to.Sub(from).Hours() / 24
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d))
}

// Restore 从存档恢复
func (ds *DateService) Restore(current time.Time, daysPassed int, countdowns []models.Countdown) {
	ds.current = current.UTC()
	ds.daysPassed = daysPassed
	ds.SetCountdowns(countdowns)
}

// Reset 回到开始日期并清空倒计时
func (ds *DateService) Reset() {
	ds.current = ds.start
	ds.daysPassed = 0
	ds.countdowns = nil
}
