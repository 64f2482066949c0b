package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// 事件类型
const (
	EventGameEnd            = "gameEnd"
	EventSelectionRequested = "selectionRequested"
	EventSelectionResolved  = "selectionResolved"
	EventSelectionCancelled = "selectionCancelled"
	EventTagChanged         = "tagChanged"
	EventCardDrawn          = "cardDrawn"
)

var (
	ErrSelectionPending   = errors.New("有尚未完成的选择")
	ErrNoPendingSelection = errors.New("没有等待中的选择")
	ErrInvalidSelection   = errors.New("无效的选择")
)

// Event 推送给界面的事件
type Event struct {
	Type string    `json:"type"`
	Data any       `json:"data,omitempty"`
	Time time.Time `json:"time"`
}

// eventBufferSize 每个订阅者的缓冲，满时丢弃新事件
const eventBufferSize = 64

// EventBus 会话事件的广播。可以被多个 goroutine 订阅。
type EventBus struct {
	mu     sync.Mutex
	subs   map[int]chan Event
	nextID int
	closed bool
}

func NewEventBus() *EventBus {
	return &EventBus{subs: make(map[int]chan Event)}
}

// Subscribe 返回事件通道与取消函数
func (b *EventBus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, eventBufferSize)
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if c, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(c)
			}
		})
	}
}

// Publish 非阻塞发送
func (b *EventBus) Publish(eventType string, data any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	ev := Event{Type: eventType, Data: data, Time: time.Now()}
	for id, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			log.Printf("⚠️ [事件] 订阅者 %d 缓冲已满，丢弃 %s", id, eventType)
		}
	}
}

// Close 关闭所有订阅
func (b *EventBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		close(ch)
		delete(b.subs, id)
	}
}

// SelectionKind 等待选择的类型
type SelectionKind string

const (
	SelectCombatTarget SelectionKind = "combatTarget"
	SelectCombatSkill  SelectionKind = "combatSkill"
	SelectCombatItem   SelectionKind = "combatItem"
	SelectCharacter    SelectionKind = "character"
)

// SelectionOption 可选项
type SelectionOption struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
}

type selectionResolver func(ctx context.Context, optionID string) error

// PendingSelection 挂起的操作：等待界面回传一个选项，或被取消
type PendingSelection struct {
	ID      string            `json:"id"`
	Kind    SelectionKind     `json:"kind"`
	Prompt  string            `json:"prompt"`
	Options []SelectionOption `json:"options"`

	resolve  selectionResolver
	onCancel func()
}

func newSelection(kind SelectionKind, prompt string, options []SelectionOption, resolve selectionResolver, onCancel func()) *PendingSelection {
	return &PendingSelection{
		ID:       uuid.New().String(),
		Kind:     kind,
		Prompt:   prompt,
		Options:  options,
		resolve:  resolve,
		onCancel: onCancel,
	}
}

// SelectionView 推送给订阅者的选择副本
type SelectionView struct {
	ID      string            `json:"id"`
	Kind    SelectionKind     `json:"kind"`
	Prompt  string            `json:"prompt"`
	Options []SelectionOption `json:"options"`
}

// View 复制当前选择；事件在其他 goroutine 中序列化
func (p *PendingSelection) View() SelectionView {
	return SelectionView{
		ID:      p.ID,
		Kind:    p.Kind,
		Prompt:  p.Prompt,
		Options: append([]SelectionOption(nil), p.Options...),
	}
}

// Has 选项是否存在
func (p *PendingSelection) Has(optionID string) bool {
	for _, o := range p.Options {
		if o.ID == optionID {
			return true
		}
	}
	return false
}

// Resolve 校验选项后继续挂起的操作
func (p *PendingSelection) Resolve(ctx context.Context, optionID string) error {
	if !p.Has(optionID) {
		return fmt.Errorf("%w: %s", ErrInvalidSelection, optionID)
	}
	return p.resolve(ctx, optionID)
}

// Cancel 放弃挂起的操作
func (p *PendingSelection) Cancel() {
	if p.onCancel != nil {
		p.onCancel()
	}
}
