package api

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/aiwuxian/apocalypse/internal/services"
	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
)

const eventWriteTimeout = 5 * time.Second

// StreamEvents 通过 WebSocket 推送会话事件
func (h *Handler) StreamEvents(c *gin.Context) {
	var (
		events      <-chan services.Event
		unsubscribe func()
	)
	err := h.sessions.With(c.Param("id"), func(_ string, g *services.Game) error {
		events, unsubscribe = g.Events.Subscribe()
		return nil
	})
	if err != nil {
		respondError(c, err)
		return
	}
	defer unsubscribe()

	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // 开发用：跳过 Origin 检查
	})
	if err != nil {
		log.Printf("❌ [事件] 建立连接失败: %v", err)
		return
	}
	defer conn.CloseNow()

	// 只推送；读取用于感知客户端关闭
	ctx := conn.CloseRead(c.Request.Context())
	if err := pumpEvents(ctx, conn, events); err != nil {
		log.Printf("⚠️ [事件] 推送结束: %v", err)
		return
	}
	conn.Close(websocket.StatusNormalClosure, "会话已关闭")
}

// pumpEvents 转发事件直到通道关闭或连接断开
func pumpEvents(ctx context.Context, conn *websocket.Conn, events <-chan services.Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			data, err := json.Marshal(ev)
			if err != nil {
				log.Printf("⚠️ [事件] 序列化 %s 失败: %v", ev.Type, err)
				continue
			}
			wctx, cancel := context.WithTimeout(ctx, eventWriteTimeout)
			err = conn.Write(wctx, websocket.MessageText, data)
			cancel()
			if err != nil {
				return err
			}
		}
	}
}
