package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aiwuxian/apocalypse/internal/models"
	"github.com/sashabaranov/go-openai"
)

// ErrNarratorDisabled 未配置API Key
var ErrNarratorDisabled = errors.New("未配置叙述模型")

// QuietDay 填充卡叙述所需的上下文
type QuietDay struct {
	Date     string
	Location string
	Status   []string // "生命值: 80" 形式
}

// Narrator 为没有事件的日子生成叙述
type Narrator interface {
	NarrateQuietDay(ctx context.Context, day QuietDay) (string, error)
}

// LLMService 基于 OpenAI 兼容接口的叙述
type LLMService struct {
	client *openai.Client
	config models.LLMConfig
}

func NewLLMService(config models.LLMConfig) *LLMService {
	if config.APIKey == "" {
		return &LLMService{config: config}
	}
	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.APIBase != "" {
		clientConfig.BaseURL = config.APIBase
	}
	if config.Model == "" {
		config.Model = openai.GPT3Dot5Turbo
	}
	return &LLMService{
		client: openai.NewClientWithConfig(clientConfig),
		config: config,
	}
}

// Enabled 是否可以调用模型
func (ls *LLMService) Enabled() bool {
	return ls.client != nil
}

// NarrateQuietDay 生成一段平静日子的描述
func (ls *LLMService) NarrateQuietDay(ctx context.Context, day QuietDay) (string, error) {
	if !ls.Enabled() {
		return "", ErrNarratorDisabled
	}

	prompt := fmt.Sprintf(`今天是 %s，主角身处%s，什么特别的事情都没有发生。
主角当前状态：
%s
请用第二人称写一段不超过80字的日常描写，不要引入新的人物或事件。`, day.Date, day.Location, strings.Join(day.Status, "\n"))

	resp, err := ls.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: ls.config.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: "你是一款末日题材文字游戏的旁白。"},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: ls.config.Temperature,
		MaxTokens:   ls.config.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("调用叙述模型失败: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("叙述模型没有返回内容")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
