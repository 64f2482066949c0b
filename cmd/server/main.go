package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/aiwuxian/apocalypse/internal/api"
	"github.com/aiwuxian/apocalypse/internal/content"
	"github.com/aiwuxian/apocalypse/internal/models"
	"github.com/aiwuxian/apocalypse/internal/services"
	"github.com/aiwuxian/apocalypse/internal/storage"
)

// envPrefix 环境变量覆盖配置文件时使用的前缀
const envPrefix = "APOCALYPSE_"

func main() {
	configPath := "config.yml"
	if p := os.Getenv("APOCALYPSE_CONFIG"); p != "" {
		configPath = p
	}

	// 加载配置
	config, err := loadConfig(configPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	// 加载游戏内容
	bundle, err := content.Load(config.Game.ContentDir)
	if err != nil {
		log.Fatalf("加载游戏内容失败: %v", err)
	}

	// 初始化数据库
	store, err := storage.New(config.Database.Path)
	if err != nil {
		log.Fatalf("初始化数据库失败: %v", err)
	}
	defer store.Close()

	// 初始化服务
	rankService := services.NewRankService(config.Game.RankTable)
	llmService := services.NewLLMService(config.LLM)
	saveService := services.NewSaveService(store, config.Game.SaveSlots)
	sessions := api.NewSessions()
	defer sessions.CloseAll()

	// 初始化API处理器
	handler := api.NewHandler(bundle, config.Game, rankService, llmService, saveService, sessions)

	// 设置Gin路由
	r := gin.Default()

	// 静态文件
	r.Static("/web", "./web")
	r.GET("/", func(c *gin.Context) {
		c.Redirect(http.StatusFound, "/web/index.html")
	})

	// API路由
	handler.Register(r.Group("/api"))

	addr := fmt.Sprintf("%s:%s", config.Server.Host, config.Server.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("🎮 末日高考 启动成功！访问 http://localhost:%s", config.Server.Port)
		log.Printf("📅 %s 开学，%s 高考", config.Game.StartDate, config.Game.EndDate)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("启动服务器失败: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Printf("🏁 正在关闭服务器，当前会话 %d 个", sessions.Len())
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Printf("❌ %v", err)
	}
}

// loadConfig 读取YAML配置，再用环境变量覆盖；文件不存在时只使用环境变量和默认值
func loadConfig(path string) (*models.Config, error) {
	var config models.Config

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("解析配置文件失败: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
		log.Printf("⚠️ 配置文件 %s 不存在，使用默认配置", path)
	default:
		return nil, err
	}

	if err := env.ParseWithOptions(&config, env.Options{Prefix: envPrefix}); err != nil {
		return nil, fmt.Errorf("解析环境变量失败: %w", err)
	}

	config.ApplyDefaults()
	return &config, nil
}
