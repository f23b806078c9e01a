// Package main はAPIサーバーのエントリーポイントです。
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/yourusername/pdf-stream-processor/internal/config"
	"github.com/yourusername/pdf-stream-processor/internal/jobs"
)

func main() {
	// 設定の読み込み
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Ginのモードを設定
	gin.SetMode(cfg.GinMode)

	// ストリーム・レジストリ・結果ストア・ワーカーの配線
	pipeline, err := setupPipeline(cfg)
	if err != nil {
		log.Fatalf("Failed to set up pipeline: %v", err)
	}
	defer pipeline.Close()

	// Ginルーターの初期化（デフォルトミドルウェア: Logger, Recovery）
	router := gin.Default()

	// CORSミドルウェアの設定
	corsConfig := cors.DefaultConfig()
	if cfg.CORSAllowedOrigins == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = strings.Split(cfg.CORSAllowedOrigins, ",")
		corsConfig.AllowCredentials = true
	}
	corsConfig.AllowHeaders = []string{
		"Origin",
		"Content-Type",
		"Accept",
		"Authorization",
	}
	router.Use(cors.New(corsConfig))

	// ルーティングの設定
	setupRoutes(router, cfg, pipeline)

	// 終了シグナルでワーカーとサーバーを止める
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// コンシューマーをバックグラウンドで起動
	go pipeline.consumer.Run(ctx)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("Starting API server on %s (mode: %s)", server.Addr, cfg.GinMode)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("Received termination signal, shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown failed: %v", err)
	}
}

// handleRoot はサービスバナーを返します。
func handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "PDF Processor API v2.0",
	})
}

// setupRoutes はAPIエンドポイントの配線を行います。
func setupRoutes(router *gin.Engine, cfg *config.Config, p *pipeline) {
	router.GET("/", handleRoot)
	router.GET("/health", jobs.HealthHandler(p.stream))

	router.POST("/upload-pdf", jobs.UploadHandler(p.gateway, cfg.MaxFileSize))
	router.GET("/status/:id", jobs.StatusHandler(p.registry))
	router.GET("/results/:id", jobs.ResultsHandler(p.results))

	// ワーカーからの内部呼び出し用
	router.POST("/update-status/:id", jobs.UpdateStatusHandler(p.registry))
}
