package main

import (
	"context"
	"fmt"
	"log"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/yourusername/pdf-stream-processor/internal/config"
	"github.com/yourusername/pdf-stream-processor/internal/jobs"
	"github.com/yourusername/pdf-stream-processor/internal/pdf"
)

// pipeline はジョブ処理に必要なコンポーネント一式を保持します。
type pipeline struct {
	redisClient *redis.Client
	stream      *jobs.Stream
	registry    *jobs.Registry
	results     *jobs.ResultStore
	gateway     *jobs.Gateway
	consumer    *jobs.Consumer
}

// setupPipeline はRedis接続を確立し、各コンポーネントを組み立てます。
func setupPipeline(cfg *config.Config) (*pipeline, error) {
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	stream := jobs.NewStream(client, cfg.StreamName, cfg.ConsumerGroup, cfg.ConsumerName)
	if err := stream.EnsureGroup(ctx); err != nil {
		client.Close()
		return nil, err
	}

	registry := jobs.NewRegistry()
	results := jobs.NewResultStore(client, time.Duration(cfg.ResultTTLSeconds)*time.Second)

	gateway, err := jobs.NewGateway(stream, registry, log.Default())
	if err != nil {
		client.Close()
		return nil, err
	}

	processor := pdf.NewService(cfg, log.Default())
	reporter := jobs.NewHTTPReporter(cfg.APIBaseURL)

	consumer, err := jobs.NewConsumer(stream, processor, results, reporter, log.Default())
	if err != nil {
		client.Close()
		return nil, err
	}

	return &pipeline{
		redisClient: client,
		stream:      stream,
		registry:    registry,
		results:     results,
		gateway:     gateway,
		consumer:    consumer,
	}, nil
}

// Close は共有リソースを解放します。
func (p *pipeline) Close() {
	if err := p.redisClient.Close(); err != nil {
		log.Printf("Failed to close redis client: %v", err)
	}
}
