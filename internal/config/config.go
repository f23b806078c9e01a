// Package config は環境変数から設定を読み込み、アプリケーション全体で使用する設定を提供します。
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config はアプリケーションの設定を保持する構造体です。
type Config struct {
	// サーバー設定
	Port    string // APIサーバーのポート番号
	GinMode string // Ginの実行モード (debug, release, test)

	// CORS設定
	CORSAllowedOrigins string // CORS許可オリジン（カンマ区切り、"*" で全許可）

	// Redis設定
	RedisURL string // Redis接続URL（ストリームと結果ストアで共用）

	// ストリーム設定
	StreamName    string // 処理ジョブ用ストリーム名
	ConsumerGroup string // コンシューマーグループ名
	ConsumerName  string // このプロセスのコンシューマー名

	// 結果ストア設定
	ResultTTLSeconds int // 処理結果の保持期間（秒）

	// ファイル制限
	MaxFileSize int64 // 単一ファイルの最大サイズ（バイト）

	// ワーカー設定
	APIBaseURL string // ステータス更新API呼び出し用のベースURL

	// Gemini設定
	GeminiAPIKey string // Gemini APIキー（空の場合は要約をスキップ）
	GeminiModel  string // 使用するGeminiモデル名
}

// Load は環境変数から設定を読み込みます。
// .env.local ファイルが存在する場合はそこから読み込みます。
func Load() (*Config, error) {
	loadEnvFile()

	config := &Config{
		Port:    getEnv("PORT", "8000"),
		GinMode: getEnv("GIN_MODE", "debug"),

		CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),

		RedisURL: getEnv("REDIS_URL", "redis://127.0.0.1:6379/0"),

		StreamName:    getEnv("STREAM_NAME", "pdf_processing_stream"),
		ConsumerGroup: getEnv("CONSUMER_GROUP", "pdf_consumers"),
		ConsumerName:  getEnv("CONSUMER_NAME", "pdf_consumer_1"),

		ResultTTLSeconds: getEnvAsInt("RESULT_TTL_SECONDS", 86400),

		MaxFileSize: getEnvAsInt64("MAX_FILE_SIZE", 104857600), // 100MB

		APIBaseURL: getEnv("API_BASE_URL", "http://localhost:8000"),

		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-2.0-flash-exp"),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func loadEnvFile() {
	if err := godotenv.Load(".env.local"); err == nil {
		return
	}

	cwd, err := os.Getwd()
	if err != nil {
		return
	}

	parent := filepath.Dir(cwd)
	if parent == "" || parent == cwd {
		return
	}

	_ = godotenv.Load(filepath.Join(parent, ".env.local"))
}

// Validate は設定の妥当性を検証します。
func (c *Config) Validate() error {
	if c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}
	if c.StreamName == "" {
		return fmt.Errorf("STREAM_NAME is required")
	}
	if c.ConsumerGroup == "" {
		return fmt.Errorf("CONSUMER_GROUP is required")
	}
	if c.ConsumerName == "" {
		return fmt.Errorf("CONSUMER_NAME is required")
	}
	if c.ResultTTLSeconds <= 0 {
		return fmt.Errorf("RESULT_TTL_SECONDS must be positive")
	}

	// ローカル開発ではGemini APIキーは任意。本番では要約まで含めて動かす想定。
	if c.GinMode == "release" {
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required in release mode")
		}
	}

	return nil
}

// getEnv は環境変数を取得し、存在しない場合はデフォルト値を返します。
func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt は環境変数を整数として取得します。
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsInt64 は環境変数を64ビット整数として取得します。
func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}
