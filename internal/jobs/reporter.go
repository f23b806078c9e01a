package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// StatusReporter はワーカーがステータス更新を通知するための契約です。
// テストではインメモリ実装に差し替えられます。
type StatusReporter interface {
	Report(ctx context.Context, processingID string, update Update) error
}

// HTTPReporter はAPIサーバーの /update-status エンドポイント経由で
// ステータスを更新します。ワーカーとAPIが別プロセスの構成で使用します。
type HTTPReporter struct {
	baseURL string
	client  *http.Client
}

// NewHTTPReporter は HTTPReporter を作成します。
func NewHTTPReporter(baseURL string) *HTTPReporter {
	return &HTTPReporter{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Report はステータス更新をPOSTします。
func (r *HTTPReporter) Report(ctx context.Context, processingID string, update Update) error {
	payload, err := json.Marshal(update)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/update-status/%s", r.baseURL, processingID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("status update request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status update failed with status %d", resp.StatusCode)
	}
	return nil
}

// RegistryReporter はレジストリへ直接書き込むレポーターです。
// APIとワーカーが同一プロセスで動く構成向けです。
type RegistryReporter struct {
	registry *Registry
}

// NewRegistryReporter は RegistryReporter を作成します。
func NewRegistryReporter(registry *Registry) *RegistryReporter {
	return &RegistryReporter{registry: registry}
}

// Report はレジストリへ部分更新を適用します。
func (r *RegistryReporter) Report(_ context.Context, processingID string, update Update) error {
	return r.registry.Apply(processingID, update)
}
