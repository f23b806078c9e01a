package jobs

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/pdf-stream-processor/internal/pdf"
)

// Submitter はジョブ投入を提供するサービスが実装します。
type Submitter interface {
	Submit(ctx context.Context, filename string, content []byte, parser string) (*Record, error)
}

// ResultGetter は処理結果の取得を提供するストアが実装します。
type ResultGetter interface {
	Get(ctx context.Context, processingID string) (*ResultRecord, error)
}

// Pinger はブローカー接続の死活確認を提供します。
type Pinger interface {
	Ping(ctx context.Context) error
}

// UploadHandler は POST /upload-pdf のハンドラーを返します。
func UploadHandler(svc Submitter, maxFileSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		file, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    "INVALID_INPUT",
				"message": "multipart/form-data でPDFファイルを送信してください。",
			})
			return
		}

		if maxFileSize > 0 && file.Size > maxFileSize {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{
				"code":    "LIMIT_EXCEEDED",
				"message": "ファイルサイズが上限を超えています。",
			})
			return
		}

		opened, err := file.Open()
		if err != nil {
			respondWithError(c, err)
			return
		}
		defer opened.Close()

		content, err := io.ReadAll(opened)
		if err != nil {
			respondWithError(c, err)
			return
		}

		record, err := svc.Submit(c.Request.Context(), file.Filename, content, c.PostForm("parser"))
		if err != nil {
			respondWithError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"processing_id": record.ProcessingID,
			"status":        record.Status,
			"message":       record.Message,
			"parser":        record.Parser,
		})
	}
}

// StatusHandler は GET /status/:id のハンドラーを返します。
func StatusHandler(registry *Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		processingID := strings.TrimSpace(c.Param("id"))
		if processingID == "" {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    "INVALID_INPUT",
				"message": "processing_id を指定してください。",
			})
			return
		}

		record, ok := registry.Get(processingID)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{
				"code":    "NOT_FOUND",
				"message": "Processing ID not found",
			})
			return
		}

		payload := gin.H{
			"processing_id": record.ProcessingID,
			"status":        record.Status,
			"message":       record.Message,
			"parser":        record.Parser,
		}
		if record.Result != nil {
			payload["result"] = record.Result
		}
		c.JSON(http.StatusOK, payload)
	}
}

// ResultsHandler は GET /results/:id のハンドラーを返します。
// TTL切れと未登録はどちらも404になります。
func ResultsHandler(results ResultGetter) gin.HandlerFunc {
	return func(c *gin.Context) {
		processingID := strings.TrimSpace(c.Param("id"))
		if processingID == "" {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    "INVALID_INPUT",
				"message": "processing_id を指定してください。",
			})
			return
		}

		record, err := results.Get(c.Request.Context(), processingID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"code":    "INTERNAL_ERROR",
				"message": "処理結果の取得に失敗しました。",
			})
			return
		}
		if record == nil {
			c.JSON(http.StatusNotFound, gin.H{
				"code":    "NOT_FOUND",
				"message": "Results not found or expired",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"processing_id":   processingID,
			"markdown":        record.Markdown,
			"summary":         record.Summary,
			"parser_used":     record.ParserUsed,
			"filename":        record.Filename,
			"processing_time": record.ProcessingTime,
		})
	}
}

// UpdateStatusHandler は POST /update-status/:id のハンドラーを返します。
// ワーカーからの内部呼び出し用で、与えられたフィールドのみマージします。
func UpdateStatusHandler(registry *Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		processingID := strings.TrimSpace(c.Param("id"))
		if processingID == "" {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    "INVALID_INPUT",
				"message": "processing_id を指定してください。",
			})
			return
		}

		var update Update
		if err := c.ShouldBindJSON(&update); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    "INVALID_INPUT",
				"message": "ステータス更新の形式が正しくありません。",
			})
			return
		}

		if err := registry.Apply(processingID, update); err != nil {
			if errors.Is(err, ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{
					"code":    "NOT_FOUND",
					"message": "Processing ID not found",
				})
				return
			}
			respondWithError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "Status updated"})
	}
}

// HealthHandler は GET /health のハンドラーを返します。
func HealthHandler(pinger Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := pinger.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusOK, gin.H{
				"status": "unhealthy",
				"redis":  "disconnected",
				"error":  err.Error(),
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"redis":  "connected",
		})
	}
}

func respondWithError(c *gin.Context, err error) {
	var apiErr *pdf.Error
	switch {
	case errors.As(err, &apiErr):
		status := http.StatusBadRequest
		if apiErr.Code == "LIMIT_EXCEEDED" {
			status = http.StatusRequestEntityTooLarge
		}
		c.JSON(status, gin.H{
			"code":    apiErr.Code,
			"message": apiErr.Message,
		})
	case errors.Is(err, context.Canceled):
		c.JSON(http.StatusRequestTimeout, gin.H{
			"code":    "REQUEST_CANCELED",
			"message": "リクエストがキャンセルされました。",
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    "INTERNAL_ERROR",
			"message": "サーバー内部でエラーが発生しました。",
		})
	}
}
