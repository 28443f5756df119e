package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/shouni/go-http-kit/pkg/httpkit"
)

const (
	defaultPollInterval = 10 * time.Second
	defaultPollTimeout  = 10 * time.Minute
)

// VideoTaskRequest は1クリップ分の生成依頼です。
type VideoTaskRequest struct {
	Prompt          string
	KeyframeURL     string
	DurationSeconds int
}

// VideoTaskResult は完了したタスクの成果物です。
type VideoTaskResult struct {
	VideoURL        string
	DurationSeconds int
}

// VideoClient は image-to-video サービスの非同期タスクAPIを叩くクライアントです。
// タスクを作成し、完了するまでポーリングします。
type VideoClient struct {
	httpClient   httpkit.ClientInterface
	baseURL      string
	apiKey       string
	model        string
	pollInterval time.Duration
	pollTimeout  time.Duration
}

// NewVideoClient は依存関係を注入して初期化します。
func NewVideoClient(httpClient httpkit.ClientInterface, baseURL, apiKey, model string) *VideoClient {
	return &VideoClient{
		httpClient:   httpClient,
		baseURL:      baseURL,
		apiKey:       apiKey,
		model:        model,
		pollInterval: defaultPollInterval,
		pollTimeout:  defaultPollTimeout,
	}
}

type createTaskPayload struct {
	Model           string `json:"model"`
	Prompt          string `json:"prompt"`
	ImageURL        string `json:"image_url,omitempty"`
	VideoURL        string `json:"video_url,omitempty"`
	DurationSeconds int    `json:"duration_seconds,omitempty"`
}

type taskResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
	Output struct {
		VideoURL        string `json:"video_url"`
		DurationSeconds int    `json:"duration_seconds"`
	} `json:"output"`
}

// Generate はキーフレームからの新規生成タスクを作成し、完了までポーリングします。
func (c *VideoClient) Generate(ctx context.Context, req VideoTaskRequest) (*VideoTaskResult, error) {
	taskID, err := c.createTask(ctx, createTaskPayload{
		Model:           c.model,
		Prompt:          req.Prompt,
		ImageURL:        req.KeyframeURL,
		DurationSeconds: req.DurationSeconds,
	})
	if err != nil {
		return nil, err
	}
	slog.Info("VideoClient: Task created", "task_id", taskID, "scene_duration", req.DurationSeconds)
	return c.waitForTask(ctx, taskID)
}

// Edit は既存クリップを元にした外科的修正タスクです。
// 尺とアスペクト比は依頼に含めず、元クリップのものを引き継がせます。
func (c *VideoClient) Edit(ctx context.Context, prompt, sourceVideoURL string) (*VideoTaskResult, error) {
	if sourceVideoURL == "" {
		return nil, fmt.Errorf("修正元クリップのURLが空です")
	}
	taskID, err := c.createTask(ctx, createTaskPayload{
		Model:    c.model,
		Prompt:   prompt,
		VideoURL: sourceVideoURL,
	})
	if err != nil {
		return nil, err
	}
	slog.Info("VideoClient: Edit task created", "task_id", taskID)
	return c.waitForTask(ctx, taskID)
}

func (c *VideoClient) createTask(ctx context.Context, payload createTaskPayload) (string, error) {
	var resp taskResponse
	if err := c.doJSON(ctx, http.MethodPost, "/v1/video/generations", payload, &resp); err != nil {
		return "", fmt.Errorf("動画タスクの作成に失敗しました: %w", err)
	}
	if resp.ID == "" {
		return "", fmt.Errorf("動画タスクの応答にIDがありません")
	}
	return resp.ID, nil
}

func (c *VideoClient) waitForTask(ctx context.Context, taskID string) (*VideoTaskResult, error) {
	deadline := time.Now().Add(c.pollTimeout)
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("動画タスク %s が %s 以内に完了しませんでした", taskID, c.pollTimeout)
		}

		var resp taskResponse
		if err := c.doJSON(ctx, http.MethodGet, "/v1/video/generations/"+taskID, nil, &resp); err != nil {
			return nil, fmt.Errorf("動画タスクの状態取得に失敗しました: %w", err)
		}

		switch resp.Status {
		case "succeeded":
			if resp.Output.VideoURL == "" {
				return nil, fmt.Errorf("動画タスク %s が成功したのにURLがありません", taskID)
			}
			return &VideoTaskResult{
				VideoURL:        resp.Output.VideoURL,
				DurationSeconds: resp.Output.DurationSeconds,
			}, nil
		case "failed", "cancelled":
			return nil, fmt.Errorf("動画タスク %s が失敗しました: %s", taskID, resp.Error)
		default:
			slog.Debug("VideoClient: Waiting for task", "task_id", taskID, "status", resp.Status)
		}
	}
}

func (c *VideoClient) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return err
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return fmt.Errorf("予期しないステータスコード %d: %s", res.StatusCode, truncateBody(data))
	}
	return json.Unmarshal(data, out)
}

func truncateBody(data []byte) string {
	const maxLen = 200
	if len(data) <= maxLen {
		return string(data)
	}
	return string(data[:maxLen]) + "..."
}
