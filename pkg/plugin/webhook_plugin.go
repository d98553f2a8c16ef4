package plugin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/LENAX/grade-engine/pkg/core/events"
)

// WebhookPlugin 将评分事件以 JSON 形式 POST 到外部地址（对外导出）
type WebhookPlugin struct {
	name    string
	url     string
	headers map[string]string
	client  *http.Client
	enabled bool
}

// NewWebhookPlugin 创建 Webhook 插件，name 为空时使用 "webhook"
func NewWebhookPlugin(name string) Plugin {
	if name == "" {
		name = "webhook"
	}
	return &WebhookPlugin{
		name:    name,
		headers: make(map[string]string),
	}
}

// Name 插件名称（实现Plugin接口）
func (w *WebhookPlugin) Name() string {
	return w.name
}

// Init 初始化插件（实现Plugin接口）
// 参数: url（必填），timeout（默认 5s），header.<Name>（附加请求头）
func (w *WebhookPlugin) Init(params map[string]string) error {
	w.url = params["url"]
	if w.url == "" {
		return fmt.Errorf("url参数不能为空")
	}
	if !strings.HasPrefix(w.url, "http://") && !strings.HasPrefix(w.url, "https://") {
		return fmt.Errorf("url必须以http://或https://开头: %s", w.url)
	}

	timeout := 5 * time.Second
	if s := params["timeout"]; s != "" {
		d, err := time.ParseDuration(s)
		if err != nil || d <= 0 {
			return fmt.Errorf("timeout参数格式错误: %s", s)
		}
		timeout = d
	}
	w.client = &http.Client{Timeout: timeout}

	for k, v := range params {
		if name, ok := strings.CutPrefix(k, "header."); ok && name != "" {
			w.headers[name] = v
		}
	}

	w.enabled = true
	log.Printf("✅ [WebhookPlugin] 初始化完成: Name=%s, URL=%s, Timeout=%s", w.name, w.url, timeout)
	return nil
}

// Execute 发送事件（实现Plugin接口）
func (w *WebhookPlugin) Execute(ctx context.Context, event *events.GradeEvent) error {
	if !w.enabled {
		return fmt.Errorf("webhook插件未初始化")
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("序列化事件失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Grade-Event", string(event.Type))
	for k, v := range w.headers {
		req.Header.Set(k, v)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("请求失败: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook返回非成功状态: %d", resp.StatusCode)
	}
	return nil
}
