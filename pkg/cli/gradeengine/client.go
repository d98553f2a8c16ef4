package gradeengine

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/LENAX/grade-engine/pkg/api/dto"
)

// GradeEngine HTTP API客户端
type GradeEngine struct {
	baseURL    string
	httpClient *http.Client
}

// New 创建GradeEngine客户端
func New(baseURL string) *GradeEngine {
	return &GradeEngine{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
	}
}

// ListPlans 列出所有评分计划
func (g *GradeEngine) ListPlans() (*dto.ListResponse[dto.PlanSummary], error) {
	var resp dto.APIResponse[dto.ListResponse[dto.PlanSummary]]
	if err := g.get("/api/v1/plans", &resp); err != nil {
		return nil, err
	}
	if resp.Code != 0 {
		return nil, errors.New(resp.Message)
	}
	return &resp.Data, nil
}

// Grade 对单个评分对象评分
// 评分失败时同时返回失败记录和错误
func (g *GradeEngine) Grade(plan, subject string) (*dto.RunDetail, error) {
	var resp dto.APIResponse[dto.RunDetail]
	path := "/api/v1/plans/" + url.PathEscape(plan) + "/grade"
	if err := g.post(path, dto.GradeRequest{Subject: subject}, &resp); err != nil {
		return nil, err
	}
	if resp.Code == 422 {
		return &resp.Data, errors.New(resp.Message)
	}
	if resp.Code != 0 {
		return nil, errors.New(resp.Message)
	}
	return &resp.Data, nil
}

// GradeBatch 批量评分
func (g *GradeEngine) GradeBatch(plan string, subjects []string) (*dto.BatchResponse, error) {
	var resp dto.APIResponse[dto.BatchResponse]
	path := "/api/v1/plans/" + url.PathEscape(plan) + "/batch"
	if err := g.post(path, dto.BatchGradeRequest{Subjects: subjects}, &resp); err != nil {
		return nil, err
	}
	if resp.Code != 0 {
		return nil, errors.New(resp.Message)
	}
	return &resp.Data, nil
}

// ListRuns 查询评分计划的历史记录
func (g *GradeEngine) ListRuns(plan string, limit, offset int) (*dto.ListResponse[dto.RunDetail], error) {
	params := url.Values{}
	if limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", limit))
	}
	if offset > 0 {
		params.Set("offset", fmt.Sprintf("%d", offset))
	}

	path := "/api/v1/plans/" + url.PathEscape(plan) + "/runs"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var resp dto.APIResponse[dto.ListResponse[dto.RunDetail]]
	if err := g.get(path, &resp); err != nil {
		return nil, err
	}
	if resp.Code != 0 {
		return nil, errors.New(resp.Message)
	}
	return &resp.Data, nil
}

// GetRun 查询评分记录
func (g *GradeEngine) GetRun(id string) (*dto.RunDetail, error) {
	var resp dto.APIResponse[dto.RunDetail]
	if err := g.get("/api/v1/runs/"+url.PathEscape(id), &resp); err != nil {
		return nil, err
	}
	if resp.Code != 0 {
		return nil, errors.New(resp.Message)
	}
	return &resp.Data, nil
}

// Health 健康检查
func (g *GradeEngine) Health() (*dto.HealthResponse, error) {
	var resp dto.APIResponse[dto.HealthResponse]
	if err := g.get("/health", &resp); err != nil {
		return nil, err
	}
	if resp.Code != 0 {
		return nil, errors.New(resp.Message)
	}
	return &resp.Data, nil
}

func (g *GradeEngine) get(path string, result interface{}) error {
	resp, err := g.httpClient.Get(g.baseURL + path)
	if err != nil {
		return fmt.Errorf("HTTP请求失败: %w", err)
	}
	defer resp.Body.Close()

	return g.parseResponse(resp, result)
}

func (g *GradeEngine) post(path string, body interface{}, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("序列化请求体失败: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	resp, err := g.httpClient.Post(g.baseURL+path, "application/json", reqBody)
	if err != nil {
		return fmt.Errorf("HTTP请求失败: %w", err)
	}
	defer resp.Body.Close()

	return g.parseResponse(resp, result)
}

func (g *GradeEngine) parseResponse(resp *http.Response, result interface{}) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("读取响应体失败: %w", err)
	}

	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("解析响应失败: %w, body: %s", err, string(body))
	}

	return nil
}
