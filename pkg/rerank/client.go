// Package rerank provides a client for cross-encoder relevance scoring.
package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"ragpro-go/internal/config"
	"ragpro-go/pkg/log"
)

// Scorer defines the interface for a cross-encoder scorer.
// Score 对每个 (query, passage) 对独立打分，返回与 passages 同序的分数，
// 分数越高相关性越强。
type Scorer interface {
	Score(ctx context.Context, query string, passages []string) ([]float64, error)
}

type httpClient struct {
	cfg    config.RerankConfig
	client *http.Client
}

// NewClient creates a rerank client for a Jina/Cohere-compatible /rerank API.
func NewClient(cfg config.RerankConfig) Scorer {
	return &httpClient{
		cfg:    cfg,
		client: &http.Client{},
	}
}

type rerankRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	// 要求服务端返回全部文档的分数，截断由调用方完成。
	TopN int `json:"top_n"`
}

type rerankResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
}

// Score calls the rerank API and maps scores back to input order.
func (c *httpClient) Score(ctx context.Context, query string, passages []string) ([]float64, error) {
	if len(passages) == 0 {
		return nil, nil
	}
	log.Infof("[RerankClient] 开始调用 Rerank API, model: %s, pairs: %d", c.cfg.Model, len(passages))

	reqBody := rerankRequest{
		Model:     c.cfg.Model,
		Query:     query,
		Documents: passages,
		TopN:      len(passages),
	}
	reqBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.cfg.BaseURL+"/rerank", bytes.NewReader(reqBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create rerank request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		log.Errorf("[RerankClient] 调用 Rerank API 失败, error: %v", err)
		return nil, fmt.Errorf("failed to call rerank api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Errorf("[RerankClient] Rerank API 返回非 200 状态码: %s", resp.Status)
		return nil, fmt.Errorf("rerank api returned non-200 status: %s", resp.Status)
	}

	var rerankResp rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&rerankResp); err != nil {
		log.Errorf("[RerankClient] 解析 Rerank API 响应失败, error: %v", err)
		return nil, fmt.Errorf("failed to decode rerank response: %w", err)
	}

	// 服务端按分数降序返回，这里还原为输入顺序
	scores := make([]float64, len(passages))
	seen := make([]bool, len(passages))
	for _, r := range rerankResp.Results {
		if r.Index < 0 || r.Index >= len(passages) {
			return nil, fmt.Errorf("rerank api returned out-of-range index %d", r.Index)
		}
		scores[r.Index] = r.RelevanceScore
		seen[r.Index] = true
	}
	for i, ok := range seen {
		if !ok {
			return nil, fmt.Errorf("rerank api returned no score for document %d", i)
		}
	}

	log.Infof("[RerankClient] 成功获取 %d 个相关性分数", len(scores))
	return scores, nil
}
