package vectorindex

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"ragpro-go/internal/config"
	"ragpro-go/pkg/log"
)

// Elastic 是 Index 的 Elasticsearch 实现，使用 dense_vector + cosine。
type Elastic struct {
	client *elasticsearch.Client
	index  string
}

// NewElastic 初始化 Elasticsearch 客户端并确保索引存在。
func NewElastic(esCfg config.ElasticsearchConfig, dims int) (*Elastic, error) {
	cfg := elasticsearch.Config{
		Addresses: []string{esCfg.Addresses},
		Username:  esCfg.Username,
		Password:  esCfg.Password,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	}
	client, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	e := &Elastic{client: client, index: esCfg.IndexName}
	if err := e.createIndexIfNotExists(dims); err != nil {
		return nil, err
	}
	return e, nil
}

// createIndexIfNotExists 检查索引是否存在，如果不存在则创建它
func (e *Elastic) createIndexIfNotExists(dims int) error {
	res, err := e.client.Indices.Exists([]string{e.index})
	if err != nil {
		log.Errorf("检查索引是否存在时出错: %v", err)
		return err
	}
	if !res.IsError() && res.StatusCode == http.StatusOK {
		log.Infof("索引 '%s' 已存在", e.index)
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		log.Errorf("检查索引 '%s' 是否存在时收到意外的状态码: %d", e.index, res.StatusCode)
		return fmt.Errorf("检查索引是否存在时收到意外的状态码: %d", res.StatusCode)
	}

	// owner_id / document_id 为 keyword 精确过滤字段；向量走 cosine 相似度
	mapping := fmt.Sprintf(`{
		"mappings": {
			"properties": {
				"owner_id": { "type": "long" },
				"document_id": { "type": "keyword" },
				"filename": { "type": "keyword" },
				"chunk_index": { "type": "integer" },
				"text_content": { "type": "text" },
				"vector": {
					"type": "dense_vector",
					"dims": %d,
					"index": true,
					"similarity": "cosine"
				}
			}
		}
	}`, dims)

	res, err = e.client.Indices.Create(
		e.index,
		e.client.Indices.Create.WithBody(strings.NewReader(mapping)),
	)
	if err != nil {
		log.Errorf("创建索引 '%s' 失败: %v", e.index, err)
		return err
	}
	if res.IsError() {
		log.Errorf("创建索引 '%s' 时 Elasticsearch 返回错误: %s", e.index, res.String())
		return errors.New("创建索引时 Elasticsearch 返回错误")
	}

	log.Infof("索引 '%s' 创建成功", e.index)
	return nil
}

// esDocument 是写入 Elasticsearch 的文档结构。
type esDocument struct {
	Payload
	Vector []float32 `json:"vector"`
}

// Upsert 逐条写入记录，记录 ID 即确定性的 RecordID。
func (e *Elastic) Upsert(ctx context.Context, records []Record) error {
	for _, rec := range records {
		docBytes, err := json.Marshal(esDocument{Payload: rec.Payload, Vector: rec.Vector})
		if err != nil {
			return err
		}

		req := esapi.IndexRequest{
			Index:      e.index,
			DocumentID: rec.ID,
			Body:       bytes.NewReader(docBytes),
			Refresh:    "true",
		}

		res, err := req.Do(ctx, e.client)
		if err != nil {
			return err
		}
		if res.IsError() {
			body := res.String()
			res.Body.Close()
			log.Errorf("索引向量记录到 Elasticsearch 出错: %s", body)
			return fmt.Errorf("failed to index record %s", rec.ID)
		}
		res.Body.Close()
	}
	return nil
}

// Search 执行带租户过滤的 knn 检索。过滤条件位于 knn 子句内部，
// 由 Elasticsearch 在候选收集阶段执行，而不是取回后再筛。
func (e *Elastic) Search(ctx context.Context, vector []float32, ownerID uint, k int) ([]Hit, error) {
	query := map[string]interface{}{
		"knn": map[string]interface{}{
			"field":          "vector",
			"query_vector":   vector,
			"k":              k,
			"num_candidates": k * 10,
			"filter": map[string]interface{}{
				"term": map[string]interface{}{"owner_id": ownerID},
			},
		},
		"size": k,
		"_source": map[string]interface{}{
			"excludes": []string{"vector"},
		},
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(query); err != nil {
		return nil, fmt.Errorf("failed to encode es query: %w", err)
	}

	res, err := e.client.Search(
		e.client.Search.WithContext(ctx),
		e.client.Search.WithIndex(e.index),
		e.client.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch search failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		log.Errorf("Elasticsearch 返回错误, status: %s", res.Status())
		return nil, fmt.Errorf("elasticsearch returned an error: %s", res.String())
	}

	var esResponse struct {
		Hits struct {
			Hits []struct {
				Source Payload `json:"_source"`
				Score  float64 `json:"_score"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&esResponse); err != nil {
		return nil, fmt.Errorf("failed to decode es response: %w", err)
	}

	hits := make([]Hit, 0, len(esResponse.Hits.Hits))
	for _, h := range esResponse.Hits.Hits {
		hits = append(hits, Hit{Payload: h.Source, Score: h.Score})
	}
	return hits, nil
}

// DeleteByDocument 按 (owner_id, document_id) 删除记录。
func (e *Elastic) DeleteByDocument(ctx context.Context, ownerID uint, documentID string) error {
	query := map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must": []map[string]interface{}{
					{"term": map[string]interface{}{"owner_id": ownerID}},
					{"term": map[string]interface{}{"document_id": documentID}},
				},
			},
		},
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(query); err != nil {
		return fmt.Errorf("failed to encode delete query: %w", err)
	}

	res, err := e.client.DeleteByQuery(
		[]string{e.index},
		&buf,
		e.client.DeleteByQuery.WithContext(ctx),
		e.client.DeleteByQuery.WithRefresh(true),
	)
	if err != nil {
		return fmt.Errorf("elasticsearch delete_by_query failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		log.Errorf("Elasticsearch 删除向量记录失败, status: %s", res.Status())
		return fmt.Errorf("elasticsearch returned an error on delete: %s", res.String())
	}
	return nil
}
