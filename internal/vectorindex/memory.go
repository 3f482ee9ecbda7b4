package vectorindex

import (
	"context"
	"math"
	"sort"
	"sync"
)

// Memory 是 Index 的进程内实现，用于本地运行与测试。
// 语义与 Elastic 实现保持一致：服务端租户过滤、cosine 相似度、
// 相同分数时按写入顺序稳定排序。
type Memory struct {
	mu    sync.RWMutex
	order []string
	byID  map[string]Record
}

// NewMemory 创建一个空的内存索引。
func NewMemory() *Memory {
	return &Memory{byID: make(map[string]Record)}
}

// Upsert 写入一批记录，已存在的 ID 被覆盖。
func (m *Memory) Upsert(ctx context.Context, records []Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range records {
		if _, exists := m.byID[rec.ID]; !exists {
			m.order = append(m.order, rec.ID)
		}
		m.byID[rec.ID] = rec
	}
	return nil
}

// Search 在指定属主的记录内做 cosine 相似度排序。
func (m *Memory) Search(ctx context.Context, vector []float32, ownerID uint, k int) ([]Hit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var hits []Hit
	for _, id := range m.order {
		rec := m.byID[id]
		if rec.Payload.OwnerID != ownerID {
			continue
		}
		hits = append(hits, Hit{Payload: rec.Payload, Score: cosine(vector, rec.Vector)})
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// DeleteByDocument 删除 (ownerID, documentID) 名下的全部记录。
func (m *Memory) DeleteByDocument(ctx context.Context, ownerID uint, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	keep := m.order[:0]
	for _, id := range m.order {
		rec := m.byID[id]
		if rec.Payload.OwnerID == ownerID && rec.Payload.DocumentID == documentID {
			delete(m.byID, id)
			continue
		}
		keep = append(keep, id)
	}
	m.order = keep
	return nil
}

// Len 返回索引中的记录总数。
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byID)
}

// CountDocument 返回 (ownerID, documentID) 名下的记录条数。
func (m *Memory) CountDocument(ownerID uint, documentID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, rec := range m.byID {
		if rec.Payload.OwnerID == ownerID && rec.Payload.DocumentID == documentID {
			n++
		}
	}
	return n
}

// cosine 计算两个向量的余弦相似度，零向量返回 0。
func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
