// Package vectorindex 定义了向量索引的契约及其实现。
//
// 每条记录的载荷都必须带租户标签（owner_id），检索时的租户过滤在索引
// 服务端执行，绝不允许取回后再在客户端过滤。
package vectorindex

import (
	"context"
	"fmt"
)

// Payload 是每条向量记录随行携带的元数据。OwnerID 必须与文档目录中
// 该文档的属主一致，不一致属于安全缺陷而非可恢复错误。
type Payload struct {
	OwnerID    uint   `json:"owner_id"`
	DocumentID string `json:"document_id"`
	FileName   string `json:"filename"`
	ChunkIndex int    `json:"chunk_index"`
	Text       string `json:"text_content"`
}

// Record 是一条待写入的向量记录。
type Record struct {
	ID      string
	Vector  []float32
	Payload Payload
}

// Hit 是一次相似度检索的单条命中。
type Hit struct {
	Payload Payload
	Score   float64
}

// Index 是向量索引的窄契约。
type Index interface {
	// Upsert 写入一批记录。原子性以单条记录为界：任何记录在可见之前
	// 必须已带完整的租户标签。
	Upsert(ctx context.Context, records []Record) error
	// Search 返回指定属主名下与查询向量最相似的至多 k 条记录，
	// 按相似度降序。属主没有任何记录时返回空切片而非错误。
	Search(ctx context.Context, vector []float32, ownerID uint, k int) ([]Hit, error)
	// DeleteByDocument 删除 (ownerID, documentID) 名下的全部记录。
	DeleteByDocument(ctx context.Context, ownerID uint, documentID string) error
}

// RecordID 生成确定性的记录 ID。按文档与分块序号定位单条记录，
// 使精确删除不依赖索引后端的按元数据删除能力。
func RecordID(documentID string, chunkIndex int) string {
	return fmt.Sprintf("%s_%d", documentID, chunkIndex)
}
