// Package pipeline 定义了文档生命周期的核心流程。
package pipeline

import (
	"context"

	"golang.org/x/sync/semaphore"

	"ragpro-go/internal/apperr"
	"ragpro-go/internal/vectorindex"
	"ragpro-go/pkg/embedding"
	"ragpro-go/pkg/log"
)

// Indexer 负责把分块向量化并带租户标签写入向量索引。
type Indexer struct {
	embedder embedding.Client
	index    vectorindex.Index
	sem      *semaphore.Weighted
}

// NewIndexer 创建一个新的 Indexer 实例。
func NewIndexer(embedder embedding.Client, index vectorindex.Index, sem *semaphore.Weighted) *Indexer {
	return &Indexer{embedder: embedder, index: index, sem: sem}
}

// Index 为每个分块计算向量并写入一条带完整载荷的记录，返回写入条数。
// 载荷在记录构造时即带上 owner/document 标签，不存在未打标就可见的记录。
func (ix *Indexer) Index(ctx context.Context, ownerID uint, documentID, fileName string, passages []string) (int, error) {
	if len(passages) == 0 {
		return 0, nil
	}

	// 向量化是秒级的模型调用，经由信号量限流，避免拖垮其他租户的请求
	if err := ix.sem.Acquire(ctx, 1); err != nil {
		return 0, apperr.Wrap(apperr.KindEmbedding, "等待向量化工作槽失败", err)
	}
	vectors, err := ix.embedder.Embed(ctx, passages)
	ix.sem.Release(1)
	if err != nil {
		return 0, apperr.Wrap(apperr.KindEmbedding, "分块向量化失败", err)
	}
	if len(vectors) != len(passages) {
		return 0, apperr.Newf(apperr.KindEmbedding, "向量数量不匹配: want %d, got %d", len(passages), len(vectors))
	}

	records := make([]vectorindex.Record, len(passages))
	for i, text := range passages {
		records[i] = vectorindex.Record{
			ID:     vectorindex.RecordID(documentID, i),
			Vector: vectors[i],
			Payload: vectorindex.Payload{
				OwnerID:    ownerID,
				DocumentID: documentID,
				FileName:   fileName,
				ChunkIndex: i,
				Text:       text,
			},
		}
	}

	if err := ix.index.Upsert(ctx, records); err != nil {
		return 0, apperr.Retryable(apperr.KindIndex, "写入向量索引失败", err)
	}

	log.Infof("[Indexer] 成功索引 %d 个分块, DocumentID: %s, OwnerID: %d", len(records), documentID, ownerID)
	return len(records), nil
}

// EmbedQuery 为查询文本计算单个向量，与分块共用同一个限流信号量。
func (ix *Indexer) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	if err := ix.sem.Acquire(ctx, 1); err != nil {
		return nil, apperr.Wrap(apperr.KindEmbedding, "等待向量化工作槽失败", err)
	}
	defer ix.sem.Release(1)

	vectors, err := ix.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, apperr.Wrap(apperr.KindEmbedding, "查询向量化失败", err)
	}
	if len(vectors) != 1 {
		return nil, apperr.Newf(apperr.KindEmbedding, "查询向量化返回 %d 个向量", len(vectors))
	}
	return vectors[0], nil
}
