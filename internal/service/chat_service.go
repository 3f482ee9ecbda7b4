// Package service 实现了各业务模块的核心逻辑。
package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"ragpro-go/internal/apperr"
	"ragpro-go/internal/config"
	"ragpro-go/internal/model"
	"ragpro-go/internal/pipeline"
	"ragpro-go/internal/vectorindex"
	"ragpro-go/pkg/llm"
	"ragpro-go/pkg/log"
	"ragpro-go/pkg/rerank"
)

// defaultNoResultText 是检索不到任何分块时的兜底回答。
const defaultNoResultText = "I couldn't find any relevant information in your uploaded documents. Please upload documents first."

// answerPrompt 是问答生成的提示词模板，占位符依次为上下文与问题。
const answerPrompt = `You are a helpful assistant analyzing documents to answer questions accurately.

Context from relevant documents:
%s

Question: %s

Instructions:
1. First, identify which parts of the context are relevant to the question
2. Think through the answer step by step
3. Provide a clear, accurate answer based on the context
4. If the context doesn't contain enough information, say so clearly
5. Cite which source(s) you used in your answer

Answer:`

// ChatService 定义了检索增强问答的接口。
type ChatService interface {
	Answer(ctx context.Context, ownerID uint, query string) (*model.ChatResponse, error)
}

// chatService 串联 检索 → 重排序 → 上下文组装 → 生成 四个阶段。
type chatService struct {
	indexer *pipeline.Indexer
	index   vectorindex.Index
	scorer  rerank.Scorer
	llm     llm.Client
	sem     *semaphore.Weighted
	cfg     config.PipelineConfig
	prompt  config.LLMPromptConfig
}

// NewChatService 创建一个新的 ChatService 实例。
func NewChatService(
	indexer *pipeline.Indexer,
	index vectorindex.Index,
	scorer rerank.Scorer,
	llmClient llm.Client,
	sem *semaphore.Weighted,
	cfg config.PipelineConfig,
	prompt config.LLMPromptConfig,
) ChatService {
	return &chatService{
		indexer: indexer,
		index:   index,
		scorer:  scorer,
		llm:     llmClient,
		sem:     sem,
		cfg:     cfg,
		prompt:  prompt,
	}
}

// Answer 回答一次查询。查询校验在任何模型调用之前完成；
// 检索结果为空时直接返回兜底文案，不触发重排序与生成。
func (s *chatService) Answer(ctx context.Context, ownerID uint, query string) (*model.ChatResponse, error) {
	if strings.TrimSpace(query) == "" {
		return nil, apperr.New(apperr.KindValidation, "查询内容不能为空")
	}

	log.Infof("[Chat] 收到问答请求, OwnerID: %d", ownerID)

	// 1. 查询向量化 + 带租户过滤的向量检索
	vector, err := s.indexer.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	hits, err := s.index.Search(ctx, vector, ownerID, s.cfg.RetrieveK)
	if err != nil {
		return nil, apperr.Retryable(apperr.KindRetrieval, "向量检索失败", err)
	}
	log.Infof("[Chat] 步骤1: 检索到 %d 个候选分块", len(hits))

	if len(hits) == 0 {
		return &model.ChatResponse{Response: s.noResultText(), Sources: []string{}}, nil
	}

	// 2. 交叉编码器重排序。分数相同的分块保持检索顺序
	candidates := make([]model.RetrievedChunk, len(hits))
	passages := make([]string, len(hits))
	for i, hit := range hits {
		candidates[i] = model.RetrievedChunk{
			DocumentID: hit.Payload.DocumentID,
			FileName:   hit.Payload.FileName,
			ChunkIndex: hit.Payload.ChunkIndex,
			Text:       hit.Payload.Text,
			Score:      hit.Score,
		}
		passages[i] = hit.Payload.Text
	}

	scores, err := s.rerankScores(ctx, query, passages)
	if err != nil {
		return nil, err
	}
	for i := range candidates {
		candidates[i].Score = scores[i]
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].Score > candidates[j].Score })
	if len(candidates) > s.cfg.RerankK {
		candidates = candidates[:s.cfg.RerankK]
	}
	log.Infof("[Chat] 步骤2: 重排序完成, 保留 %d 个分块", len(candidates))

	// 3. 上下文组装与来源归集。来源按首次出现顺序去重
	contextParts := make([]string, len(candidates))
	sources := make([]string, 0, len(candidates))
	seen := make(map[string]bool)
	for i, chunk := range candidates {
		contextParts[i] = fmt.Sprintf("[Source %d: %s]\n%s", i+1, chunk.FileName, chunk.Text)
		if !seen[chunk.FileName] {
			seen[chunk.FileName] = true
			sources = append(sources, chunk.FileName)
		}
	}
	prompt := fmt.Sprintf(answerPrompt, strings.Join(contextParts, "\n\n---\n\n"), query)

	// 4. 生成回答
	answer, err := s.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	log.Infof("[Chat] 问答完成, OwnerID: %d, Sources: %d", ownerID, len(sources))
	return &model.ChatResponse{Response: answer, Sources: sources}, nil
}

// rerankScores 经由信号量限流调用重排序服务，返回与输入同序的分数。
func (s *chatService) rerankScores(ctx context.Context, query string, passages []string) ([]float64, error) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, apperr.Wrap(apperr.KindRerank, "等待重排序工作槽失败", err)
	}
	defer s.sem.Release(1)

	scores, err := s.scorer.Score(ctx, query, passages)
	if err != nil {
		return nil, apperr.Retryable(apperr.KindRerank, "重排序服务调用失败", err)
	}
	if len(scores) != len(passages) {
		return nil, apperr.Newf(apperr.KindRerank, "重排序分数数量不匹配: want %d, got %d", len(passages), len(scores))
	}
	return scores, nil
}

// generate 在配置的超时内调用大模型。超时与上游故障都按可重试的生成错误返回。
func (s *chatService) generate(ctx context.Context, prompt string) (string, error) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return "", apperr.Wrap(apperr.KindGeneration, "等待生成工作槽失败", err)
	}
	defer s.sem.Release(1)

	timeout := time.Duration(s.cfg.GenerationTimeoutSec) * time.Second
	genCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	answer, err := s.llm.Complete(genCtx, prompt)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", apperr.Retryable(apperr.KindGeneration, "生成超时", err)
		}
		return "", apperr.Retryable(apperr.KindGeneration, "生成回答失败", err)
	}
	return answer, nil
}

// noResultText 返回无检索结果时的回答文案，未配置时使用内置缺省值。
func (s *chatService) noResultText() string {
	if s.prompt.NoResultText != "" {
		return s.prompt.NoResultText
	}
	return defaultNoResultText
}
