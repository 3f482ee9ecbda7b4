package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/semaphore"

	"ragpro-go/internal/apperr"
	"ragpro-go/internal/config"
	"ragpro-go/internal/pipeline"
	"ragpro-go/internal/vectorindex"
)

// ---- fakes ----

type stubEmbedder struct {
	calls int
}

func (s *stubEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	s.calls++
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

type stubScorer struct {
	scores   func(passages []string) []float64
	err      error
	calls    int
	received []string
}

func (s *stubScorer) Score(ctx context.Context, query string, passages []string) ([]float64, error) {
	s.calls++
	s.received = passages
	if s.err != nil {
		return nil, s.err
	}
	if s.scores != nil {
		return s.scores(passages), nil
	}
	out := make([]float64, len(passages))
	for i := range out {
		out[i] = 0.5
	}
	return out, nil
}

type stubLLM struct {
	answer string
	err    error
	calls  int
	prompt string
}

func (s *stubLLM) Complete(ctx context.Context, prompt string) (string, error) {
	s.calls++
	s.prompt = prompt
	if s.err != nil {
		return "", s.err
	}
	return s.answer, nil
}

// ---- harness ----

type chatFixture struct {
	svc      ChatService
	index    *vectorindex.Memory
	embedder *stubEmbedder
	scorer   *stubScorer
	llm      *stubLLM
}

func newChatFixture(t *testing.T, cfg config.PipelineConfig) *chatFixture {
	t.Helper()
	if cfg.RetrieveK == 0 {
		cfg.RetrieveK = 12
	}
	if cfg.RerankK == 0 {
		cfg.RerankK = 5
	}
	if cfg.GenerationTimeoutSec == 0 {
		cfg.GenerationTimeoutSec = 30
	}

	f := &chatFixture{
		index:    vectorindex.NewMemory(),
		embedder: &stubEmbedder{},
		scorer:   &stubScorer{},
		llm:      &stubLLM{answer: "the answer"},
	}
	sem := semaphore.NewWeighted(2)
	indexer := pipeline.NewIndexer(f.embedder, f.index, sem)
	f.svc = NewChatService(indexer, f.index, f.scorer, f.llm, sem, cfg, config.LLMPromptConfig{})
	return f
}

// seed 往索引里写入一条记录。所有向量相同，检索顺序即写入顺序。
func (f *chatFixture) seed(t *testing.T, ownerID uint, documentID, fileName string, chunkIndex int, text string) {
	t.Helper()
	err := f.index.Upsert(context.Background(), []vectorindex.Record{{
		ID:     vectorindex.RecordID(documentID, chunkIndex),
		Vector: []float32{1, 0},
		Payload: vectorindex.Payload{
			OwnerID:    ownerID,
			DocumentID: documentID,
			FileName:   fileName,
			ChunkIndex: chunkIndex,
			Text:       text,
		},
	}})
	require.NoError(t, err)
}

// ---- tests ----

func TestAnswerRejectsEmptyQuery(t *testing.T) {
	f := newChatFixture(t, config.PipelineConfig{})

	for _, query := range []string{"", "   ", "\n\t"} {
		_, err := f.svc.Answer(context.Background(), 1, query)
		require.Error(t, err)
		assert.True(t, apperr.IsKind(err, apperr.KindValidation))
	}

	// 校验在任何模型调用之前完成
	assert.Equal(t, 0, f.embedder.calls)
	assert.Equal(t, 0, f.scorer.calls)
	assert.Equal(t, 0, f.llm.calls)
}

func TestAnswerNoDocumentsShortCircuits(t *testing.T) {
	f := newChatFixture(t, config.PipelineConfig{})

	resp, err := f.svc.Answer(context.Background(), 1, "anything relevant?")
	require.NoError(t, err)

	assert.Equal(t, defaultNoResultText, resp.Response)
	assert.NotNil(t, resp.Sources)
	assert.Empty(t, resp.Sources)

	// 空结果不触发重排序与生成
	assert.Equal(t, 0, f.scorer.calls)
	assert.Equal(t, 0, f.llm.calls)
}

func TestAnswerTenantIsolation(t *testing.T) {
	f := newChatFixture(t, config.PipelineConfig{})
	f.seed(t, 1, "doc-a", "alice.txt", 0, "alice private content")
	f.seed(t, 2, "doc-b", "bob.txt", 0, "bob secret content")
	f.seed(t, 2, "doc-c", "bob2.txt", 0, "more bob content")

	resp, err := f.svc.Answer(context.Background(), 1, "what do I have?")
	require.NoError(t, err)

	// 上下文与来源只包含请求属主自己的分块
	assert.Contains(t, f.llm.prompt, "alice private content")
	assert.NotContains(t, f.llm.prompt, "bob secret content")
	assert.NotContains(t, f.llm.prompt, "more bob content")
	assert.Equal(t, []string{"alice.txt"}, resp.Sources)
}

func TestAnswerStableOrderOnTiedScores(t *testing.T) {
	f := newChatFixture(t, config.PipelineConfig{RerankK: 3})
	f.seed(t, 1, "doc", "first.txt", 0, "text one")
	f.seed(t, 1, "doc", "second.txt", 1, "text two")
	f.seed(t, 1, "doc", "third.txt", 2, "text three")

	// 所有重排序分数相同，输出顺序必须保持检索顺序
	_, err := f.svc.Answer(context.Background(), 1, "query")
	require.NoError(t, err)

	p1 := strings.Index(f.llm.prompt, "[Source 1: first.txt]")
	p2 := strings.Index(f.llm.prompt, "[Source 2: second.txt]")
	p3 := strings.Index(f.llm.prompt, "[Source 3: third.txt]")
	require.NotEqual(t, -1, p1)
	require.NotEqual(t, -1, p2)
	require.NotEqual(t, -1, p3)
	assert.Less(t, p1, p2)
	assert.Less(t, p2, p3)
}

func TestAnswerRerankReordersAndTruncates(t *testing.T) {
	f := newChatFixture(t, config.PipelineConfig{RerankK: 2})
	f.seed(t, 1, "doc", "low.txt", 0, "barely related")
	f.seed(t, 1, "doc", "mid.txt", 1, "somewhat related")
	f.seed(t, 1, "doc", "high.txt", 2, "highly related")

	f.scorer.scores = func(passages []string) []float64 {
		out := make([]float64, len(passages))
		for i, p := range passages {
			switch {
			case strings.HasPrefix(p, "highly"):
				out[i] = 0.99
			case strings.HasPrefix(p, "somewhat"):
				out[i] = 0.5
			default:
				out[i] = 0.01
			}
		}
		return out
	}

	resp, err := f.svc.Answer(context.Background(), 1, "query")
	require.NoError(t, err)

	// 只保留得分最高的两个分块，且按降序排列
	assert.Contains(t, f.llm.prompt, "[Source 1: high.txt]")
	assert.Contains(t, f.llm.prompt, "[Source 2: mid.txt]")
	assert.NotContains(t, f.llm.prompt, "low.txt")
	assert.Equal(t, []string{"high.txt", "mid.txt"}, resp.Sources)
}

func TestAnswerSourcesDeduplicatedFirstSeen(t *testing.T) {
	f := newChatFixture(t, config.PipelineConfig{})
	f.seed(t, 1, "doc-a", "report.txt", 0, "chapter one")
	f.seed(t, 1, "doc-a", "report.txt", 1, "chapter two")
	f.seed(t, 1, "doc-b", "notes.txt", 0, "side notes")

	resp, err := f.svc.Answer(context.Background(), 1, "query")
	require.NoError(t, err)

	// 同一文件出现多次只记一次来源，顺序按首次出现
	assert.Equal(t, []string{"report.txt", "notes.txt"}, resp.Sources)
}

func TestAnswerContextAssemblyFormat(t *testing.T) {
	f := newChatFixture(t, config.PipelineConfig{})
	f.seed(t, 1, "doc", "a.txt", 0, "first passage")
	f.seed(t, 1, "doc", "b.txt", 1, "second passage")

	_, err := f.svc.Answer(context.Background(), 1, "the question")
	require.NoError(t, err)

	expected := fmt.Sprintf(answerPrompt,
		"[Source 1: a.txt]\nfirst passage\n\n---\n\n[Source 2: b.txt]\nsecond passage",
		"the question")
	assert.Equal(t, expected, f.llm.prompt)
}

func TestAnswerRerankFailure(t *testing.T) {
	f := newChatFixture(t, config.PipelineConfig{})
	f.seed(t, 1, "doc", "a.txt", 0, "text")
	f.scorer.err = errors.New("rerank service down")

	_, err := f.svc.Answer(context.Background(), 1, "query")
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindRerank))
	assert.True(t, apperr.IsRetryable(err))
	assert.Equal(t, 0, f.llm.calls)
}

func TestAnswerGenerationTimeoutIsRetryable(t *testing.T) {
	f := newChatFixture(t, config.PipelineConfig{})
	f.seed(t, 1, "doc", "a.txt", 0, "text")
	f.llm.err = fmt.Errorf("request aborted: %w", context.DeadlineExceeded)

	_, err := f.svc.Answer(context.Background(), 1, "query")
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindGeneration))
	assert.True(t, apperr.IsRetryable(err))
}

func TestAnswerGenerationFailureIsRetryable(t *testing.T) {
	f := newChatFixture(t, config.PipelineConfig{})
	f.seed(t, 1, "doc", "a.txt", 0, "text")
	f.llm.err = errors.New("upstream 500")

	_, err := f.svc.Answer(context.Background(), 1, "query")
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindGeneration))
	assert.True(t, apperr.IsRetryable(err))
}

func TestAnswerRetrieveRespectsK(t *testing.T) {
	f := newChatFixture(t, config.PipelineConfig{RetrieveK: 2, RerankK: 5})
	f.seed(t, 1, "doc", "a.txt", 0, "one")
	f.seed(t, 1, "doc", "b.txt", 1, "two")
	f.seed(t, 1, "doc", "c.txt", 2, "three")

	_, err := f.svc.Answer(context.Background(), 1, "query")
	require.NoError(t, err)

	// 只有 retrieve_k 个候选进入重排序
	assert.Len(t, f.scorer.received, 2)
}
