package vectorindex

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedRecord(t *testing.T, m *Memory, ownerID uint, documentID string, chunkIndex int, vector []float32) {
	t.Helper()
	err := m.Upsert(context.Background(), []Record{{
		ID:     RecordID(documentID, chunkIndex),
		Vector: vector,
		Payload: Payload{
			OwnerID:    ownerID,
			DocumentID: documentID,
			FileName:   documentID + ".txt",
			ChunkIndex: chunkIndex,
			Text:       "text",
		},
	}})
	require.NoError(t, err)
}

func TestSearchFiltersByOwner(t *testing.T) {
	m := NewMemory()
	seedRecord(t, m, 1, "mine", 0, []float32{1, 0})
	seedRecord(t, m, 2, "theirs", 0, []float32{1, 0})

	hits, err := m.Search(context.Background(), []float32{1, 0}, 1, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "mine", hits[0].Payload.DocumentID)
}

func TestSearchOrdersByScoreThenInsertion(t *testing.T) {
	m := NewMemory()
	seedRecord(t, m, 1, "far", 0, []float32{0, 1})
	seedRecord(t, m, 1, "near-a", 0, []float32{1, 0})
	seedRecord(t, m, 1, "near-b", 0, []float32{1, 0})

	hits, err := m.Search(context.Background(), []float32{1, 0}, 1, 10)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	// 相同分数按写入顺序排列，最不相似的排在最后
	assert.Equal(t, "near-a", hits[0].Payload.DocumentID)
	assert.Equal(t, "near-b", hits[1].Payload.DocumentID)
	assert.Equal(t, "far", hits[2].Payload.DocumentID)
}

func TestSearchRespectsK(t *testing.T) {
	m := NewMemory()
	for i := 0; i < 5; i++ {
		seedRecord(t, m, 1, "doc", i, []float32{1, 0})
	}

	hits, err := m.Search(context.Background(), []float32{1, 0}, 1, 3)
	require.NoError(t, err)
	assert.Len(t, hits, 3)
}

func TestUpsertOverwritesExistingID(t *testing.T) {
	m := NewMemory()
	seedRecord(t, m, 1, "doc", 0, []float32{1, 0})
	seedRecord(t, m, 1, "doc", 0, []float32{0, 1})

	assert.Equal(t, 1, m.Len())
}

func TestDeleteByDocumentRemovesOnlyThatDocument(t *testing.T) {
	m := NewMemory()
	seedRecord(t, m, 1, "doc-a", 0, []float32{1, 0})
	seedRecord(t, m, 1, "doc-a", 1, []float32{1, 0})
	seedRecord(t, m, 1, "doc-b", 0, []float32{1, 0})
	seedRecord(t, m, 2, "doc-c", 0, []float32{1, 0})

	require.NoError(t, m.DeleteByDocument(context.Background(), 1, "doc-a"))

	assert.Equal(t, 0, m.CountDocument(1, "doc-a"))
	assert.Equal(t, 1, m.CountDocument(1, "doc-b"))
	// 其他属主的记录不受影响
	assert.Equal(t, 1, m.CountDocument(2, "doc-c"))
}
