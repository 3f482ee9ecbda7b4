package model

// ChatRequest 是问答接口的请求体。
type ChatRequest struct {
	Query string `json:"query"`
}

// ChatResponse 是问答接口的响应体。
type ChatResponse struct {
	Response string   `json:"response"`
	Sources  []string `json:"sources"`
}

// UploadResponseDTO 是文档上传成功后的响应体。
type UploadResponseDTO struct {
	DocumentID string `json:"documentId"`
	FileName   string `json:"fileName"`
	ChunkCount int    `json:"chunkCount"`
}

// RetrievedChunk 是检索阶段返回给重排序与上下文组装的候选分块。
type RetrievedChunk struct {
	DocumentID string  `json:"documentId"`
	FileName   string  `json:"fileName"`
	ChunkIndex int     `json:"chunkIndex"`
	Text       string  `json:"text"`
	Score      float64 `json:"score"`
}

// StatsDTO 是管理员统计接口的响应体。
type StatsDTO struct {
	TotalUsers     int64 `json:"totalUsers"`
	TotalDocuments int64 `json:"totalDocuments"`
	TotalChunks    int64 `json:"totalChunks"`
}
