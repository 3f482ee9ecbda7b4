// Package tasks defines the structure for tasks that are sent to Kafka.
package tasks

// CompactionTask 表示一次向量孤儿清理任务。
// 当拆除流程中向量删除失败时，协调器会把该文档入队，
// 由后台消费者重试精确删除，避免索引中残留无目录对应的向量。
type CompactionTask struct {
	DocumentID string `json:"document_id"`
	OwnerID    uint   `json:"owner_id"`
	ObjectName string `json:"object_name"`
	Reason     string `json:"reason"`
}
