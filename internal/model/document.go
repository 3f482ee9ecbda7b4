// Package model 定义了与数据库表对应的 Go 结构体。
package model

import "time"

// Document 对应于数据库中的 'documents' 表，是文档目录（catalog）的一行。
// 向量本身不落在这里，只记录元数据；ChunkCount 必须等于该文档在向量索引中
// 的记录条数，这是目录与索引之间的一致性约束。
type Document struct {
	ID         string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	OwnerID    uint      `gorm:"not null;index" json:"ownerId"`
	FileName   string    `gorm:"type:varchar(255);not null" json:"fileName"`
	ObjectName string    `gorm:"type:varchar(512);not null" json:"-"` // MinIO 中的存储位置
	ChunkCount int       `gorm:"not null" json:"chunkCount"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Document) TableName() string {
	return "documents"
}
