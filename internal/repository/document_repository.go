package repository

import (
	"gorm.io/gorm"

	"ragpro-go/internal/model"
)

// DocumentRepository 定义了文档目录（catalog）的数据操作接口。
// 所有按属主的读取与删除都在 SQL 条件中限定 owner_id，属主校验不留给调用方。
type DocumentRepository interface {
	Create(doc *model.Document) error
	FindByID(id string) (*model.Document, error)
	FindByIDAndOwner(id string, ownerID uint) (*model.Document, error)
	FindByOwner(ownerID uint) ([]model.Document, error)
	FindAll() ([]model.Document, error)
	Delete(id string) error
	Count() (int64, error)
	SumChunks() (int64, error)
}

type documentRepository struct {
	db *gorm.DB
}

// NewDocumentRepository 创建一个新的 DocumentRepository 实例。
func NewDocumentRepository(db *gorm.DB) DocumentRepository {
	return &documentRepository{db: db}
}

// Create 写入一条文档目录记录。
func (r *documentRepository) Create(doc *model.Document) error {
	return r.db.Create(doc).Error
}

// FindByID 按 ID 查找文档，不限属主（仅供管理员路径使用）。
func (r *documentRepository) FindByID(id string) (*model.Document, error) {
	var doc model.Document
	err := r.db.Where("id = ?", id).First(&doc).Error
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// FindByIDAndOwner 按 ID 与属主查找文档。
func (r *documentRepository) FindByIDAndOwner(id string, ownerID uint) (*model.Document, error) {
	var doc model.Document
	err := r.db.Where("id = ? AND owner_id = ?", id, ownerID).First(&doc).Error
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// FindByOwner 返回指定属主的全部文档，按创建时间降序。
func (r *documentRepository) FindByOwner(ownerID uint) ([]model.Document, error) {
	var docs []model.Document
	err := r.db.Where("owner_id = ?", ownerID).Order("created_at desc").Find(&docs).Error
	return docs, err
}

// FindAll 返回全部文档记录（仅供管理员路径使用）。
func (r *documentRepository) FindAll() ([]model.Document, error) {
	var docs []model.Document
	err := r.db.Order("created_at desc").Find(&docs).Error
	return docs, err
}

// Delete 删除一条文档目录记录。
func (r *documentRepository) Delete(id string) error {
	return r.db.Where("id = ?", id).Delete(&model.Document{}).Error
}

// Count 返回文档总数。
func (r *documentRepository) Count() (int64, error) {
	var total int64
	err := r.db.Model(&model.Document{}).Count(&total).Error
	return total, err
}

// SumChunks 返回所有文档的分块总数。
func (r *documentRepository) SumChunks() (int64, error) {
	var total int64
	err := r.db.Model(&model.Document{}).Select("COALESCE(SUM(chunk_count), 0)").Scan(&total).Error
	return total, err
}
