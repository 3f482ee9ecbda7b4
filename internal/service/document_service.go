package service

import (
	"context"
	"io"

	"ragpro-go/internal/model"
	"ragpro-go/internal/pipeline"
	"ragpro-go/internal/repository"
)

// DocumentService 定义了面向属主的文档管理接口。
type DocumentService interface {
	Upload(ctx context.Context, ownerID uint, fileName string, file io.Reader) (*model.UploadResponseDTO, error)
	List(ownerID uint) ([]model.Document, error)
	Delete(ctx context.Context, documentID string, requester *model.User) error
}

type documentService struct {
	coordinator *pipeline.Coordinator
	docRepo     repository.DocumentRepository
}

// NewDocumentService 创建一个新的 DocumentService 实例。
func NewDocumentService(coordinator *pipeline.Coordinator, docRepo repository.DocumentRepository) DocumentService {
	return &documentService{coordinator: coordinator, docRepo: docRepo}
}

// Upload 执行文档创建流程并返回目录摘要。
func (s *documentService) Upload(ctx context.Context, ownerID uint, fileName string, file io.Reader) (*model.UploadResponseDTO, error) {
	doc, err := s.coordinator.Ingest(ctx, ownerID, fileName, file)
	if err != nil {
		return nil, err
	}
	return &model.UploadResponseDTO{
		DocumentID: doc.ID,
		FileName:   doc.FileName,
		ChunkCount: doc.ChunkCount,
	}, nil
}

// List 返回属主名下的全部文档。
func (s *documentService) List(ownerID uint) ([]model.Document, error) {
	return s.docRepo.FindByOwner(ownerID)
}

// Delete 执行文档拆除流程。属主校验由协调器完成。
func (s *documentService) Delete(ctx context.Context, documentID string, requester *model.User) error {
	return s.coordinator.Teardown(ctx, documentID, requester)
}
