package service

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"ragpro-go/internal/apperr"
	"ragpro-go/internal/model"
	"ragpro-go/internal/pipeline"
	"ragpro-go/internal/repository"
	"ragpro-go/pkg/log"
)

// AdminService 定义了管理员专属的跨租户操作。
type AdminService interface {
	Stats() (*model.StatsDTO, error)
	ListUsers() ([]model.User, error)
	ListAllDocuments() ([]model.Document, error)
	DeleteDocument(ctx context.Context, documentID string, admin *model.User) error
	DeleteUser(ctx context.Context, userID uint, admin *model.User) error
}

type adminService struct {
	userRepo    repository.UserRepository
	docRepo     repository.DocumentRepository
	coordinator *pipeline.Coordinator
}

// NewAdminService 创建一个新的 AdminService 实例。
func NewAdminService(userRepo repository.UserRepository, docRepo repository.DocumentRepository, coordinator *pipeline.Coordinator) AdminService {
	return &adminService{userRepo: userRepo, docRepo: docRepo, coordinator: coordinator}
}

// Stats 返回全局统计数据。
func (s *adminService) Stats() (*model.StatsDTO, error) {
	users, err := s.userRepo.Count()
	if err != nil {
		return nil, err
	}
	docs, err := s.docRepo.Count()
	if err != nil {
		return nil, err
	}
	chunks, err := s.docRepo.SumChunks()
	if err != nil {
		return nil, err
	}
	return &model.StatsDTO{TotalUsers: users, TotalDocuments: docs, TotalChunks: chunks}, nil
}

// ListUsers 返回全部用户。
func (s *adminService) ListUsers() ([]model.User, error) {
	return s.userRepo.FindAll()
}

// ListAllDocuments 返回全部文档，不限属主。
func (s *adminService) ListAllDocuments() ([]model.Document, error) {
	return s.docRepo.FindAll()
}

// DeleteDocument 以管理员身份拆除任意属主的文档。
func (s *adminService) DeleteDocument(ctx context.Context, documentID string, admin *model.User) error {
	return s.coordinator.Teardown(ctx, documentID, admin)
}

// DeleteUser 删除用户并级联拆除其全部文档。
// 任一文档拆除失败则中止，用户记录保留，避免留下无主资源。
func (s *adminService) DeleteUser(ctx context.Context, userID uint, admin *model.User) error {
	if admin.ID == userID {
		return apperr.New(apperr.KindValidation, "不能删除当前登录的管理员账号")
	}

	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.New(apperr.KindNotFound, "用户不存在")
		}
		return err
	}

	docs, err := s.docRepo.FindByOwner(userID)
	if err != nil {
		return err
	}
	log.Infof("[Admin] 删除用户 %s (ID: %d), 级联拆除 %d 篇文档", user.Username, userID, len(docs))

	for _, doc := range docs {
		if err := s.coordinator.Teardown(ctx, doc.ID, admin); err != nil {
			return apperr.Wrap(apperr.KindInternal, "级联删除用户文档失败", err)
		}
	}

	return s.userRepo.Delete(userID)
}
