package service

import (
	"errors"

	"gorm.io/gorm"

	"ragpro-go/internal/apperr"
	"ragpro-go/internal/model"
	"ragpro-go/internal/repository"
	"ragpro-go/pkg/hash"
	"ragpro-go/pkg/token"
)

// UserService 接口定义了所有与用户相关的业务操作。
type UserService interface {
	Register(username, email, password string) (*model.User, error)
	Login(email, password string) (accessToken, refreshToken string, err error)
	GetProfile(userID uint) (*model.User, error)
	RefreshToken(refreshTokenString string) (newAccessToken, newRefreshToken string, err error)
}

// userService 是 UserService 接口的实现。
type userService struct {
	userRepo   repository.UserRepository
	jwtManager *token.JWTManager
}

// NewUserService 创建一个新的 UserService 实例。
func NewUserService(userRepo repository.UserRepository, jwtManager *token.JWTManager) UserService {
	return &userService{userRepo: userRepo, jwtManager: jwtManager}
}

// Register 处理用户注册的业务逻辑。
func (s *userService) Register(username, email, password string) (*model.User, error) {
	if username == "" || email == "" || password == "" {
		return nil, apperr.New(apperr.KindValidation, "用户名、邮箱和密码不能为空")
	}

	// 1. 检查邮箱与用户名是否已被占用
	if _, err := s.userRepo.FindByEmail(email); err == nil {
		return nil, apperr.New(apperr.KindValidation, "邮箱已被注册")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if _, err := s.userRepo.FindByUsername(username); err == nil {
		return nil, apperr.New(apperr.KindValidation, "用户名已存在")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	// 2. 对密码进行哈希处理
	hashedPassword, err := hash.HashPassword(password)
	if err != nil {
		return nil, err
	}

	// 3. 创建新用户
	newUser := &model.User{
		Username: username,
		Email:    email,
		Password: hashedPassword,
		Role:     "USER", // 默认角色
	}
	if err := s.userRepo.Create(newUser); err != nil {
		return nil, err
	}
	return newUser, nil
}

// Login 处理用户登录的业务逻辑，校验通过后签发访问令牌与刷新令牌。
func (s *userService) Login(email, password string) (accessToken, refreshToken string, err error) {
	user, err := s.userRepo.FindByEmail(email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", "", apperr.New(apperr.KindUnauthorized, "邮箱或密码错误")
		}
		return "", "", err
	}

	if !hash.CheckPassword(password, user.Password) {
		return "", "", apperr.New(apperr.KindUnauthorized, "邮箱或密码错误")
	}

	accessToken, err = s.jwtManager.GenerateToken(user.ID, user.Username, user.Role)
	if err != nil {
		return "", "", err
	}
	refreshToken, err = s.jwtManager.GenerateRefreshToken(user.ID, user.Username, user.Role)
	if err != nil {
		return "", "", err
	}
	return accessToken, refreshToken, nil
}

// GetProfile 返回用户资料。
func (s *userService) GetProfile(userID uint) (*model.User, error) {
	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "用户不存在")
		}
		return nil, err
	}
	return user, nil
}

// RefreshToken 用刷新令牌换取一对新令牌。
func (s *userService) RefreshToken(refreshTokenString string) (newAccessToken, newRefreshToken string, err error) {
	claims, err := s.jwtManager.VerifyToken(refreshTokenString)
	if err != nil {
		return "", "", apperr.New(apperr.KindUnauthorized, "刷新令牌无效或已过期")
	}

	// 确认用户仍然存在，避免给已删除的账号续签
	user, err := s.userRepo.FindByID(claims.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", "", apperr.New(apperr.KindUnauthorized, "用户不存在")
		}
		return "", "", err
	}

	newAccessToken, err = s.jwtManager.GenerateToken(user.ID, user.Username, user.Role)
	if err != nil {
		return "", "", err
	}
	newRefreshToken, err = s.jwtManager.GenerateRefreshToken(user.ID, user.Username, user.Role)
	if err != nil {
		return "", "", err
	}
	return newAccessToken, newRefreshToken, nil
}
