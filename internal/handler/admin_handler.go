package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"ragpro-go/internal/service"
	"ragpro-go/pkg/log"
)

// AdminHandler 负责处理管理员专属的 API 请求。
// 路由注册时必须挂在 AuthMiddleware + AdminAuthMiddleware 之后。
type AdminHandler struct {
	adminService service.AdminService
}

// NewAdminHandler 创建一个新的 AdminHandler 实例。
func NewAdminHandler(adminService service.AdminService) *AdminHandler {
	return &AdminHandler{adminService: adminService}
}

// Stats 返回全局统计数据。
func (h *AdminHandler) Stats(c *gin.Context) {
	stats, err := h.adminService.Stats()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    stats,
	})
}

// ListUsers 返回全部用户。
func (h *AdminHandler) ListUsers(c *gin.Context) {
	users, err := h.adminService.ListUsers()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    users,
	})
}

// DeleteUser 删除一个用户并级联拆除其全部文档。
func (h *AdminHandler) DeleteUser(c *gin.Context) {
	admin, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "无法获取用户信息"})
		return
	}

	userID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "无效的用户 ID",
		})
		return
	}

	if err := h.adminService.DeleteUser(c.Request.Context(), uint(userID), admin); err != nil {
		log.Warnf("DeleteUser: 删除用户失败, userId: %d, error: %v", userID, err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "User deleted successfully",
	})
}

// ListDocuments 返回全部文档，不限属主。
func (h *AdminHandler) ListDocuments(c *gin.Context) {
	docs, err := h.adminService.ListAllDocuments()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    docs,
	})
}

// DeleteDocument 以管理员身份删除任意属主的文档。
func (h *AdminHandler) DeleteDocument(c *gin.Context) {
	admin, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "无法获取用户信息"})
		return
	}

	documentID := c.Param("id")
	if err := h.adminService.DeleteDocument(c.Request.Context(), documentID, admin); err != nil {
		log.Warnf("DeleteDocument: 管理员删除文档失败, documentId: %s, error: %v", documentID, err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "Document deleted successfully",
	})
}
