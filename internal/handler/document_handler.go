package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ragpro-go/internal/service"
	"ragpro-go/pkg/log"
)

// DocumentHandler 负责处理文档上传、列表与删除的 API 请求。
type DocumentHandler struct {
	documentService service.DocumentService
}

// NewDocumentHandler 创建一个新的 DocumentHandler 实例。
func NewDocumentHandler(documentService service.DocumentService) *DocumentHandler {
	return &DocumentHandler{documentService: documentService}
}

// Upload 处理文档上传请求，表单字段名为 "file"。
func (h *DocumentHandler) Upload(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "无法获取用户信息"})
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "请求中缺少文件字段 'file'",
		})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "无法读取上传的文件",
		})
		return
	}
	defer file.Close()

	log.Infof("Upload: 用户 %d 上传文件 %s (%d bytes)", user.ID, fileHeader.Filename, fileHeader.Size)
	result, err := h.documentService.Upload(c.Request.Context(), user.ID, fileHeader.Filename, file)
	if err != nil {
		log.Warnf("Upload: 文档处理失败, file: %s, error: %v", fileHeader.Filename, err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "Document processed successfully",
		"data":    result,
	})
}

// List 返回当前用户的全部文档。
func (h *DocumentHandler) List(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "无法获取用户信息"})
		return
	}

	docs, err := h.documentService.List(user.ID)
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

// Delete 删除当前用户的一篇文档。
func (h *DocumentHandler) Delete(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "无法获取用户信息"})
		return
	}

	documentID := c.Param("id")
	if err := h.documentService.Delete(c.Request.Context(), documentID, user); err != nil {
		log.Warnf("Delete: 文档删除失败, documentId: %s, error: %v", documentID, err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "Document deleted successfully",
	})
}
