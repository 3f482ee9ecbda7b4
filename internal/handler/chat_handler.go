package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ragpro-go/internal/model"
	"ragpro-go/internal/service"
	"ragpro-go/pkg/log"
)

// ChatHandler 负责处理检索增强问答的 API 请求。
type ChatHandler struct {
	chatService service.ChatService
}

// NewChatHandler 创建一个新的 ChatHandler 实例。
func NewChatHandler(chatService service.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// Chat 处理一次问答请求。
func (h *ChatHandler) Chat(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "无法获取用户信息"})
		return
	}

	var req model.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "无效的请求负载",
		})
		return
	}

	resp, err := h.chatService.Answer(c.Request.Context(), user.ID, req.Query)
	if err != nil {
		log.Warnf("Chat: 问答失败, userId: %d, error: %v", user.ID, err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    resp,
	})
}
