package utils

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"letter-connect/errs"
)

// RespondSuccess 统一成功响应，meta 用于分页信息，可以为 nil
func RespondSuccess(c *gin.Context, data interface{}, meta interface{}) {
	resp := gin.H{
		"code":    200,
		"message": "success",
		"data":    data,
	}
	if meta != nil {
		resp["meta"] = meta
	}
	c.JSON(http.StatusOK, resp)
}

// RespondError 统一错误响应，业务错误按类别映射状态码，其余一律 500
func RespondError(c *gin.Context, err error) {
	var e *errs.Error
	if errors.As(err, &e) {
		c.JSON(errs.HTTPStatus(e), gin.H{"error": e.Message, "code": e.Code})
		return
	}
	log.Println("internal error:", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}
