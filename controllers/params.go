package controllers

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

// queryInt 读取整数查询参数，解析失败返回默认值
func queryInt(c *gin.Context, key string, def int) int {
	v := c.Query(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
