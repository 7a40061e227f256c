package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/atakdmr/student-attendance/pkg/response"
)

// MustGetUserID 从 Gin 上下文中安全提取 user_id。
// 如果 JWT 中间件未正确注入 user_id，返回 false 并写入 401 响应。
// 调用方应在 ok=false 时直接 return。
func MustGetUserID(c *gin.Context) (string, bool) {
	s := c.GetString("user_id")
	if s == "" {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	return s, true
}

// MustGetRole 从 Gin 上下文中安全提取 role。
func MustGetRole(c *gin.Context) (string, bool) {
	s := c.GetString("role")
	if s == "" {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	return s, true
}

// mustGetCaller user_id + role
func mustGetCaller(c *gin.Context) (userID, role string, ok bool) {
	if userID, ok = MustGetUserID(c); !ok {
		return "", "", false
	}
	if role, ok = MustGetRole(c); !ok {
		return "", "", false
	}
	return userID, role, true
}

// parseDate 按考勤时区解析 YYYY-MM-DD；空串返回 nil
func parseDate(s string, loc *time.Location) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation("2006-01-02", s, loc)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// bindFailed 请求体绑定失败：超出大小限制回 413，其余 400
func bindFailed(c *gin.Context, code int, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		response.Error(c, http.StatusRequestEntityTooLarge, 10005, "请求体过大")
		return
	}
	response.ErrorWithDetails(c, http.StatusBadRequest, code, "参数校验失败", err.Error())
}

// pathUUID 读取路径参数并校验为 UUID，不合法时写入 400
func pathUUID(c *gin.Context, name string, code int) (string, bool) {
	v := c.Param(name)
	if _, err := uuid.Parse(v); err != nil {
		response.BadRequest(c, code, name+" 格式无效")
		return "", false
	}
	return v, true
}
