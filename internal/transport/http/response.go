package httptransport

import "github.com/gin-gonic/gin"

// Error bodies follow the Django REST framework conventions the dashboard
// backend uses: {"detail": "..."} for request-level failures and
// {"field": ["..."]} for validation failures.

// FieldErrors maps a request field to its validation messages.
type FieldErrors map[string][]string

// Add appends msg to field.
func (f FieldErrors) Add(field, msg string) {
	f[field] = append(f[field], msg)
}

// RespondDetail 返回 {"detail": ...} 错误响应
func RespondDetail(c *gin.Context, httpStatus int, detail string) {
	c.AbortWithStatusJSON(httpStatus, gin.H{"detail": detail})
}

// RespondDetailCode 返回带错误码的 detail 响应
func RespondDetailCode(c *gin.Context, httpStatus int, detail, code string) {
	c.AbortWithStatusJSON(httpStatus, gin.H{"detail": detail, "code": code})
}

// RespondFieldErrors 返回字段校验错误
func RespondFieldErrors(c *gin.Context, httpStatus int, errs FieldErrors) {
	c.AbortWithStatusJSON(httpStatus, errs)
}
