package response

import "net/http"

// 错误分类（对外只暴露分类标签 + 简短信息）
const (
	KindValidation      = "ValidationError"
	KindUnauthorized    = "Unauthorized"
	KindForbidden       = "Forbidden"
	KindNotFound        = "NotFound"
	KindDuplicateKey    = "DuplicateKey"
	KindTooManyRequests = "TooManyRequests"
	KindTimeout         = "Timeout"
	KindInternal        = "InternalError"
)

// KindStatus 集中管理 kind → HTTP 状态码
var KindStatus = map[string]int{
	KindValidation:      http.StatusBadRequest,
	KindUnauthorized:    http.StatusUnauthorized,
	KindForbidden:       http.StatusForbidden,
	KindNotFound:        http.StatusNotFound,
	KindDuplicateKey:    http.StatusConflict,
	KindTooManyRequests: http.StatusTooManyRequests,
	KindTimeout:         http.StatusGatewayTimeout,
	KindInternal:        http.StatusInternalServerError,
}

var defaultMsg = map[string]string{
	KindValidation:      "invalid request",
	KindUnauthorized:    "unauthorized",
	KindForbidden:       "forbidden",
	KindNotFound:        "not found",
	KindDuplicateKey:    "already exists",
	KindTooManyRequests: "too many requests",
	KindTimeout:         "timeout",
	KindInternal:        "unexpected server error",
}

func Status(kind string) int {
	if s, ok := KindStatus[kind]; ok {
		return s
	}
	return http.StatusInternalServerError
}
