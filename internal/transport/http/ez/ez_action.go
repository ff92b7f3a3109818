package ez

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"soil-monitor/internal/domain"
	resp "soil-monitor/internal/transport/http/response"
)

type EZ struct{ g *gin.RouterGroup }

func New(g *gin.RouterGroup) EZ { return EZ{g: g} }

// 绑定方式
type Binder string

const (
	BindJSON Binder = "json" // 请求体 JSON
	BindURI  Binder = "uri"  // 路径参数 :id
	BindNone Binder = "none" // 不绑定，自己从 c.Param 取
)

// AErr 携带错误分类的动作错误
type AErr struct {
	Kind string
	Msg  string
	Err  error
}

func (e *AErr) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "action error"
}

func (e *AErr) Unwrap() error { return e.Err }

func BadRequest(msg string) error   { return &AErr{Kind: resp.KindValidation, Msg: msg} }
func Unauthorized(msg string) error { return &AErr{Kind: resp.KindUnauthorized, Msg: msg} }
func Forbidden(msg string) error    { return &AErr{Kind: resp.KindForbidden, Msg: msg} }
func NotFound(msg string) error     { return &AErr{Kind: resp.KindNotFound, Msg: msg} }
func Conflict(msg string) error     { return &AErr{Kind: resp.KindDuplicateKey, Msg: msg} }
func Internal(msg string, err error) error {
	return &AErr{Kind: resp.KindInternal, Msg: msg, Err: err}
}

// 动作定义：I 入参，O 出参
type Action[I any, O any] struct {
	Method  string // GET | POST | PUT | DELETE
	Path    string
	Binder  Binder
	Status  int // 成功状态码，默认 200
	Handler func(c *gin.Context, in *I) (O, error)
}

func RegisterAction[I any, O any](e EZ, a Action[I, O]) {
	status := a.Status
	if status == 0 {
		status = http.StatusOK
	}
	h := func(c *gin.Context) {
		var in I
		var bindErr error
		switch a.Binder {
		case BindJSON:
			bindErr = c.ShouldBindJSON(&in)
		case BindURI:
			bindErr = c.ShouldBindUri(&in)
		}
		if bindErr != nil {
			Abort(c, BadRequest(bindErr.Error()))
			return
		}

		out, err := a.Handler(c, &in)
		if err != nil {
			Abort(c, err)
			return
		}
		if c.Writer.Written() {
			return // handler 已自行写出（如文件下载）
		}
		c.JSON(status, out)
	}

	switch strings.ToUpper(a.Method) {
	case http.MethodGet:
		e.g.GET(a.Path, h)
	case http.MethodPut:
		e.g.PUT(a.Path, h)
	case http.MethodDelete:
		e.g.DELETE(a.Path, h)
	default:
		e.g.POST(a.Path, h)
	}
}

// Abort 把错误映射为分类响应；内部错误只记录到 c.Errors，不回传细节
func Abort(c *gin.Context, err error) {
	kind, msg := Classify(err)
	if kind == resp.KindInternal {
		_ = c.Error(err)
		msg = ""
	}
	c.AbortWithStatusJSON(resp.Status(kind), resp.Error(kind, msg))
}

// Classify 统一错误映射
func Classify(err error) (kind, msg string) {
	var ae *AErr
	if errors.As(err, &ae) {
		return ae.Kind, ae.Msg
	}
	switch {
	case errors.Is(err, domain.ErrValidation):
		return resp.KindValidation, err.Error()
	case errors.Is(err, domain.ErrDuplicateKey):
		return resp.KindDuplicateKey, ""
	case errors.Is(err, domain.ErrNotFound):
		return resp.KindNotFound, ""
	case errors.Is(err, domain.ErrUnauthorized):
		return resp.KindUnauthorized, ""
	case errors.Is(err, domain.ErrForbidden):
		return resp.KindForbidden, ""
	case errors.Is(err, context.DeadlineExceeded):
		return resp.KindTimeout, ""
	}
	return resp.KindInternal, ""
}
