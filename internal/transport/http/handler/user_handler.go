package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"soil-monitor/internal/core/auth"
	"soil-monitor/internal/domain"
	"soil-monitor/internal/feature/user"
	httpez "soil-monitor/internal/transport/http/ez"
	resp "soil-monitor/internal/transport/http/response"
)

type UserHandler struct {
	svc      *user.Service
	jwter    *auth.JWTer
	throttle gin.HandlerFunc
}

func NewUserHandler(svc *user.Service, jwter *auth.JWTer, throttle gin.HandlerFunc) *UserHandler {
	return &UserHandler{svc: svc, jwter: jwter, throttle: throttle}
}

func (h *UserHandler) Priority() int { return 10 }

type registerIn struct {
	Name   string `json:"name"   binding:"required,max=128"`
	Email  string `json:"email"  binding:"required,email,max=191"`
	Secret string `json:"secret" binding:"required,max=72"`
}

type loginIn struct {
	Email  string `json:"email"  binding:"required"`
	Secret string `json:"secret" binding:"required"`
}

type loginOut struct {
	Message string `json:"message"`
	UserID  uint   `json:"userId"`
	Token   string `json:"token,omitempty"`
}

// MountAPI 挂载 POST /usuarios 与 POST /login
func (h *UserHandler) MountAPI(g *gin.RouterGroup) {
	httpez.RegisterAction(httpez.New(g), httpez.Action[registerIn, resp.Msg]{
		Method:  http.MethodPost,
		Path:    "/usuarios",
		Binder:  httpez.BindJSON,
		Status:  http.StatusCreated,
		Handler: h.register,
	})

	var loginGroup *gin.RouterGroup
	if h.throttle != nil {
		loginGroup = g.Group("", h.throttle)
	} else {
		loginGroup = g.Group("")
	}
	httpez.RegisterAction(httpez.New(loginGroup), httpez.Action[loginIn, loginOut]{
		Method:  http.MethodPost,
		Path:    "/login",
		Binder:  httpez.BindJSON,
		Handler: h.login,
	})
}

func (h *UserHandler) register(c *gin.Context, in *registerIn) (resp.Msg, error) {
	if _, err := h.svc.Register(c.Request.Context(), in.Name, in.Email, in.Secret); err != nil {
		if errors.Is(err, domain.ErrDuplicateKey) {
			return resp.Msg{}, httpez.Conflict("Email já está em uso")
		}
		return resp.Msg{}, err
	}
	return resp.Message("Usuário criado com sucesso!"), nil
}

func (h *UserHandler) login(c *gin.Context, in *loginIn) (loginOut, error) {
	u, err := h.svc.Login(c.Request.Context(), in.Email, in.Secret)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return loginOut{}, httpez.NotFound("Usuário não encontrado")
	case errors.Is(err, domain.ErrUnauthorized):
		return loginOut{}, httpez.Unauthorized("Senha incorreta")
	case err != nil:
		return loginOut{}, err
	}

	out := loginOut{Message: "Login bem-sucedido!", UserID: u.ID}
	if h.jwter != nil {
		tok, err := h.jwter.Issue(u.ID)
		if err != nil {
			return loginOut{}, httpez.Internal("issue token failed", err)
		}
		out.Token = tok
	}
	return out, nil
}
