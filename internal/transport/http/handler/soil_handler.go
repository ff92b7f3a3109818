package handler

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"soil-monitor/internal/domain"
	"soil-monitor/internal/feature/soil"
	"soil-monitor/internal/threshold"
	httpez "soil-monitor/internal/transport/http/ez"
	mdw "soil-monitor/internal/transport/http/middleware"
)

const xlsxMIME = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type SoilHandler struct {
	svc  *soil.Service
	auth gin.HandlerFunc
}

func NewSoilHandler(svc *soil.Service, auth gin.HandlerFunc) *SoilHandler {
	return &SoilHandler{svc: svc, auth: auth}
}

func (h *SoilHandler) Priority() int { return 20 }

// 七项测量值均为必填；指针类型使 0 成为合法值
type readingIn struct {
	UserID      uint     `json:"userId"      binding:"required"`
	PH          *float64 `json:"ph"          binding:"required"`
	Moisture    *float64 `json:"moisture"    binding:"required"`
	Temperature *float64 `json:"temperature" binding:"required"`
	Nitrogen    *float64 `json:"nitrogen"    binding:"required"`
	Phosphorus  *float64 `json:"phosphorus"  binding:"required"`
	Potassium   *float64 `json:"potassium"   binding:"required"`
	Microbiome  *float64 `json:"microbiome"  binding:"required"`
}

func (in *readingIn) measurements() domain.Measurements {
	return domain.Measurements{
		PH:          *in.PH,
		Umidade:     *in.Moisture,
		Temperatura: *in.Temperature,
		Nitrogenio:  *in.Nitrogen,
		Fosforo:     *in.Phosphorus,
		Potassio:    *in.Potassium,
		Microbioma:  *in.Microbiome,
	}
}

type readingOut struct {
	Message   string `json:"message"`
	ReadingID uint   `json:"readingId"`
}

type userURI struct {
	UserID uint `uri:"userId" binding:"required"`
}

type readingURI struct {
	ReadingID uint `uri:"readingId" binding:"required"`
}

type anomalyIn struct {
	ReadingID uint   `json:"readingId" binding:"required"`
	Parameter string `json:"parameter" binding:"required"`
	Condition string `json:"condition" binding:"required,max=255"`
	Action    string `json:"action"    binding:"required,max=255"`
}

type anomalyOut struct {
	Message   string `json:"message"`
	AnomalyID uint   `json:"anomalyId"`
}

// MountAPI 挂载 /api 下的读数与异常接口
func (h *SoilHandler) MountAPI(g *gin.RouterGroup) {
	api := g.Group("/api")
	if h.auth != nil {
		api.Use(h.auth)
	}
	e := httpez.New(api)

	httpez.RegisterAction(e, httpez.Action[readingIn, readingOut]{
		Method:  http.MethodPost,
		Path:    "/solo",
		Binder:  httpez.BindJSON,
		Status:  http.StatusCreated,
		Handler: h.submit,
	})
	httpez.RegisterAction(e, httpez.Action[userURI, []threshold.Report]{
		Method:  http.MethodGet,
		Path:    "/condicoes_anormais/:userId",
		Binder:  httpez.BindURI,
		Handler: h.anomalies,
	})
	httpez.RegisterAction(e, httpez.Action[userURI, struct{}]{
		Method:  http.MethodGet,
		Path:    "/condicoes_anormais/:userId/xlsx",
		Binder:  httpez.BindURI,
		Handler: h.export,
	})
	httpez.RegisterAction(e, httpez.Action[readingURI, []domain.AnomalyRecord]{
		Method:  http.MethodGet,
		Path:    "/solo/:readingId/condicoes_anormais",
		Binder:  httpez.BindURI,
		Handler: h.auditTrail,
	})
	httpez.RegisterAction(e, httpez.Action[anomalyIn, anomalyOut]{
		Method:  http.MethodPost,
		Path:    "/condicoes_anormais",
		Binder:  httpez.BindJSON,
		Status:  http.StatusCreated,
		Handler: h.recordAnomaly,
	})
}

func (h *SoilHandler) submit(c *gin.Context, in *readingIn) (readingOut, error) {
	if err := authorize(c, in.UserID); err != nil {
		return readingOut{}, err
	}
	id, err := h.svc.Submit(c.Request.Context(), in.UserID, in.measurements())
	if err != nil {
		return readingOut{}, err
	}
	return readingOut{Message: "Dados de solo inseridos com sucesso!", ReadingID: id}, nil
}

func (h *SoilHandler) anomalies(c *gin.Context, in *userURI) ([]threshold.Report, error) {
	if err := authorize(c, in.UserID); err != nil {
		return nil, err
	}
	return h.svc.Anomalies(c.Request.Context(), in.UserID)
}

func (h *SoilHandler) export(c *gin.Context, in *userURI) (struct{}, error) {
	if err := authorize(c, in.UserID); err != nil {
		return struct{}{}, err
	}
	reports, err := h.svc.Anomalies(c.Request.Context(), in.UserID)
	if err != nil {
		return struct{}{}, err
	}
	var buf bytes.Buffer
	if err := soil.WriteXLSX(&buf, reports); err != nil {
		return struct{}{}, httpez.Internal("export failed", err)
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="condicoes_anormais_%d.xlsx"`, in.UserID))
	c.Data(http.StatusOK, xlsxMIME, buf.Bytes())
	return struct{}{}, nil
}

func (h *SoilHandler) recordAnomaly(c *gin.Context, in *anomalyIn) (anomalyOut, error) {
	ctx := c.Request.Context()
	if mdw.Claims(c) != nil {
		owner, err := h.svc.Owner(ctx, in.ReadingID)
		if err != nil {
			return anomalyOut{}, err
		}
		if err := authorize(c, owner); err != nil {
			return anomalyOut{}, err
		}
	}
	id, err := h.svc.RecordAnomaly(ctx, domain.AnomalyRecord{
		ReadingID: in.ReadingID,
		Parameter: in.Parameter,
		Condition: in.Condition,
		Action:    in.Action,
	})
	if err != nil {
		return anomalyOut{}, err
	}
	return anomalyOut{Message: "Condição anormal registrada com sucesso!", AnomalyID: id}, nil
}

// auditTrail 返回某条读数已落库的审计记录
func (h *SoilHandler) auditTrail(c *gin.Context, in *readingURI) ([]domain.AnomalyRecord, error) {
	ctx := c.Request.Context()
	owner, err := h.svc.Owner(ctx, in.ReadingID)
	if err != nil {
		return nil, err
	}
	if err := authorize(c, owner); err != nil {
		return nil, err
	}
	return h.svc.AuditTrail(ctx, in.ReadingID)
}

// authorize 携带 token 时要求 token 用户与目标用户一致
func authorize(c *gin.Context, userID uint) error {
	claims := mdw.Claims(c)
	if claims == nil {
		return nil
	}
	uid, err := claims.UserID()
	if err != nil || uid != userID {
		return httpez.Forbidden("token does not belong to this user")
	}
	return nil
}
