package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lifehub-app/notify-engine/internal/model"
	"github.com/lifehub-app/notify-engine/internal/service"
	"github.com/lifehub-app/notify-engine/pkg/apperror"
	"github.com/lifehub-app/notify-engine/pkg/response"
	"github.com/lifehub-app/notify-engine/pkg/validator"
)

type DeviceHandler struct {
	service service.DeviceService
}

func NewDeviceHandler(svc service.DeviceService) *DeviceHandler {
	return &DeviceHandler{service: svc}
}

type registerDeviceRequest struct {
	Kind      string `json:"kind" binding:"required,oneof=mobile_push browser_push"`
	Token     string `json:"token"`
	Endpoint  string `json:"endpoint"`
	P256dhKey string `json:"p256dh_key"`
	AuthKey   string `json:"auth_key"`
}

func (h *DeviceHandler) Register(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	var req registerDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ResponseError(c, apperror.Invalid("%s", validator.FormatValidationError(err)))
		return
	}

	device, err := h.service.Register(userID, service.RegisterDeviceInput{
		Kind:      model.DeviceKind(req.Kind),
		Token:     req.Token,
		Endpoint:  req.Endpoint,
		P256dhKey: req.P256dhKey,
		AuthKey:   req.AuthKey,
	})
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": device})
}

type unregisterDeviceRequest struct {
	Token    string `json:"token"`
	Endpoint string `json:"endpoint"`
}

func (h *DeviceHandler) Unregister(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	var req unregisterDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ResponseError(c, apperror.Invalid("%s", validator.FormatValidationError(err)))
		return
	}

	if err := h.service.Unregister(userID, req.Token, req.Endpoint); err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "device unregistered"})
}

func (h *DeviceHandler) List(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	devices, err := h.service.ActiveForUser(userID, model.DeviceKind(c.Query("kind")))
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": devices})
}
