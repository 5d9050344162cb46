package transport

import (
	"github.com/slurpey/anvilizer/internal/service"
)

type AnvilHandler struct {
	service service.AnvilService
}

func NewAnvilHandler(service service.AnvilService) *AnvilHandler {
	return &AnvilHandler{service: service}
}
