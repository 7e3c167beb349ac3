package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tanq16/vidgrab/internal/utils"
)

var kindStatus = map[utils.ErrorKind]int{
	utils.KindInvalidURL:       http.StatusBadRequest,
	utils.KindInvalidRequest:   http.StatusBadRequest,
	utils.KindAuthRequired:     http.StatusUnauthorized,
	utils.KindNotFound:         http.StatusNotFound,
	utils.KindBusy:             http.StatusConflict,
	utils.KindCancelled:        http.StatusConflict,
	utils.KindMergeFailed:      http.StatusInternalServerError,
	utils.KindExtractionFailed: http.StatusBadGateway,
	utils.KindTimeout:          http.StatusGatewayTimeout,
}

func statusFor(kind utils.ErrorKind) int {
	if status, ok := kindStatus[kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// writeError renders the {error, detail} body for a failure.
func writeError(c *gin.Context, err error, extra ...gin.H) {
	kind := utils.KindOf(err)
	body := gin.H{"error": kind.Label(), "detail": utils.DetailOf(err)}
	for _, h := range extra {
		for k, v := range h {
			body[k] = v
		}
	}
	c.AbortWithStatusJSON(statusFor(kind), body)
}
