package controlplane

import (
	"github.com/gin-gonic/gin"
)

const (
	CodeOk              string = "OK"
	ErrCodeBadRequest   string = "ERR_BAD_REQUEST"
	ErrCodeNotFound     string = "ERR_NOT_FOUND"
	ErrCodeNotSupported string = "ERR_NOT_SUPPORTED"
	ErrCodeUnknownError string = "ERR_UNKNOWN_ERROR"
)

type ControlPlaneResponse struct {
	Code string `json:"code"`
}

type ControlPlaneError struct {
	ErrorCode string `json:"code"`
	Error     string `json:"error"`
}

type StatusResponse struct {
	Status    string `json:"status"`
	Role      string `json:"role"`
	Timestamp string `json:"ts"`
	StartedAt string `json:"started_at"`
	Version   string `json:"version"`
	Revision  string `json:"revision"`
	BuildDate string `json:"build_date"`
	Summary   any    `json:"summary"`
}

type FilesResponse struct {
	Files any `json:"files"`
}

type SyncRequest struct {
	ID string `form:"id" json:"id"`
}

type JournalRequest struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=1000"`
}

type JournalResponse struct {
	Entries any `json:"entries"`
}

func AbortWithError(c *gin.Context, status int, code string, err error) {
	c.Abort()
	c.Error(err)
	c.PureJSON(status, ControlPlaneError{
		ErrorCode: code,
		Error:     err.Error(),
	})
}
