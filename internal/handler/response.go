package handler

import "github.com/gin-gonic/gin"

type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Status: "success",
		Data:   data,
	}
}

func NewErrorResponse(message string) *Response {
	return &Response{
		Status:  "error",
		Message: message,
	}
}

// Error records err on the context and aborts the chain. The error
// middleware maps it to a status code and writes the response envelope.
func Error(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}
