package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func Success(c *gin.Context, data gin.H) {
	Respond(c, http.StatusOK, data)
}

// Created answers 201 with the same envelope as Success
func Created(c *gin.Context, data gin.H) {
	Respond(c, http.StatusCreated, data)
}

func Respond(c *gin.Context, code int, data gin.H) {
	c.JSON(code, gin.H{
		"success": true,
		"data":    data,
	})
}

// Error aborts the handler chain with an error envelope
func Error(c *gin.Context, code int, msg string) {
	c.AbortWithStatusJSON(code, gin.H{
		"success": false,
		"error":   msg,
	})
}
