package handlers

import (
	"github.com/eventra/eventra/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

func setTestIdentity(c *gin.Context, userID, email, role string) {
	middlewares.SetIdentity(c, userID, email, role)
}
