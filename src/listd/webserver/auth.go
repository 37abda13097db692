package webserver

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

type AuthHandler struct {
	AdminToken string
	JWTSecret  []byte
}

type reqLogin struct {
	Token    string `json:"token" binding:"required"`
	Operator string `json:"operator"`
}

// Login exchanges the configured admin token for a short-lived JWT.
func (h AuthHandler) Login(c *gin.Context) {
	var req reqLogin
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}
	if h.AdminToken == "" || subtle.ConstantTimeCompare([]byte(req.Token), []byte(h.AdminToken)) != 1 {
		c.JSON(http.StatusUnauthorized, gin.H{"err": "bad token"})
		return
	}

	operator := req.Operator
	if operator == "" {
		operator = "admin"
	}

	claims := jwt.MapClaims{
		"operator": operator,
		"exp":      time.Now().Add(12 * time.Hour).Unix(),
		"iat":      time.Now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(h.JWTSecret)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"err": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": signed})
}
