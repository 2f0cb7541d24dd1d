package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"ride_tracker/internal/middleware"
	"ride_tracker/internal/store"
)

// AuthController pairs UI clients with the device. Pairing exchanges the
// device PIN for a bearer token; every other endpoint requires the token.
type AuthController struct {
	settings *store.SettingsStore
	auth     *middleware.Auth
}

func NewAuthController(settings *store.SettingsStore, auth *middleware.Auth) *AuthController {
	return &AuthController{settings: settings, auth: auth}
}

// EnsurePIN provisions the pairing hash from the configured PIN on first
// boot. An already-provisioned device keeps its hash; an empty PIN leaves
// pairing disabled.
func (ac *AuthController) EnsurePIN(pin string) error {
	settings, err := ac.settings.Load()
	if err != nil {
		return err
	}
	if settings.PairingHash != "" || pin == "" {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if err := ac.settings.SetPairingHash(string(hash)); err != nil {
		return err
	}
	logrus.Info("Device pairing PIN provisioned.")
	return nil
}

type pairRequest struct {
	PIN string `json:"pin" binding:"required"`
}

// Pair validates the device PIN and issues a token.
func (ac *AuthController) Pair(c *gin.Context) {
	var body pairRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	settings, err := ac.settings.Load()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load device settings"})
		return
	}
	if settings.PairingHash == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "device is not provisioned for pairing"})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(settings.PairingHash), []byte(body.PIN)); err != nil {
		logrus.Warn("Pairing attempt rejected: wrong PIN.")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "incorrect pairing PIN"})
		return
	}

	token, err := ac.auth.GenerateToken()
	if err != nil {
		logrus.WithError(err).Error("Failed to generate pairing token.")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not issue token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token})
}
