package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"ride_tracker/internal/models"
	"ride_tracker/internal/store"
)

// SettingsController serves the device preferences.
type SettingsController struct {
	settings *store.SettingsStore
}

func NewSettingsController(settings *store.SettingsStore) *SettingsController {
	return &SettingsController{settings: settings}
}

// Get returns the current settings. A store failure still answers with
// the defaults so the UI can render.
func (sc *SettingsController) Get(c *gin.Context) {
	settings, err := sc.settings.Load()
	if err != nil {
		logrus.WithError(err).Warn("Settings load failed; answering with defaults.")
	}
	c.JSON(http.StatusOK, settings)
}

type settingsRequest struct {
	Units              string `json:"units" binding:"required,oneof=metric imperial"`
	BackgroundTracking *bool  `json:"background_tracking" binding:"required"`
	GPSAccuracy        string `json:"gps_accuracy" binding:"required,oneof=high balanced low"`
	MapStyle           string `json:"map_style" binding:"required"`
}

// Put replaces the settings. The new GPS accuracy profile applies to the
// next recording session; an active one keeps its thresholds.
func (sc *SettingsController) Put(c *gin.Context) {
	var body settingsRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	settings := models.Settings{
		Units:              body.Units,
		BackgroundTracking: *body.BackgroundTracking,
		GPSAccuracy:        body.GPSAccuracy,
		MapStyle:           body.MapStyle,
	}
	if err := sc.settings.Save(settings); err != nil {
		logrus.WithError(err).Error("Failed to save settings.")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not save settings"})
		return
	}

	saved, err := sc.settings.Load()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not reload settings"})
		return
	}
	c.JSON(http.StatusOK, saved)
}
