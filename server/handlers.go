package main

import (
	"bytes"
	"errors"
	"image"
	"log"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/HighDoping/MapDither/imageio"
	"github.com/HighDoping/MapDither/pipeline"
)

// Helper functions for standardized responses
func successResponse(data interface{}) APIResponse {
	return APIResponse{
		Success: true,
		Data:    data,
	}
}

func errorResponse(message string) APIResponse {
	return APIResponse{
		Success: false,
		Error:   message,
	}
}

type registerRequest struct {
	DeviceID    string `json:"device_id"`
	DeviceToken string `json:"device_token"`
	DeviceName  string `json:"device_name"`
}

// deviceRequest is the body of POST /dev. Nil fields are left untouched by update actions.
type deviceRequest struct {
	Action            string  `json:"action"`
	ImgUpdateInterval *int    `json:"img_update_interval"`
	Size              *int    `json:"size"`
	Levels            *int    `json:"levels"`
	Matrix            *string `json:"matrix"`
	ResizeFilter      *string `json:"resize_filter"`
	ResizeMethod      *string `json:"resize_method"`
	BatteryLevel      *int    `json:"battery_level"`
}

func newDeviceSetting(deviceID string) DeviceSetting {
	d := pipeline.Defaults()
	return DeviceSetting{
		DeviceID:          deviceID,
		ImgUpdateInterval: 600,
		Size:              d.Size,
		Levels:            d.Levels,
		Matrix:            d.Matrix,
		ResizeFilter:      d.Filter,
		ResizeMethod:      d.Method,
	}
}

func handleAdminDeviceRegisterRequest(c *gin.Context, db *gorm.DB) {
	if !checkAdminKey(c) {
		c.JSON(http.StatusUnauthorized, errorResponse("Unauthorized access"))
		return
	}
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid JSON"))
		return
	}
	if req.DeviceID == "" || req.DeviceToken == "" {
		c.JSON(http.StatusBadRequest, errorResponse("device_id and device_token are required"))
		return
	}
	if req.DeviceName == "" {
		req.DeviceName = req.DeviceID
	}

	var existingDevice Device
	err := db.Where(&Device{DeviceID: req.DeviceID}).First(&existingDevice).Error
	if err == nil {
		c.JSON(http.StatusConflict, errorResponse("Device with this device_id already exists, name: "+existingDevice.DeviceName))
		return
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Printf("Error checking existing device: %v", err)
		c.JSON(http.StatusInternalServerError, errorResponse("Internal server error"))
		return
	}

	device := Device{
		DeviceID:    req.DeviceID,
		DeviceName:  req.DeviceName,
		DeviceToken: req.DeviceToken,
	}
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&device).Error; err != nil {
			return err
		}
		settings := newDeviceSetting(device.DeviceID)
		return tx.Create(&settings).Error
	})
	if err != nil {
		log.Printf("Error inserting device: %v", err)
		c.JSON(http.StatusInternalServerError, errorResponse("Internal server error"))
		return
	}
	c.JSON(http.StatusOK, successResponse(map[string]interface{}{
		"message":     "Device registered successfully",
		"device_id":   device.DeviceID,
		"device_name": device.DeviceName,
	}))
	log.Printf("Device registered: %s (%s)", device.DeviceID, device.DeviceName)
}

func handleAdminReshuffleRequest(c *gin.Context, db *gorm.DB) {
	if !checkAdminKey(c) {
		c.JSON(http.StatusUnauthorized, errorResponse("Unauthorized access"))
		return
	}
	if err := refreshImages(db, imageDir); err != nil {
		log.Printf("Error refreshing images: %v", err)
		c.JSON(http.StatusInternalServerError, errorResponse("Internal server error"))
		return
	}
	if err := createRandomList(db); err != nil {
		log.Printf("Error shuffling images: %v", err)
		c.JSON(http.StatusInternalServerError, errorResponse("Internal server error"))
		return
	}
	var count int64
	db.Model(&RandomImage{}).Count(&count)
	c.JSON(http.StatusOK, successResponse(map[string]interface{}{
		"message": "Image rotation reshuffled",
		"images":  count,
	}))
}

// handleRegisterRequest exchanges a pre-authorized device id and token for a JWT.
func handleRegisterRequest(c *gin.Context, db *gorm.DB) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid JSON"))
		return
	}
	if req.DeviceID == "" || req.DeviceToken == "" {
		c.JSON(http.StatusBadRequest, errorResponse("device_id and device_token are required"))
		return
	}

	var device Device
	err := db.Where(&Device{DeviceID: req.DeviceID, DeviceToken: req.DeviceToken}).First(&device).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusUnauthorized, errorResponse("Unauthorized device registration"))
		log.Printf("Unauthorized device registration attempt: %s", req.DeviceID)
		return
	}
	if err != nil {
		log.Printf("Error checking existing device: %v", err)
		c.JSON(http.StatusInternalServerError, errorResponse("Internal server error"))
		return
	}

	// Devices registered before settings existed get defaults
	var settings DeviceSetting
	err = db.Where(&DeviceSetting{DeviceID: device.DeviceID}).First(&settings).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		settings = newDeviceSetting(device.DeviceID)
		err = db.Create(&settings).Error
	}
	if err != nil {
		log.Printf("Error checking device settings: %v", err)
		c.JSON(http.StatusInternalServerError, errorResponse("Internal server error"))
		return
	}

	tokenString, err := issueJWT(device)
	if err != nil {
		log.Printf("Error signing token: %v", err)
		c.JSON(http.StatusInternalServerError, errorResponse("Internal server error"))
		return
	}
	c.JSON(http.StatusOK, successResponse(map[string]interface{}{
		"message": "Device registered",
		"token":   tokenString,
	}))
	log.Printf("Device registered: %s (%s)", device.DeviceID, device.DeviceName)
}

func serveAsset(c *gin.Context, db *gorm.DB) {
	device, _, err := authDevice(c, db)
	if err != nil {
		c.JSON(http.StatusUnauthorized, errorResponse("Unauthorized access to assets"))
		return
	}
	path := filepath.Clean("/" + c.Param("filepath"))
	c.File(filepath.Join(cacheDir, path))
	log.Printf("Device %s (%s) accessed asset: %s", device.DeviceID, device.DeviceName, path)
}

func loadSettings(c *gin.Context, db *gorm.DB, deviceID string) (DeviceSetting, bool) {
	var settings DeviceSetting
	err := db.Where(&DeviceSetting{DeviceID: deviceID}).First(&settings).Error
	if err == nil {
		return settings, true
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, errorResponse("Settings not found"))
	} else {
		log.Printf("Error fetching settings: %v", err)
		c.JSON(http.StatusInternalServerError, errorResponse("Internal server error"))
	}
	return settings, false
}

func handleDeviceRequest(c *gin.Context, db *gorm.DB) {
	device, claims, err := authDevice(c, db)
	if err != nil {
		c.JSON(http.StatusUnauthorized, errorResponse("Unauthorized device"))
		return
	}
	var req deviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid JSON"))
		return
	}

	switch req.Action {
	case "refresh_token":
		token, err := refreshJWT(device, claims)
		if err != nil {
			log.Printf("Error refreshing token: %v", err)
			c.JSON(http.StatusInternalServerError, errorResponse("Failed to refresh token"))
			return
		}
		if token == "" {
			c.JSON(http.StatusOK, successResponse(map[string]interface{}{"message": "Token still valid"}))
			return
		}
		c.JSON(http.StatusOK, successResponse(map[string]interface{}{"message": "Token refreshed", "token": token}))
	case "get_settings":
		settings, ok := loadSettings(c, db, device.DeviceID)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, successResponse(map[string]interface{}{
			"settings": settings,
		}))
	case "update_settings":
		handleUpdateSettings(c, db, device, req)
	case "update_telemetry":
		handleUpdateTelemetry(c, db, device, req)
	case "get_image":
		settings, ok := loadSettings(c, db, device.DeviceID)
		if !ok {
			return
		}
		due := device.UpdatedAt.Add(time.Duration(settings.ImgUpdateInterval) * time.Second)
		if device.CurrentImage != "" && due.After(time.Now()) {
			c.JSON(http.StatusOK, successResponse(map[string]interface{}{
				"message": "No image update needed",
			}))
			return
		}
		sendNextImage(c, db, device, settings)
	case "update_image":
		// Force update image without time check
		settings, ok := loadSettings(c, db, device.DeviceID)
		if !ok {
			return
		}
		sendNextImage(c, db, device, settings)
	default:
		c.JSON(http.StatusBadRequest, errorResponse("Invalid or missing action"))
	}
}

func handleUpdateSettings(c *gin.Context, db *gorm.DB, device Device, req deviceRequest) {
	var settings DeviceSetting
	err := db.Where(&DeviceSetting{DeviceID: device.DeviceID}).First(&settings).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		settings = newDeviceSetting(device.DeviceID)
	} else if err != nil {
		log.Printf("Error fetching settings: %v", err)
		c.JSON(http.StatusInternalServerError, errorResponse("Internal server error"))
		return
	}

	if req.ImgUpdateInterval != nil {
		settings.ImgUpdateInterval = *req.ImgUpdateInterval
	}
	if req.Size != nil {
		settings.Size = *req.Size
	}
	if req.Levels != nil {
		settings.Levels = *req.Levels
	}
	if req.Matrix != nil {
		settings.Matrix = *req.Matrix
	}
	if req.ResizeFilter != nil {
		settings.ResizeFilter = *req.ResizeFilter
	}
	if req.ResizeMethod != nil {
		settings.ResizeMethod = *req.ResizeMethod
	}
	if settings.ImgUpdateInterval < 0 {
		c.JSON(http.StatusBadRequest, errorResponse("img_update_interval must not be negative"))
		return
	}
	if err := settingOptions(settings).Validate(); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}
	settings = resolveSetting(settings)

	if err := db.Save(&settings).Error; err != nil {
		log.Printf("Error saving settings: %v", err)
		c.JSON(http.StatusInternalServerError, errorResponse("Internal server error"))
		return
	}
	c.JSON(http.StatusOK, successResponse(map[string]interface{}{
		"message":  "Settings updated successfully",
		"settings": settings,
	}))
}

func handleUpdateTelemetry(c *gin.Context, db *gorm.DB, device Device, req deviceRequest) {
	var telemetry DeviceTelemetry
	err := db.Where(&DeviceTelemetry{DeviceID: device.DeviceID}).First(&telemetry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		telemetry = DeviceTelemetry{DeviceID: device.DeviceID, BatteryLevel: 100}
	} else if err != nil {
		log.Printf("Error fetching telemetry: %v", err)
		c.JSON(http.StatusInternalServerError, errorResponse("Internal server error"))
		return
	}

	if req.BatteryLevel != nil {
		telemetry.BatteryLevel = *req.BatteryLevel
	}
	telemetry.LastSeen = time.Now()

	if err := db.Save(&telemetry).Error; err != nil {
		log.Printf("Error saving telemetry: %v", err)
		c.JSON(http.StatusInternalServerError, errorResponse("Internal server error"))
		return
	}
	c.JSON(http.StatusOK, successResponse(map[string]interface{}{
		"message":   "Telemetry updated successfully",
		"telemetry": telemetry,
	}))
}

// assetPath maps a cache file to the URL path served under /assets.
func assetPath(path string) string {
	rel, err := filepath.Rel(cacheDir, path)
	if err != nil {
		return ""
	}
	return "assets/" + filepath.ToSlash(rel)
}

func sendNextImage(c *gin.Context, db *gorm.DB, device Device, settings DeviceSetting) {
	nextImage, err := getNextRandom(db, device)
	if err != nil {
		log.Printf("Error finding next random image: %v", err)
		c.JSON(http.StatusInternalServerError, errorResponse("Internal server error"))
		return
	}
	dithered, err := getDithered(db, nextImage, settings)
	if err != nil {
		log.Printf("Error getting dithered image: %v", err)
		c.JSON(http.StatusInternalServerError, errorResponse("Internal server error"))
		return
	}

	device.CurrentImage = nextImage.UUID
	device.UpdatedAt = time.Now()
	if err := db.Save(&device).Error; err != nil {
		log.Printf("Error saving device: %v", err)
	}

	data := map[string]interface{}{
		"message":    "Image updated",
		"image_uuid": nextImage.UUID,
		"image":      assetPath(dithered.Path),
	}
	if dithered.IndexPath != "" {
		data["indices"] = assetPath(dithered.IndexPath)
	}
	c.JSON(http.StatusOK, successResponse(data))
}

// handleConvertRequest dithers an uploaded image and answers with the PNG.
func handleConvertRequest(c *gin.Context) {
	file, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("image file is required"))
		return
	}

	opts := pipeline.Options{
		Matrix: c.PostForm("matrix"),
		Filter: c.PostForm("filter"),
		Method: c.PostForm("resize"),
	}
	for field, dst := range map[string]*int{"size": &opts.Size, "levels": &opts.Levels} {
		v := c.PostForm(field)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse(field+" must be an integer"))
			return
		}
		*dst = n
	}
	if err := opts.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	f, err := file.Open()
	if err != nil {
		log.Printf("Error opening upload: %v", err)
		c.JSON(http.StatusInternalServerError, errorResponse("Internal server error"))
		return
	}
	defer f.Close()

	src, format, err := image.Decode(f)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("image could not be decoded"))
		return
	}
	log.Printf("Converting upload %s (%s, %v)", file.Filename, format, src.Bounds().Size())

	img, err := pipeline.Run(src, opts)
	if err != nil {
		log.Printf("Error dithering upload: %v", err)
		c.JSON(http.StatusInternalServerError, errorResponse("Internal server error"))
		return
	}

	var buf bytes.Buffer
	if err := imageio.Encode(&buf, img, ".png"); err != nil {
		log.Printf("Error encoding result: %v", err)
		c.JSON(http.StatusInternalServerError, errorResponse("Internal server error"))
		return
	}
	name := strings.TrimSuffix(file.Filename, filepath.Ext(file.Filename)) + "_dithered.png"
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK, "image/png", buf.Bytes())
}
