package main

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"
)

const tokenLifetime = 24 * time.Hour

type jwtCustomClaims struct {
	DeviceID    string `json:"device_id"`
	DeviceToken string `json:"device_token"`
	DeviceName  string `json:"device_name"`
	jwt.RegisteredClaims
}

func issueJWT(device Device) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwtCustomClaims{
		DeviceID:    device.DeviceID,
		DeviceToken: device.DeviceToken,
		DeviceName:  device.DeviceName,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "device_api",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenLifetime)),
		},
	})
	return token.SignedString(jwtMasterKey)
}

func getBearerToken(c *gin.Context) (string, error) {
	tokenString := c.GetHeader("Authorization")
	if tokenString == "" {
		return "", fmt.Errorf("authorization header missing")
	}
	if !strings.HasPrefix(tokenString, "Bearer ") || len(tokenString) == len("Bearer ") {
		return "", fmt.Errorf("invalid authorization header format")
	}
	return tokenString[len("Bearer "):], nil
}

func checkAdminKey(c *gin.Context) bool {
	tokenString, err := getBearerToken(c)
	if err != nil {
		return false
	}
	return tokenString == adminKey
}

func getJWTClaims(c *gin.Context) (*jwtCustomClaims, error) {
	tokenString, err := getBearerToken(c)
	if err != nil {
		return nil, err
	}
	token, err := jwt.ParseWithClaims(tokenString, &jwtCustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return jwtMasterKey, nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	claims, ok := token.Claims.(*jwtCustomClaims)
	if !ok {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}

func updateLastSeen(device Device, db *gorm.DB) error {
	var telemetry DeviceTelemetry
	err := db.Where(&DeviceTelemetry{DeviceID: device.DeviceID}).
		Assign(DeviceTelemetry{LastSeen: time.Now()}).
		FirstOrCreate(&telemetry).Error
	if err != nil {
		log.Printf("Error updating last seen for device %s: %v", device.DeviceID, err)
		return err
	}
	return nil
}

// authDevice checks the device JWT and returns the matching device.
func authDevice(c *gin.Context, db *gorm.DB) (Device, *jwtCustomClaims, error) {
	claims, err := getJWTClaims(c)
	if err != nil {
		log.Printf("Error getting JWT claims: %v", err)
		return Device{}, nil, err
	}

	var device Device
	err = db.Where(&Device{DeviceID: claims.DeviceID, DeviceToken: claims.DeviceToken}).First(&device).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Device{}, nil, fmt.Errorf("device not found")
	}
	if err != nil {
		log.Printf("Error fetching device: %v", err)
		return Device{}, nil, err
	}
	log.Printf("Device authenticated: %s (%s)", device.DeviceID, device.DeviceName)

	if err := updateLastSeen(device, db); err != nil {
		return Device{}, nil, err
	}
	return device, claims, nil
}

// refreshJWT issues a new token once the current one is within an hour of expiring.
func refreshJWT(device Device, claims *jwtCustomClaims) (string, error) {
	if claims == nil || claims.ExpiresAt == nil {
		return "", fmt.Errorf("invalid token claims")
	}
	if claims.ExpiresAt.Time.After(time.Now().Add(time.Hour)) {
		return "", nil
	}
	return issueJWT(device)
}
