package main

import (
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"gorm.io/gorm"
)

var jwtMasterKey []byte
var adminKey string
var imageDir string
var imageDirRefresh int
var cacheDir string
var dbPath string
var listenAddr string

func init() {
	err := godotenv.Load()
	if err != nil {
		log.Println("Warning: Error loading .env file:", err)
	}

	jwtKey := os.Getenv("JWT_MASTER_KEY")
	if jwtKey == "" {
		log.Println("Warning: JWT_MASTER_KEY not set in .env, using default (not secure for production)")
		jwtKey = "default_insecure_key"
	}
	jwtMasterKey = []byte(jwtKey)

	adminKey = os.Getenv("ADMIN_KEY")
	if adminKey == "" {
		log.Println("Warning: ADMIN_KEY not set in .env, using default (not secure for production)")
		adminKey = "default_admin_token"
	}
	imageDir = os.Getenv("IMAGE_DIR")
	if imageDir == "" {
		log.Println("Warning: IMAGE_DIR not set in .env, using default")
		imageDir = "./images"
	}
	log.Println("Using image directory:", imageDir)
	imageDirRefresh, err = strconv.Atoi(os.Getenv("IMAGE_DIR_REFRESH"))
	if err != nil || imageDirRefresh <= 0 {
		log.Println("Warning: IMAGE_DIR_REFRESH not set in .env, using default")
		imageDirRefresh = 86400
	}
	cacheDir = os.Getenv("CACHE_DIR")
	if cacheDir == "" {
		log.Println("Warning: CACHE_DIR not set in .env, using default")
		cacheDir, _ = os.UserCacheDir()
	}
	dbPath = os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = "./db.db"
	}
	listenAddr = os.Getenv("LISTEN_ADDR")
	if listenAddr == "" {
		listenAddr = ":8080"
	}
}

func setupRouter(db *gorm.DB) *gin.Engine {
	router := gin.Default()

	// Cached frames, only for authenticated devices
	router.GET("/assets/*filepath", func(c *gin.Context) {
		serveAsset(c, db)
	})

	router.POST("/register", func(c *gin.Context) {
		handleRegisterRequest(c, db)
	})

	router.POST("/dev", func(c *gin.Context) {
		handleDeviceRequest(c, db)
	})

	router.POST("/convert", handleConvertRequest)

	router.POST("/admin/device_register", func(c *gin.Context) {
		handleAdminDeviceRegisterRequest(c, db)
	})

	router.POST("/admin/reshuffle", func(c *gin.Context) {
		handleAdminReshuffleRequest(c, db)
	})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, successResponse(map[string]interface{}{"status": "ok"}))
	})

	return router
}

func startAPIServer(db *gorm.DB) {
	router := setupRouter(db)

	cert, key := os.Getenv("TLS_CERT"), os.Getenv("TLS_KEY")
	if cert != "" && key != "" {
		log.Printf("Starting API server with TLS on %s...", listenAddr)
		log.Fatal(router.RunTLS(listenAddr, cert, key))
	}
	log.Printf("Starting API server on %s...", listenAddr)
	log.Fatal(router.Run(listenAddr))
}

// watchImages rescans the image directory every imageDirRefresh seconds.
func watchImages(db *gorm.DB) {
	ticker := time.NewTicker(time.Duration(imageDirRefresh) * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		if err := refreshImages(db, imageDir); err != nil {
			log.Printf("Failed to refresh images: %v", err)
			continue
		}
		if err := updateRandomList(db); err != nil {
			log.Printf("Failed to update random image list: %v", err)
		}
	}
}

func main() {
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		log.Fatalf("Failed to create cache directory: %v", err)
	}

	db, err := dbInit(dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer dbClose(db)

	if err := refreshImages(db, imageDir); err != nil {
		log.Fatalf("Failed to refresh images: %v", err)
	}

	if err := updateRandomList(db); err != nil {
		log.Fatalf("Failed to update random image list: %v", err)
	}

	go watchImages(db)

	startAPIServer(db)
}
