package main

import (
	"errors"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // Import the SQLite driver
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/HighDoping/MapDither/imageio"
	"github.com/HighDoping/MapDither/ordered"
	"github.com/HighDoping/MapDither/pipeline"
)

func generateUUID() string {
	return uuid.NewString()
}

func dbInit(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	// Auto migrate schemas
	err = db.AutoMigrate(&Device{}, &DeviceSetting{}, &DeviceTelemetry{}, &DBImage{}, &DitheredImage{}, &RandomImage{})
	if err != nil {
		return nil, fmt.Errorf("failed to migrate database schema: %w", err)
	}

	// Drop cache rows whose files were removed behind our back
	var ditheredImages []DitheredImage
	if err := db.Find(&ditheredImages).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch dithered images: %w", err)
	}
	for _, dithered := range ditheredImages {
		if _, err := os.Stat(dithered.Path); err == nil {
			continue
		}
		if err := db.Delete(&dithered).Error; err != nil {
			log.Printf("failed to delete dithered image %s from database: %v\n", dithered.Path, err)
			continue
		}
		log.Printf("Deleted dithered image: %s with UUID: %s (file no longer exists)\n", dithered.Path, dithered.UUID)
	}

	return db, nil
}

func dbClose(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("database connection is nil")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database: %w", err)
	}

	err = sqlDB.Close()
	if err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// refreshImages syncs the images table with the files under dir.
func refreshImages(db *gorm.DB, dir string) error {
	imagePaths, err := imageio.ListImages(dir, imageio.Extensions)
	if err != nil {
		return fmt.Errorf("failed to generate file list: %w", err)
	}

	imagePathMap := make(map[string]bool)
	for _, path := range imagePaths {
		imagePathMap[path] = true
	}

	// Find and remove entries in DB that no longer exist in the file system
	var images []DBImage
	if err := db.Find(&images).Error; err != nil {
		return fmt.Errorf("failed to fetch existing images: %w", err)
	}

	for _, img := range images {
		if imagePathMap[img.Path] {
			continue
		}
		if err := db.Delete(&img).Error; err != nil {
			log.Printf("failed to delete non-existent image %s from database: %v\n", img.Path, err)
			continue
		}
		// Also clean up any dithered versions
		var dithered []DitheredImage
		if err := db.Where(&DitheredImage{DBImageUUID: img.UUID}).Find(&dithered).Error; err != nil {
			log.Printf("failed to find dithered images for %s: %v\n", img.UUID, err)
		}
		for _, d := range dithered {
			if err := removeDithered(db, d.UUID); err != nil {
				log.Printf("failed to delete dithered image %s: %v\n", d.UUID, err)
			}
		}
		log.Printf("Deleted image: %s with UUID: %s (file no longer exists)\n", img.Path, img.UUID)
	}

	// Add new images
	for _, path := range imagePaths {
		var count int64
		db.Model(&DBImage{}).Where("path = ?", path).Count(&count)
		if count > 0 {
			continue
		}

		image := DBImage{
			Path: path,
			UUID: generateUUID(),
		}
		if err := db.Create(&image).Error; err != nil {
			log.Printf("failed to insert image %s into database: %v\n", path, err)
			continue
		}
		log.Printf("Inserted image: %s with UUID: %s\n", path, image.UUID)
	}
	return nil
}

func settingOptions(s DeviceSetting) pipeline.Options {
	return pipeline.Options{
		Size:   s.Size,
		Levels: s.Levels,
		Matrix: s.Matrix,
		Filter: s.ResizeFilter,
		Method: s.ResizeMethod,
	}
}

// resolveSetting fills empty conversion fields of s with the pipeline defaults.
func resolveSetting(s DeviceSetting) DeviceSetting {
	o := settingOptions(s).WithDefaults()
	s.Size = o.Size
	s.Levels = o.Levels
	s.Matrix = o.Matrix
	s.ResizeFilter = o.Filter
	s.ResizeMethod = o.Method
	return s
}

// convertImage runs the dithering pipeline for image and writes the result into dir.
// The packed index file is skipped when the level count doesn't fit in one byte per pixel.
func convertImage(image DBImage, s DeviceSetting, dir, id string) (path, indexPath string, err error) {
	path = filepath.Join(dir, fmt.Sprintf("dithered_%s.png", id))
	img, err := pipeline.ConvertFile(image.Path, path, settingOptions(s))
	if err != nil {
		return "", "", err
	}

	data, err := ordered.PackIndices(img, s.Levels)
	if errors.Is(err, ordered.ErrPaletteOverflow) {
		return path, "", nil
	}
	if err != nil {
		return "", "", err
	}
	indexPath = filepath.Join(dir, fmt.Sprintf("%s.bin", id))
	if err := imageio.SaveBytes(indexPath, data); err != nil {
		return "", "", err
	}
	return path, indexPath, nil
}

func addDithered(db *gorm.DB, image DBImage, s DeviceSetting) (DitheredImage, error) {
	if db == nil {
		return DitheredImage{}, fmt.Errorf("database connection is nil")
	}
	id := generateUUID()
	path, indexPath, err := convertImage(image, s, cacheDir, id)
	if err != nil {
		return DitheredImage{}, fmt.Errorf("failed to dither image %s: %w", image.Path, err)
	}

	dithered := DitheredImage{
		UUID:         id,
		DBImageUUID:  image.UUID,
		Size:         s.Size,
		Levels:       s.Levels,
		Matrix:       s.Matrix,
		ResizeFilter: s.ResizeFilter,
		ResizeMethod: s.ResizeMethod,
		Path:         path,
		IndexPath:    indexPath,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	if err := db.Create(&dithered).Error; err != nil {
		return DitheredImage{}, fmt.Errorf("failed to insert dithered image into database: %w", err)
	}

	log.Printf("Inserted dithered image with UUID: %s\n", dithered.UUID)
	return dithered, nil
}

// getDithered returns the cached conversion of image for s, creating it on a miss.
func getDithered(db *gorm.DB, image DBImage, s DeviceSetting) (DitheredImage, error) {
	if db == nil {
		return DitheredImage{}, fmt.Errorf("database connection is nil")
	}

	s = resolveSetting(s)
	var dithered DitheredImage
	// Name every key field so zero values still take part in the match
	err := db.Where(&DitheredImage{
		DBImageUUID:  image.UUID,
		Size:         s.Size,
		Levels:       s.Levels,
		Matrix:       s.Matrix,
		ResizeFilter: s.ResizeFilter,
		ResizeMethod: s.ResizeMethod,
	}, "DBImageUUID", "Size", "Levels", "Matrix", "ResizeFilter", "ResizeMethod").First(&dithered).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		dithered, err = addDithered(db, image, s)
		if err != nil {
			return DitheredImage{}, fmt.Errorf("failed to create dithered image: %w", err)
		}
		return dithered, nil
	}
	if err != nil {
		return DitheredImage{}, fmt.Errorf("failed to query dithered image: %w", err)
	}
	return dithered, nil
}

func removeDithered(db *gorm.DB, id string) error {
	if db == nil {
		return fmt.Errorf("database connection is nil")
	}

	var dithered DitheredImage
	if err := db.Where(&DitheredImage{UUID: id}).First(&dithered).Error; err != nil {
		return fmt.Errorf("failed to find dithered image: %w", err)
	}
	if err := db.Delete(&dithered).Error; err != nil {
		return fmt.Errorf("failed to delete dithered image from database: %w", err)
	}

	// The row is gone either way, missing files only get a warning
	for _, path := range []string{dithered.Path, dithered.IndexPath} {
		if path == "" {
			continue
		}
		if err := os.Remove(path); err != nil {
			log.Printf("Warning: Failed to delete cached file %s: %v", path, err)
		}
	}

	log.Printf("Deleted dithered image with UUID: %s\n", id)
	return nil
}

func createRandomList(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("database connection is nil")
	}

	if err := db.Exec("DELETE FROM random_images").Error; err != nil {
		return fmt.Errorf("failed to clear random images: %w", err)
	}

	var images []DBImage
	if err := db.Model(&DBImage{}).Select("uuid").Find(&images).Error; err != nil {
		return fmt.Errorf("failed to fetch image UUIDs: %w", err)
	}

	rand.Shuffle(len(images), func(i, j int) {
		images[i], images[j] = images[j], images[i]
	})

	for _, img := range images {
		if err := db.Create(&RandomImage{UUID: img.UUID}).Error; err != nil {
			return fmt.Errorf("failed to insert random image %s: %w", img.UUID, err)
		}
	}

	log.Println("Random images table created and populated with shuffled UUIDs from images table.")
	return nil
}

// updateRandomList drops rotation entries whose image is gone and inserts new images at random positions.
func updateRandomList(db *gorm.DB) error {
	var randomImages []RandomImage
	if err := db.Find(&randomImages).Error; err != nil {
		return fmt.Errorf("failed to fetch random images: %w", err)
	}
	for _, randomImage := range randomImages {
		var count int64
		db.Model(&DBImage{}).Where("uuid = ?", randomImage.UUID).Count(&count)
		if count == 0 {
			if err := db.Delete(&RandomImage{}, randomImage.ID).Error; err != nil {
				return fmt.Errorf("failed to delete random image %s: %w", randomImage.UUID, err)
			}
			log.Printf("Deleted random image with UUID: %s\n", randomImage.UUID)
		}
	}

	var images []DBImage
	if err := db.Model(&DBImage{}).Select("uuid").Find(&images).Error; err != nil {
		return fmt.Errorf("failed to fetch image UUIDs: %w", err)
	}
	var randomCount int64
	if err := db.Model(&RandomImage{}).Count(&randomCount).Error; err != nil {
		return fmt.Errorf("failed to count random images: %w", err)
	}

	for _, img := range images {
		var count int64
		db.Model(&RandomImage{}).Where("uuid = ?", img.UUID).Count(&count)
		if count > 0 {
			continue
		}

		position := 0
		if randomCount > 0 {
			position = rand.Intn(int(randomCount))

			// Shift IDs from the highest down so the primary key never collides
			var maxID uint
			if err := db.Model(&RandomImage{}).Select("MAX(id)").Scan(&maxID).Error; err != nil {
				return fmt.Errorf("failed to get max ID: %w", err)
			}
			for i := maxID; i >= uint(position+1); i-- {
				if err := db.Exec("UPDATE random_images SET id = ? WHERE id = ?", i+1, i).Error; err != nil {
					return fmt.Errorf("failed to shift random image with ID %d: %w", i, err)
				}
			}
		}

		randomImage := RandomImage{ID: uint(position + 1), UUID: img.UUID}
		if err := db.Create(&randomImage).Error; err != nil {
			return fmt.Errorf("failed to insert random image %s at position %d: %w", img.UUID, position, err)
		}

		log.Printf("Inserted random image with UUID: %s at position %d\n", img.UUID, position)
		randomCount++
	}
	log.Println("Random images list updated.")
	return nil
}

func firstRandom(db *gorm.DB) (RandomImage, error) {
	var first RandomImage
	if err := db.Order("id ASC").First(&first).Error; err != nil {
		return first, fmt.Errorf("no images available")
	}
	return first, nil
}

// getNextRandom returns the image after the device's current one in the rotation, wrapping around.
func getNextRandom(db *gorm.DB, device Device) (DBImage, error) {
	var nextImage DBImage

	var current RandomImage
	var err error
	if device.CurrentImage == "" {
		current, err = firstRandom(db)
		if err != nil {
			return nextImage, err
		}
	} else {
		result := db.Where(&RandomImage{UUID: device.CurrentImage}).First(&current)
		if result.Error != nil {
			// Current image not in random list, start from beginning
			current, err = firstRandom(db)
			if err != nil {
				return nextImage, err
			}
		} else {
			var next RandomImage
			result := db.Where("id > ?", current.ID).Order("id ASC").First(&next)
			switch {
			case errors.Is(result.Error, gorm.ErrRecordNotFound):
				current, err = firstRandom(db)
				if err != nil {
					return nextImage, err
				}
			case result.Error != nil:
				return nextImage, fmt.Errorf("database error: %w", result.Error)
			default:
				current = next
			}
		}
	}

	if err := db.Where(&DBImage{UUID: current.UUID}).First(&nextImage).Error; err != nil {
		return nextImage, fmt.Errorf("failed to find image with UUID: %s", current.UUID)
	}
	return nextImage, nil
}
