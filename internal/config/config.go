package config

import (
	"errors"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Missing-prediction policies applied when a capture tick has no retained result.
const (
	PolicySkip  = "skip"
	PolicyInfer = "infer"
)

type Config struct {
	Port     int
	Password string

	ModelPath           string
	ModelConfigPath     string
	ModelFormat         string // "yolo" (ONNX export) or "ssd" (TensorFlow graph)
	ModelInputSize      int
	ConfidenceThreshold float64
	NMSThreshold        float64
	VehicleClasses      []string // empty counts every detected box
	DrawBoxes           bool

	OutputDirectory string
	DatabasePath    string
	LogDirectory    string
	TempDirectory   string
	WatchDirectory  string

	DefaultTotalSpaces        int
	PredictionIntervalSeconds float64
	CaptureIntervalSeconds    float64
	FallbackFPS               float64
	MissingPredictionPolicy   string

	DisplayIntervalMs int // Minimum gap between interval frames pushed to viewers
	DisplayQueueSize  int
	MaxUploadMB       int64
}

// Load reads the configuration from the environment, after merging an optional .env file.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Could not read .env file: %v", err)
	}

	return &Config{
		Port:     getEnvAsInt("PORT", 8080),
		Password: getEnv("PASSWORD", ""),

		ModelPath:           getEnv("MODEL_PATH", ""),
		ModelConfigPath:     getEnv("MODEL_CONFIG_PATH", ""),
		ModelFormat:         strings.ToLower(getEnv("MODEL_FORMAT", "yolo")),
		ModelInputSize:      getEnvAsInt("MODEL_INPUT_SIZE", 640),
		ConfidenceThreshold: getEnvAsFloat("CONFIDENCE_THRESHOLD", 0.5),
		NMSThreshold:        getEnvAsFloat("NMS_THRESHOLD", 0.45),
		VehicleClasses:      getEnvAsList("VEHICLE_CLASSES"),
		DrawBoxes:           getEnvAsBool("DRAW_BOXES", false),

		OutputDirectory: getEnv("OUTPUT_DIR", ""),
		DatabasePath:    getEnv("DATABASE_PATH", filepath.Join(".", "data", "parkingwatch.db")),
		LogDirectory:    getEnv("LOG_DIR", filepath.Join(".", "logs")),
		TempDirectory:   getEnv("TEMP_DIR", ""),
		WatchDirectory:  getEnv("WATCH_DIR", ""),

		DefaultTotalSpaces:        getEnvAsInt("DEFAULT_TOTAL_SPACES", 100),
		PredictionIntervalSeconds: getEnvAsFloat("PREDICTION_INTERVAL_SECONDS", 5),
		CaptureIntervalSeconds:    getEnvAsFloat("CAPTURE_INTERVAL_SECONDS", 5),
		FallbackFPS:               getEnvAsFloat("FALLBACK_FPS", 30),
		MissingPredictionPolicy:   strings.ToLower(getEnv("MISSING_PREDICTION_POLICY", PolicySkip)),

		DisplayIntervalMs: getEnvAsInt("DISPLAY_INTERVAL_MS", 1000),
		DisplayQueueSize:  getEnvAsInt("DISPLAY_QUEUE_SIZE", 16),
		MaxUploadMB:       getEnvAsInt64("MAX_UPLOAD_MB", 512),
	}
}

// Validate reports settings that have no usable value. Model and output
// locations are deployment specific and must always be provided.
func (c *Config) Validate() error {
	var problems []string

	if c.ModelPath == "" {
		problems = append(problems, "MODEL_PATH is required")
	}
	if c.OutputDirectory == "" {
		problems = append(problems, "OUTPUT_DIR is required")
	}
	if c.ModelFormat != "yolo" && c.ModelFormat != "ssd" {
		problems = append(problems, "MODEL_FORMAT must be yolo or ssd")
	}
	if c.DefaultTotalSpaces < 1 {
		problems = append(problems, "DEFAULT_TOTAL_SPACES must be at least 1")
	}
	if c.PredictionIntervalSeconds <= 0 || c.CaptureIntervalSeconds <= 0 {
		problems = append(problems, "PREDICTION_INTERVAL_SECONDS and CAPTURE_INTERVAL_SECONDS must be positive")
	}
	if c.FallbackFPS <= 0 {
		problems = append(problems, "FALLBACK_FPS must be positive")
	}
	if c.MissingPredictionPolicy != PolicySkip && c.MissingPredictionPolicy != PolicyInfer {
		problems = append(problems, "MISSING_PREDICTION_POLICY must be skip or infer")
	}

	if len(problems) > 0 {
		return errors.New("invalid configuration: " + strings.Join(problems, "; "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvAsList splits a comma separated value, dropping blanks.
func getEnvAsList(key string) []string {
	var items []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, strings.ToLower(item))
		}
	}
	return items
}
