package config

import (
	_ "embed"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"gopkg.in/yaml.v3"
)

//go:embed layout.yaml
var layoutYAML []byte

// Storage backends
const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

// Photo stores
const (
	PhotoStoreFS    = "fs"
	PhotoStoreMinIO = "minio"
)

// Matcher index modes
const (
	MatcherExact    = "exact"
	MatcherHNSW     = "hnsw"
	MatcherPGVector = "pgvector"
)

type Config struct {
	Storage     StorageConfig
	Database    DatabaseConfig
	SQLite      SQLiteConfig
	Embedder    EmbedderConfig
	Recognition RecognitionConfig
	Photos      PhotoStoreConfig
	MinIO       MinIOConfig
	Layout      LayoutConfig
	Web         WebConfig
}

type WebConfig struct {
	AllowedOrigins []string // extra CORS origins; "*" allows any (localhost is always allowed)
}

type StorageConfig struct {
	Backend       string // file, postgres or sqlite (default file)
	DataDir       string // root for file-backed data (default ./data)
	EncodingsFile string // defaults to <DataDir>/encodings.json
	AttendanceDir string // defaults to <DataDir>/attendance
	StudentsDir   string // defaults to <DataDir>/students
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

type SQLiteConfig struct {
	Path string // defaults to <DataDir>/attendance.db
}

type EmbedderConfig struct {
	URL          string // defaults to http://localhost:8000
	MaxImageSize int    // photos are downscaled to this many pixels on the long side (default 1920)
}

type RecognitionConfig struct {
	Tolerance    float64 // maximum Euclidean distance for a match (default 0.5)
	MatcherIndex string  // exact, hnsw or pgvector (default exact)
}

type PhotoStoreConfig struct {
	Backend string // fs or minio (default fs)
}

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string // defaults to attendance
	UseSSL    bool
}

// LayoutConfig describes the attendance workbook.
type LayoutConfig struct {
	Sheet           string         `yaml:"sheet"`
	Title           string         `yaml:"title"`
	TitleDateFormat string         `yaml:"title_date_format"`
	Columns         []LayoutColumn `yaml:"columns"`
}

type LayoutColumn struct {
	Header string  `yaml:"header"`
	Width  float64 `yaml:"width"`
}

// Headers returns the column header labels.
func (l LayoutConfig) Headers() []string {
	headers := make([]string, len(l.Columns))
	for i, c := range l.Columns {
		headers[i] = c.Header
	}
	return headers
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a positive float.
// Returns the default value if the env var is unset, empty, or invalid.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

// envString returns the trimmed, lowercased env var or the default value.
func envString(key, defaultVal string) string {
	s := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if s == "" {
		return defaultVal
	}
	return s
}

// envList reads a comma separated environment variable, skipping empty items.
func envList(key string) []string {
	var out []string
	for item := range strings.SplitSeq(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// envBool reads an environment variable as a boolean, defaulting to false.
func envBool(key string) bool {
	b, err := strconv.ParseBool(os.Getenv(key))
	return err == nil && b
}

// DefaultLayout returns the embedded workbook layout.
func DefaultLayout() LayoutConfig {
	var layout LayoutConfig
	if err := yaml.Unmarshal(layoutYAML, &layout); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded layout.yaml: " + err.Error())
	}
	return layout
}

func Load() *Config {
	dataDir := os.Getenv("DATA_DIR")
	if dataDir == "" {
		dataDir = "data"
	}
	orDefault := func(key, def string) string {
		if v := os.Getenv(key); v != "" {
			return v
		}
		return def
	}

	return &Config{
		Storage: StorageConfig{
			Backend:       envString("STORAGE_BACKEND", BackendFile),
			DataDir:       dataDir,
			EncodingsFile: orDefault("ENCODINGS_FILE", filepath.Join(dataDir, "encodings.json")),
			AttendanceDir: orDefault("ATTENDANCE_DIR", filepath.Join(dataDir, "attendance")),
			StudentsDir:   orDefault("STUDENTS_DIR", filepath.Join(dataDir, "students")),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		SQLite: SQLiteConfig{
			Path: orDefault("SQLITE_PATH", filepath.Join(dataDir, "attendance.db")),
		},
		Embedder: EmbedderConfig{
			URL:          orDefault("EMBEDDER_URL", "http://localhost:8000"),
			MaxImageSize: envInt("EMBEDDER_MAX_IMAGE_SIZE", constants.MaxImageSize),
		},
		Recognition: RecognitionConfig{
			Tolerance:    envFloat("MATCH_TOLERANCE", 0.5),
			MatcherIndex: envString("MATCHER_INDEX", MatcherExact),
		},
		Photos: PhotoStoreConfig{
			Backend: envString("PHOTO_STORE", PhotoStoreFS),
		},
		MinIO: MinIOConfig{
			Endpoint:  os.Getenv("MINIO_ENDPOINT"),
			AccessKey: os.Getenv("MINIO_ACCESS_KEY"),
			SecretKey: os.Getenv("MINIO_SECRET_KEY"),
			Bucket:    orDefault("MINIO_BUCKET", "attendance"),
			UseSSL:    envBool("MINIO_USE_SSL"),
		},
		Layout: DefaultLayout(),
		Web: WebConfig{
			AllowedOrigins: envList("WEB_ALLOWED_ORIGINS"),
		},
	}
}
