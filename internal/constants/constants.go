// Package constants provides shared constants used across the codebase.
package constants

// Upload constants
const (
	// MaxUploadSize is the maximum accepted photo upload in bytes (32MB)
	MaxUploadSize = 32 << 20

	// MultipartMemory is how much of a multipart form is kept in memory before spilling to disk
	MultipartMemory = 8 << 20
)

// Processing constants
const (
	// WorkerPoolSize is the default number of parallel workers for bulk enrollment
	WorkerPoolSize = 4

	// MaxImageSize is the maximum dimension (width or height) sent to the embedder
	MaxImageSize = 1920
)

// Server constants
const (
	// DefaultPort is the port the API listens on when WEB_PORT is unset
	DefaultPort = 8080

	// DefaultHost is the interface the API binds to when WEB_HOST is unset
	DefaultHost = "0.0.0.0"

	// ShutdownTimeout bounds the graceful shutdown of the API server, in seconds
	ShutdownTimeout = 30
)

// PhotoExtensions lists the file extensions bulk enrollment picks up.
var PhotoExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".bmp":  true,
	".webp": true,
}
