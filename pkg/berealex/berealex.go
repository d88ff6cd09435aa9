// Package berealex converts a BeReal GDPR data export into an organized
// directory of media files with timezone-corrected timestamps and embedded
// metadata.
package berealex

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Category is one of the export's manifest-backed record groups. Its value
// doubles as the output subdirectory name.
type Category string

const (
	CategoryMemories      Category = "memories"
	CategoryPosts         Category = "posts"
	CategoryRealmojis     Category = "realmojis"
	CategoryConversations Category = "conversations"
)

// Role identifies which capture a media file holds within a record. Its value
// becomes the <type> part of the output filename.
type Role string

const (
	RoleFront     Role = "front"
	RoleBack      Role = "back"
	RoleBTS       Role = "bts"
	RoleRealmoji  Role = "realmoji"
	RoleChat      Role = "chat"
	RoleComposite Role = "composited"
)

// MediaKind is the container kind detected from a file extension.
type MediaKind int

const (
	KindUnknown MediaKind = iota
	KindImage
	KindVideo
)

var (
	imageExts = map[string]bool{
		".jpg": true, ".jpeg": true, ".png": true, ".tif": true,
		".tiff": true, ".webp": true, ".heic": true,
	}
	videoExts = map[string]bool{
		".mp4": true, ".mov": true, ".avi": true, ".mkv": true,
		".m4v": true, ".hevc": true, ".webm": true,
	}
)

// KindForExt classifies a filename extension (with or without leading dot).
func KindForExt(ext string) MediaKind {
	ext = strings.ToLower(ext)
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	switch {
	case imageExts[ext]:
		return KindImage
	case videoExts[ext]:
		return KindVideo
	default:
		return KindUnknown
	}
}

// Location is a GPS coordinate attached to a record.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// MediaRef is a file reference as it appears in a manifest.
type MediaRef struct {
	Path string `json:"path"`
}

// RecordFile pairs a manifest file reference with its role.
type RecordFile struct {
	Role         Role
	ManifestPath string
}

// ExportRecord is one captured moment from a manifest. Records are built once
// at load time and never mutated.
type ExportRecord struct {
	ID       string
	Category Category
	Taken    time.Time // UTC
	Location *Location
	Files    []RecordFile
	Caption  string
}

// ResolvedTimestamp is a record's capture time converted to its local zone.
type ResolvedTimestamp struct {
	Zone  string
	Local time.Time
}

var fileStampFormat = "2006-01-02_15-04-05"

// FileStamp returns the local-time prefix used for output filenames.
func (ts ResolvedTimestamp) FileStamp() string {
	return ts.Local.Format(fileStampFormat)
}

// Config holds configuration for an export run. It is read-only after
// startup.
type Config struct {
	BeRealPath   string
	OutPath      string
	ExiftoolPath string

	FallbackTZ string
	UseGPSTZ   bool

	Filter *DateFilter

	Workers   int
	Composite bool

	Memories      bool
	Posts         bool
	Realmojis     bool
	Conversations bool
}

// ConfigError is a fatal pre-run configuration problem. Nothing is exported
// when one is raised.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return e.Reason
}

func configErrorf(format string, args ...any) *ConfigError {
	return &ConfigError{Reason: fmt.Sprintf(format, args...)}
}

// Validate checks the parts of the configuration that must hold before any
// job starts.
func (c *Config) Validate() error {
	if c.BeRealPath == "" {
		return configErrorf("input path is required")
	}
	if _, err := os.Stat(c.BeRealPath); err != nil {
		return configErrorf("input path %q: %v", c.BeRealPath, err)
	}
	if c.OutPath == "" {
		return configErrorf("output path is required")
	}
	if err := os.MkdirAll(c.OutPath, 0o755); err != nil {
		return configErrorf("create output path %q: %v", c.OutPath, err)
	}
	if _, err := time.LoadLocation(c.FallbackTZ); err != nil {
		return configErrorf("fallback timezone %q: %v", c.FallbackTZ, err)
	}
	return nil
}

func (c *Config) manifestPath(name string) string {
	return filepath.Join(c.BeRealPath, name)
}
