// Package record defines the output record shapes Photon emits for each
// processed image, and the dual-stream envelope used by JSONL output.
package record

// Tag is a single zero-shot label attached to an image.
type Tag struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
	Category   string  `json:"category,omitempty"`
	Path       string  `json:"path,omitempty"`
}

// Exif carries the lenient subset of EXIF fields Photon extracts. All
// fields are optional; a nil *Exif means no tag was present at all.
type Exif struct {
	CapturedAt    string  `json:"captured_at,omitempty"`
	CameraMake    string  `json:"camera_make,omitempty"`
	CameraModel   string  `json:"camera_model,omitempty"`
	GPSLatitude   *float64 `json:"gps_latitude,omitempty"`
	GPSLongitude  *float64 `json:"gps_longitude,omitempty"`
	ISO           int     `json:"iso,omitempty"`
	Aperture      float64 `json:"aperture,omitempty"`
	ShutterSpeed  string  `json:"shutter_speed,omitempty"`
	FocalLength   float64 `json:"focal_length,omitempty"`
	Orientation   int     `json:"orientation,omitempty"`
}

// ProcessedImage is the Core record emitted once per image that passed
// validation and decode.
type ProcessedImage struct {
	FilePath        string    `json:"file_path"`
	FileName        string    `json:"file_name"`
	ContentHash     string    `json:"content_hash"`
	Width           int       `json:"width"`
	Height          int       `json:"height"`
	Format          string    `json:"format"`
	FileSize        int64     `json:"file_size"`
	Embedding       []float32 `json:"embedding"`
	Exif            *Exif     `json:"exif,omitempty"`
	Tags            []Tag     `json:"tags"`
	Description     *string   `json:"description,omitempty"`
	Thumbnail       *string   `json:"thumbnail,omitempty"`
	PerceptualHash  *string   `json:"perceptual_hash,omitempty"`
}

// EnrichmentPatch is the second-pass LLM description, keyed by content
// hash so it can be joined against a ProcessedImage downstream.
type EnrichmentPatch struct {
	ContentHash   string `json:"content_hash"`
	Description   string `json:"description"`
	LlmModel      string `json:"llm_model"`
	LlmLatencyMs  int64  `json:"llm_latency_ms"`
}

// RecordType discriminates OutputRecord's tagged union for JSONL.
type RecordType string

const (
	RecordTypeCore       RecordType = "core"
	RecordTypeEnrichment RecordType = "enrichment"
)

// OutputRecord is the JSONL envelope: exactly one of Core or Enrichment
// is non-nil, selected by Type.
type OutputRecord struct {
	Type       RecordType       `json:"type"`
	Core       *ProcessedImage  `json:"core,omitempty"`
	Enrichment *EnrichmentPatch `json:"enrichment,omitempty"`
}

// NewCoreRecord wraps a ProcessedImage for the JSONL stream.
func NewCoreRecord(p ProcessedImage) OutputRecord {
	return OutputRecord{Type: RecordTypeCore, Core: &p}
}

// NewEnrichmentRecord wraps an EnrichmentPatch for the JSONL stream.
func NewEnrichmentRecord(e EnrichmentPatch) OutputRecord {
	return OutputRecord{Type: RecordTypeEnrichment, Enrichment: &e}
}
