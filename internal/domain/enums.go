package domain

// FileType represents the document inputs the pipeline accepts.
type FileType string

const (
	FileTypePNG     FileType = "png"
	FileTypeJPG     FileType = "jpg"
	FileTypeTIFF    FileType = "tiff"
	FileTypeText    FileType = "txt"
	FileTypeOCRJSON FileType = "json"
)

// IsImage reports whether t must go through an OCR engine.
func (t FileType) IsImage() bool {
	return t == FileTypePNG || t == FileTypeJPG || t == FileTypeTIFF
}

// AllowedExtensions maps file extensions (without dot) to FileType.
var AllowedExtensions = map[string]FileType{
	"png":  FileTypePNG,
	"jpg":  FileTypeJPG,
	"jpeg": FileTypeJPG,
	"tif":  FileTypeTIFF,
	"tiff": FileTypeTIFF,
	"txt":  FileTypeText,
	"json": FileTypeOCRJSON,
}

// AllowedContentTypes maps upload MIME types to FileType.
var AllowedContentTypes = map[string]FileType{
	"image/png":        FileTypePNG,
	"image/jpeg":       FileTypeJPG,
	"image/tiff":       FileTypeTIFF,
	"text/plain":       FileTypeText,
	"application/json": FileTypeOCRJSON,
}

// FieldValidationStatus is the review state of a single field.
type FieldValidationStatus string

const (
	FieldStatusValid   FieldValidationStatus = "valid"
	FieldStatusUnsure  FieldValidationStatus = "unsure"
	FieldStatusInvalid FieldValidationStatus = "invalid"
)

// ValidationSeverity is how strongly a failed business rule flags a field.
type ValidationSeverity string

const (
	ValidationSeverityError   ValidationSeverity = "error"
	ValidationSeverityWarning ValidationSeverity = "warning"
)

// ValidationStatus summarises all rule results for a document.
type ValidationStatus string

const (
	ValidationStatusValid   ValidationStatus = "valid"
	ValidationStatusWarning ValidationStatus = "warning"
	ValidationStatusInvalid ValidationStatus = "invalid"
)
