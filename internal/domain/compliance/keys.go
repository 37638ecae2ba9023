package compliance

import (
	"fmt"
	"path"
	"strings"
	"time"
	"unicode"
)

var uploadContentTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
}

var photoContentTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
}

// Departments accepted by the directory.
var Departments = []string{"Manufacturing", "Maintenance", "Quality", "Logistics", "Safety", "Other"}

// NewImageKey builds "<prefix><unix seconds>-<suffix><ext>". suffix must be random
// per upload; it is what keeps two uploads in the same second apart.
func NewImageKey(prefix string, filename string, now time.Time, suffix string) (string, string, error) {
	ext := strings.ToLower(path.Ext(strings.TrimSpace(filename)))
	contentType, ok := uploadContentTypes[ext]
	if !ok {
		return "", "", fmt.Errorf("%w: %q", ErrUnsupportedImageType, ext)
	}

	suffix = strings.ToLower(strings.TrimSpace(suffix))
	if suffix == "" {
		return "", "", fmt.Errorf("%w: random suffix is empty", ErrImageKeyRequired)
	}

	return fmt.Sprintf("%s%d-%s%s", NormalizePrefix(prefix), now.Unix(), suffix, ext), contentType, nil
}

// NormalizePrefix makes sure a non-empty key prefix ends with "/".
func NormalizePrefix(prefix string) string {
	trimmed := strings.TrimLeft(strings.TrimSpace(prefix), "/")
	if trimmed == "" || strings.HasSuffix(trimmed, "/") {
		return trimmed
	}
	return trimmed + "/"
}

// NewEmployeeID builds "EMP-<slug>-<yyyymmdd>-<suffix>".
func NewEmployeeID(name string, now time.Time, suffix string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' {
			b.WriteRune(r)
		}
	}
	slug := strings.Trim(strings.ReplaceAll(b.String(), "__", "_"), "_")
	if slug == "" {
		slug = "user"
	}
	return fmt.Sprintf("EMP-%s-%s-%s", slug, now.UTC().Format("20060102"), strings.ToLower(suffix))
}

// EmployeePhotoKey returns the blob key and content type for a directory photo.
// Unknown extensions are stored as .jpg.
func EmployeePhotoKey(prefix string, employeeID string, filename string) (string, string) {
	ext := strings.ToLower(path.Ext(strings.TrimSpace(filename)))
	contentType, ok := photoContentTypes[ext]
	if !ok {
		ext = ".jpg"
		contentType = photoContentTypes[ext]
	}
	return NormalizePrefix(prefix) + employeeID + ext, contentType
}

// DetectionSidecarKeys lists where the pipeline may leave detection JSON for an image.
func DetectionSidecarKeys(imageKey string) []string {
	base := path.Base(imageKey)
	stem := strings.TrimSuffix(base, path.Ext(base))
	return []string{
		imageKey + ".json",
		"results/" + stem + ".json",
	}
}

// NormalizeDepartment returns the canonical department name.
func NormalizeDepartment(department string) (string, error) {
	trimmed := strings.TrimSpace(department)
	for _, known := range Departments {
		if strings.EqualFold(known, trimmed) {
			return known, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownDepartment, department)
}
