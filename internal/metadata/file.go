package metadata

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"path/filepath"
	"regexp"
	"strings"

	"threatlens/internal/domain"
)

type Platform string

const (
	PlatformAndroid Platform = "android"
	PlatformIOS     Platform = "ios"
	PlatformUnknown Platform = "unknown"
)

// FileInfo describes an uploaded file. Hashes and size are computed. Package
// name, version and components are placeholders until a real APK/IPA parser
// is wired in; Android permissions are the baseline set plus any
// android.permission.* names found in the content.
type FileInfo struct {
	Name        string   `json:"name"`
	Extension   string   `json:"extension"`
	Size        int      `json:"size"`
	MIMEType    string   `json:"mime_type"`
	SHA256      string   `json:"sha256"`
	MD5         string   `json:"md5"`
	Platform    Platform `json:"platform"`
	PackageName string   `json:"package_name,omitempty"`
	Version     string   `json:"version,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
	Components  []string `json:"components,omitempty"`
}

// ParseFile extracts file facts. allowed lists the accepted extensions without
// the dot; an empty list accepts everything.
func ParseFile(name string, content []byte, allowed []string) (FileInfo, error) {
	if len(content) == 0 {
		return FileInfo{}, fmt.Errorf("%w: file %q is empty", domain.ErrInvalidInput, name)
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	if len(allowed) > 0 && !contains(allowed, ext) {
		return FileInfo{}, fmt.Errorf("%w: unsupported file type %q", domain.ErrInvalidInput, ext)
	}

	sum := sha256.Sum256(content)
	md := md5.Sum(content)
	info := FileInfo{
		Name:      filepath.Base(name),
		Extension: ext,
		Size:      len(content),
		MIMEType:  http.DetectContentType(content),
		SHA256:    hex.EncodeToString(sum[:]),
		MD5:       hex.EncodeToString(md[:]),
		Platform:  PlatformFor(ext),
	}
	stubPackageFacts(&info, content)
	return info, nil
}

// PlatformFor maps a lower-case extension to the mobile platform it targets.
func PlatformFor(ext string) Platform {
	switch ext {
	case "apk", "aab":
		return PlatformAndroid
	case "ipa":
		return PlatformIOS
	default:
		return PlatformUnknown
	}
}

func stubPackageFacts(info *FileInfo, content []byte) {
	base := strings.ToLower(strings.TrimSuffix(info.Name, filepath.Ext(info.Name)))
	base = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			return r
		}
		return -1
	}, base)
	if base == "" {
		base = "app"
	}

	switch info.Platform {
	case PlatformAndroid:
		info.PackageName = "com.unknown." + base
		info.Version = "1.0.0"
		info.Permissions = []string{
			"android.permission.INTERNET",
			"android.permission.ACCESS_NETWORK_STATE",
			"android.permission.READ_EXTERNAL_STORAGE",
		}
		for _, p := range declaredPermissions(content) {
			if !contains(info.Permissions, p) {
				info.Permissions = append(info.Permissions, p)
			}
		}
		info.Components = []string{base + ".MainActivity"}
	case PlatformIOS:
		info.PackageName = "com.unknown." + base
		info.Version = "1.0"
		info.Permissions = []string{"NSCameraUsageDescription"}
		info.Components = []string{base + "AppDelegate"}
	}
}

var permissionName = regexp.MustCompile(`android\.permission\.[A-Z_]+`)

// declaredPermissions finds permission names in the raw bytes. Binary
// manifests store strings as UTF-16LE, so NUL bytes are dropped before a
// second pass.
func declaredPermissions(content []byte) []string {
	var out []string
	seen := map[string]bool{}
	for _, buf := range [][]byte{content, stripNUL(content)} {
		for _, m := range permissionName.FindAll(buf, -1) {
			if p := string(m); !seen[p] {
				seen[p] = true
				out = append(out, p)
			}
		}
	}
	return out
}

func stripNUL(b []byte) []byte {
	out := make([]byte, 0, len(b))
	for _, c := range b {
		if c != 0 {
			out = append(out, c)
		}
	}
	return out
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if strings.EqualFold(strings.TrimPrefix(s, "."), v) {
			return true
		}
	}
	return false
}
