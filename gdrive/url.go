package gdrive

import (
	"net/url"
	"strings"

	"github.com/pkg/errors"
)

const driveHost = "drive.google.com"

// IsURL reports whether s looks like an http(s) URL rather than a bare
// resource ID.
func IsURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// ExtractFileID extracts the file ID from a Google Drive file URL.
//
// Two shapes are accepted:
//   - https://drive.google.com/file/d/<id>/...
//   - https://drive.google.com/uc?id=<id>
func ExtractFileID(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host != driveHost {
		return "", errors.Wrapf(ErrInvalidURL, "not a google drive file url: %q", rawURL)
	}

	parts := strings.Split(u.Path, "/")
	if len(parts) >= 4 && parts[1] == "file" && parts[2] == "d" {
		return parts[3], nil
	}

	if ids, ok := u.Query()["id"]; ok && len(ids) == 1 {
		return ids[0], nil
	}

	return "", errors.Wrapf(ErrInvalidURL, "not a google drive file url: %q", rawURL)
}

// ExtractFolderID extracts the folder ID from a Google Drive folder URL.
// The URL must have the exact shape
// https://drive.google.com/drive/folders/<id> with a non-empty id.
func ExtractFolderID(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host != driveHost {
		return "", errors.Wrapf(ErrInvalidURL, "not a google drive folder url: %q", rawURL)
	}

	parts := strings.Split(u.Path, "/")
	if len(parts) != 4 || parts[1] != "drive" || parts[2] != "folders" || parts[3] == "" {
		return "", errors.Wrapf(ErrInvalidURL, "not a google drive folder url: %q", rawURL)
	}

	return parts[3], nil
}
