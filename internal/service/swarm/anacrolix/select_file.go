package anacrolix

import (
	"path"
	"strings"

	"peerplay/internal/domain"
)

// pickPrincipalFile chooses the file the player will stream: the largest
// file carrying a video extension.
func pickPrincipalFile(files []domain.FileRef) (domain.FileRef, error) {
	var best domain.FileRef
	found := false
	for _, f := range files {
		ext := strings.ToLower(path.Ext(f.Path))
		if !domain.IsVideoExt(ext) {
			continue
		}
		if !found || f.Length > best.Length {
			best = f
			found = true
		}
	}
	if !found {
		return domain.FileRef{}, domain.ErrNoPlayableFile
	}
	return best, nil
}
