package domain

// FileRef points at one file inside an open source.
type FileRef struct {
	Index  int    `json:"index"`
	Path   string `json:"path"`
	Length int64  `json:"length"`
}

// Range is a half-open byte window [Off, Off+Length) within a file.
type Range struct {
	Off    int64
	Length int64
}

// videoExtensions are the file extensions considered playable media when
// picking the principal file of a source.
var videoExtensions = map[string]struct{}{
	".mkv": {}, ".mp4": {}, ".avi": {}, ".mov": {}, ".wmv": {}, ".flv": {},
	".webm": {}, ".m4v": {}, ".mpg": {}, ".mpeg": {}, ".ts": {}, ".m2ts": {},
}

// IsVideoExt reports whether ext (including the leading dot, any case
// normalized by the caller) is a recognized video extension.
func IsVideoExt(ext string) bool {
	_, ok := videoExtensions[ext]
	return ok
}
