package storage

import (
	"os"
	"time"
)

// FileStat describes a file-backed source.
type FileStat struct {
	Path     string    `json:"path"`
	Size     int64     `json:"size_bytes"`
	Modified time.Time `json:"modified"`
}

// StatFile returns size and modification time of path. Missing files return nil, nil.
func StatFile(path string) (*FileStat, error) {
	if path == "" {
		return nil, nil
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return &FileStat{Path: path, Size: info.Size(), Modified: info.ModTime()}, nil
}
