package storage

import (
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// Serve writes name to w, honouring Range requests (206 with Content-Range)
// and answering whole-file requests with 200.
func (s *Store) Serve(w http.ResponseWriter, r *http.Request, name string) error {
	path, info, err := s.Stat(name)
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w.Header().Set("Content-Type", ContentType(name))
	w.Header().Set("Accept-Ranges", "bytes")
	http.ServeContent(w, r, name, info.ModTime(), f)
	return nil
}

// ContentType guesses the media type from the extension, defaulting to mp4
// since most stored files are.
func ContentType(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".mkv":
		return "video/x-matroska"
	case ".vtt":
		return "text/vtt; charset=utf-8"
	case "":
		return "video/mp4"
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
