// Package uploads stores user-submitted artwork on local disk and serves it
// under /uploads/.
package uploads

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/R3E-Network/ordzaar/internal/errors"
	"github.com/R3E-Network/ordzaar/pkg/logger"
)

const (
	// PlaceholderName is the file served when a collection has no artwork.
	PlaceholderName = "placeholder.jpg"
	// MaxFileSize bounds a single uploaded file.
	MaxFileSize = 5 << 20
	// MaxFiles bounds the files accepted by one multipart request.
	MaxFiles = 10
)

//go:embed assets/placeholder.jpg
var placeholderJPEG []byte

var (
	ErrNotImage = errors.New("Only image files are allowed!")
	ErrTooLarge = errors.New("File too large")
)

var imageExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
	".webp": true, ".bmp": true, ".avif": true,
}

// File describes a stored upload.
type File struct {
	Name         string `json:"filename"`
	OriginalName string `json:"originalname"`
	MimeType     string `json:"mimetype"`
	Size         int64  `json:"size"`
	Path         string `json:"path"`
	URL          string `json:"url"`
}

// Entry describes a file in the upload directory.
type Entry struct {
	Name        string    `json:"name"`
	Path        string    `json:"path"`
	Size        int64     `json:"size"`
	Modified    time.Time `json:"modified"`
	IsDirectory bool      `json:"isDirectory"`
	URL         string    `json:"url"`
}

// Store writes uploads into a directory.
type Store struct {
	dir       string
	serverURL string
	log       *logger.Logger
	now       func() time.Time
}

// New prepares dir (creating it when missing). serverURL prefixes the public
// URLs of stored files.
func New(dir, serverURL string, log *logger.Logger) (*Store, error) {
	if log == nil {
		log = logger.NewDefault("uploads")
	}
	dir = strings.TrimSpace(dir)
	if dir == "" {
		dir = "uploads"
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve upload dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Store{
		dir:       abs,
		serverURL: strings.TrimRight(strings.TrimSpace(serverURL), "/"),
		log:       log,
		now:       time.Now,
	}, nil
}

// Dir returns the absolute upload directory.
func (s *Store) Dir() string { return s.dir }

// URL returns the public URL of a stored file.
func (s *Store) URL(name string) string {
	return s.serverURL + "/uploads/" + name
}

// PlaceholderURL returns the public URL of the placeholder image.
func (s *Store) PlaceholderURL() string {
	return s.URL(PlaceholderName)
}

// EnsurePlaceholder writes the bundled placeholder image unless one exists.
func (s *Store) EnsurePlaceholder() error {
	path := filepath.Join(s.dir, PlaceholderName)
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat placeholder: %w", err)
	}
	if err := os.WriteFile(path, placeholderJPEG, 0o644); err != nil {
		return fmt.Errorf("write placeholder: %w", err)
	}
	s.log.WithField("path", path).Info("placeholder image created")
	return nil
}

// Save validates and stores one multipart file.
func (s *Store) Save(fh *multipart.FileHeader) (File, error) {
	if fh == nil {
		return File{}, apperrors.Upload(errors.New("no file provided"))
	}
	if fh.Size > MaxFileSize {
		return File{}, apperrors.Upload(ErrTooLarge)
	}
	ext := strings.ToLower(filepath.Ext(fh.Filename))

	src, err := fh.Open()
	if err != nil {
		return File{}, apperrors.Upload(err)
	}
	defer src.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(src, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return File{}, apperrors.Upload(err)
	}
	head = head[:n]
	mimeType, ok := imageType(head, ext)
	if !ok {
		return File{}, apperrors.Upload(ErrNotImage)
	}

	name := fmt.Sprintf("%d-%d%s", s.now().UnixMilli(), rand.Intn(1e9), ext)
	path := filepath.Join(s.dir, name)
	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return File{}, apperrors.Upload(err)
	}

	written, err := io.Copy(dst, io.MultiReader(strings.NewReader(string(head)), io.LimitReader(src, MaxFileSize+1-int64(len(head)))))
	closeErr := dst.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil && written > MaxFileSize {
		err = ErrTooLarge
	}
	if err != nil {
		_ = os.Remove(path)
		return File{}, apperrors.Upload(err)
	}

	s.log.WithField("file", name).
		WithField("original", fh.Filename).
		WithField("size", written).
		Debug("upload stored")
	return File{
		Name:         name,
		OriginalName: fh.Filename,
		MimeType:     mimeType,
		Size:         written,
		Path:         path,
		URL:          s.URL(name),
	}, nil
}

// SaveAll stores every file, removing the ones already written when a later
// file is rejected.
func (s *Store) SaveAll(files []*multipart.FileHeader) ([]File, error) {
	if len(files) > MaxFiles {
		return nil, apperrors.Upload(fmt.Errorf("too many files: at most %d allowed", MaxFiles))
	}
	saved := make([]File, 0, len(files))
	for _, fh := range files {
		f, err := s.Save(fh)
		if err != nil {
			for _, done := range saved {
				_ = os.Remove(done.Path)
			}
			return nil, err
		}
		saved = append(saved, f)
	}
	return saved, nil
}

// List returns the entries of the upload directory sorted by name.
func (s *Store) List() ([]Entry, error) {
	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read upload dir: %w", err)
	}
	entries := make([]Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		info, err := de.Info()
		if err != nil {
			continue
		}
		entries = append(entries, Entry{
			Name:        de.Name(),
			Path:        filepath.Join(s.dir, de.Name()),
			Size:        info.Size(),
			Modified:    info.ModTime(),
			IsDirectory: de.IsDir(),
			URL:         "/uploads/" + de.Name(),
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// Handler serves stored files. Directory listings are disabled.
func (s *Store) Handler() http.Handler {
	fs := http.FileServer(http.Dir(s.dir))
	return http.StripPrefix("/uploads/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		h := w.Header()
		h.Set("Cache-Control", "public, max-age="+strconv.Itoa(24*60*60))
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Content-Security-Policy", "default-src 'none'; sandbox")
		fs.ServeHTTP(w, r)
	}))
}

// imageType sniffs head. Only raster formats pass; SVG can carry script and
// is served from the API origin, so it is refused.
func imageType(head []byte, ext string) (string, bool) {
	if !imageExtensions[ext] {
		return "", false
	}
	sniffed := http.DetectContentType(head)
	if strings.HasPrefix(sniffed, "image/") && sniffed != "image/svg+xml" {
		return sniffed, true
	}
	return "", false
}
