package services

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	imagedraw "image/draw"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/apaysummit/summit-registration/utils"
	"github.com/google/uuid"
	xdraw "golang.org/x/image/draw"
)

// Storage errors
var (
	ErrFileTooLarge   = errors.New("file exceeds the maximum allowed size")
	ErrInvalidPath    = errors.New("path is outside the upload directory")
	ErrNotAnImage     = errors.New("file is not a decodable image")
	ErrStoredNotFound = errors.New("stored file not found")
)

// ThumbnailMaxDim bounds the longer side of proof previews
const ThumbnailMaxDim = 512

const proofsDir = "proofs"

// StoredFile describes a file written by FileStorage
type StoredFile struct {
	Path        string
	ContentType string
	Size        int64
}

// FileStorage keeps proof of payment uploads
type FileStorage interface {
	// Save streams r to a new file named after ext and returns its relative path.
	// Anything larger than maxSize is rejected with ErrFileTooLarge and nothing is kept.
	Save(r io.Reader, ext string, maxSize int64) (*StoredFile, error)
	Open(path string) (io.ReadCloser, error)
	Remove(path string) error
	// Thumbnail renders a JPEG no larger than ThumbnailMaxDim on either side
	Thumbnail(path string) ([]byte, error)
}

// LocalFileStorage stores files under a root directory on local disk
type LocalFileStorage struct {
	root string
}

// NewLocalFileStorage creates a storage rooted at dir
func NewLocalFileStorage(dir string) FileStorage {
	return &LocalFileStorage{root: dir}
}

func (s *LocalFileStorage) Save(r io.Reader, ext string, maxSize int64) (*StoredFile, error) {
	head := make([]byte, 512)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, err
	}
	head = head[:n]

	detected := http.DetectContentType(head)
	if detected == "application/octet-stream" {
		if fromExt := mime.TypeByExtension(ext); fromExt != "" {
			detected = fromExt
		}
	}

	dateDir := utils.UTCNow().Format(utils.DateLayout)
	relDir := filepath.Join(proofsDir, dateDir)
	if err := os.MkdirAll(filepath.Join(s.root, relDir), 0o755); err != nil {
		return nil, err
	}

	relPath := filepath.Join(relDir, uuid.New().String()+strings.ToLower(ext))
	fullPath := filepath.Join(s.root, relPath)
	dst, err := os.Create(fullPath)
	if err != nil {
		return nil, err
	}
	defer dst.Close()

	limited := io.LimitReader(io.MultiReader(bytes.NewReader(head), r), maxSize+1)
	written, err := io.Copy(dst, limited)
	if err != nil {
		_ = os.Remove(fullPath)
		return nil, err
	}
	if written > maxSize {
		_ = os.Remove(fullPath)
		return nil, ErrFileTooLarge
	}

	return &StoredFile{
		Path:        filepath.ToSlash(relPath),
		ContentType: detected,
		Size:        written,
	}, nil
}

// resolve maps a stored relative path to a location inside root
func (s *LocalFileStorage) resolve(path string) (string, error) {
	if path == "" {
		return "", ErrInvalidPath
	}
	cleaned := filepath.Clean(filepath.FromSlash(path))
	if filepath.IsAbs(cleaned) || cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", ErrInvalidPath
	}
	return filepath.Join(s.root, cleaned), nil
}

func (s *LocalFileStorage) Open(path string) (io.ReadCloser, error) {
	full, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(full)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrStoredNotFound
	}
	return f, err
}

// Remove deletes a stored file; a missing file is not an error
func (s *LocalFileStorage) Remove(path string) error {
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (s *LocalFileStorage) Thumbnail(path string) ([]byte, error) {
	rc, err := s.Open(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	img, _, err := image.Decode(rc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotAnImage, err)
	}

	thumb := resizeImage(img, ThumbnailMaxDim)
	buf := &bytes.Buffer{}
	if err := jpeg.Encode(buf, thumb, &jpeg.Options{Quality: 75}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func resizeImage(src image.Image, maxDim int) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxDim && h <= maxDim {
		return src
	}

	var nw, nh int
	if w >= h {
		nw = maxDim
		nh = max(1, int(float64(h)*float64(maxDim)/float64(w)))
	} else {
		nh = maxDim
		nw = max(1, int(float64(w)*float64(maxDim)/float64(h)))
	}

	// JPEG has no alpha, so transparent proofs are flattened onto white
	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	imagedraw.Draw(dst, dst.Bounds(), &image.Uniform{C: color.White}, image.Point{}, imagedraw.Src)
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, b, xdraw.Over, nil)
	return dst
}
