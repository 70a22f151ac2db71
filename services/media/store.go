package mediasvc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"

	"github.com/somabem/erp/core"
)

const (
	maxSide   = 1024
	thumbSide = 200
)

var ErrInvalidImage = core.NewFieldError("image", "the file is not a supported image (jpeg, png, gif, tiff, bmp)")

// ImageStore keeps uploaded images under the media dir: a copy bounded to 1024px and a 200px square thumbnail.
type ImageStore struct {
	root string
}

func NewImageStore(conf *core.Config) *ImageStore {
	return &ImageStore{root: conf.MediaDir}
}

// Save decodes r and writes <name>.jpg and <name>_thumb.jpg. It returns the image path relative to the media dir.
func (s *ImageStore) Save(ctx context.Context, name string, r io.Reader) (string, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return "", ErrInvalidImage
	}
	if err = ctx.Err(); err != nil {
		return "", err
	}

	rel, ok := relPath(name)
	if !ok {
		return "", core.NewFieldError("name", "invalid image name")
	}
	rel += ".jpg"
	dst := filepath.Join(s.root, rel)
	if err = os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", errors.Wrap(err, "creating media dir")
	}

	if err = imaging.Save(fit(img), dst, imaging.JPEGQuality(85)); err != nil {
		return "", errors.Wrap(err, "saving image")
	}
	thumb := imaging.Fill(img, thumbSide, thumbSide, imaging.Center, imaging.Lanczos)
	if err = imaging.Save(thumb, ThumbPath(dst), imaging.JPEGQuality(80)); err != nil {
		return "", errors.Wrap(err, "saving thumbnail")
	}
	return filepath.ToSlash(rel), nil
}

// SaveFile copies r unchanged to name under the media dir. It returns the path relative to the
// media dir and the hex SHA-256 of the content.
func (s *ImageStore) SaveFile(ctx context.Context, name string, r io.Reader) (string, string, error) {
	rel, ok := relPath(name)
	if !ok {
		return "", "", core.NewFieldError("name", "invalid file name")
	}
	dst := filepath.Join(s.root, rel)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", "", errors.Wrap(err, "creating media dir")
	}
	f, err := os.Create(dst)
	if err != nil {
		return "", "", errors.Wrap(err, "creating file")
	}

	h := sha256.New()
	_, err = io.Copy(io.MultiWriter(f, h), r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		_ = os.Remove(dst)
		return "", "", errors.Wrap(err, "writing file")
	}
	return filepath.ToSlash(rel), hex.EncodeToString(h.Sum(nil)), nil
}

// Open returns the stored file at path, relative to the media dir.
func (s *ImageStore) Open(path string) (*os.File, error) {
	rel, ok := relPath(path)
	if !ok {
		return nil, os.ErrNotExist
	}
	return os.Open(filepath.Join(s.root, rel))
}

// relPath cleans p and rejects paths leaving the media dir.
func relPath(p string) (string, bool) {
	rel := filepath.Clean(filepath.FromSlash(p))
	if filepath.IsAbs(rel) || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return rel, true
}

func fit(img image.Image) image.Image {
	b := img.Bounds()
	if b.Dx() <= maxSide && b.Dy() <= maxSide {
		return img
	}
	return imaging.Fit(img, maxSide, maxSide, imaging.Lanczos)
}

// ThumbPath is the thumbnail path of an image path.
func ThumbPath(path string) string {
	ext := filepath.Ext(path)
	return path[:len(path)-len(ext)] + "_thumb" + ext
}
