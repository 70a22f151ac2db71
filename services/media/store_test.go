package mediasvc

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/somabem/erp/core"
)

func pngOf(t *testing.T, w, h int) *bytes.Buffer {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, x%h, color.NRGBA{R: 200, A: 255})
	}
	buf := new(bytes.Buffer)
	require.NoError(t, png.Encode(buf, img))
	return buf
}

func TestImageStoreSave(t *testing.T) {
	conf := core.NewTestConfig()
	conf.MediaDir = t.TempDir()
	store := NewImageStore(conf)
	ctx := context.Background()

	path, err := store.Save(ctx, "products/p1", pngOf(t, 2000, 1000))
	require.NoError(t, err)
	assert.Equal(t, "products/p1.jpg", path)

	img, err := imaging.Open(filepath.Join(conf.MediaDir, "products", "p1.jpg"))
	require.NoError(t, err)
	assert.Equal(t, 1024, img.Bounds().Dx())
	assert.Equal(t, 512, img.Bounds().Dy())

	thumb, err := imaging.Open(filepath.Join(conf.MediaDir, "products", "p1_thumb.jpg"))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, thumbSide, thumbSide), thumb.Bounds())

	f, err := store.Open(path)
	require.NoError(t, err)
	_ = f.Close()

	_, err = store.Save(ctx, "products/bad", bytes.NewBufferString("not an image"))
	assert.Equal(t, ErrInvalidImage, err)

	_, err = store.Save(ctx, "../escape", pngOf(t, 10, 10))
	assert.True(t, core.IsValidationError(err))

	_, err = store.Open("../../etc/passwd")
	assert.Error(t, err)
}

func TestImageStoreSaveFile(t *testing.T) {
	conf := core.NewTestConfig()
	conf.MediaDir = t.TempDir()
	store := NewImageStore(conf)

	tests := []struct {
		name     string
		file     string
		content  string
		wantPath string
		wantHash string
		wantErr  bool
	}{
		{
			name:     "pdf",
			file:     "documents/d1.pdf",
			content:  "%PDF-1.4 certificado",
			wantPath: "documents/d1.pdf",
			wantHash: "7ce443e7454f7b96c17271855813a5f9e3bbadf575aab7d6eb13564e22c4cde0",
		},
		{
			name:     "empty",
			file:     "documents/empty.txt",
			wantPath: "documents/empty.txt",
			wantHash: "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		},
		{name: "outside the media dir", file: "../d1.pdf", content: "x", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, hash, err := store.SaveFile(context.Background(), tt.file, bytes.NewBufferString(tt.content))
			if tt.wantErr {
				assert.True(t, core.IsValidationError(err), "err = %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantPath, path)
			assert.Equal(t, tt.wantHash, hash)

			b, err := os.ReadFile(filepath.Join(conf.MediaDir, filepath.FromSlash(path)))
			require.NoError(t, err)
			assert.Equal(t, tt.content, string(b))
		})
	}

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, _, err := store.SaveFile(ctx, "documents/late.pdf", bytes.NewBufferString("late"))
		assert.Error(t, err)
		assert.NoFileExists(t, filepath.Join(conf.MediaDir, "documents", "late.pdf"))
	})
}

func TestThumbPath(t *testing.T) {
	assert.Equal(t, "a/b_thumb.jpg", ThumbPath("a/b.jpg"))
	assert.Equal(t, "b_thumb", ThumbPath("b"))
}
