package storage

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/vendor-portal/internal/database/dbtest"
	"github.com/iliyamo/vendor-portal/internal/model"
	"github.com/iliyamo/vendor-portal/internal/repository"
)

var (
	pngBytes  = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 32)...)
	gifBytes  = append([]byte("GIF89a"), make([]byte, 32)...)
	jpegBytes = append([]byte{0xff, 0xd8, 0xff, 0xe0}, make([]byte, 32)...)
)

func TestSniff(t *testing.T) {
	for name, tc := range map[string]struct {
		data []byte
		ext  string
		err  error
	}{
		"png":   {pngBytes, ".png", nil},
		"gif":   {gifBytes, ".gif", nil},
		"jpeg":  {jpegBytes, ".jpg", nil},
		"text":  {[]byte("hello world"), "", ErrUnsupportedType},
		"empty": {nil, "", ErrEmptyFile},
		"large": {append(append([]byte{}, pngBytes...), make([]byte, MaxFileSize)...), "", ErrTooLarge},
	} {
		t.Run(name, func(t *testing.T) {
			_, ext, err := Sniff(bytes.NewReader(tc.data))
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.ext, ext)
		})
	}
}

func TestBucketPut(t *testing.T) {
	root := t.TempDir()
	b := Bucket{Root: root, Name: PortfolioBucket, BaseURL: "http://localhost:8080/"}

	rel, url, err := b.Put("st1", ".png", pngBytes)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(rel, "st1/"))
	assert.Equal(t, "http://localhost:8080/storage/portfolio/"+rel, url)

	got, err := os.ReadFile(filepath.Join(root, PortfolioBucket, filepath.FromSlash(rel)))
	require.NoError(t, err)
	assert.Equal(t, pngBytes, got)

	require.NoError(t, b.Remove(rel))
	_, _, err = b.Put("../etc", ".png", pngBytes)
	assert.Error(t, err)
}

func TestUploadBatchContinuesAfterFailure(t *testing.T) {
	ctx := context.Background()
	db := dbtest.New(t)
	repo := repository.NewPortfolioRepo(db)
	u := NewUploader(Bucket{Root: t.TempDir(), Name: PortfolioBucket, BaseURL: "http://cdn"}, repo, nil)
	staff := &model.StaffProfile{ID: "st1", VendorID: "v1"}

	results := u.UploadBatch(ctx, staff, []Upload{
		FromBytes("a.png", pngBytes),
		FromBytes("notes.txt", []byte("not an image")),
		{Filename: "huge.jpg", Size: MaxFileSize + 1},
		FromBytes("b.gif", gifBytes),
	}, []string{" Wedding ", "wedding", "", "Outdoor"})

	require.Len(t, results, 4)
	assert.True(t, results[0].OK())
	assert.False(t, results[1].OK())
	assert.Contains(t, results[2].Error, "5 MiB")
	assert.True(t, results[3].OK())
	assert.Equal(t, []string{"wedding", "outdoor"}, results[0].Image.Tags)

	list, err := repo.ListByStaff(ctx, "st1")
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

type failingStore struct{}

func (failingStore) Add(context.Context, *model.PortfolioImage) error { return errors.New("db down") }

func TestUploadBatchRemovesOrphans(t *testing.T) {
	root := t.TempDir()
	u := NewUploader(Bucket{Root: root, Name: PortfolioBucket}, failingStore{}, nil)

	results := u.UploadBatch(context.Background(), &model.StaffProfile{ID: "st1"}, []Upload{FromBytes("a.png", pngBytes)}, nil)
	require.Len(t, results, 1)
	assert.Contains(t, results[0].Error, "db down")

	entries, err := os.ReadDir(filepath.Join(root, PortfolioBucket, "st1"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}
