// Package storage keeps uploaded portfolio images on local disk and records
// them in staff_portfolios.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/iliyamo/vendor-portal/internal/logger"
	"github.com/iliyamo/vendor-portal/internal/model"
)

// MaxFileSize is the largest accepted image.
const MaxFileSize = 5 << 20

// PortfolioBucket holds staff portfolio images.
const PortfolioBucket = "portfolio"

var (
	ErrTooLarge        = errors.New("file exceeds 5 MiB")
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrEmptyFile       = errors.New("empty file")
)

var allowed = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// Bucket is a directory under Root served at BaseURL/storage/<name>/.
type Bucket struct {
	Root    string
	Name    string
	BaseURL string
}

// Put writes data to <root>/<bucket>/<owner>/<uuid><ext> and returns the
// object path relative to the bucket and its public URL.
func (b Bucket) Put(owner, ext string, data []byte) (string, string, error) {
	if owner == "" || strings.ContainsAny(owner, `/\.`) {
		return "", "", fmt.Errorf("invalid owner %q", owner)
	}
	dir := filepath.Join(b.Root, b.Name, owner)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", fmt.Errorf("mkdir bucket: %w", err)
	}
	name := uuid.NewString() + ext
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		return "", "", fmt.Errorf("write object: %w", err)
	}
	rel := path.Join(owner, name)
	return rel, strings.TrimRight(b.BaseURL, "/") + "/storage/" + path.Join(b.Name, rel), nil
}

// Remove deletes an object written by Put.
func (b Bucket) Remove(rel string) error {
	return os.Remove(filepath.Join(b.Root, b.Name, filepath.FromSlash(rel)))
}

// Sniff reads at most MaxFileSize+1 bytes and checks the content type.
// It returns the data and the extension to store it under.
func Sniff(r io.Reader) ([]byte, string, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxFileSize+1))
	if err != nil {
		return nil, "", fmt.Errorf("read upload: %w", err)
	}
	if len(data) == 0 {
		return nil, "", ErrEmptyFile
	}
	if len(data) > MaxFileSize {
		return nil, "", ErrTooLarge
	}
	mt := mimetype.Detect(data)
	for m := mt; m != nil; m = m.Parent() {
		if ext, ok := allowed[m.String()]; ok {
			return data, ext, nil
		}
	}
	return nil, "", fmt.Errorf("%w: %s", ErrUnsupportedType, mt.String())
}

// Upload is one file of a batch.
type Upload struct {
	Filename string
	Size     int64
	Open     func() (io.ReadCloser, error)
}

// FromBytes wraps an in-memory file.
func FromBytes(name string, data []byte) Upload {
	return Upload{
		Filename: name,
		Size:     int64(len(data)),
		Open:     func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(data)), nil },
	}
}

// Result reports one file of a batch.
type Result struct {
	Filename string                `json:"filename"`
	Image    *model.PortfolioImage `json:"image,omitempty"`
	Error    string                `json:"error,omitempty"`
}

// OK reports whether the file was stored.
func (r Result) OK() bool { return r.Error == "" }

// PortfolioStore records uploaded images.  *repository.PortfolioRepo
// implements it.
type PortfolioStore interface {
	Add(ctx context.Context, img *model.PortfolioImage) error
}

type Uploader struct {
	bucket Bucket
	repo   PortfolioStore
	log    *slog.Logger
}

func NewUploader(bucket Bucket, repo PortfolioStore, log *slog.Logger) *Uploader {
	return &Uploader{bucket: bucket, repo: repo, log: logger.Component(log, "storage")}
}

// UploadBatch stores every file for staff with the given tags.  A failed
// file gets an error result; the rest of the batch still runs.
func (u *Uploader) UploadBatch(ctx context.Context, staff *model.StaffProfile, files []Upload, tags []string) []Result {
	out := make([]Result, 0, len(files))
	for _, f := range files {
		img, err := u.upload(ctx, staff, f, tags)
		if err != nil {
			u.log.Warn("upload failed", "staff_id", staff.ID, "filename", f.Filename, "error", err)
			out = append(out, Result{Filename: f.Filename, Error: err.Error()})
			continue
		}
		out = append(out, Result{Filename: f.Filename, Image: img})
	}
	return out
}

func (u *Uploader) upload(ctx context.Context, staff *model.StaffProfile, f Upload, tags []string) (*model.PortfolioImage, error) {
	if f.Size > MaxFileSize {
		return nil, ErrTooLarge
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer rc.Close()

	data, ext, err := Sniff(rc)
	if err != nil {
		return nil, err
	}
	rel, url, err := u.bucket.Put(staff.ID, ext, data)
	if err != nil {
		return nil, err
	}
	img := &model.PortfolioImage{StaffID: staff.ID, VendorID: staff.VendorID, URL: url, Tags: cleanTags(tags)}
	if err := u.repo.Add(ctx, img); err != nil {
		if rmErr := u.bucket.Remove(rel); rmErr != nil {
			u.log.Warn("remove orphaned object failed", "path", rel, "error", rmErr)
		}
		return nil, fmt.Errorf("record image: %w", err)
	}
	return img, nil
}

// cleanTags trims, lower-cases and de-duplicates tags.
func cleanTags(tags []string) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
