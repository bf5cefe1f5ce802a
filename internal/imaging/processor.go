// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package imaging normalises uploaded images: EXIF orientation is applied,
// wide images are scaled down and the result is re-encoded without metadata.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"
	_ "golang.org/x/image/webp" // WebP decoder

	"github.com/olegiv/gymsite/internal/util"
)

// Supported MIME types.
const (
	MimeTypeJPEG = "image/jpeg"
	MimeTypePNG  = "image/png"
	MimeTypeGIF  = "image/gif"
	MimeTypeWebP = "image/webp"
)

// JPEGQuality is used for every JPEG written by the processor.
const JPEGQuality = 90

// ErrUnsupportedFormat is returned for anything but JPEG, PNG, GIF and WebP.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// Result describes a stored image.
type Result struct {
	Filename string
	Width    int
	Height   int
	MimeType string
	Size     int64
	FilePath string
}

// Processor writes normalised images below uploadDir.
type Processor struct {
	uploadDir string
	maxWidth  int
}

// NewProcessor creates a processor. maxWidth <= 0 disables resizing.
func NewProcessor(uploadDir string, maxWidth int) *Processor {
	return &Processor{
		uploadDir: uploadDir,
		maxWidth:  maxWidth,
	}
}

// Process decodes data, applies orientation and size limits and saves the
// result as <uploadDir>/<id>/<filename>. WebP input is stored as JPEG since
// there is no pure Go WebP encoder; the extension follows the stored format.
func (p *Processor) Process(data []byte, id, filename string) (*Result, error) {
	format := detectFormat(data)
	if format == "" {
		return nil, ErrUnsupportedFormat
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	img = applyOrientation(img, readExifOrientation(bytes.NewReader(data)))

	if p.maxWidth > 0 && img.Bounds().Dx() > p.maxWidth {
		img = imaging.Resize(img, p.maxWidth, 0, imaging.Lanczos)
	}

	outFormat := format
	if format == "webp" {
		outFormat = "jpeg"
	}
	encoded, err := encodeImage(img, outFormat)
	if err != nil {
		return nil, fmt.Errorf("encoding image: %w", err)
	}

	name, err := util.SafeFilename(filename)
	if err != nil {
		return nil, err
	}
	name = strings.TrimSuffix(name, filepath.Ext(name)) + extension(outFormat)

	path, err := p.save(id, name, encoded)
	if err != nil {
		return nil, err
	}

	b := img.Bounds()
	return &Result{
		Filename: name,
		Width:    b.Dx(),
		Height:   b.Dy(),
		MimeType: mimeType(outFormat),
		Size:     int64(len(encoded)),
		FilePath: path,
	}, nil
}

// Remove deletes every file stored under id.
func (p *Processor) Remove(id string) error {
	dir := filepath.Join(p.uploadDir, filepath.Base(id))
	if err := util.WithinBase(p.uploadDir, dir); err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing %s: %w", id, err)
	}
	return nil
}

// DetectMimeType sniffs the MIME type of data.
func DetectMimeType(data []byte) string {
	contentType := http.DetectContentType(data)
	if idx := strings.Index(contentType, ";"); idx != -1 {
		contentType = contentType[:idx]
	}
	return contentType
}

// IsImage reports whether mime is one of the accepted image types.
func IsImage(mime string) bool {
	switch mime {
	case MimeTypeJPEG, MimeTypePNG, MimeTypeGIF, MimeTypeWebP:
		return true
	default:
		return false
	}
}

// readExifOrientation returns the EXIF orientation tag, or 1 when absent.
func readExifOrientation(r io.Reader) int {
	x, err := exif.Decode(r)
	if err != nil {
		return 1
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}
	orientation, err := tag.Int(0)
	if err != nil {
		return 1
	}
	return orientation
}

// applyOrientation undoes the camera rotation recorded in EXIF:
// 2 flip H, 3 rotate 180, 4 flip V, 5 transpose, 6 rotate 90 CW,
// 7 transverse, 8 rotate 90 CCW.
func applyOrientation(img image.Image, orientation int) image.Image {
	switch orientation {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.FlipH(imaging.Rotate270(img))
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.FlipH(imaging.Rotate90(img))
	case 8:
		return imaging.Rotate90(img)
	default:
		return img
	}
}

func encodeImage(img image.Image, format string) ([]byte, error) {
	var buf bytes.Buffer
	var err error
	switch format {
	case "png":
		err = png.Encode(&buf, img)
	case "gif":
		err = gif.Encode(&buf, img, nil)
	default:
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: JPEGQuality})
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// detectFormat sniffs data. TIFF is rejected (CVE-2023-36308 in
// disintegration/imaging).
func detectFormat(data []byte) string {
	switch DetectMimeType(data) {
	case MimeTypeJPEG:
		return "jpeg"
	case MimeTypePNG:
		return "png"
	case MimeTypeGIF:
		return "gif"
	case MimeTypeWebP:
		return "webp"
	default:
		return ""
	}
}

func extension(format string) string {
	switch format {
	case "png":
		return ".png"
	case "gif":
		return ".gif"
	default:
		return ".jpg"
	}
}

func mimeType(format string) string {
	switch format {
	case "png":
		return MimeTypePNG
	case "gif":
		return MimeTypeGIF
	case "webp":
		return MimeTypeWebP
	default:
		return MimeTypeJPEG
	}
}

// save writes data to <uploadDir>/<id>/<name>, refusing paths outside uploadDir.
func (p *Processor) save(id, name string, data []byte) (string, error) {
	dir := filepath.Join(p.uploadDir, filepath.Base(id))
	if err := util.WithinBase(p.uploadDir, dir); err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating upload directory: %w", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing image: %w", err)
	}
	return path, nil
}
