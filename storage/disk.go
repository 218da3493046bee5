// Package storage keeps uploaded attachments on the local disk.
package storage

import (
	"bytes"
	"chat-relay/domain/mimetypes"
	"chat-relay/errors"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

const sniffSize = 3072

// Attachment is a stored upload. Path is relative to the upload root, with forward
// slashes, ready to be used as the file URL of a message.
type Attachment struct {
	Path     string `json:"filePath"`
	Name     string `json:"fileName"`
	MimeType string `json:"mimeType"`
	Size     int64  `json:"size"`
}

// DiskStore writes uploads under <root>/files/YYYY-MM-DD/.
type DiskStore struct {
	root    string
	maxSize int64
	log     *slog.Logger
	now     func() time.Time
}

func NewDiskStore(root string, maxSize int64, log *slog.Logger) *DiskStore {
	return &DiskStore{root: root, maxSize: maxSize, log: log, now: time.Now}
}

// Save sniffs the content, refuses anything but images and videos or anything larger
// than the configured maximum, then writes it under a collision free name.
func (d *DiskStore) Save(name string, content io.Reader) (Attachment, error) {
	sniffBuf := make([]byte, sniffSize)
	n, err := io.ReadFull(content, sniffBuf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return Attachment{}, err
	}
	sniffBuf = sniffBuf[:n]
	if n == 0 {
		return Attachment{}, fmt.Errorf("%w: empty file", errors.ErrInvalidAttachment)
	}

	detected := mimetype.Detect(sniffBuf)
	mt, ok := mimetypes.IsMedia(detected.String())
	if !ok {
		return Attachment{}, fmt.Errorf("%w: %s is not an image or a video", errors.ErrInvalidAttachment, mt)
	}

	now := d.now().UTC()
	day := now.Format(time.DateOnly)
	dir := filepath.Join(d.root, "files", day)
	if err = os.MkdirAll(dir, 0o755); err != nil {
		return Attachment{}, fmt.Errorf("create upload dir: %w", err)
	}

	suffix, err := randomSuffix()
	if err != nil {
		return Attachment{}, err
	}
	fileName := fmt.Sprintf("%d-%s%s", now.UnixMilli(), suffix, detected.Extension())
	target := filepath.Join(dir, fileName)

	file, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return Attachment{}, fmt.Errorf("create attachment: %w", err)
	}

	// One byte over the limit is enough to know the upload is too large
	written, err := io.Copy(file, io.LimitReader(io.MultiReader(bytes.NewReader(sniffBuf), content), d.maxSize+1))
	closeErr := file.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil && written > d.maxSize {
		err = fmt.Errorf("%w: larger than %d bytes", errors.ErrInvalidAttachment, d.maxSize)
	}
	if err != nil {
		if removeErr := os.Remove(target); removeErr != nil {
			d.log.Warn("Failed to remove partial attachment", "path", target, "error", removeErr)
		}
		return Attachment{}, err
	}

	d.log.Debug("Attachment stored", "path", target, "mime_type", mt, "size", written)
	return Attachment{
		Path:     path.Join("files", day, fileName),
		Name:     filepath.Base(name),
		MimeType: string(mt),
		Size:     written,
	}, nil
}

// Remove deletes a stored attachment given the relative path Save returned.
// Paths escaping the upload root are refused, a file already gone is not an error.
func (d *DiskStore) Remove(relative string) error {
	cleaned := path.Clean("/" + relative)
	if !strings.HasPrefix(cleaned, "/files/") {
		return fmt.Errorf("%w: %s is not a stored attachment", errors.ErrValidation, relative)
	}
	target := filepath.Join(d.root, filepath.FromSlash(strings.TrimPrefix(cleaned, "/")))
	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove attachment: %w", err)
	}
	d.log.Debug("Attachment removed", "path", target)
	return nil
}

// Root is the directory attachments are served from.
func (d *DiskStore) Root() string {
	return d.root
}

func randomSuffix() (string, error) {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
