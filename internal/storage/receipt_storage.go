package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/h2non/filetype"
)

// headerSize столько байт filetype нужно для определения типа.
const headerSize = 262

var (
	ErrFileTooLarge    = errors.New("storage: file too large")
	ErrUnsupportedType = errors.New("storage: unsupported file type")
	ErrEmptyFile       = errors.New("storage: empty file")
	ErrInvalidPath     = errors.New("storage: invalid path")
)

// allowedReceiptTypes допустимые MIME квитанций.
var allowedReceiptTypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"image/webp":      true,
	"application/pdf": true,
}

// StoredReceipt сохранённый файл квитанции.
type StoredReceipt struct {
	Path string
	Size int64
	MIME string
}

// ReceiptStorage хранит квитанции об оплате на диске.
type ReceiptStorage struct {
	rootPath       string
	maxUploadBytes int64
}

// NewReceiptStorage создаёт файловое хранилище квитанций.
func NewReceiptStorage(rootPath string, maxUploadMB int64) (*ReceiptStorage, error) {
	if err := os.MkdirAll(rootPath, 0o755); err != nil {
		return nil, fmt.Errorf("storage: не удалось создать каталог %s: %w", rootPath, err)
	}

	abs, err := filepath.Abs(rootPath)
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}

	return &ReceiptStorage{
		rootPath:       abs,
		maxUploadBytes: maxUploadMB * 1024 * 1024,
	}, nil
}

// MaxUploadBytes лимит размера файла.
func (s *ReceiptStorage) MaxUploadBytes() int64 {
	return s.maxUploadBytes
}

// Save проверяет тип файла по сигнатуре и сохраняет его под случайным именем.
func (s *ReceiptStorage) Save(ctx context.Context, orderID int64, r io.Reader) (*StoredReceipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	header := make([]byte, headerSize)
	n, err := io.ReadFull(r, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("storage: ошибка чтения файла: %w", err)
	}
	if n == 0 {
		return nil, ErrEmptyFile
	}
	header = header[:n]

	kind, err := filetype.Match(header)
	if err != nil || kind == filetype.Unknown || !allowedReceiptTypes[kind.MIME.Value] {
		return nil, ErrUnsupportedType
	}

	orderDir := strconv.FormatInt(orderID, 10)
	if err := os.MkdirAll(filepath.Join(s.rootPath, orderDir), 0o755); err != nil {
		return nil, fmt.Errorf("storage: не удалось создать каталог заказа: %w", err)
	}

	relative := filepath.Join(orderDir, uuid.NewString()+"."+kind.Extension)
	targetPath := filepath.Join(s.rootPath, relative)
	tempPath := targetPath + ".tmp"

	f, err := os.Create(tempPath)
	if err != nil {
		return nil, fmt.Errorf("storage: не удалось создать файл: %w", err)
	}
	defer f.Close()

	limitedReader := io.LimitedReader{R: io.MultiReader(bytes.NewReader(header), r), N: s.maxUploadBytes + 1}
	written, err := io.Copy(f, &limitedReader)
	if err != nil {
		_ = os.Remove(tempPath)
		return nil, fmt.Errorf("storage: ошибка записи файла: %w", err)
	}

	if written > s.maxUploadBytes {
		_ = os.Remove(tempPath)
		return nil, ErrFileTooLarge
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(tempPath)
		return nil, fmt.Errorf("storage: ошибка закрытия файла: %w", err)
	}

	if err := os.Rename(tempPath, targetPath); err != nil {
		return nil, fmt.Errorf("storage: не удалось переименовать файл: %w", err)
	}

	return &StoredReceipt{Path: relative, Size: written, MIME: kind.MIME.Value}, nil
}

// Resolve возвращает абсолютный путь к файлу внутри хранилища.
func (s *ReceiptStorage) Resolve(relativePath string) (string, error) {
	if relativePath == "" || filepath.IsAbs(relativePath) {
		return "", ErrInvalidPath
	}
	target := filepath.Join(s.rootPath, relativePath)
	if !strings.HasPrefix(target, s.rootPath+string(filepath.Separator)) {
		return "", ErrInvalidPath
	}
	if _, err := os.Stat(target); err != nil {
		return "", fmt.Errorf("storage: %w", err)
	}
	return target, nil
}

// Delete удаляет файл из хранилища.
func (s *ReceiptStorage) Delete(ctx context.Context, relativePath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	target := filepath.Join(s.rootPath, relativePath)
	if !strings.HasPrefix(target, s.rootPath+string(filepath.Separator)) {
		return ErrInvalidPath
	}
	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("storage: не удалось удалить файл: %w", err)
	}
	return nil
}
