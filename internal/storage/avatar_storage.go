package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/h2non/filetype"
)

const sniffLen = 512

var (
	ErrEmptyFile         = errors.New("storage: файл не может быть пустым")
	ErrTooLarge          = errors.New("storage: размер файла превышает лимит")
	ErrUnsupportedType   = errors.New("storage: неподдерживаемый тип файла, разрешены jpeg, png, gif и webp")
	ErrExtensionMismatch = errors.New("storage: расширение файла не соответствует содержимому")
)

var allowedMIME = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// AvatarStorage хранит загруженные аватары на диске.
type AvatarStorage struct {
	rootPath       string
	maxUploadBytes int64
	now            func() time.Time
}

// NewAvatarStorage создаёт файловое хранилище.
func NewAvatarStorage(rootPath string, maxUploadMB int64) (*AvatarStorage, error) {
	if err := os.MkdirAll(rootPath, 0o755); err != nil {
		return nil, fmt.Errorf("storage: не удалось создать каталог %s: %w", rootPath, err)
	}

	return &AvatarStorage{
		rootPath:       rootPath,
		maxUploadBytes: maxUploadMB * 1024 * 1024,
		now:            time.Now,
	}, nil
}

// MaxUploadBytes возвращает лимит размера файла.
func (s *AvatarStorage) MaxUploadBytes() int64 {
	return s.maxUploadBytes
}

// Save проверяет тип по сигнатуре файла и сохраняет его.
// Возвращает путь относительно корня хранилища с прямыми слэшами.
func (s *AvatarStorage) Save(ctx context.Context, userID uuid.UUID, originalName string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("storage: не удалось прочитать файл: %w", err)
	}
	if n == 0 {
		return "", ErrEmptyFile
	}
	head = head[:n]

	kind, err := filetype.Match(head)
	if err != nil || kind == filetype.Unknown || !allowedMIME[kind.MIME.Value] {
		return "", ErrUnsupportedType
	}
	if ext := extension(originalName); ext != "" && !sameExtension(ext, kind.Extension) {
		return "", ErrExtensionMismatch
	}

	userDir := filepath.Join(s.rootPath, userID.String())
	if err := os.MkdirAll(userDir, 0o755); err != nil {
		return "", fmt.Errorf("storage: не удалось создать каталог пользователя: %w", err)
	}

	fileName := fmt.Sprintf("avatar_%d.%s", s.now().UnixNano(), kind.Extension)
	targetPath := filepath.Join(userDir, fileName)
	tempPath := targetPath + ".tmp"

	f, err := os.Create(tempPath)
	if err != nil {
		return "", fmt.Errorf("storage: не удалось создать файл: %w", err)
	}
	defer f.Close()

	limited := io.LimitedReader{R: io.MultiReader(bytes.NewReader(head), r), N: s.maxUploadBytes + 1}
	written, err := io.Copy(f, &limited)
	if err != nil {
		_ = os.Remove(tempPath)
		return "", fmt.Errorf("storage: ошибка записи файла: %w", err)
	}
	if written > s.maxUploadBytes {
		_ = os.Remove(tempPath)
		return "", ErrTooLarge
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(tempPath)
		return "", fmt.Errorf("storage: ошибка закрытия файла: %w", err)
	}
	if err := os.Rename(tempPath, targetPath); err != nil {
		return "", fmt.Errorf("storage: не удалось переименовать файл: %w", err)
	}

	return userID.String() + "/" + fileName, nil
}

// Delete удаляет файл из хранилища. Пути за пределами корня игнорируются.
func (s *AvatarStorage) Delete(ctx context.Context, relativePath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	clean := filepath.Clean(filepath.FromSlash(relativePath))
	if clean == "." || filepath.IsAbs(clean) || strings.HasPrefix(clean, "..") {
		return nil
	}

	target := filepath.Join(s.rootPath, clean)
	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("storage: не удалось удалить файл: %w", err)
	}
	return nil
}

func extension(name string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(filepath.Base(name))), ".")
}

// .jpg и .jpeg - одно и то же
func sameExtension(ext, detected string) bool {
	if ext == "jpeg" {
		ext = "jpg"
	}
	if detected == "jpeg" {
		detected = "jpg"
	}
	return ext == detected
}
