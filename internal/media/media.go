// Package media хранит обложки консультаций и отдаёт на них URL.
package media

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/Leganyst/consultation-platform/internal/apperr"
)

// MaxCoverSize: верхняя граница размера обложки.
const MaxCoverSize = 5 << 20

// ImageStore сохраняет байты и возвращает URL (абсолютный или путь от origin).
type ImageStore interface {
	Put(ctx context.Context, name, contentType string, data []byte) (string, error)
}

// Upload: файл обложки в том виде, в каком он пришёл от клиента.
type Upload struct {
	Filename string
	Data     []byte
}

var allowedCovers = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
}

// CoverObject проверяет расширение и размер, возвращает имя объекта и content type.
func CoverObject(u Upload) (name, contentType string, err error) {
	ext := strings.ToLower(path.Ext(u.Filename))
	ct, ok := allowedCovers[ext]
	if !ok {
		return "", "", apperr.New(apperr.CodeValidation, "cover must be a jpg, jpeg or png image").
			WithMetadata("field", "cover")
	}
	if len(u.Data) == 0 {
		return "", "", apperr.New(apperr.CodeValidation, "cover is empty").WithMetadata("field", "cover")
	}
	if len(u.Data) > MaxCoverSize {
		return "", "", apperr.Newf(apperr.CodeValidation, "cover exceeds %d bytes", MaxCoverSize).
			WithMetadata("field", "cover")
	}
	return fmt.Sprintf("%s%s", uuid.NewString(), ext), ct, nil
}
