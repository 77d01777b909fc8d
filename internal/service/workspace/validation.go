package workspace

import (
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"canvasdesk/internal/config"
	"canvasdesk/internal/domain"
)

var errSlashInName = errors.New("must not contain '/'")

// normalizeTitle trims and validates a canvas title.
func normalizeTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	err := validation.Validate(title,
		validation.Required.Error("title is required"),
		validation.RuneLength(1, config.MaxCanvasTitleLength),
	)
	if err != nil {
		return "", &domain.ValidationError{Message: "invalid canvas title: " + err.Error()}
	}
	return title, nil
}

// normalizeFolderName trims and validates a folder name.
func normalizeFolderName(name string) (string, error) {
	name = strings.TrimSpace(name)
	err := validation.Validate(name,
		validation.Required.Error("name is required"),
		validation.RuneLength(1, config.MaxFolderNameLength),
		validation.By(func(value interface{}) error {
			if strings.Contains(value.(string), "/") {
				return errSlashInName
			}
			return nil
		}),
	)
	if err != nil {
		return "", &domain.ValidationError{Message: "invalid folder name: " + err.Error()}
	}
	return name, nil
}
