package imageurl

import "errors"

var (
	ErrEmptySlug             = errors.New("text produces an empty slug")
	ErrEmptyProject          = errors.New("project is required")
	ErrInvalidProject        = errors.New("project may only contain letters, digits, '-' and '_'")
	ErrInvalidDimensions     = errors.New("width and height must be between 100 and 4096")
	ErrInvalidFormat         = errors.New("format must be png or jpg")
	ErrForeignHost           = errors.New("image url is not served by the configured image host")
	ErrUnrecognizedPath      = errors.New("image path does not contain a project and a file name")
	ErrUnsupportedUploadType = errors.New("unsupported upload file type, allowed: png, jpg, jpeg, webp, gif")
)
