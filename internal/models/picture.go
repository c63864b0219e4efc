package models

import (
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// UploadedDir is where image bytes live, relative to the data root.
const UploadedDir = "img/uploaded"

// MaxCaptionLength bounds a caption in runes.
const MaxCaptionLength = 2000

// Picture is the metadata of one uploaded image.
type Picture struct {
	ImageID    string    `json:"image_id"`
	Owner      string    `json:"owner"`
	ImagePath  string    `json:"image_path"`
	Caption    string    `json:"caption"`
	Timestamp  time.Time `json:"timestamp"`
	LikesCount int       `json:"likes_count"`
}

// Validate checks the fields that end up in the image details file.
func (p Picture) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.ImageID, validation.Required, validation.Match(usernamePattern)),
		validation.Field(&p.Owner, validation.Required, validation.Match(usernamePattern)),
		validation.Field(&p.Caption, captionRules...),
		validation.Field(&p.LikesCount, validation.Min(0)),
	)
}

var captionRules = []validation.Rule{validation.RuneLength(0, MaxCaptionLength), validation.By(singleLine)}

// ValidateCaption checks a caption before any image bytes are stored.
func ValidateCaption(caption string) error {
	return validation.Validate(caption, captionRules...)
}

// ImageID builds the "<owner>_<sequence>" key.
func ImageID(owner string, seq int) string {
	return fmt.Sprintf("%s_%d", owner, seq)
}

// ImagePath returns the path of the image bytes for imageID.
func ImagePath(imageID string) string {
	return path.Join(UploadedDir, imageID+".png")
}

// ImageSequence extracts the numeric suffix of an image id owned by owner.
// ok is false when id does not belong to owner or has no numeric suffix.
func ImageSequence(owner, id string) (seq int, ok bool) {
	rest, found := strings.CutPrefix(id, owner+"_")
	if !found {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// NextSequence returns one more than the largest sequence among ids.
func NextSequence(owner string, ids []string) int {
	highest := 0
	for _, id := range ids {
		if n, ok := ImageSequence(owner, id); ok && n > highest {
			highest = n
		}
	}
	return highest + 1
}
