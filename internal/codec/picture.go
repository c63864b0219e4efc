package codec

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/starford/quackstagram/internal/models"
)

const kindPicture = "picture"

const (
	labelID        = "ImageID: "
	labelOwner     = ", Username: "
	labelCaption   = ", Bio: "
	labelTimestamp = ", Timestamp: "
	labelLikes     = ", Likes: "
)

// EncodePicture renders an image_details.txt line.
func EncodePicture(p models.Picture) string {
	return fmt.Sprintf("ImageID: %s, Username: %s, Bio: %s, Timestamp: %s, Likes: %d",
		p.ImageID, p.Owner, p.Caption, formatTime(p.Timestamp), p.LikesCount)
}

// DecodePicture parses an image_details.txt line. The caption may contain
// ", "; the timestamp and likes labels are located from the end of the line.
// Lines written before likes were tracked carry no Likes field and decode
// with zero likes. An unparseable or negative like count is defaulted to 0.
func DecodePicture(line string) (models.Picture, error) {
	if !strings.HasPrefix(line, labelID) {
		return models.Picture{}, malformed(kindPicture, line, "missing ImageID")
	}
	iOwner := strings.Index(line, labelOwner)
	if iOwner < 0 {
		return models.Picture{}, malformed(kindPicture, line, "missing Username")
	}
	iCaption := strings.Index(line[iOwner:], labelCaption)
	if iCaption < 0 {
		return models.Picture{}, malformed(kindPicture, line, "missing Bio")
	}
	iCaption += iOwner
	iTime := strings.LastIndex(line, labelTimestamp)
	if iTime < iCaption {
		return models.Picture{}, malformed(kindPicture, line, "missing Timestamp")
	}
	iLikes := strings.LastIndex(line, labelLikes)
	if iLikes < iTime {
		iLikes = len(line)
	}

	p := models.Picture{
		ImageID: line[len(labelID):iOwner],
		Owner:   line[iOwner+len(labelOwner) : iCaption],
		Caption: line[iCaption+len(labelCaption) : iTime],
	}
	if p.ImageID == "" || p.Owner == "" {
		return models.Picture{}, malformed(kindPicture, line, "empty ImageID or Username")
	}
	ts, err := parseTime(line[iTime+len(labelTimestamp) : iLikes])
	if err != nil {
		return models.Picture{}, malformed(kindPicture, line, "bad timestamp")
	}
	p.Timestamp = ts
	if iLikes < len(line) {
		if n, err := strconv.Atoi(strings.TrimSpace(line[iLikes+len(labelLikes):])); err == nil && n > 0 {
			p.LikesCount = n
		}
	}
	p.ImagePath = models.ImagePath(p.ImageID)
	return p, nil
}

// PictureKey returns the image id of a line without decoding it.
func PictureKey(line string) string {
	rest, ok := strings.CutPrefix(line, labelID)
	if !ok {
		return ""
	}
	id, _, _ := strings.Cut(rest, labelOwner)
	return id
}

// PictureOwner returns the owner of a line without decoding it.
func PictureOwner(line string) string {
	_, rest, ok := strings.Cut(line, labelOwner)
	if !ok {
		return ""
	}
	owner, _, _ := strings.Cut(rest, labelCaption)
	return owner
}
