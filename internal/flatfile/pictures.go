package flatfile

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/starford/quackstagram/internal/apperr"
	"github.com/starford/quackstagram/internal/codec"
	"github.com/starford/quackstagram/internal/models"
	"github.com/starford/quackstagram/internal/storage"
	"github.com/starford/quackstagram/internal/store"
)

var _ store.PictureStore = (*Pictures)(nil)

// Pictures keeps metadata in img/image_details.txt and image bytes under
// img/uploaded.
type Pictures struct {
	e       *storage.Engine
	logger  *slog.Logger
	follows *Follows
}

func (s *Pictures) FindByID(_ context.Context, imageID string) (models.Picture, error) {
	lines, err := s.e.ReadMatching(PicturesFile, func(line string) bool {
		return codec.PictureKey(line) == imageID
	})
	if err != nil {
		return models.Picture{}, err
	}
	if ps := decodeLines(s.logger, PicturesFile, lines, codec.DecodePicture); len(ps) > 0 {
		return ps[0], nil
	}
	return models.Picture{}, fmt.Errorf("flatfile: picture %s: %w", imageID, apperr.ErrNotFound)
}

func (s *Pictures) ByOwner(_ context.Context, owner string) ([]models.Picture, error) {
	lines, err := s.e.ReadMatching(PicturesFile, func(line string) bool {
		return codec.PictureOwner(line) == owner
	})
	if err != nil {
		return nil, err
	}
	return decodeLines(s.logger, PicturesFile, lines, codec.DecodePicture), nil
}

// FromFollowed reads the follow line of username, then each followed
// owner's pictures in follow order.
func (s *Pictures) FromFollowed(ctx context.Context, username string) ([]models.Picture, error) {
	followed, err := s.follows.Following(ctx, username)
	if err != nil {
		return nil, err
	}
	out := []models.Picture{}
	for _, owner := range followed {
		ps, err := s.ByOwner(ctx, owner)
		if err != nil {
			return nil, err
		}
		out = append(out, ps...)
	}
	return out, nil
}

func (s *Pictures) All(_ context.Context) ([]models.Picture, error) {
	lines, err := s.e.ReadAll(PicturesFile)
	if err != nil {
		return nil, err
	}
	return decodeLines(s.logger, PicturesFile, lines, codec.DecodePicture), nil
}

func (s *Pictures) Save(_ context.Context, p models.Picture) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("flatfile: save picture: %w: %w", apperr.ErrInvalid, err)
	}
	defer s.e.Lock(PicturesFile)()

	existing, err := s.e.ReadMatching(PicturesFile, func(line string) bool {
		return codec.PictureKey(line) == p.ImageID
	})
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return fmt.Errorf("flatfile: picture %s: %w", p.ImageID, apperr.ErrAlreadyExists)
	}
	return s.e.AppendLine(PicturesFile, codec.EncodePicture(p))
}

func (s *Pictures) Update(_ context.Context, p models.Picture) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("flatfile: update picture: %w: %w", apperr.ErrInvalid, err)
	}
	defer s.e.Lock(PicturesFile)()

	line := codec.EncodePicture(p)
	n, err := s.e.UpdateMatching(PicturesFile,
		func(l string) bool { return codec.PictureKey(l) == p.ImageID },
		func(string) string { return line })
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("flatfile: picture %s: %w", p.ImageID, apperr.ErrNotFound)
	}
	return nil
}

// Like increments the like counter in a single read-modify-write cycle.
func (s *Pictures) Like(_ context.Context, imageID string) (models.Picture, error) {
	defer s.e.Lock(PicturesFile)()

	var (
		liked models.Picture
		found bool
	)
	_, err := s.e.UpdateMatching(PicturesFile,
		func(l string) bool { return codec.PictureKey(l) == imageID },
		func(l string) string {
			p, err := codec.DecodePicture(l)
			if err != nil || found {
				return l
			}
			p.LikesCount++
			liked, found = p, true
			return codec.EncodePicture(p)
		})
	if err != nil {
		return models.Picture{}, err
	}
	if !found {
		return models.Picture{}, fmt.Errorf("flatfile: picture %s: %w", imageID, apperr.ErrNotFound)
	}
	return liked, nil
}

// Delete removes the metadata line and the image file. Deleting an absent
// picture is not an error.
func (s *Pictures) Delete(_ context.Context, imageID string) error {
	unlock := s.e.Lock(PicturesFile)
	_, err := s.e.DeleteMatching(PicturesFile, func(l string) bool {
		return codec.PictureKey(l) != imageID
	})
	unlock()
	if err != nil {
		return err
	}
	return s.e.Remove(models.ImagePath(imageID))
}

// NextImageID considers both the metadata file and the image directory so
// an orphaned image file is never overwritten.
func (s *Pictures) NextImageID(ctx context.Context, owner string) (string, error) {
	pics, err := s.ByOwner(ctx, owner)
	if err != nil {
		return "", err
	}
	ids := make([]string, 0, len(pics))
	for _, p := range pics {
		ids = append(ids, p.ImageID)
	}
	files, err := s.e.List(models.UploadedDir, owner+"_")
	if err != nil {
		return "", err
	}
	for _, f := range files {
		ids = append(ids, strings.TrimSuffix(f, ".png"))
	}
	return models.ImageID(owner, models.NextSequence(owner, ids)), nil
}

func (s *Pictures) PutImage(_ context.Context, imageID string, r io.Reader) (string, error) {
	p := models.ImagePath(imageID)
	if err := s.e.CreateFile(p, r); err != nil {
		return "", err
	}
	return p, nil
}
