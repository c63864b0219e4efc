package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/starford/quackstagram/internal/apperr"
	"github.com/starford/quackstagram/internal/models"
	"github.com/starford/quackstagram/internal/store"
)

var _ store.PictureStore = (*pictures)(nil)

type pictures DB

const pictureColumns = `image_id, owner, caption, created_at, likes`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPicture(r rowScanner) (models.Picture, error) {
	var (
		p  models.Picture
		ts int64
	)
	if err := r.Scan(&p.ImageID, &p.Owner, &p.Caption, &ts, &p.LikesCount); err != nil {
		return models.Picture{}, err
	}
	p.Timestamp = unixTime(ts)
	p.ImagePath = models.ImagePath(p.ImageID)
	return p, nil
}

func (s *pictures) FindByID(ctx context.Context, imageID string) (models.Picture, error) {
	p, err := scanPicture(s.conn.QueryRowContext(ctx,
		`SELECT `+pictureColumns+` FROM pictures WHERE image_id = ?`, imageID))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Picture{}, fmt.Errorf("sqlstore: picture %s: %w", imageID, apperr.ErrNotFound)
	}
	if err != nil {
		return models.Picture{}, storageErr("find picture", err)
	}
	return p, nil
}

func (s *pictures) ByOwner(ctx context.Context, owner string) ([]models.Picture, error) {
	return s.query(ctx, `SELECT `+pictureColumns+` FROM pictures WHERE owner = ? ORDER BY rowid`, owner)
}

func (s *pictures) FromFollowed(ctx context.Context, username string) ([]models.Picture, error) {
	return s.query(ctx, `
		SELECT p.image_id, p.owner, p.caption, p.created_at, p.likes
		FROM follows f JOIN pictures p ON p.owner = f.followed
		WHERE f.follower = ?
		ORDER BY f.rowid, p.rowid`, username)
}

func (s *pictures) All(ctx context.Context) ([]models.Picture, error) {
	return s.query(ctx, `SELECT `+pictureColumns+` FROM pictures ORDER BY rowid`)
}

func (s *pictures) Save(ctx context.Context, p models.Picture) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("sqlstore: save picture: %w: %w", apperr.ErrInvalid, err)
	}
	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO pictures (`+pictureColumns+`) VALUES (?, ?, ?, ?, ?)`,
		p.ImageID, p.Owner, p.Caption, p.Timestamp.Unix(), p.LikesCount)
	if isConstraint(err) {
		return fmt.Errorf("sqlstore: picture %s: %w", p.ImageID, apperr.ErrAlreadyExists)
	}
	if err != nil {
		return storageErr("save picture", err)
	}
	return nil
}

func (s *pictures) Update(ctx context.Context, p models.Picture) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("sqlstore: update picture: %w: %w", apperr.ErrInvalid, err)
	}
	res, err := s.conn.ExecContext(ctx,
		`UPDATE pictures SET caption = ?, likes = ? WHERE image_id = ?`,
		p.Caption, p.LikesCount, p.ImageID)
	if err != nil {
		return storageErr("update picture", err)
	}
	return expectRows(res, "picture "+p.ImageID)
}

// Like increments in a single statement so concurrent likes never lose an
// update.
func (s *pictures) Like(ctx context.Context, imageID string) (models.Picture, error) {
	p, err := scanPicture(s.conn.QueryRowContext(ctx,
		`UPDATE pictures SET likes = likes + 1 WHERE image_id = ? RETURNING `+pictureColumns, imageID))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Picture{}, fmt.Errorf("sqlstore: picture %s: %w", imageID, apperr.ErrNotFound)
	}
	if err != nil {
		return models.Picture{}, storageErr("like picture", err)
	}
	return p, nil
}

func (s *pictures) Delete(ctx context.Context, imageID string) error {
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM pictures WHERE image_id = ?`, imageID); err != nil {
		return storageErr("delete picture", err)
	}
	return s.images.Remove(models.ImagePath(imageID))
}

func (s *pictures) NextImageID(ctx context.Context, owner string) (string, error) {
	ids, err := queryStrings(ctx, s.conn, `SELECT image_id FROM pictures WHERE owner = ?`, owner)
	if err != nil {
		return "", err
	}
	files, err := s.images.List(models.UploadedDir, owner+"_")
	if err != nil {
		return "", err
	}
	for _, f := range files {
		ids = append(ids, strings.TrimSuffix(f, ".png"))
	}
	return models.ImageID(owner, models.NextSequence(owner, ids)), nil
}

func (s *pictures) PutImage(_ context.Context, imageID string, r io.Reader) (string, error) {
	p := models.ImagePath(imageID)
	if err := s.images.CreateFile(p, r); err != nil {
		return "", err
	}
	return p, nil
}

func (s *pictures) query(ctx context.Context, q string, args ...any) ([]models.Picture, error) {
	rows, err := s.conn.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, storageErr("query pictures", err)
	}
	defer rows.Close()
	out := []models.Picture{}
	for rows.Next() {
		p, err := scanPicture(rows)
		if err != nil {
			return nil, storageErr("scan picture", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
