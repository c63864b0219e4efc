// Package quack is the application layer: account, follow, picture and
// notification operations composed from the storage contract.
package quack

import (
	"bytes"
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/starford/quackstagram/internal/apperr"
	"github.com/starford/quackstagram/internal/credential"
	"github.com/starford/quackstagram/internal/flatfile"
	"github.com/starford/quackstagram/internal/models"
	"github.com/starford/quackstagram/internal/store"
)

// Service coordinates the stores of one backend and the session pointer.
type Service struct {
	accounts      store.AccountStore
	follows       store.FollowStore
	notifications store.NotificationStore
	pictures      store.PictureStore
	session       *flatfile.Session
	logger        *slog.Logger
	now           func() time.Time
}

// NewService creates a service over b. session may be nil when no
// login state is needed.
func NewService(b store.Backend, session *flatfile.Session, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{
		accounts:      b.Accounts(),
		follows:       b.Follows(),
		notifications: b.Notifications(),
		pictures:      b.Pictures(),
		session:       session,
		logger:        logger,
		now:           time.Now,
	}
}

// timestamp is the current time at the one-second resolution of the files.
func (s *Service) timestamp() time.Time {
	return s.now().Truncate(time.Second)
}

// requireAccount fails with apperr.ErrNotFound unless username is registered.
func (s *Service) requireAccount(ctx context.Context, username string) error {
	_, err := s.accounts.FindByUsername(ctx, username)
	return err
}

func invalid(op, reason string) error {
	return fmt.Errorf("quack: %s: %w: %s", op, apperr.ErrInvalid, reason)
}

// Register creates an account with a freshly salted password hash.
func (s *Service) Register(ctx context.Context, username, password, bio string) (models.Account, error) {
	if err := models.ValidateUsername(username); err != nil {
		return models.Account{}, fmt.Errorf("quack: register: %w: %w", apperr.ErrInvalid, err)
	}
	if password == "" {
		return models.Account{}, invalid("register", "empty password")
	}
	digest, salt, err := credential.New(password)
	if err != nil {
		return models.Account{}, err
	}
	a := models.Account{Username: username, Bio: bio, PasswordHash: digest, Salt: salt}
	if err := s.accounts.Save(ctx, a); err != nil {
		return models.Account{}, err
	}
	s.logger.Info("quack: registered", slog.String("username", username))
	return a, nil
}

// Authenticate checks the password and returns the account. An unknown user
// and a wrong password both yield apperr.ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, username, password string) (models.Account, error) {
	ok, err := s.accounts.VerifyCredentials(ctx, username, password)
	if err != nil {
		return models.Account{}, err
	}
	if !ok {
		return models.Account{}, apperr.ErrInvalidCredentials
	}
	return s.Account(ctx, username)
}

// Login authenticates and points the session at the account.
func (s *Service) Login(ctx context.Context, username, password string) (models.Account, error) {
	a, err := s.Authenticate(ctx, username, password)
	if err != nil {
		return models.Account{}, err
	}
	if s.session != nil {
		if err := s.session.Login(a); err != nil {
			return models.Account{}, err
		}
	}
	return a, nil
}

// Logout clears the session.
func (s *Service) Logout() error {
	if s.session == nil {
		return nil
	}
	return s.session.Logout()
}

// CurrentUser returns the logged-in username or apperr.ErrNotFound.
func (s *Service) CurrentUser() (string, error) {
	if s.session == nil {
		return "", apperr.ErrNotFound
	}
	return s.session.Current()
}

// Account returns the account with its counters recomputed from the
// follow graph and picture metadata.
func (s *Service) Account(ctx context.Context, username string) (models.Account, error) {
	a, err := s.accounts.FindByUsername(ctx, username)
	if err != nil {
		return models.Account{}, err
	}
	posts, err := s.pictures.ByOwner(ctx, username)
	if err != nil {
		return models.Account{}, err
	}
	followers, err := s.follows.Followers(ctx, username)
	if err != nil {
		return models.Account{}, err
	}
	following, err := s.follows.Following(ctx, username)
	if err != nil {
		return models.Account{}, err
	}
	a.PostsCount = len(posts)
	a.FollowersCount = len(followers)
	a.FollowingCount = len(following)
	return a, nil
}

func (s *Service) UpdateBio(ctx context.Context, username, bio string) (models.Account, error) {
	a, err := s.accounts.FindByUsername(ctx, username)
	if err != nil {
		return models.Account{}, err
	}
	a.Bio = bio
	if err := s.accounts.Update(ctx, a); err != nil {
		return models.Account{}, err
	}
	return s.Account(ctx, username)
}

// ChangePassword replaces the hash and salt after checking the old password.
func (s *Service) ChangePassword(ctx context.Context, username, oldPassword, newPassword string) error {
	if newPassword == "" {
		return invalid("change password", "empty password")
	}
	a, err := s.Authenticate(ctx, username, oldPassword)
	if err != nil {
		return err
	}
	a.PasswordHash, a.Salt, err = credential.New(newPassword)
	if err != nil {
		return err
	}
	return s.accounts.Update(ctx, a)
}

// Follow adds the edge and notifies the followed account. Following an
// account already followed changes nothing and sends nothing.
func (s *Service) Follow(ctx context.Context, follower, followed string) error {
	if follower == followed {
		return invalid("follow", "cannot follow yourself")
	}
	for _, name := range []string{follower, followed} {
		if err := s.requireAccount(ctx, name); err != nil {
			return err
		}
	}
	already, err := s.follows.IsFollowing(ctx, follower, followed)
	if err != nil {
		return err
	}
	if already {
		return nil
	}
	if err := s.follows.Follow(ctx, follower, followed); err != nil {
		return err
	}
	return s.CreateFollowNotification(ctx, follower, followed)
}

func (s *Service) Unfollow(ctx context.Context, follower, followed string) error {
	return s.follows.Unfollow(ctx, follower, followed)
}

func (s *Service) Followers(ctx context.Context, username string) ([]string, error) {
	return s.follows.Followers(ctx, username)
}

func (s *Service) Following(ctx context.Context, username string) ([]string, error) {
	return s.follows.Following(ctx, username)
}

// maxUploadAttempts bounds how often Upload retries after losing an image
// id to a concurrent upload by the same owner.
const maxUploadAttempts = 16

// Upload stores the image bytes under the owner's next free image id and
// appends the metadata. The image is created exclusively, so a concurrent
// upload that picked the same id makes this one retry with a fresh id
// instead of overwriting it.
func (s *Service) Upload(ctx context.Context, owner, caption string, image io.Reader) (models.Picture, error) {
	if err := s.requireAccount(ctx, owner); err != nil {
		return models.Picture{}, err
	}
	if err := models.ValidateCaption(caption); err != nil {
		return models.Picture{}, fmt.Errorf("quack: upload: %w: %w", apperr.ErrInvalid, err)
	}
	data, err := io.ReadAll(image)
	if err != nil {
		return models.Picture{}, fmt.Errorf("quack: upload: read image: %w", err)
	}

	for attempt := 0; attempt < maxUploadAttempts; attempt++ {
		id, err := s.pictures.NextImageID(ctx, owner)
		if err != nil {
			return models.Picture{}, err
		}
		path, err := s.pictures.PutImage(ctx, id, bytes.NewReader(data))
		if errors.Is(err, apperr.ErrAlreadyExists) {
			s.logger.Debug("quack: image id taken, retrying", slog.String("image_id", id))
			continue
		}
		if err != nil {
			return models.Picture{}, err
		}
		p := models.Picture{
			ImageID:   id,
			Owner:     owner,
			ImagePath: path,
			Caption:   caption,
			Timestamp: s.timestamp(),
		}
		// The image file now reserves id, so a failed save leaves an orphan
		// image rather than touching anything another upload owns.
		if err := s.pictures.Save(ctx, p); err != nil {
			s.logger.Warn("quack: upload metadata not saved",
				slog.String("image_id", id),
				slog.String("error", err.Error()))
			return models.Picture{}, err
		}
		s.logger.Info("quack: uploaded", slog.String("image_id", id))
		return p, nil
	}
	return models.Picture{}, fmt.Errorf("quack: upload: no free image id after %d attempts: %w",
		maxUploadAttempts, apperr.ErrAlreadyExists)
}

// Like adds one like and notifies the owner unless they liked their own picture.
func (s *Service) Like(ctx context.Context, liker, imageID string) (models.Picture, error) {
	if err := s.requireAccount(ctx, liker); err != nil {
		return models.Picture{}, err
	}
	p, err := s.pictures.Like(ctx, imageID)
	if err != nil {
		return models.Picture{}, err
	}
	if err := s.CreateLikeNotification(ctx, liker, p); err != nil {
		return p, err
	}
	return p, nil
}

// Comment records a comment notification for the picture's owner.
// Comment text is not persisted.
func (s *Service) Comment(ctx context.Context, commenter, imageID string) error {
	if err := s.requireAccount(ctx, commenter); err != nil {
		return err
	}
	p, err := s.pictures.FindByID(ctx, imageID)
	if err != nil {
		return err
	}
	return s.notify(ctx, models.Notification{
		Receiver: p.Owner,
		Sender:   commenter,
		ImageID:  p.ImageID,
		Type:     models.NotificationComment,
	})
}

// DeletePicture removes a picture owned by username.
func (s *Service) DeletePicture(ctx context.Context, username, imageID string) error {
	p, err := s.pictures.FindByID(ctx, imageID)
	if err != nil {
		return err
	}
	if p.Owner != username {
		return invalid("delete picture", "not the owner")
	}
	return s.pictures.Delete(ctx, imageID)
}

// DeleteAccount removes the account after checking its password, together
// with its pictures, follow edges and notifications.
func (s *Service) DeleteAccount(ctx context.Context, username, password string) error {
	if _, err := s.Authenticate(ctx, username, password); err != nil {
		return err
	}
	pics, err := s.pictures.ByOwner(ctx, username)
	if err != nil {
		return err
	}
	for _, p := range pics {
		if err := s.pictures.Delete(ctx, p.ImageID); err != nil {
			return err
		}
	}
	if err := s.follows.RemoveUser(ctx, username); err != nil {
		return err
	}
	if err := s.notifications.DeleteInvolving(ctx, username); err != nil {
		return err
	}
	if err := s.accounts.Delete(ctx, username); err != nil {
		return err
	}
	if current, err := s.CurrentUser(); err == nil && current == username {
		if err := s.Logout(); err != nil {
			return err
		}
	} else if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return err
	}
	s.logger.Info("quack: account deleted", slog.String("username", username), slog.Int("pictures", len(pics)))
	return nil
}

// Feed returns the pictures of followed accounts, newest first.
func (s *Service) Feed(ctx context.Context, username string) ([]models.Picture, error) {
	ps, err := s.pictures.FromFollowed(ctx, username)
	if err != nil {
		return nil, err
	}
	sortPictures(ps)
	return ps, nil
}

// Explore returns every picture not owned by username, newest first.
func (s *Service) Explore(ctx context.Context, username string) ([]models.Picture, error) {
	ps, err := s.pictures.All(ctx)
	if err != nil {
		return nil, err
	}
	ps = slices.DeleteFunc(ps, func(p models.Picture) bool { return p.Owner == username })
	sortPictures(ps)
	return ps, nil
}

func (s *Service) Picture(ctx context.Context, imageID string) (models.Picture, error) {
	return s.pictures.FindByID(ctx, imageID)
}

func (s *Service) Notifications(ctx context.Context, username string) ([]models.Notification, error) {
	return s.notifications.ForReceiver(ctx, username)
}

// DeleteNotification removes one of receiver's notifications. An id that
// does not exist or belongs to another receiver yields apperr.ErrNotFound.
func (s *Service) DeleteNotification(ctx context.Context, receiver, id string) error {
	ns, err := s.notifications.ForReceiver(ctx, receiver)
	if err != nil {
		return err
	}
	if !slices.ContainsFunc(ns, func(n models.Notification) bool { return n.ID == id }) {
		return fmt.Errorf("quack: notification %s: %w", id, apperr.ErrNotFound)
	}
	return s.notifications.Delete(ctx, id)
}

// CreateLikeNotification notifies the picture's owner of a like.
func (s *Service) CreateLikeNotification(ctx context.Context, liker string, p models.Picture) error {
	return s.notify(ctx, models.Notification{
		Receiver: p.Owner,
		Sender:   liker,
		ImageID:  p.ImageID,
		Type:     models.NotificationLike,
	})
}

// CreateFollowNotification notifies followed of a new follower.
func (s *Service) CreateFollowNotification(ctx context.Context, follower, followed string) error {
	return s.notify(ctx, models.Notification{
		Receiver: followed,
		Sender:   follower,
		Type:     models.NotificationFollow,
	})
}

// notify stamps and saves n. Notifications to oneself are never written.
func (s *Service) notify(ctx context.Context, n models.Notification) error {
	if n.SelfAddressed() {
		return nil
	}
	n.Timestamp = s.timestamp()
	return s.notifications.Save(ctx, n)
}

// sortPictures orders newest first, keeping storage order for ties.
func sortPictures(ps []models.Picture) {
	slices.SortStableFunc(ps, func(a, b models.Picture) int {
		return cmp.Compare(b.Timestamp.Unix(), a.Timestamp.Unix())
	})
}
