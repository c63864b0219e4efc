package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/starford/quackstagram/internal"
	"github.com/starford/quackstagram/internal/apperr"
	"github.com/starford/quackstagram/internal/codec"
	"github.com/starford/quackstagram/internal/models"
)

var errNotLoggedIn = errors.New("not logged in; run login first")

func commands() []*cli.Command {
	return []*cli.Command{
		{
			Name:      "register",
			Usage:     "Create an account",
			ArgsUsage: "<username> <password> [bio]",
			Action: withApp(func(ctx context.Context, cmd *cli.Command, app *internal.App) error {
				args, err := requireArgs(cmd, 2)
				if err != nil {
					return err
				}
				a, err := app.Service.Register(ctx, args[0], args[1], strings.Join(args[2:], " "))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.Root().Writer, "registered %s\n", a.Username)
				return nil
			}),
		},
		{
			Name:      "login",
			Usage:     "Log in as an account",
			ArgsUsage: "<username> <password>",
			Action: withApp(func(ctx context.Context, cmd *cli.Command, app *internal.App) error {
				args, err := requireArgs(cmd, 2)
				if err != nil {
					return err
				}
				a, err := app.Service.Login(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.Root().Writer, "logged in as %s\n", a.Username)
				return nil
			}),
		},
		{
			Name:  "logout",
			Usage: "Clear the session",
			Action: withApp(func(_ context.Context, _ *cli.Command, app *internal.App) error {
				return app.Service.Logout()
			}),
		},
		{
			Name:  "whoami",
			Usage: "Print the logged-in account",
			Action: withApp(func(_ context.Context, cmd *cli.Command, app *internal.App) error {
				user, err := currentUser(app)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.Root().Writer, user)
				return nil
			}),
		},
		{
			Name:      "profile",
			Usage:     "Show an account with its counters",
			ArgsUsage: "[username]",
			Action: withApp(func(ctx context.Context, cmd *cli.Command, app *internal.App) error {
				user, err := userArg(cmd, app)
				if err != nil {
					return err
				}
				a, err := app.Service.Account(ctx, user)
				if err != nil {
					return err
				}
				printAccount(cmd.Root().Writer, a)
				return nil
			}),
		},
		{
			Name:      "bio",
			Usage:     "Replace your bio",
			ArgsUsage: "<text>",
			Action: withApp(func(ctx context.Context, cmd *cli.Command, app *internal.App) error {
				user, err := currentUser(app)
				if err != nil {
					return err
				}
				a, err := app.Service.UpdateBio(ctx, user, strings.Join(cmd.Args().Slice(), " "))
				if err != nil {
					return err
				}
				printAccount(cmd.Root().Writer, a)
				return nil
			}),
		},
		{
			Name:      "passwd",
			Usage:     "Change your password",
			ArgsUsage: "<old> <new>",
			Action: withApp(func(ctx context.Context, cmd *cli.Command, app *internal.App) error {
				args, err := requireArgs(cmd, 2)
				if err != nil {
					return err
				}
				user, err := currentUser(app)
				if err != nil {
					return err
				}
				return app.Service.ChangePassword(ctx, user, args[0], args[1])
			}),
		},
		{
			Name:      "follow",
			Usage:     "Follow an account",
			ArgsUsage: "<username>",
			Action: asCurrentUser(func(ctx context.Context, app *internal.App, user, target string) error {
				return app.Service.Follow(ctx, user, target)
			}),
		},
		{
			Name:      "unfollow",
			Usage:     "Stop following an account",
			ArgsUsage: "<username>",
			Action: asCurrentUser(func(ctx context.Context, app *internal.App, user, target string) error {
				return app.Service.Unfollow(ctx, user, target)
			}),
		},
		{
			Name:      "followers",
			Usage:     "List the followers of an account",
			ArgsUsage: "[username]",
			Action: withApp(func(ctx context.Context, cmd *cli.Command, app *internal.App) error {
				user, err := userArg(cmd, app)
				if err != nil {
					return err
				}
				names, err := app.Service.Followers(ctx, user)
				if err != nil {
					return err
				}
				printLines(cmd.Root().Writer, names)
				return nil
			}),
		},
		{
			Name:      "following",
			Usage:     "List the accounts an account follows",
			ArgsUsage: "[username]",
			Action: withApp(func(ctx context.Context, cmd *cli.Command, app *internal.App) error {
				user, err := userArg(cmd, app)
				if err != nil {
					return err
				}
				names, err := app.Service.Following(ctx, user)
				if err != nil {
					return err
				}
				printLines(cmd.Root().Writer, names)
				return nil
			}),
		},
		{
			Name:      "upload",
			Usage:     "Upload a PNG image",
			ArgsUsage: "<file> [caption]",
			Action: withApp(func(ctx context.Context, cmd *cli.Command, app *internal.App) error {
				args, err := requireArgs(cmd, 1)
				if err != nil {
					return err
				}
				user, err := currentUser(app)
				if err != nil {
					return err
				}
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				p, err := app.Service.Upload(ctx, user, strings.Join(args[1:], " "), f)
				if err != nil {
					return err
				}
				printPicture(cmd.Root().Writer, p)
				return nil
			}),
		},
		{
			Name:      "like",
			Usage:     "Like a picture",
			ArgsUsage: "<image-id>",
			Action: asCurrentUser(func(ctx context.Context, app *internal.App, user, imageID string) error {
				_, err := app.Service.Like(ctx, user, imageID)
				return err
			}),
		},
		{
			Name:      "comment",
			Usage:     "Comment on a picture",
			ArgsUsage: "<image-id>",
			Action: asCurrentUser(func(ctx context.Context, app *internal.App, user, imageID string) error {
				return app.Service.Comment(ctx, user, imageID)
			}),
		},
		{
			Name:  "feed",
			Usage: "Pictures of the accounts you follow",
			Action: withApp(func(ctx context.Context, cmd *cli.Command, app *internal.App) error {
				user, err := currentUser(app)
				if err != nil {
					return err
				}
				ps, err := app.Service.Feed(ctx, user)
				if err != nil {
					return err
				}
				for _, p := range ps {
					printPicture(cmd.Root().Writer, p)
				}
				return nil
			}),
		},
		{
			Name:  "explore",
			Usage: "Pictures of everyone else",
			Action: withApp(func(ctx context.Context, cmd *cli.Command, app *internal.App) error {
				user, err := currentUser(app)
				if err != nil {
					return err
				}
				ps, err := app.Service.Explore(ctx, user)
				if err != nil {
					return err
				}
				for _, p := range ps {
					printPicture(cmd.Root().Writer, p)
				}
				return nil
			}),
		},
		{
			Name:  "notifications",
			Usage: "Your notifications, newest first",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "delete", Usage: "Delete the notification with this id"},
			},
			Action: withApp(func(ctx context.Context, cmd *cli.Command, app *internal.App) error {
				user, err := currentUser(app)
				if err != nil {
					return err
				}
				if id := cmd.String("delete"); id != "" {
					return app.Service.DeleteNotification(ctx, user, id)
				}
				ns, err := app.Service.Notifications(ctx, user)
				if err != nil {
					return err
				}
				w := cmd.Root().Writer
				for _, n := range ns {
					fmt.Fprintf(w, "%s  %s  %s %s\n", n.ID, n.Timestamp.Format(codec.TimeLayout), n.Sender, describe(n))
				}
				return nil
			}),
		},
		{
			Name:      "delete-picture",
			Usage:     "Delete one of your pictures",
			ArgsUsage: "<image-id>",
			Action: asCurrentUser(func(ctx context.Context, app *internal.App, user, imageID string) error {
				return app.Service.DeletePicture(ctx, user, imageID)
			}),
		},
		{
			Name:      "delete-account",
			Usage:     "Delete your account, pictures, follows and notifications",
			ArgsUsage: "<password>",
			Action: asCurrentUser(func(ctx context.Context, app *internal.App, user, password string) error {
				return app.Service.DeleteAccount(ctx, user, password)
			}),
		},
		{
			Name:  "migrate-credentials",
			Usage: "Hash every legacy plaintext password",
			Action: withApp(func(ctx context.Context, cmd *cli.Command, app *internal.App) error {
				n, err := app.MigrateCredentials(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.Root().Writer, "migrated %d account(s)\n", n)
				return nil
			}),
		},
		{
			Name:  "mirror",
			Usage: "Copy the flat files into the SQLite database (flat-file backend only)",
			Flags: []cli.Flag{
				&cli.BoolFlag{Name: "watch", Aliases: []string{"w"}, Usage: "Keep syncing as files change"},
			},
			Action: withApp(func(ctx context.Context, cmd *cli.Command, app *internal.App) error {
				res, err := app.RunMirror(ctx, cmd.Bool("watch"))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.Root().Writer, "synced %d file(s), %d unchanged\n", len(res.Synced), len(res.Skipped))
				return nil
			}),
		},
	}
}

// asCurrentUser adapts an action taking the logged-in user and one argument.
func asCurrentUser(fn func(ctx context.Context, app *internal.App, user, arg string) error) cli.ActionFunc {
	return withApp(func(ctx context.Context, cmd *cli.Command, app *internal.App) error {
		args, err := requireArgs(cmd, 1)
		if err != nil {
			return err
		}
		user, err := currentUser(app)
		if err != nil {
			return err
		}
		return fn(ctx, app, user, args[0])
	})
}

func requireArgs(cmd *cli.Command, n int) ([]string, error) {
	args := cmd.Args().Slice()
	if len(args) < n {
		return nil, fmt.Errorf("%s: expected %s", cmd.Name, cmd.ArgsUsage)
	}
	return args, nil
}

func currentUser(app *internal.App) (string, error) {
	user, err := app.Service.CurrentUser()
	if errors.Is(err, apperr.ErrNotFound) {
		return "", errNotLoggedIn
	}
	return user, err
}

// userArg returns the first argument, or the logged-in user when absent.
func userArg(cmd *cli.Command, app *internal.App) (string, error) {
	if cmd.Args().Present() {
		return cmd.Args().First(), nil
	}
	return currentUser(app)
}

func printLines(w io.Writer, lines []string) {
	for _, l := range lines {
		fmt.Fprintln(w, l)
	}
}

func printAccount(w io.Writer, a models.Account) {
	fmt.Fprintf(w, "%s\n  %s\n  posts %d  followers %d  following %d\n",
		a.Username, a.Bio, a.PostsCount, a.FollowersCount, a.FollowingCount)
}

func printPicture(w io.Writer, p models.Picture) {
	fmt.Fprintf(w, "%s  by %s  %s  likes %d  %s\n",
		p.ImageID, p.Owner, p.Timestamp.Format(codec.TimeLayout), p.LikesCount, p.Caption)
}

func describe(n models.Notification) string {
	switch n.Type {
	case models.NotificationFollow:
		return "started following you"
	case models.NotificationComment:
		return "commented on " + n.ImageID
	default:
		return "liked " + n.ImageID
	}
}
