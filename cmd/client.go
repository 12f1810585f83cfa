package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"couple-notes-backend/internal/config"
	"couple-notes-backend/internal/models"
	"couple-notes-backend/internal/syncclient"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
)

type clientAction func(ctx context.Context, cmd *cli.Command, c *syncclient.Client) error

// withClient opens the device cache and API client around action
func withClient(action clientAction) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		c, closeFn, err := openClient(cfg)
		if err != nil {
			return err
		}
		defer closeFn()

		return action(ctx, cmd, c)
	}
}

func openClient(cfg *config.Config) (*syncclient.Client, func(), error) {
	cache, err := syncclient.OpenCache(cfg.Client.CachePath)
	if err != nil {
		return nil, nil, err
	}

	api := syncclient.NewAPI(cfg.Client.ServerURL, cfg.Client.Token, cfg.Client.RequestTimeout)
	outbox := syncclient.NewOutbox(cache, api, syncclient.OutboxOptions{Logger: log.Logger})
	c := syncclient.New(api, cache, outbox, syncclient.Options{
		Logger:         log.Logger,
		PollInterval:   cfg.Client.EffectivePollInterval(),
		OutboxInterval: cfg.Client.OutboxInterval,
		RequestTimeout: cfg.Client.RequestTimeout,
	})

	return c, func() {
		c.Close()
		if err := cache.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close cache")
		}
	}, nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// flush tries to deliver queued mutations once and reports what is left
func flush(ctx context.Context, c *syncclient.Client) {
	sent, err := c.Outbox().Drain(ctx)
	if err != nil {
		log.Debug().Err(err).Msg("Outbox flush incomplete")
	}
	pending, perr := c.Outbox().Pending(ctx)
	if perr != nil {
		log.Error().Err(perr).Msg("Failed to read outbox")
		return
	}
	if len(pending) > 0 {
		fmt.Fprintf(os.Stderr, "synced %d change(s), %d queued for retry\n", sent, len(pending))
	}
}

func requireArg(cmd *cli.Command, name string) (string, error) {
	arg := strings.TrimSpace(cmd.Args().First())
	if arg == "" {
		return "", fmt.Errorf("%s is required", name)
	}
	return arg, nil
}

func parseDate(s string) (*int64, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q, want YYYY-MM-DD: %w", s, err)
	}
	ms := t.UnixMilli()
	return &ms, nil
}

func profileCommand() *cli.Command {
	return &cli.Command{
		Name:  "profile",
		Usage: "Manage the profile of this device",
		Commands: []*cli.Command{
			{
				Name:      "create",
				Usage:     "Create a profile and make it current",
				ArgsUsage: "NAME",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "code", Usage: "Partner code to claim (6 characters A-Z, 0-9)"},
				},
				Action: withClient(func(ctx context.Context, cmd *cli.Command, c *syncclient.Client) error {
					name, err := requireArg(cmd, "NAME")
					if err != nil {
						return err
					}
					p, err := c.CreateProfile(ctx, name, cmd.String("code"))
					if err != nil {
						return err
					}
					return printJSON(p)
				}),
			},
			{
				Name:      "login",
				Usage:     "Use an existing profile on this device",
				ArgsUsage: "PROFILE_ID",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "token", Usage: "Bearer token issued when the profile was created"},
				},
				Action: withClient(func(ctx context.Context, cmd *cli.Command, c *syncclient.Client) error {
					id, err := requireArg(cmd, "PROFILE_ID")
					if err != nil {
						return err
					}
					p, err := c.Login(ctx, id, cmd.String("token"))
					if err != nil {
						return err
					}
					return printJSON(p)
				}),
			},
			{
				Name:  "show",
				Usage: "Print the current profile",
				Action: withClient(func(ctx context.Context, _ *cli.Command, c *syncclient.Client) error {
					p, err := c.CurrentProfile(ctx)
					if err != nil {
						return err
					}
					return printJSON(p)
				}),
			},
			{
				Name:  "update",
				Usage: "Change the name or anniversary of the current profile",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Usage: "New display name"},
					&cli.StringFlag{Name: "anniversary", Usage: "Anniversary date (YYYY-MM-DD)"},
				},
				Action: withClient(func(ctx context.Context, cmd *cli.Command, c *syncclient.Client) error {
					anniversary, err := parseDate(cmd.String("anniversary"))
					if err != nil {
						return err
					}
					if cmd.String("name") == "" && anniversary == nil {
						return errors.New("nothing to update, pass --name or --anniversary")
					}
					p, err := c.UpdateProfile(ctx, cmd.String("name"), anniversary)
					if err != nil {
						return err
					}
					return printJSON(p)
				}),
			},
		},
	}
}

func linkCommand() *cli.Command {
	return &cli.Command{
		Name:      "link",
		Usage:     "Link with a partner using their code",
		ArgsUsage: "PARTNER_CODE",
		Action: withClient(func(ctx context.Context, cmd *cli.Command, c *syncclient.Client) error {
			code, err := requireArg(cmd, "PARTNER_CODE")
			if err != nil {
				return err
			}
			partner, err := c.Link(ctx, code)
			if err != nil {
				return err
			}
			return printJSON(partner)
		}),
	}
}

func unlinkCommand() *cli.Command {
	return &cli.Command{
		Name:  "unlink",
		Usage: "Remove the partner link",
		Action: withClient(func(ctx context.Context, _ *cli.Command, c *syncclient.Client) error {
			if err := c.Unlink(ctx); err != nil {
				return err
			}
			fmt.Println("unlinked")
			return nil
		}),
	}
}

func noteIDAction(apply func(c *syncclient.Client, ctx context.Context, id string) (*models.Note, error)) cli.ActionFunc {
	return withClient(func(ctx context.Context, cmd *cli.Command, c *syncclient.Client) error {
		id, err := requireArg(cmd, "NOTE_ID")
		if err != nil {
			return err
		}
		n, err := apply(c, ctx, id)
		if err != nil {
			return err
		}
		flush(ctx, c)
		return printJSON(n)
	})
}

func noteCommand() *cli.Command {
	return &cli.Command{
		Name:  "note",
		Usage: "Write and manage your notes",
		Commands: []*cli.Command{
			{
				Name:      "send",
				Usage:     "Save a new note",
				ArgsUsage: "CONTENT",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "type", Value: string(models.NoteTypeText), Usage: "text, drawing or collage"},
					&cli.StringFlag{Name: "color", Usage: "Background color"},
					&cli.StringSliceFlag{Name: "image", Usage: "Image URL for collage notes (repeatable)"},
				},
				Action: withClient(func(ctx context.Context, cmd *cli.Command, c *syncclient.Client) error {
					n := models.Note{
						Type:      models.NoteType(cmd.String("type")),
						Content:   strings.Join(cmd.Args().Slice(), " "),
						ImageURLs: cmd.StringSlice("image"),
					}
					if color := cmd.String("color"); color != "" {
						n.Color = &color
					}
					saved, err := c.SaveMyNote(ctx, n)
					if err != nil {
						return err
					}
					flush(ctx, c)
					return printJSON(saved)
				}),
			},
			{
				Name:  "list",
				Usage: "List your notes",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "cached", Usage: "Print the cache without waiting for the server"},
				},
				Action: withClient(func(ctx context.Context, cmd *cli.Command, c *syncclient.Client) error {
					if cmd.Bool("cached") {
						notes, err := c.GetMyHistory(ctx)
						if err != nil {
							return err
						}
						return printJSON(notes)
					}
					notes, err := c.RefreshMyHistory(ctx)
					if err != nil {
						return err
					}
					return printJSON(notes)
				}),
			},
			{
				Name:      "pin",
				Usage:     "Toggle the pinned flag",
				ArgsUsage: "NOTE_ID",
				Action:    noteIDAction((*syncclient.Client).TogglePinned),
			},
			{
				Name:      "bookmark",
				Usage:     "Toggle the bookmarked flag",
				ArgsUsage: "NOTE_ID",
				Action:    noteIDAction((*syncclient.Client).ToggleBookmarked),
			},
			{
				Name:      "delete",
				Usage:     "Delete a note",
				ArgsUsage: "NOTE_ID",
				Action: withClient(func(ctx context.Context, cmd *cli.Command, c *syncclient.Client) error {
					id, err := requireArg(cmd, "NOTE_ID")
					if err != nil {
						return err
					}
					if err := c.DeleteMyNote(ctx, id); err != nil {
						return err
					}
					flush(ctx, c)
					fmt.Println("deleted", id)
					return nil
				}),
			},
		},
	}
}

func partnerCommand() *cli.Command {
	return &cli.Command{
		Name:  "partner",
		Usage: "See what your partner wrote",
		Commands: []*cli.Command{
			{
				Name:  "notes",
				Usage: "List the partner's notes",
				Action: withClient(func(ctx context.Context, _ *cli.Command, c *syncclient.Client) error {
					notes, err := c.GetPartnerNotes(ctx)
					if err != nil {
						return err
					}
					return printJSON(notes)
				}),
			},
			{
				Name:  "watch",
				Usage: "Print each new partner note until interrupted",
				Action: withClient(func(ctx context.Context, _ *cli.Command, c *syncclient.Client) error {
					ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
					defer stop()

					go c.RunOutbox(ctx)

					sub, err := c.WatchPartner(ctx, func(n models.Note) {
						if err := printJSON(n); err != nil {
							log.Error().Err(err).Msg("Failed to print note")
						}
					})
					if err != nil {
						return err
					}
					defer sub.Cancel()

					fmt.Fprintln(os.Stderr, "watching for partner notes, press Ctrl+C to stop")
					<-ctx.Done()
					return nil
				}),
			},
		},
	}
}

func tasksCommand() *cli.Command {
	return &cli.Command{
		Name:  "tasks",
		Usage: "Manage the shared task list",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List tasks",
				Action: withClient(func(ctx context.Context, _ *cli.Command, c *syncclient.Client) error {
					tasks, err := c.GetTasks(ctx)
					if err != nil {
						return err
					}
					return printJSON(tasks)
				}),
			},
			{
				Name:      "set",
				Usage:     "Replace the whole list, one argument per task",
				ArgsUsage: "TEXT...",
				Action: withClient(func(ctx context.Context, cmd *cli.Command, c *syncclient.Client) error {
					args := cmd.Args().Slice()
					tasks := make([]models.Task, 0, len(args))
					for _, text := range args {
						tasks = append(tasks, models.Task{Text: text})
					}
					saved, err := c.SaveTasks(ctx, tasks)
					if err != nil {
						return err
					}
					flush(ctx, c)
					return printJSON(saved)
				}),
			},
			{
				Name:      "add",
				Usage:     "Append a task",
				ArgsUsage: "TEXT",
				Action: withClient(func(ctx context.Context, cmd *cli.Command, c *syncclient.Client) error {
					t, err := c.AddTask(ctx, models.Task{Text: strings.Join(cmd.Args().Slice(), " ")})
					if err != nil {
						return err
					}
					flush(ctx, c)
					return printJSON(t)
				}),
			},
		},
	}
}

func widgetCommand() *cli.Command {
	return &cli.Command{
		Name:  "widget",
		Usage: "Relay notes to the partner's widget",
		Commands: []*cli.Command{
			{
				Name:      "send",
				Usage:     "Show one of your notes on the partner's widget",
				ArgsUsage: "NOTE_ID",
				Action: withClient(func(ctx context.Context, cmd *cli.Command, c *syncclient.Client) error {
					id, err := requireArg(cmd, "NOTE_ID")
					if err != nil {
						return err
					}
					entry, err := c.SendToWidget(ctx, id)
					if err != nil {
						return err
					}
					return printJSON(entry)
				}),
			},
			{
				Name:  "show",
				Usage: "Print the note on this device's widget",
				Action: withClient(func(ctx context.Context, _ *cli.Command, c *syncclient.Client) error {
					entry, err := c.GetWidget(ctx)
					if err != nil {
						return err
					}
					return printJSON(entry)
				}),
			},
		},
	}
}

func outboxCommand() *cli.Command {
	return &cli.Command{
		Name:  "outbox",
		Usage: "Inspect queued changes",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List queued changes",
				Action: withClient(func(ctx context.Context, _ *cli.Command, c *syncclient.Client) error {
					entries, err := c.Outbox().Pending(ctx)
					if err != nil {
						return err
					}
					return printJSON(entries)
				}),
			},
			{
				Name:  "flush",
				Usage: "Send queued changes now",
				Action: withClient(func(ctx context.Context, _ *cli.Command, c *syncclient.Client) error {
					sent, err := c.Outbox().Drain(ctx)
					pending, perr := c.Outbox().Pending(ctx)
					if perr != nil {
						return perr
					}
					fmt.Printf("sent %d, pending %d\n", sent, len(pending))
					return err
				}),
			},
		},
	}
}
