package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/ioutil"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"github.com/weberc2/simfs/pkg/config"
	"github.com/weberc2/simfs/pkg/shell"
	"github.com/weberc2/simfs/pkg/snapshot"
	"github.com/weberc2/simfs/pkg/volume"
	. "github.com/weberc2/simfs/pkg/types"
	"golang.org/x/term"
)

func main() {
	app := cli.App{
		Name:  "simfs",
		Usage: "a single-directory file system stored in one disk image",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage: "path to a YAML config file. Defaults to " +
					"$SIMFS_CONFIG_FILE or ~/.config/simfs.yaml",
			},
			&cli.StringFlag{
				Name:    "image",
				Aliases: []string{"i"},
				Usage:   "path to the disk image; overrides the config",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "one of panic, fatal, error, warn, info, debug, trace",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "text or json",
			},
		},
		Commands: []*cli.Command{{
			Name:  "format",
			Usage: "lay out a fresh volume over the image, destroying its contents",
			Flags: []cli.Flag{
				&cli.Int64Flag{Name: "disk-size", Usage: "image size in bytes"},
				&cli.Int64Flag{Name: "block-size", Usage: "block size in bytes"},
				&cli.UintFlag{Name: "inodes", Usage: "number of inodes"},
			},
			Action: withConfig(func(c *config.Config, ctx *cli.Context) error {
				if ctx.IsSet("disk-size") {
					c.DiskSize = Byte(ctx.Int64("disk-size"))
				}
				if ctx.IsSet("block-size") {
					c.BlockSize = Byte(ctx.Int64("block-size"))
				}
				if ctx.IsSet("inodes") {
					c.Inodes = Ino(ctx.Uint("inodes"))
				}
				if err := c.Validate(); err != nil {
					return err
				}
				v := newVolume(c)
				if err := v.Format(); err != nil {
					return err
				}
				fmt.Fprintf(ctx.App.Writer, "formatted `%s`\n", c.Image)
				return nil
			}),
		}, {
			Name:  "info",
			Usage: "show volume information",
			Flags: []cli.Flag{
				&cli.BoolFlag{Name: "json", Usage: "print JSON"},
			},
			Action: withVolume(func(v *volume.Volume, ctx *cli.Context) error {
				info, err := v.Info()
				if err != nil {
					return err
				}
				if ctx.Bool("json") {
					return printJSON(ctx, info)
				}
				shell.PrintInfo(ctx.App.Writer, &info)
				return nil
			}),
		}, {
			Name:    "ls",
			Aliases: []string{"list"},
			Usage:   "list files",
			Action: withVolume(func(v *volume.Volume, ctx *cli.Context) error {
				entries, err := v.List()
				if err != nil {
					return err
				}
				for _, entry := range entries {
					inode, err := v.Stat(entry.Ino)
					if err != nil {
						return err
					}
					fmt.Fprintf(
						ctx.App.Writer,
						"%6d %10d %s %s\n",
						entry.Ino,
						inode.Size,
						time.Unix(inode.MTime, 0).Format("2006-01-02 15:04:05"),
						entry.Name,
					)
				}
				return nil
			}),
		}, {
			Name:      "create",
			Aliases:   []string{"touch"},
			Usage:     "create an empty file",
			ArgsUsage: "<name>",
			Action: withVolume(func(v *volume.Volume, ctx *cli.Context) error {
				name, err := nameArg(ctx)
				if err != nil {
					return err
				}
				ino, err := v.Create(name)
				if err != nil {
					return err
				}
				fmt.Fprintf(ctx.App.Writer, "created `%s` (inode %d)\n", name, ino)
				return nil
			}),
		}, {
			Name:      "cat",
			Usage:     "print a file's contents",
			ArgsUsage: "<name>",
			Action: withVolume(func(v *volume.Volume, ctx *cli.Context) error {
				name, err := nameArg(ctx)
				if err != nil {
					return err
				}
				ino, err := v.Open(name)
				if err != nil {
					return err
				}
				inode, err := v.Stat(ino)
				if err != nil {
					return err
				}
				p := make([]byte, inode.Size)
				n, err := v.Read(ino, 0, p)
				if err != nil {
					return err
				}
				if _, err := ctx.App.Writer.Write(p[:n]); err != nil {
					return fmt.Errorf("writing to stdout: %w", err)
				}
				return nil
			}),
		}, {
			Name: "write",
			Usage: "write to a file, creating it if necessary. Content is " +
				"read from stdin when it isn't given as an argument",
			ArgsUsage: "<name> [content]",
			Flags: []cli.Flag{
				&cli.Int64Flag{Name: "offset", Usage: "byte offset to write at"},
			},
			Action: withVolume(func(v *volume.Volume, ctx *cli.Context) error {
				if ctx.NArg() < 1 || ctx.NArg() > 2 {
					return fmt.Errorf("usage: write <name> [content]: %w", InvalidArgumentErr)
				}
				name := ctx.Args().Get(0)
				var content []byte
				if ctx.NArg() == 2 {
					content = []byte(ctx.Args().Get(1))
				} else {
					data, err := ioutil.ReadAll(os.Stdin)
					if err != nil {
						return fmt.Errorf("reading stdin: %w", err)
					}
					content = data
				}

				ino, err := v.Open(name)
				if err != nil {
					if !errors.Is(err, NotFoundErr) {
						return err
					}
					if ino, err = v.Create(name); err != nil {
						return err
					}
				}
				n, err := v.Write(ino, Byte(ctx.Int64("offset")), content)
				if err != nil {
					return err
				}
				if n < Byte(len(content)) {
					return cli.Exit(
						fmt.Sprintf(
							"wrote %d of %d bytes (file size limit or volume full)",
							n,
							len(content),
						),
						1,
					)
				}
				fmt.Fprintf(ctx.App.Writer, "wrote %d bytes\n", n)
				return nil
			}),
		}, {
			Name:      "rm",
			Aliases:   []string{"delete"},
			Usage:     "delete a file",
			ArgsUsage: "<name>",
			Action: withVolume(func(v *volume.Volume, ctx *cli.Context) error {
				name, err := nameArg(ctx)
				if err != nil {
					return err
				}
				return v.Delete(name)
			}),
		}, {
			Name:  "check",
			Usage: "check the volume for inconsistencies; exits 1 if any are found",
			Flags: []cli.Flag{
				&cli.BoolFlag{Name: "json", Usage: "print the report as JSON"},
			},
			Action: withVolume(func(v *volume.Volume, ctx *cli.Context) error {
				report, err := v.Check()
				if err != nil {
					return err
				}
				if ctx.Bool("json") {
					if err := printJSON(ctx, report); err != nil {
						return err
					}
				} else if report.OK() {
					fmt.Fprintf(ctx.App.Writer, "clean: %d files\n", report.Files)
				} else {
					for _, problem := range report.Problems {
						fmt.Fprintln(ctx.App.Writer, problem)
					}
				}
				if !report.OK() {
					return cli.Exit(
						fmt.Sprintf("found %d problems", len(report.Problems)),
						1,
					)
				}
				return nil
			}),
		}, {
			Name:  "shell",
			Usage: "run the interactive shell against the image",
			Action: withConfig(func(c *config.Config, ctx *cli.Context) error {
				v := newVolume(c)
				defer v.Close()

				// the shell unmounts on its own goroutine once the running
				// command finishes
				interrupted, stop := signal.NotifyContext(
					ctx.Context,
					os.Interrupt,
					syscall.SIGTERM,
				)
				defer stop()

				s := shell.Shell{Volume: v, Out: ctx.App.Writer}
				if term.IsTerminal(int(os.Stdin.Fd())) {
					s.Prompt = "simfs> "
				}
				if err := s.Run(interrupted, os.Stdin); err != nil {
					if errors.Is(err, context.Canceled) {
						v.Logger.Info("interrupted; volume unmounted")
						return cli.Exit("interrupted", 130)
					}
					return err
				}
				return nil
			}),
		}, {
			Name:  "snapshot",
			Usage: "copy images to and from S3",
			Subcommands: []*cli.Command{{
				Name:      "push",
				Usage:     "upload the (unmounted) image as a snapshot",
				ArgsUsage: "<name>",
				Action: withSnapshots(func(c *config.Config, s *snapshot.Snapshots, ctx *cli.Context) error {
					name, err := nameArg(ctx)
					if err != nil {
						return err
					}
					return s.Push(c.Image, name)
				}),
			}, {
				Name:      "pull",
				Usage:     "replace the image with a snapshot",
				ArgsUsage: "<name>",
				Action: withSnapshots(func(c *config.Config, s *snapshot.Snapshots, ctx *cli.Context) error {
					name, err := nameArg(ctx)
					if err != nil {
						return err
					}
					return s.Pull(name, c.Image)
				}),
			}, {
				Name:    "ls",
				Aliases: []string{"list"},
				Usage:   "list snapshots",
				Action: withSnapshots(func(c *config.Config, s *snapshot.Snapshots, ctx *cli.Context) error {
					names, err := s.List()
					if err != nil {
						return err
					}
					for _, name := range names {
						fmt.Fprintln(ctx.App.Writer, name)
					}
					return nil
				}),
			}, {
				Name:      "rm",
				Aliases:   []string{"delete"},
				Usage:     "delete a snapshot",
				ArgsUsage: "<name>",
				Action: withSnapshots(func(c *config.Config, s *snapshot.Snapshots, ctx *cli.Context) error {
					name, err := nameArg(ctx)
					if err != nil {
						return err
					}
					return s.Delete(name)
				}),
			}},
		}},
	}

	if err := app.Run(os.Args); err != nil {
		logrus.Fatal(err)
	}
}

// loadConfig reads the config and applies the global flags over it.
func loadConfig(ctx *cli.Context) (*config.Config, *logrus.Logger, error) {
	c, err := config.Load(ctx.String("config"))
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	if image := ctx.String("image"); image != "" {
		c.Image = image
	}
	if level := ctx.String("log-level"); level != "" {
		c.LogLevel = level
	}
	if format := ctx.String("log-format"); format != "" {
		c.LogFormat = format
	}
	if err := c.Validate(); err != nil {
		return nil, nil, err
	}
	return c, c.Logger(os.Stderr), nil
}

var logger logrus.FieldLogger = logrus.StandardLogger()

func withConfig(f func(*config.Config, *cli.Context) error) cli.ActionFunc {
	return func(ctx *cli.Context) error {
		c, l, err := loadConfig(ctx)
		if err != nil {
			return err
		}
		logger = l
		return f(c, ctx)
	}
}

func newVolume(c *config.Config) *volume.Volume {
	v := volume.New(c.Image)
	v.Geometry = c.Geometry()
	v.Logger = logger.WithField("image", c.Image)
	return v
}

// withVolume mounts the image around `f`. The unmount error is reported
// only if `f` succeeded.
func withVolume(f func(*volume.Volume, *cli.Context) error) cli.ActionFunc {
	return withConfig(func(c *config.Config, ctx *cli.Context) (err error) {
		v := newVolume(c)
		if err := v.Mount(); err != nil {
			return err
		}
		defer func() {
			if unmountErr := v.Unmount(); unmountErr != nil && err == nil {
				err = unmountErr
			}
		}()
		return f(v, ctx)
	})
}

func withSnapshots(
	f func(*config.Config, *snapshot.Snapshots, *cli.Context) error,
) cli.ActionFunc {
	return withConfig(func(c *config.Config, ctx *cli.Context) error {
		s, err := c.Snapshots(logger)
		if err != nil {
			return err
		}
		return f(c, s, ctx)
	})
}

func nameArg(ctx *cli.Context) (string, error) {
	if ctx.NArg() != 1 {
		return "", fmt.Errorf(
			"usage: %s %s: %w",
			ctx.Command.Name,
			ctx.Command.ArgsUsage,
			InvalidArgumentErr,
		)
	}
	return ctx.Args().First(), nil
}

func printJSON(ctx *cli.Context, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling to JSON: %w", err)
	}
	if _, err := fmt.Fprintf(ctx.App.Writer, "%s\n", data); err != nil {
		return fmt.Errorf("writing JSON to stdout: %w", err)
	}
	return nil
}
