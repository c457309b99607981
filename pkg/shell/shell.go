// Package shell is the line-oriented command interpreter over a `Volume`.
// Core failures are printed and never end the session.
package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/weberc2/simfs/pkg/math"
	"github.com/weberc2/simfs/pkg/volume"
	. "github.com/weberc2/simfs/pkg/types"
)

type Shell struct {
	Volume *volume.Volume
	Out    io.Writer

	// Prompt is printed before each line is read. Leave it empty when input
	// isn't a terminal.
	Prompt string
}

type command struct {
	usage       string
	description string
	run         func(s *Shell, line string, args []string) error
}

var commands map[string]*command

// order in which `help` lists commands
var commandNames = []string{
	"format", "mount", "umount", "info", "create", "open", "read", "write",
	"delete", "ls", "check", "help", "exit",
}

func init() {
	commands = map[string]*command{
		"format": {
			usage:       "format",
			description: "format the disk image, destroying its contents",
			run:         (*Shell).format,
		},
		"mount": {
			usage:       "mount",
			description: "mount the disk image",
			run:         (*Shell).mount,
		},
		"umount": {
			usage:       "umount",
			description: "flush and unmount the disk image",
			run:         (*Shell).umount,
		},
		"info": {
			usage:       "info",
			description: "show volume information",
			run:         (*Shell).info,
		},
		"create": {
			usage:       "create <name>",
			description: "create an empty file",
			run:         (*Shell).create,
		},
		"open": {
			usage:       "open <name>",
			description: "look up a file's inode number",
			run:         (*Shell).open,
		},
		"read": {
			usage:       "read <inode> <size> [offset]",
			description: "read from a file",
			run:         (*Shell).read,
		},
		"write": {
			usage:       "write <inode> <content>",
			description: "write the rest of the line to the start of a file",
			run:         (*Shell).write,
		},
		"delete": {
			usage:       "delete <name>",
			description: "delete a file",
			run:         (*Shell).delete,
		},
		"ls": {
			usage:       "ls",
			description: "list files",
			run:         (*Shell).ls,
		},
		"check": {
			usage:       "check",
			description: "check the volume for inconsistencies",
			run:         (*Shell).check,
		},
		"help": {
			usage:       "help",
			description: "show this help",
			run:         (*Shell).help,
		},
		"exit": {
			usage:       "exit",
			description: "unmount and quit",
			run:         (*Shell).exit,
		},
	}
	commands["unmount"] = commands["umount"]
	commands["quit"] = commands["exit"]
}

// exitErr is returned by the `exit` command to stop `Run`.
const exitErr ConstError = "exit"

// Run reads commands from `in` until `exit`, the end of the input or
// cancellation of `ctx`. The volume is unmounted on the way out in every
// case. A command already running when `ctx` is cancelled finishes first;
// the volume is only ever touched from the calling goroutine.
func (s *Shell) Run(ctx context.Context, in io.Reader) error {
	done := make(chan struct{})
	defer close(done)

	lines := make(chan string)
	var scanErr error
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
		scanErr = scanner.Err()
	}()

	for {
		if s.Prompt != "" {
			fmt.Fprint(s.Out, s.Prompt)
		}
		select {
		case <-ctx.Done():
			if err := s.Volume.Unmount(); err != nil {
				return err
			}
			return fmt.Errorf("running shell: %w", ctx.Err())
		case line, ok := <-lines:
			if !ok {
				if scanErr != nil {
					if err := s.Volume.Unmount(); err != nil {
						s.Volume.Logger.WithError(err).Error(
							"unmounting after failed read",
						)
					}
					return fmt.Errorf("reading commands: %w", scanErr)
				}
				return s.Volume.Unmount()
			}
			if s.Execute(line) {
				return nil
			}
		}
	}
}

// Execute runs a single command line and prints its outcome. It reports
// whether the command asked to quit.
func (s *Shell) Execute(line string) bool {
	args := strings.Fields(line)
	if len(args) == 0 {
		return false
	}
	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(s.Out, "unknown command `%s`; type `help` for a list\n", args[0])
		return false
	}

	err := cmd.run(s, line, args[1:])
	switch {
	case err == nil:
		return false
	case errors.Is(err, exitErr):
		return true
	case errors.Is(err, usageErr):
		fmt.Fprintf(s.Out, "usage: %s\n", cmd.usage)
	default:
		fmt.Fprintf(s.Out, "error: %v\n", err)
	}
	return false
}

const usageErr ConstError = "usage"

func (s *Shell) format(_ string, _ []string) error {
	if err := s.Volume.Format(); err != nil {
		return err
	}
	fmt.Fprintln(s.Out, "formatted")
	return nil
}

func (s *Shell) mount(_ string, _ []string) error {
	if err := s.Volume.Mount(); err != nil {
		return err
	}
	fmt.Fprintln(s.Out, "mounted")
	return nil
}

func (s *Shell) umount(_ string, _ []string) error {
	if err := s.Volume.Unmount(); err != nil {
		return err
	}
	fmt.Fprintln(s.Out, "unmounted")
	return nil
}

func (s *Shell) info(_ string, _ []string) error {
	info, err := s.Volume.Info()
	if err != nil {
		return err
	}
	PrintInfo(s.Out, &info)
	return nil
}

// PrintInfo writes `info` in the shell's human-readable layout.
func PrintInfo(w io.Writer, info *VolumeInfo) {
	fmt.Fprintf(w, "file system:   %s\n", info.Magic)
	fmt.Fprintf(w, "uuid:          %s\n", info.UUID)
	fmt.Fprintf(w, "block size:    %d bytes\n", info.BlockSize)
	fmt.Fprintf(w, "total blocks:  %d\n", info.TotalBlocks)
	fmt.Fprintf(w, "data blocks:   %d\n", info.DataBlocks)
	fmt.Fprintf(w, "inodes:        %d (%d free)\n", info.TotalInodes, info.FreeInodes)
	fmt.Fprintf(w, "used space:    %d KB\n", info.UsedBytes/1024)
	fmt.Fprintf(w, "free space:    %d KB\n", info.FreeBytes/1024)
	fmt.Fprintf(w, "total size:    %d KB\n", info.TotalBytes/1024)
	fmt.Fprintf(w, "max file size: %d bytes\n", info.MaxFileSize)
	fmt.Fprintf(w, "max files:     %d\n", info.MaxFiles)
}

func (s *Shell) create(_ string, args []string) error {
	if len(args) != 1 {
		return usageErr
	}
	ino, err := s.Volume.Create(args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(s.Out, "created `%s` (inode %d)\n", args[0], ino)
	return nil
}

func (s *Shell) open(_ string, args []string) error {
	if len(args) != 1 {
		return usageErr
	}
	ino, err := s.Volume.Open(args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(s.Out, "`%s` is inode %d\n", args[0], ino)
	return nil
}

func (s *Shell) read(_ string, args []string) error {
	if len(args) < 2 || len(args) > 3 {
		return usageErr
	}
	ino, err := parseIno(args[0])
	if err != nil {
		return err
	}
	size, err := parseByte("size", args[1])
	if err != nil {
		return err
	}
	var offset Byte
	if len(args) == 3 {
		if offset, err = parseByte("offset", args[2]); err != nil {
			return err
		}
	}

	info, err := s.Volume.Info()
	if err != nil {
		return err
	}
	p := make([]byte, math.Min(size, info.MaxFileSize))
	n, err := s.Volume.Read(ino, offset, p)
	if err != nil {
		return err
	}
	if n == 0 {
		fmt.Fprintln(s.Out, "nothing to read (empty file or end of file)")
		return nil
	}
	fmt.Fprintf(s.Out, "read %d bytes:\n%s\n", n, p[:n])
	return nil
}

func (s *Shell) write(line string, args []string) error {
	if len(args) < 2 {
		return usageErr
	}
	ino, err := parseIno(args[0])
	if err != nil {
		return err
	}
	content := restOfLine(line, 2)
	n, err := s.Volume.Write(ino, 0, []byte(content))
	if err != nil {
		return err
	}
	if n < Byte(len(content)) {
		fmt.Fprintf(
			s.Out,
			"wrote %d of %d bytes (file size limit or volume full)\n",
			n,
			len(content),
		)
		return nil
	}
	fmt.Fprintf(s.Out, "wrote %d bytes\n", n)
	return nil
}

func (s *Shell) delete(_ string, args []string) error {
	if len(args) != 1 {
		return usageErr
	}
	if err := s.Volume.Delete(args[0]); err != nil {
		return err
	}
	fmt.Fprintf(s.Out, "deleted `%s`\n", args[0])
	return nil
}

func (s *Shell) ls(_ string, _ []string) error {
	entries, err := s.Volume.List()
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(s.Out, "no files")
		return nil
	}
	for _, entry := range entries {
		fmt.Fprintf(s.Out, "  %s (inode %d)\n", entry.Name, entry.Ino)
	}
	return nil
}

func (s *Shell) check(_ string, _ []string) error {
	report, err := s.Volume.Check()
	if err != nil {
		return err
	}
	if report.OK() {
		fmt.Fprintf(s.Out, "clean: %d files\n", report.Files)
		return nil
	}
	fmt.Fprintf(s.Out, "%d problems:\n", len(report.Problems))
	for _, problem := range report.Problems {
		fmt.Fprintf(s.Out, "  %s\n", problem)
	}
	return nil
}

func (s *Shell) help(_ string, _ []string) error {
	fmt.Fprintln(s.Out, "commands:")
	for _, name := range commandNames {
		cmd := commands[name]
		fmt.Fprintf(s.Out, "  %-30s %s\n", cmd.usage, cmd.description)
	}
	return nil
}

func (s *Shell) exit(_ string, _ []string) error {
	if err := s.Volume.Unmount(); err != nil {
		fmt.Fprintf(s.Out, "error: %v\n", err)
	}
	return exitErr
}

func parseIno(s string) (Ino, error) {
	ino, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("parsing inode number `%s`: %w", s, InvalidArgumentErr)
	}
	return Ino(ino), nil
}

func parseByte(name, s string) (Byte, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("parsing %s `%s`: %w", name, s, InvalidArgumentErr)
	}
	return Byte(n), nil
}

// restOfLine returns what follows the first `fields` fields of `line`,
// minus the single separator after the last of them.
func restOfLine(line string, fields int) string {
	rest := line
	for i := 0; i < fields; i++ {
		rest = strings.TrimLeft(rest, " \t")
		end := strings.IndexAny(rest, " \t")
		if end < 0 {
			return ""
		}
		rest = rest[end:]
	}
	if rest != "" {
		rest = rest[1:]
	}
	return rest
}
