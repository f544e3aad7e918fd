// Package fsshell is the interactive line-oriented front end of the
// filesystem: it parses command lines and dispatches them to the
// engine.
package fsshell

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jhavlik/inofs/pkg/fsimage"
	"github.com/jhavlik/inofs/pkg/sizeparse"
)

// ExitMessage is returned by the exit command; the surrounding loop
// stops when it sees it.
const ExitMessage = "exit"

type commandFunc func(args []string) (string, error)

// Shell dispatches command lines to a mounted filesystem.
type Shell struct {
	fs       *fsimage.Filesystem
	commands map[string]commandFunc
}

func New(fs *fsimage.Filesystem) *Shell {
	s := &Shell{fs: fs}
	s.commands = map[string]commandFunc{
		"format": s.cmdFormat,
		"mkdir":  s.cmdMkdir,
		"rmdir":  s.cmdRmdir,
		"ls":     s.cmdLs,
		"cat":    s.cmdCat,
		"cd":     s.cmdCd,
		"pwd":    s.cmdPwd,
		"info":   s.cmdInfo,
		"statfs": s.cmdStatfs,
		"incp":   s.cmdIncp,
		"outcp":  s.cmdOutcp,
		"rm":     s.cmdRm,
		"cp":     s.cmdCp,
		"mv":     s.cmdMv,
		"ln":     s.cmdLn,
		"check":  s.cmdCheck,
		"load":   s.cmdLoad,
		"exit":   s.cmdExit,
	}
	return s
}

// Execute runs one command line and returns the working directory and
// the command's message. Errors are folded into the message as
// "Error: ...": the shell keeps running no matter what a command did.
func (s *Shell) Execute(line string) (cwd, msg string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return s.cwd(), ""
	}
	name, args := fields[0], fields[1:]

	if !s.fs.Formatted() && name != "format" && name != "load" && name != "exit" {
		return "", "Filesystem not formatted"
	}

	fn, ok := s.commands[name]
	if !ok {
		return s.cwd(), "Unknown command"
	}

	msg, err := fn(args)
	if err != nil {
		return s.cwd(), "Error: " + err.Error()
	}
	return s.cwd(), msg
}

// Run reads lines from in until EOF or the exit command, printing a
// "cwd> " prompt before each.
func (s *Shell) Run(in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Fprintf(out, "%s> ", s.cwd())
		if !scanner.Scan() {
			break
		}

		_, msg := s.Execute(scanner.Text())
		if msg == ExitMessage {
			break
		}
		if msg != "" {
			fmt.Fprintln(out, msg)
		}
	}
	return scanner.Err()
}

func (s *Shell) cwd() string {
	if !s.fs.Formatted() {
		return ""
	}
	parts, err := s.fs.GetCurrentPath()
	if err != nil {
		return "?"
	}
	return "/" + strings.Join(parts, "/")
}

func (s *Shell) cmdFormat(args []string) (string, error) {
	if len(args) != 1 {
		return "Usage: format <size>", nil
	}
	size, err := sizeparse.Parse(args[0])
	if err != nil {
		return "", err
	}
	if err := s.fs.Format(uint32(size)); err != nil {
		return "", err
	}
	return "Filesystem formatted", nil
}

func (s *Shell) cmdMkdir(args []string) (string, error) {
	if len(args) != 1 {
		return "Usage: mkdir <dir>", nil
	}
	if err := s.fs.CreateDirectory(args[0]); err != nil {
		return "", err
	}
	return "Directory created", nil
}

func (s *Shell) cmdRmdir(args []string) (string, error) {
	if len(args) != 1 {
		return "Usage: rmdir <dir>", nil
	}
	if err := s.fs.RemoveDirectory(args[0]); err != nil {
		return "", err
	}
	return "Directory removed", nil
}

func (s *Shell) cmdLs(args []string) (string, error) {
	path := "."
	if len(args) > 0 {
		path = args[0]
	}

	entries, err := s.fs.GetSubdirectories(path)
	if err != nil {
		return "", err
	}

	var out strings.Builder
	for _, e := range entries {
		if e.IsDir {
			out.WriteString("[D] ")
		} else {
			out.WriteString("[F] ")
		}
		out.WriteString(e.Name)
		out.WriteString("\n")
	}
	return out.String(), nil
}

func (s *Shell) cmdCat(args []string) (string, error) {
	if len(args) != 1 {
		return "Usage: cat <file>", nil
	}
	data, err := s.fs.ReadFile(args[0])
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (s *Shell) cmdCd(args []string) (string, error) {
	if len(args) != 1 {
		return "Usage: cd <dir>", nil
	}
	return "", s.fs.ChangeActiveDirectory(args[0])
}

func (s *Shell) cmdPwd([]string) (string, error) {
	return s.cwd(), nil
}

func (s *Shell) cmdInfo(args []string) (string, error) {
	if len(args) != 1 {
		return "Usage: info <path>", nil
	}
	return s.fs.GetNodeInfo(args[0])
}

func (s *Shell) cmdStatfs([]string) (string, error) {
	return s.fs.GetFilesystemStats()
}

func (s *Shell) cmdIncp(args []string) (string, error) {
	if len(args) != 2 {
		return "Usage: incp <host_file> <fs_path>", nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return "Could not open host file", nil
	}
	if err := s.fs.WriteFile(args[1], data); err != nil {
		return "", err
	}
	return "Imported file", nil
}

func (s *Shell) cmdOutcp(args []string) (string, error) {
	if len(args) != 2 {
		return "Usage: outcp <fs_file> <host_path>", nil
	}
	data, err := s.fs.ReadFile(args[0])
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(args[1], data, 0644); err != nil {
		return "Could not create host file", nil
	}
	return "Exported file", nil
}

func (s *Shell) cmdRm(args []string) (string, error) {
	if len(args) != 1 {
		return "Usage: rm <file>", nil
	}
	if err := s.fs.RemoveFile(args[0]); err != nil {
		return "", err
	}
	return "File removed", nil
}

func (s *Shell) cmdCp(args []string) (string, error) {
	if len(args) != 2 {
		return "Usage: cp <src> <dst>", nil
	}
	if err := s.fs.CopyFile(args[0], args[1]); err != nil {
		return "", err
	}
	return "Copied successfully", nil
}

func (s *Shell) cmdMv(args []string) (string, error) {
	if len(args) != 2 {
		return "Usage: mv <src> <dst>", nil
	}
	if err := s.fs.MoveFile(args[0], args[1]); err != nil {
		return "", err
	}
	return "Moved successfully", nil
}

func (s *Shell) cmdLn(args []string) (string, error) {
	if len(args) != 2 {
		return "Usage: ln <target> <link>", nil
	}
	if err := s.fs.LinkFile(args[0], args[1]); err != nil {
		return "", err
	}
	return "Link created", nil
}

func (s *Shell) cmdCheck([]string) (string, error) {
	issues, err := s.fs.CheckConsistency()
	if err != nil {
		return "", err
	}
	if len(issues) == 0 {
		return "Filesystem is consistent", nil
	}
	return strings.Join(issues, "\n"), nil
}

// cmdLoad runs a host-side script of shell commands, stopping at the
// first failing command or an exit.
func (s *Shell) cmdLoad(args []string) (string, error) {
	if len(args) != 1 {
		return "Usage: load <script_file>", nil
	}

	f, err := os.Open(args[0])
	if err != nil {
		return "FILE NOT FOUND", nil
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		_, msg := s.Execute(line)
		if msg == ExitMessage {
			break
		}
		if strings.HasPrefix(msg, "Error") || msg == "Unknown command" {
			return msg, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "OK", nil
}

func (s *Shell) cmdExit([]string) (string, error) {
	return ExitMessage, nil
}
