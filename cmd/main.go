package main

import (
	"fmt"
	"os"

	"github.com/jhavlik/inofs/pkg/fsimage"
	"github.com/jhavlik/inofs/pkg/fsshell"
	"github.com/jhavlik/inofs/pkg/sizeparse"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	verbose        bool
	imageFileName  string
	outputFileName string

	rootCmd = &cobra.Command{
		Use:   "inofs",
		Short: "Tool for creating and modifying inode filesystem images",
	}

	shellCmd = &cobra.Command{
		Use:   "shell",
		Short: "Interactive shell over the image",
		Run:   Shell,
	}

	formatCmd = &cobra.Command{
		Use:   "format <size>",
		Short: "Format the image (e.g. 10MB)",
		Run:   Format,
	}

	mkdirCmd = &cobra.Command{
		Use:   "mkdir <dir>...",
		Short: "Create directories",
		Run:   Mkdir,
	}

	rmdirCmd = &cobra.Command{
		Use:   "rmdir <dir>...",
		Short: "Remove empty directories",
		Run:   Rmdir,
	}

	lsCmd = &cobra.Command{
		Use:   "ls [path]",
		Short: "List directory contents",
		Run:   Ls,
	}

	catCmd = &cobra.Command{
		Use:   "cat <file>...",
		Short: "Print file contents to stdout",
		Run:   Cat,
	}

	putCmd = &cobra.Command{
		Use:   "put <host_file> <fs_path>",
		Short: "Put file from local disk into the image",
		Run:   Put,
	}

	getCmd = &cobra.Command{
		Use:   "get <fs_file>",
		Short: "Get file from the image to local disk",
		Run:   Get,
	}

	rmCmd = &cobra.Command{
		Use:   "rm <file>...",
		Short: "Remove files",
		Run:   Rm,
	}

	cpCmd = &cobra.Command{
		Use:   "cp <src> <dst>",
		Short: "Copy a file inside the image",
		Run:   Cp,
	}

	mvCmd = &cobra.Command{
		Use:   "mv <src> <dst>",
		Short: "Move a file inside the image",
		Run:   Mv,
	}

	lnCmd = &cobra.Command{
		Use:   "ln <target> <link>",
		Short: "Create a hard link",
		Run:   Ln,
	}

	infoCmd = &cobra.Command{
		Use:   "info <path>",
		Short: "Show inode info for a path",
		Run:   Info,
	}

	statfsCmd = &cobra.Command{
		Use:   "statfs",
		Short: "Show filesystem statistics",
		Run:   Statfs,
	}

	runCmd = &cobra.Command{
		Use:   "run <script_file>",
		Short: "Run a script of shell commands",
		Run:   RunScript,
	}
)

func FatalErrCheck(err error) {
	if err != nil {
		fmt.Println("Fatal error:", err)
		os.Exit(-1)
	}
}

func openImage() *fsimage.Filesystem {
	fs, err := fsimage.Open(imageFileName)
	FatalErrCheck(err)
	return fs
}

func requireFormatted(fs *fsimage.Filesystem) {
	if !fs.Formatted() {
		fmt.Println("Filesystem not formatted")
		fs.Close()
		os.Exit(-1)
	}
}

func Shell(cmd *cobra.Command, args []string) {
	fs := openImage()
	defer fs.Close()

	sh := fsshell.New(fs)
	FatalErrCheck(sh.Run(os.Stdin, os.Stdout))
}

func Format(cmd *cobra.Command, args []string) {
	if len(args) != 1 {
		fmt.Println("Argument required: <size>")
		os.Exit(-1)
	}

	size, err := sizeparse.Parse(args[0])
	FatalErrCheck(err)

	fs := openImage()
	defer fs.Close()

	FatalErrCheck(fs.Format(uint32(size)))
	fmt.Println("Filesystem formatted")
}

func Mkdir(cmd *cobra.Command, args []string) {
	fs := openImage()
	defer fs.Close()
	requireFormatted(fs)

	for _, arg := range args {
		FatalErrCheck(fs.CreateDirectory(arg))
	}
}

func Rmdir(cmd *cobra.Command, args []string) {
	fs := openImage()
	defer fs.Close()
	requireFormatted(fs)

	for _, arg := range args {
		FatalErrCheck(fs.RemoveDirectory(arg))
	}
}

func Ls(cmd *cobra.Command, args []string) {
	fs := openImage()
	defer fs.Close()
	requireFormatted(fs)

	path := "/"
	if len(args) != 0 {
		path = args[0]
	}

	entries, err := fs.GetSubdirectories(path)
	FatalErrCheck(err)

	for _, e := range entries {
		if e.IsDir {
			fmt.Printf("[D] %s\n", e.Name)
		} else {
			fmt.Printf("[F] %s\n", e.Name)
		}
	}
}

func Cat(cmd *cobra.Command, args []string) {
	fs := openImage()
	defer fs.Close()
	requireFormatted(fs)

	for _, arg := range args {
		data, err := fs.ReadFile(arg)
		FatalErrCheck(err)
		os.Stdout.Write(data)
	}
}

func Put(cmd *cobra.Command, args []string) {
	if len(args) != 2 {
		fmt.Println("Arguments required: <host_file> <fs_path>")
		os.Exit(-1)
	}

	data, err := os.ReadFile(args[0])
	FatalErrCheck(err)

	fs := openImage()
	defer fs.Close()
	requireFormatted(fs)

	FatalErrCheck(fs.WriteFile(args[1], data))
	fmt.Printf("Stored %d bytes to %s\n", len(data), args[1])
}

func Get(cmd *cobra.Command, args []string) {
	if len(args) != 1 {
		fmt.Println("Argument required: <fs_file>")
		os.Exit(-1)
	}

	fs := openImage()
	defer fs.Close()
	requireFormatted(fs)

	data, err := fs.ReadFile(args[0])
	FatalErrCheck(err)

	dest := outputFileName
	if dest == "" {
		dest = args[0]
		for i := len(dest) - 1; i >= 0; i-- {
			if dest[i] == '/' {
				dest = dest[i+1:]
				break
			}
		}
	}

	if dest == "-" {
		os.Stdout.Write(data)
		return
	}
	FatalErrCheck(os.WriteFile(dest, data, 0644))
	fmt.Printf("Wrote %d bytes to %s\n", len(data), dest)
}

func Rm(cmd *cobra.Command, args []string) {
	fs := openImage()
	defer fs.Close()
	requireFormatted(fs)

	for _, arg := range args {
		FatalErrCheck(fs.RemoveFile(arg))
	}
}

func Cp(cmd *cobra.Command, args []string) {
	if len(args) != 2 {
		fmt.Println("Arguments required: <src> <dst>")
		os.Exit(-1)
	}

	fs := openImage()
	defer fs.Close()
	requireFormatted(fs)

	FatalErrCheck(fs.CopyFile(args[0], args[1]))
}

func Mv(cmd *cobra.Command, args []string) {
	if len(args) != 2 {
		fmt.Println("Arguments required: <src> <dst>")
		os.Exit(-1)
	}

	fs := openImage()
	defer fs.Close()
	requireFormatted(fs)

	FatalErrCheck(fs.MoveFile(args[0], args[1]))
}

func Ln(cmd *cobra.Command, args []string) {
	if len(args) != 2 {
		fmt.Println("Arguments required: <target> <link>")
		os.Exit(-1)
	}

	fs := openImage()
	defer fs.Close()
	requireFormatted(fs)

	FatalErrCheck(fs.LinkFile(args[0], args[1]))
}

func Info(cmd *cobra.Command, args []string) {
	if len(args) != 1 {
		fmt.Println("Argument required: <path>")
		os.Exit(-1)
	}

	fs := openImage()
	defer fs.Close()
	requireFormatted(fs)

	info, err := fs.GetNodeInfo(args[0])
	FatalErrCheck(err)
	fmt.Println(info)
}

func Statfs(cmd *cobra.Command, args []string) {
	fs := openImage()
	defer fs.Close()
	requireFormatted(fs)

	stats, err := fs.GetFilesystemStats()
	FatalErrCheck(err)
	fmt.Print(stats)
}

func RunScript(cmd *cobra.Command, args []string) {
	if len(args) != 1 {
		fmt.Println("Argument required: <script_file>")
		os.Exit(-1)
	}

	fs := openImage()
	defer fs.Close()

	sh := fsshell.New(fs)
	_, msg := sh.Execute("load " + args[0])
	fmt.Println(msg)
}

func main() {
	cobra.OnInitialize(func() {
		if verbose {
			logrus.SetLevel(logrus.DebugLevel)
		} else {
			logrus.SetLevel(logrus.WarnLevel)
		}
	})

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&imageFileName, "filename", "f", "image.fs", "Filesystem image file to use")

	rootCmd.AddCommand(shellCmd)
	rootCmd.AddCommand(formatCmd)
	rootCmd.AddCommand(mkdirCmd)
	rootCmd.AddCommand(rmdirCmd)
	rootCmd.AddCommand(lsCmd)
	rootCmd.AddCommand(catCmd)
	rootCmd.AddCommand(putCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(cpCmd)
	rootCmd.AddCommand(mvCmd)
	rootCmd.AddCommand(lnCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(statfsCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(fsckCmd)

	getCmd.PersistentFlags().StringVarP(&outputFileName, "output", "o", "", "output filename")

	err := rootCmd.Execute()
	FatalErrCheck(err)
}
