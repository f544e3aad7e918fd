package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

/* The consistency check is complicated enough that it gets a file all
   to itself */

var fsckCmd = &cobra.Command{
	Use:   "fsck",
	Short: "Check image consistency",
	Run:   Fsck,
}

func Fsck(cmd *cobra.Command, args []string) {
	fs := openImage()
	defer fs.Close()
	requireFormatted(fs)

	issues, err := fs.CheckConsistency()
	FatalErrCheck(err)

	if len(issues) == 0 {
		fmt.Println("Disk check completed successfully, no errors found.")
		return
	}
	for _, issue := range issues {
		fmt.Println(issue)
	}
	fmt.Printf("Disk check completed with %d errors.\n", len(issues))
	os.Exit(1)
}
