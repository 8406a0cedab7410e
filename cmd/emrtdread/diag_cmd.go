package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var diagCmd = &cobra.Command{
	Use:   "diag",
	Short: "List available PC/SC readers",
	RunE:  runDiag,
}

func init() {
	rootCmd.AddCommand(diagCmd)
}

func runDiag(cmd *cobra.Command, args []string) error {
	readers, err := listReaderNames()
	if err != nil {
		printError(err.Error())
		return err
	}
	printReaderList(readers)
	if len(readers) == 0 {
		return fmt.Errorf("no readers found")
	}
	return nil
}
