package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/barnettlynn/emrtd/pkg/emrtd"
)

var verifyAACmd = &cobra.Command{
	Use:   "verify-aa",
	Short: "Establish access control and run only Active Authentication",
	RunE:  runVerifyAA,
}

func init() {
	rootCmd.AddCommand(verifyAACmd)
}

func runVerifyAA(cmd *cobra.Command, args []string) error {
	cfg, err := loadSessionConfig()
	if err != nil {
		printError(err.Error())
		return err
	}

	conn, err := connectReader(*cfg.Runtime.ReaderIndex)
	if err != nil {
		printError(err.Error())
		return err
	}
	defer conn.Close()

	creds, err := resolveCredentials(cfg)
	if err != nil {
		printError(err.Error())
		return err
	}

	preferPACE := true
	if cfg.Runtime.PreferPACE != nil {
		preferPACE = *cfg.Runtime.PreferPACE
	}

	sess, err := emrtd.Open(conn, creds, emrtd.SessionOptions{PreferPACE: preferPACE})
	if err != nil {
		printError(fmt.Sprintf("open session: %v", err))
		return err
	}
	defer sess.Close()
	printSessionInfo(sess.AccessMethod())

	decoded, err := sess.ReadDataGroup(emrtd.DG15)
	if err != nil {
		printError(fmt.Sprintf("read DG15: %v", err))
		return err
	}
	pub, ok := decoded.(emrtd.ActiveAuthPublicKey)
	if !ok {
		return fmt.Errorf("unexpected DG15 decode result %T", decoded)
	}

	verdict, err := sess.DoActiveAuthentication(pub, emrtd.HashSHA256)
	if err != nil {
		printError(fmt.Sprintf("active authentication: %v", err))
		return err
	}
	printAAVerdict(verdict)
	if !verdict.Verified {
		return fmt.Errorf("active authentication failed")
	}
	return nil
}
