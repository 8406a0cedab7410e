package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/barnettlynn/emrtd/cmd/emrtdread/internal/config"
	"github.com/barnettlynn/emrtd/pkg/emrtd"
)

var readCmd = &cobra.Command{
	Use:   "read",
	Short: "Establish access control and read the document's LDS files",
	RunE:  runRead,
}

func init() {
	rootCmd.AddCommand(readCmd)
}

func runRead(cmd *cobra.Command, args []string) error {
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

	com, err := sess.ReadCOM()
	if err != nil {
		printWarning(fmt.Sprintf("read EF.COM: %v", err))
	} else {
		printCOM(com)
	}

	dgs := com.PresentDataGroups()
	if len(dgs) == 0 {
		dgs = []emrtd.DataGroup{emrtd.DG1}
	}

	var aaKey *emrtd.ActiveAuthPublicKey
	for _, dg := range dgs {
		decoded, err := sess.ReadDataGroup(dg)
		if err != nil {
			printWarning(fmt.Sprintf("read DG%d: %v", dg, err))
			continue
		}
		switch v := decoded.(type) {
		case emrtd.MRZ:
			printMRZ(v)
		case emrtd.ActiveAuthPublicKey:
			aaKey = &v
		}
	}

	if aaKey != nil {
		verdict, err := sess.DoActiveAuthentication(*aaKey, emrtd.HashSHA256)
		if err != nil {
			printWarning(fmt.Sprintf("active authentication: %v", err))
		} else {
			printAAVerdict(verdict)
		}
	}

	printSuccess("read complete")
	return nil
}

// resolveCredentials builds an AccessCredentials from the session profile:
// MRZ fields and CAN come from the config, the PIN from pin_hex_file when
// set, and the user is prompted for a PIN only when no PIN, CAN or
// document number is available.
func resolveCredentials(cfg *config.Config) (emrtd.AccessCredentials, error) {
	creds := emrtd.AccessCredentials{
		MRZ: emrtd.MRZInfo{
			DocumentNumber: cfg.Credential.DocumentNumber,
			DateOfBirth:    cfg.Credential.DateOfBirth,
			DateOfExpiry:   cfg.Credential.DateOfExpiry,
		},
		CAN: cfg.Credential.CAN,
	}

	if cfg.Credential.PINFile != "" {
		b, err := os.ReadFile(cfg.Credential.PINFile)
		if err != nil {
			return emrtd.AccessCredentials{}, fmt.Errorf("read pin file: %w", err)
		}
		creds.PIN = strings.TrimSpace(string(b))
	}

	if creds.PIN == "" && creds.CAN == "" && creds.MRZ.DocumentNumber == "" {
		pin, err := promptSecret("PIN")
		if err != nil {
			return emrtd.AccessCredentials{}, err
		}
		creds.PIN = pin
	}
	return creds, nil
}
