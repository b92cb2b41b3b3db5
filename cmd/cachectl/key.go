package main

import (
	"fmt"

	"github.com/IvanBrykalov/replcache/keycodec"
	"github.com/spf13/cobra"
)

func newKeyCmd() *cobra.Command {
	var encoding string
	cmd := &cobra.Command{
		Use:   "key <key>...",
		Short: "Print the backend identifier of each key",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			enc, err := keycodec.Parse(encoding)
			if err != nil {
				return err
			}
			for _, k := range args {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", k, enc.EncodeString(k))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&encoding, "encoding", keycodec.Default.String(),
		"key encoding: hashcode | sha1 | base64 | string | xxhash")
	return cmd
}
