package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/IvanBrykalov/replcache/config"
	"github.com/IvanBrykalov/replcache/replicated"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

func newProbeCmd() *cobra.Command {
	var (
		watch time.Duration
		count int
	)
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Run discovery against the configured endpoints and print connectivity",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if v, _ := cmd.Flags().GetString("kind"); v == "" {
				_ = cmd.Flags().Set("kind", config.KindReplicated)
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			log, err := newLogger(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			c := replicated.New[string, string](cfg.Master, cfg.ReplicaList(), replicated.Options{
				Encoding:       cfg.Encoding(),
				Password:       cfg.Password,
				DB:             cfg.DB,
				ConnectTimeout: cfg.ConnectTimeout.Std(),
				OpTimeout:      cfg.OpTimeout.Std(),
				Logger:         log,
			})
			defer func() { _ = c.Close() }()

			out := cmd.OutOrStdout()
			printStatus(out, c.Status())
			for i := 1; watch > 0 && (count <= 0 || i < count); i++ {
				select {
				case <-cmd.Context().Done():
					return nil
				case <-time.After(watch):
				}
				if err := c.Discover(cmd.Context()); err != nil && !isUnavailable(err) {
					return err
				}
				printStatus(out, c.Status())
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&watch, "watch", 0, "re-run discovery at this interval (0 = once)")
	cmd.Flags().IntVar(&count, "count", 0, "stop after this many probes when watching (0 = forever)")
	return cmd
}

func printStatus(w io.Writer, st replicated.Connectivity) {
	fmt.Fprintf(w, "%s state=%s master=%t(%s) replica=%t(%s) standalone=%t\n",
		time.Now().Format(time.RFC3339), st.State,
		st.MasterConnected, st.Master, st.ReplicaConnected, st.Replica, st.Standalone)
}

func isUnavailable(err error) bool {
	return errors.Is(err, replicated.ErrUnavailable) || errors.Is(err, context.Canceled)
}
