package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/twmb/franz-go/pkg/kgo"

	"esgledger/pkg/platform/audit/relay"
)

func outboxCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outbox",
		Short: "Work with the audit outbox",
	}
	cmd.AddCommand(outboxRelayCmd())
	return cmd
}

func outboxRelayCmd() *cobra.Command {
	var (
		once        bool
		ensureTopic bool
		partitions  int32
		replication int16
	)
	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Publish audit outbox rows to Kafka",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, cfg, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer closeApp(a)
			if err := requireDatabase(a, "outbox relay"); err != nil {
				return err
			}
			if len(cfg.Kafka.Brokers) == 0 {
				return errors.New("outbox relay requires kafka.brokers")
			}

			client, err := kgo.NewClient(
				kgo.SeedBrokers(cfg.Kafka.Brokers...),
				kgo.RequiredAcks(kgo.AllISRAcks()),
			)
			if err != nil {
				return fmt.Errorf("create kafka client: %w", err)
			}
			defer client.Close()

			if ensureTopic {
				if err := relay.EnsureTopic(ctx, client, cfg.Kafka.Topic, partitions, replication); err != nil {
					return err
				}
			}

			r := relay.New(a.DB, client, cfg.Kafka.Topic,
				relay.WithBatchSize(cfg.Kafka.RelayBatch),
				relay.WithInterval(cfg.Kafka.RelayInterval),
				relay.WithLogger(cliLogger),
			)
			if once {
				n, err := r.RelayOnce(ctx)
				if err != nil {
					return err
				}
				cliLogger.Info("outbox relayed", "published", n, "topic", cfg.Kafka.Topic)
				return nil
			}
			cliLogger.Info("outbox relay started", "topic", cfg.Kafka.Topic, "brokers", cfg.Kafka.Brokers)
			if err := r.Run(ctx); err != nil && !errors.Is(err, ctx.Err()) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "publish a single batch and exit")
	cmd.Flags().BoolVar(&ensureTopic, "ensure-topic", false, "create the audit topic if missing")
	cmd.Flags().Int32Var(&partitions, "partitions", 3, "partitions when creating the topic")
	cmd.Flags().Int16Var(&replication, "replication", 1, "replication factor when creating the topic")
	return cmd
}
