//go:build integration

package relay_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	id "esgledger/pkg/domain"
	"esgledger/pkg/platform/audit"
	"esgledger/pkg/platform/audit/relay"
	auditpostgres "esgledger/pkg/platform/audit/store/postgres"
	"esgledger/pkg/testutil/containers"
)

type RelaySuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	kafka    *containers.KafkaContainer
	client   *kgo.Client
	topic    string
}

func TestRelaySuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RelaySuite))
}

func (s *RelaySuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.kafka = mgr.GetKafka(s.T())

	client, err := kgo.NewClient(kgo.SeedBrokers(s.kafka.Broker))
	s.Require().NoError(err)
	s.client = client
}

func (s *RelaySuite) TearDownSuite() {
	if s.client != nil {
		s.client.Close()
	}
}

func (s *RelaySuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "outbox", "audit_events"))
	s.topic = "esgledger.audit." + id.NewOperationID().String()
}

func (s *RelaySuite) TestRelayPublishesAndMarksRows() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	s.Require().NoError(relay.EnsureTopic(ctx, s.client, s.topic, 1, 1))
	s.Require().NoError(relay.EnsureTopic(ctx, s.client, s.topic, 1, 1), "creating an existing topic is not an error")

	operationID := id.NewOperationID().String()
	store := auditpostgres.New(s.postgres.DB)
	s.Require().NoError(store.Append(ctx, audit.ComplianceEvent{
		Action:      audit.EventRolloverCompleted,
		ActorID:     "admin-1",
		EntityType:  "reporting_period",
		EntityID:    id.NewPeriodID().String(),
		OperationID: operationID,
		Details:     map[string]string{"sections_copied": "3"},
	}.ToEvent()))

	r := relay.New(s.postgres.DB, s.client, s.topic, relay.WithBatchSize(10))
	n, err := r.RelayOnce(ctx)
	s.Require().NoError(err)
	s.Equal(1, n)

	n, err = r.RelayOnce(ctx)
	s.Require().NoError(err)
	s.Equal(0, n, "published rows are not relayed twice")

	var pending int
	s.Require().NoError(s.postgres.DB.QueryRowContext(ctx,
		`SELECT count(*) FROM outbox WHERE published_at IS NULL`).Scan(&pending))
	s.Zero(pending)

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(s.kafka.Broker),
		kgo.ConsumeTopics(s.topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	s.Require().NoError(err)
	defer consumer.Close()

	fetches := consumer.PollFetches(ctx)
	s.Require().NoError(fetches.Err())
	records := fetches.Records()
	s.Require().Len(records, 1)
	s.Equal(operationID, string(records[0].Key))

	var payload map[string]any
	s.Require().NoError(json.Unmarshal(records[0].Value, &payload))
	s.Equal("rollover_completed", payload["action"])
	s.Equal(operationID, payload["operation_id"])
}
