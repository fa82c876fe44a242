package aws

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	cwltypes "github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---- SQS ----

type fakeSQS struct {
	messages []sqstypes.Message
	deleted  []string
	sent     []string
	recvErr  error
}

func (f *fakeSQS) ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, _ ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	if f.recvErr != nil {
		return nil, f.recvErr
	}
	out := &sqs.ReceiveMessageOutput{Messages: f.messages}
	f.messages = nil
	return out, nil
}

func (f *fakeSQS) DeleteMessage(ctx context.Context, in *sqs.DeleteMessageInput, _ ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	f.deleted = append(f.deleted, *in.ReceiptHandle)
	return &sqs.DeleteMessageOutput{}, nil
}

func (f *fakeSQS) SendMessage(ctx context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.sent = append(f.sent, *in.MessageBody)
	return &sqs.SendMessageOutput{}, nil
}

func TestPollOnce_AcksOnlyHandledMessages(t *testing.T) {
	client := &fakeSQS{messages: []sqstypes.Message{
		{Body: sdkaws.String("ok"), ReceiptHandle: sdkaws.String("r1")},
		{Body: sdkaws.String("retry"), ReceiptHandle: sdkaws.String("r2")},
		{ReceiptHandle: sdkaws.String("r3")},
	}}
	consumer := newSQSConsumer(client, "http://localhost/queue/checkout")

	var seen []string
	acked, err := consumer.PollOnce(context.Background(), func(ctx context.Context, body string) error {
		seen = append(seen, body)
		if body == "retry" {
			return errors.New("try later")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, acked)
	assert.Equal(t, []string{"ok", "retry"}, seen)
	assert.Equal(t, []string{"r1"}, client.deleted)
}

func TestPollOnce_ReceiveError(t *testing.T) {
	consumer := newSQSConsumer(&fakeSQS{recvErr: errors.New("no route")}, "q")

	_, err := consumer.PollOnce(context.Background(), func(context.Context, string) error { return nil })
	assert.ErrorContains(t, err, "no route")
}

func TestStartPolling_StopsOnCancel(t *testing.T) {
	consumer := newSQSConsumer(&fakeSQS{recvErr: errors.New("down")}, "q")
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := consumer.StartPolling(ctx, func(context.Context, string) error { return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSendMessage(t *testing.T) {
	client := &fakeSQS{}
	consumer := newSQSConsumer(client, "q")

	require.NoError(t, consumer.SendMessage(context.Background(), `{"buyer_email":"ana@example.com"}`))
	assert.Equal(t, []string{`{"buyer_email":"ana@example.com"}`}, client.sent)
}

// ---- SNS ----

type fakeSNS struct {
	inputs []*sns.PublishInput
	err    error
}

func (f *fakeSNS) Publish(ctx context.Context, in *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.inputs = append(f.inputs, in)
	return &sns.PublishOutput{}, f.err
}

func TestSNSPublish_TagsEventType(t *testing.T) {
	api := &fakeSNS{}
	client := (&SNSClient{client: api}).WithEventType("order.created")

	require.NoError(t, client.Publish(context.Background(), "arn:aws:sns:us-east-1:000000000000:orders", []byte(`{}`)))
	require.Len(t, api.inputs, 1)
	attr := api.inputs[0].MessageAttributes["event_type"]
	assert.Equal(t, "order.created", *attr.StringValue)
	assert.Equal(t, "{}", *api.inputs[0].Message)
}

func TestSNSPublish_Errors(t *testing.T) {
	api := &fakeSNS{err: errors.New("throttled")}
	client := &SNSClient{client: api}

	assert.Error(t, client.Publish(context.Background(), "", []byte(`{}`)))
	assert.Empty(t, api.inputs)

	err := client.Publish(context.Background(), "arn:topic", []byte(`{}`))
	assert.ErrorContains(t, err, "throttled")
	assert.Nil(t, api.inputs[0].MessageAttributes)
}

// ---- S3 ----

type fakeS3 struct {
	key  string
	body string
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.key = *in.Key
	b, _ := io.ReadAll(in.Body)
	f.body = string(b)
	return &s3.PutObjectOutput{}, nil
}

func TestPutJSON(t *testing.T) {
	api := &fakeS3{}
	w := &S3ObjectWriter{client: api, bucket: "receipts"}

	require.NoError(t, w.PutJSON(context.Background(), "receipts/2026/10/19/x.json", []byte(`{"a":1}`)))
	assert.Equal(t, "receipts/2026/10/19/x.json", api.key)
	assert.Equal(t, `{"a":1}`, api.body)

	empty := &S3ObjectWriter{client: api}
	assert.Error(t, empty.PutJSON(context.Background(), "k", nil))
}

// ---- Secrets Manager ----

type fakeSecrets struct {
	values map[string]string
	calls  int
}

func (f *fakeSecrets) GetSecretValue(ctx context.Context, in *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	f.calls++
	v, ok := f.values[*in.SecretId]
	if !ok {
		return nil, errors.New("ResourceNotFoundException")
	}
	return &secretsmanager.GetSecretValueOutput{SecretString: &v}, nil
}

func TestGetSecret_Caches(t *testing.T) {
	api := &fakeSecrets{values: map[string]string{"marketplace/JWT_SECRET": "s3cret"}}
	s := &SecretsClient{client: api, cache: map[string]string{}}

	for i := 0; i < 3; i++ {
		v, err := s.GetSecret(context.Background(), "marketplace/JWT_SECRET")
		require.NoError(t, err)
		assert.Equal(t, "s3cret", v)
	}
	assert.Equal(t, 1, api.calls)

	_, err := s.GetSecret(context.Background(), "missing")
	assert.Error(t, err)
}

func TestGetSecretMap(t *testing.T) {
	api := &fakeSecrets{values: map[string]string{
		"db":  `{"POSTGRES_USER":"app","POSTGRES_PASSWORD":"pw"}`,
		"bad": `not json`,
	}}
	s := &SecretsClient{client: api, cache: map[string]string{}}

	m, err := s.GetSecretMap(context.Background(), "db")
	require.NoError(t, err)
	assert.Equal(t, "app", m["POSTGRES_USER"])

	_, err = s.GetSecretMap(context.Background(), "bad")
	assert.Error(t, err)
}

// ---- CloudWatch metrics ----

type fakeCloudWatch struct {
	inputs []*cloudwatch.PutMetricDataInput
}

func (f *fakeCloudWatch) PutMetricData(ctx context.Context, in *cloudwatch.PutMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	f.inputs = append(f.inputs, in)
	return &cloudwatch.PutMetricDataOutput{}, nil
}

func TestMetricsClient_DisabledIsNoop(t *testing.T) {
	api := &fakeCloudWatch{}
	m := &MetricsClient{client: api, namespace: "BeaconMarket"}

	require.NoError(t, m.RecordCount(context.Background(), MetricCheckoutsSucceeded, nil))
	assert.Empty(t, api.inputs)
	assert.False(t, m.IsEnabled())

	var nilClient *MetricsClient
	assert.NoError(t, nilClient.RecordCount(context.Background(), MetricCheckoutsFailed, nil))
	assert.False(t, nilClient.IsEnabled())
}

func TestMetricsClient_RecordLatency(t *testing.T) {
	api := &fakeCloudWatch{}
	m := &MetricsClient{client: api, namespace: "BeaconMarket", enabled: true}

	require.NoError(t, m.RecordLatency(context.Background(), MetricCheckoutLatency, 1500*time.Millisecond, map[string]string{"service": "checkout-service"}))
	require.Len(t, api.inputs, 1)
	datum := api.inputs[0].MetricData[0]
	assert.Equal(t, MetricCheckoutLatency, *datum.MetricName)
	assert.Equal(t, float64(1500), *datum.Value)
	assert.Equal(t, "service", *datum.Dimensions[0].Name)
}

// ---- CloudWatch Logs ----

type fakeLogs struct {
	events  [][]cwltypes.InputLogEvent
	tokens  []*string
	created bool
}

func (f *fakeLogs) CreateLogGroup(ctx context.Context, in *cloudwatchlogs.CreateLogGroupInput, _ ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogGroupOutput, error) {
	if f.created {
		return nil, &cwltypes.ResourceAlreadyExistsException{}
	}
	f.created = true
	return &cloudwatchlogs.CreateLogGroupOutput{}, nil
}

func (f *fakeLogs) PutRetentionPolicy(ctx context.Context, in *cloudwatchlogs.PutRetentionPolicyInput, _ ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutRetentionPolicyOutput, error) {
	return &cloudwatchlogs.PutRetentionPolicyOutput{}, nil
}

func (f *fakeLogs) CreateLogStream(ctx context.Context, in *cloudwatchlogs.CreateLogStreamInput, _ ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogStreamOutput, error) {
	return &cloudwatchlogs.CreateLogStreamOutput{}, nil
}

func (f *fakeLogs) PutLogEvents(ctx context.Context, in *cloudwatchlogs.PutLogEventsInput, _ ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutLogEventsOutput, error) {
	f.events = append(f.events, in.LogEvents)
	f.tokens = append(f.tokens, in.SequenceToken)
	return &cloudwatchlogs.PutLogEventsOutput{NextSequenceToken: sdkaws.String("next")}, nil
}

func TestCloudWatchLogs_EnsureLogGroupIsIdempotent(t *testing.T) {
	api := &fakeLogs{}
	c := &CloudWatchLogsClient{client: api, logGroupName: "/beacon-market/services", enabled: true}

	require.NoError(t, c.ensureLogGroup(context.Background()))
	require.NoError(t, c.ensureLogGroup(context.Background()))
}

func TestCloudWatchLogs_WriteCarriesSequenceToken(t *testing.T) {
	api := &fakeLogs{}
	c := &CloudWatchLogsClient{client: api, logGroupName: "g", logStreamName: "s", enabled: true}

	n, err := c.Write([]byte("first"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	_, _ = c.Write([]byte("second"))

	require.Len(t, api.events, 2)
	assert.Equal(t, "second", *api.events[1][0].Message)
	assert.Nil(t, api.tokens[0])
	assert.Equal(t, "next", *api.tokens[1])
}

func TestCloudWatchLogs_DisabledDiscards(t *testing.T) {
	api := &fakeLogs{}
	c := &CloudWatchLogsClient{client: api}

	n, err := c.Write([]byte("dropped"))
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	assert.Empty(t, api.events)
	assert.False(t, c.IsEnabled())
}

// ---- config ----

func TestCustomEndpoint_FirstWins(t *testing.T) {
	for _, k := range endpointEnvVars {
		t.Setenv(k, "")
	}
	assert.Empty(t, customEndpoint())

	t.Setenv("AWS_S3_ENDPOINT", "http://s3.local")
	t.Setenv("AWS_SQS_ENDPOINT", "http://sqs.local")
	assert.Equal(t, "http://sqs.local", customEndpoint())
}
