package targets

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/cloudwatchlogs"
	"github.com/jdwit/s3-jpeg-transcoder/internal/types"
	"github.com/rs/zerolog/log"
)

const (
	// maxBatchSize The maximum batch size of a PutLogEvents request to CloudWatch is 1MB (1_048_576 bytes)
	maxBatchSize = 1_048_576
	// maxBatchCount The maximum number of events in a PutLogEvents request to CloudWatch is 10_000
	maxBatchCount = 10_000
	// eventOverhead is added to every message when CloudWatch computes the request size
	eventOverhead = 26
)

type CloudWatchLogsAPI interface {
	PutLogEvents(*cloudwatchlogs.PutLogEventsInput) (*cloudwatchlogs.PutLogEventsOutput, error)
	CreateLogGroup(*cloudwatchlogs.CreateLogGroupInput) (*cloudwatchlogs.CreateLogGroupOutput, error)
	CreateLogStream(*cloudwatchlogs.CreateLogStreamInput) (*cloudwatchlogs.CreateLogStreamOutput, error)
	DescribeLogGroups(*cloudwatchlogs.DescribeLogGroupsInput) (*cloudwatchlogs.DescribeLogGroupsOutput, error)
	DescribeLogStreams(*cloudwatchlogs.DescribeLogStreamsInput) (*cloudwatchlogs.DescribeLogStreamsOutput, error)
}

type LogConfig struct {
	LogGroupName  string
	LogStreamName string
}

type CloudWatchTarget struct {
	cwClient   CloudWatchLogsAPI
	logConfig  LogConfig
	flushEvery time.Duration
}

func (c *CloudWatchTarget) SendEntries(entryChan <-chan types.AuditEntry) {
	var events []*cloudwatchlogs.InputLogEvent
	var currentBatchSize int

	ticker := time.NewTicker(c.flushEvery)
	defer ticker.Stop()

	flush := func() {
		if len(events) > 0 {
			c.sendBatch(events)
			events = nil
			currentBatchSize = 0
		}
	}

	for {
		select {
		case entry, ok := <-entryChan:
			if !ok {
				flush()
				return
			}

			jsonData, err := json.Marshal(entry.Data)
			if err != nil {
				log.Error().Err(err).Msg("error marshaling audit entry to JSON")
				continue
			}
			eventSize := len(jsonData) + eventOverhead

			if len(events) > 0 && (currentBatchSize+eventSize > maxBatchSize || len(events) >= maxBatchCount) {
				flush()
			}

			events = append(events, &cloudwatchlogs.InputLogEvent{
				Message:   aws.String(string(jsonData)),
				Timestamp: aws.Int64(entry.Timestamp.UnixMilli()),
			})
			currentBatchSize += eventSize

		case <-ticker.C:
			flush()
		}
	}
}

func NewCloudWatchTarget(sess *session.Session, logConfig LogConfig) (Target, error) {
	if logConfig.LogGroupName == "" {
		return nil, fmt.Errorf("environment variable CLOUDWATCH_LOG_GROUP is required")
	}
	if logConfig.LogStreamName == "" {
		return nil, fmt.Errorf("environment variable CLOUDWATCH_LOG_STREAM is required")
	}

	return newCloudWatchTarget(cloudwatchlogs.New(sess), logConfig)
}

func newCloudWatchTarget(client CloudWatchLogsAPI, logConfig LogConfig) (*CloudWatchTarget, error) {
	if err := ensureLogGroupAndLogStreamExists(client, logConfig); err != nil {
		return nil, fmt.Errorf("error creating log group and stream: %w", err)
	}

	return &CloudWatchTarget{
		cwClient:   client,
		logConfig:  logConfig,
		flushEvery: 5 * time.Second,
	}, nil
}

func ensureLogGroupAndLogStreamExists(client CloudWatchLogsAPI, logConfig LogConfig) error {
	if err := ensureLogGroupExists(client, logConfig.LogGroupName); err != nil {
		return err
	}
	return ensureLogStreamExists(client, logConfig.LogGroupName, logConfig.LogStreamName)
}

func ensureLogGroupExists(client CloudWatchLogsAPI, name string) error {
	resp, err := client.DescribeLogGroups(&cloudwatchlogs.DescribeLogGroupsInput{
		LogGroupNamePrefix: aws.String(name),
	})
	if err != nil {
		return err
	}
	for _, logGroup := range resp.LogGroups {
		if aws.StringValue(logGroup.LogGroupName) == name {
			return nil
		}
	}
	log.Info().Str("log_group", name).Msg("creating log group")
	_, err = client.CreateLogGroup(&cloudwatchlogs.CreateLogGroupInput{
		LogGroupName: aws.String(name),
	})

	return err
}

func ensureLogStreamExists(client CloudWatchLogsAPI, logGroupName, logStreamName string) error {
	resp, err := client.DescribeLogStreams(&cloudwatchlogs.DescribeLogStreamsInput{
		LogGroupName:        aws.String(logGroupName),
		LogStreamNamePrefix: aws.String(logStreamName),
	})
	if err != nil {
		return err
	}
	for _, logStream := range resp.LogStreams {
		if aws.StringValue(logStream.LogStreamName) == logStreamName {
			return nil
		}
	}
	log.Info().Str("log_group", logGroupName).Str("log_stream", logStreamName).Msg("creating log stream")
	_, err = client.CreateLogStream(&cloudwatchlogs.CreateLogStreamInput{
		LogGroupName:  aws.String(logGroupName),
		LogStreamName: aws.String(logStreamName),
	})

	return err
}

func (c *CloudWatchTarget) sendBatch(events []*cloudwatchlogs.InputLogEvent) {
	// Log events in a single PutLogEvents request must be in chronological order
	sort.Slice(events, func(i, j int) bool {
		return aws.Int64Value(events[i].Timestamp) < aws.Int64Value(events[j].Timestamp)
	})
	_, err := c.cwClient.PutLogEvents(&cloudwatchlogs.PutLogEventsInput{
		LogEvents:     events,
		LogGroupName:  aws.String(c.logConfig.LogGroupName),
		LogStreamName: aws.String(c.logConfig.LogStreamName),
	})
	if err != nil {
		log.Error().Err(err).Int("events", len(events)).Msg("error sending audit events to CloudWatch")
	}
}
