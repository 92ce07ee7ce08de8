package main

import (
	"context"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/jdwit/s3-jpeg-transcoder/internal/config"
	"github.com/jdwit/s3-jpeg-transcoder/internal/processor"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func createSession(cfg config.Config) (*session.Session, error) {
	if cfg.AWSEndpoint != "" {
		// localstack
		return session.NewSession(&aws.Config{
			Endpoint:         aws.String(cfg.AWSEndpoint),
			DisableSSL:       aws.Bool(true),
			S3ForcePathStyle: aws.Bool(true),
		})
	}

	return session.NewSession()
}

func setupLogging(level string, console bool) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	if console {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

func main() {
	inLambda := os.Getenv("AWS_LAMBDA_RUNTIME_API") != ""

	if !inLambda {
		if err := config.LoadDotEnv(); err != nil {
			log.Fatal().Err(err).Msg("could not read .env file")
		}
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("could not load configuration")
	}
	setupLogging(cfg.LogLevel, !inLambda)

	sess, err := createSession(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("could not create aws session")
	}

	tc := processor.NewTranscoder(sess, cfg)

	if inLambda {
		log.Info().Msg("running in AWS Lambda environment")
		lambda.Start(tc.HandleLambdaEvent)
		return
	}

	log.Info().Msg("running in cli mode")
	if len(os.Args) < 2 {
		log.Fatal().Msg("s3 url is required as an argument")
	}
	if err := tc.HandleS3URL(context.Background(), os.Args[1]); err != nil {
		log.Fatal().Err(err).Msg("transcoding failed")
	}
}
