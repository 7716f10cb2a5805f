package keystore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
	"github.com/soclocker/soclocker/internal/common"
	sc "github.com/soclocker/soclocker/internal/server/config"
)

// seams for testing the AWS SDK calls
var (
	loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

// S3Keystore stores the keypair as an object in an S3-compatible bucket
// (MinIO in development). On save it also writes a dated backup object so an
// accidental overwrite is recoverable.
type S3Keystore struct {
	config *sc.Config
}

func NewS3Keystore(config *sc.Config) *S3Keystore {
	return &S3Keystore{config: config}
}

func (k *S3Keystore) getClient(ctx context.Context) (*s3.Client, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		awsconfig.WithRegion(k.config.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			k.config.S3RootUser,
			k.config.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(k.config.S3BaseEndpoint)
		o.UsePathStyle = true
	})

	return client, nil
}

func (k *S3Keystore) backupKey() string {
	d := time.Now()
	return fmt.Sprintf("%s.backup/%d/%d/%d/%v", k.config.KeystorePath, d.Year(), d.Month(), d.Day(), uuid.New())
}

func (k *S3Keystore) Load(ctx context.Context) (*Keypair, error) {
	client, err := k.getClient(ctx)
	if err != nil {
		return nil, err
	}

	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(k.config.S3Bucket),
		Key:    aws.String(k.config.KeystorePath),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, common.ErrorNotFound
		}
		return nil, err
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, err
	}

	return unmarshalKeypair(data)
}

func (k *S3Keystore) Save(ctx context.Context, kp *Keypair) error {
	client, err := k.getClient(ctx)
	if err != nil {
		return err
	}

	data, err := marshalKeypair(kp)
	if err != nil {
		return err
	}

	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(k.config.S3Bucket),
		Key:    aws.String(k.config.KeystorePath),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return err
	}

	// Backup failures are not fatal: the primary object is already written.
	_, _ = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(k.config.S3Bucket),
		Key:    aws.String(k.backupKey()),
		Body:   bytes.NewReader(data),
	})

	return nil
}
