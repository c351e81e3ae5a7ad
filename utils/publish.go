package utils

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/pkg/errors"
)

// Publisher copies produced files to shared storage and returns the URL
// they are reachable at.
type Publisher interface {
	Publish(ctx context.Context, localPath, relPath string) (string, error)
}

// S3Publisher uploads files under Prefix in Bucket.
type S3Publisher struct {
	Bucket   string
	Prefix   string
	uploader *s3manager.Uploader
}

// NewS3Publisher uses the default AWS credential chain.
func NewS3Publisher(cfg S3Config) (*S3Publisher, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("no S3 bucket configured")
	}
	awsCfg := &aws.Config{}
	if cfg.Region != "" {
		awsCfg.Region = aws.String(cfg.Region)
	}
	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, errors.Wrap(err, "create AWS session")
	}
	return &S3Publisher{Bucket: cfg.Bucket, Prefix: cfg.Prefix, uploader: s3manager.NewUploader(sess)}, nil
}

// NewS3PublisherWithClient uploads through an existing S3 client.
func NewS3PublisherWithClient(client s3iface.S3API, bucket, prefix string) *S3Publisher {
	return &S3Publisher{Bucket: bucket, Prefix: prefix, uploader: s3manager.NewUploaderWithClient(client)}
}

// ObjectKey maps a path relative to the output directory to an S3 key.
func (p *S3Publisher) ObjectKey(relPath string) string {
	return strings.TrimPrefix(path.Join(p.Prefix, filepath.ToSlash(relPath)), "/")
}

func (p *S3Publisher) Publish(ctx context.Context, localPath, relPath string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	key := p.ObjectKey(relPath)
	_, err = p.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket: aws.String(p.Bucket),
		Key:    aws.String(key),
		Body:   f,
	})
	if err != nil {
		return "", errors.Wrapf(err, "upload %s", localPath)
	}
	return fmt.Sprintf("s3://%s/%s", p.Bucket, key), nil
}
