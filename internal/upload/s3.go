package upload

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"

	"github.com/rbright/shutter/internal/apperror"
)

// S3Options selects the bucket and credentials for S3Transport.
type S3Options struct {
	Bucket          string
	Region          string
	Endpoint        string
	Prefix          string
	AccessKeyID     string
	SecretAccessKey string
}

// S3Transport stores uploads as objects keyed `{prefix}/{category}/{name}`.
type S3Transport struct {
	Uploader s3manageriface.UploaderAPI
	Bucket   string
	Prefix   string
}

// NewS3Transport builds an S3 uploader. Static credentials are used when both
// keys are set, otherwise the SDK default chain applies.
func NewS3Transport(opts S3Options) (*S3Transport, error) {
	if strings.TrimSpace(opts.Bucket) == "" {
		return nil, apperror.Configuration.SetMessage("s3 bucket is empty")
	}

	awsConfig := &aws.Config{
		Region:           aws.String(opts.Region),
		S3ForcePathStyle: aws.Bool(true),
	}
	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		awsConfig.Credentials = credentials.NewStaticCredentials(opts.AccessKeyID, opts.SecretAccessKey, "")
	}
	if opts.Endpoint != "" {
		awsConfig.Endpoint = aws.String(opts.Endpoint)
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, apperror.Configuration.SetMessage("create s3 session").Wrap(err)
	}

	return &S3Transport{
		Uploader: s3manager.NewUploader(sess),
		Bucket:   opts.Bucket,
		Prefix:   opts.Prefix,
	}, nil
}

// Prepare builds the object upload input.
func (t *S3Transport) Prepare(ctx context.Context, req Request) (Exchange, error) {
	if t.Uploader == nil {
		return nil, apperror.Configuration.SetMessage("s3 uploader is not configured")
	}

	key := t.objectKey(req)
	input := &s3manager.UploadInput{
		Bucket:      aws.String(t.Bucket),
		Key:         aws.String(key),
		ACL:         aws.String("private"),
		Body:        req.Body,
		ContentType: aws.String(req.MimeType),
	}

	return func() (Result, error) {
		out, err := t.Uploader.UploadWithContext(ctx, input)
		if err != nil {
			return Result{}, apperror.Remote.SetMessage(fmt.Sprintf("s3 upload %s", key)).Wrap(err)
		}
		return Result{Location: out.Location}, nil
	}, nil
}

func (t *S3Transport) objectKey(req Request) string {
	prefix := strings.Trim(t.Prefix, "/")
	category := strings.Trim(req.Category, "/")
	return strings.TrimPrefix(path.Join(prefix, category, req.Name), "/")
}
