package seed

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/platinummonkey/storygate/pkg/rbac"
)

// maxObjectSize caps seed documents fetched from object storage
const maxObjectSize = 1 << 20

// Source supplies role seed documents
type Source interface {
	Load(ctx context.Context) ([]rbac.Role, error)
	String() string
}

// FileSource reads roles from a local YAML file
type FileSource string

// Load reads and parses the file
func (f FileSource) Load(ctx context.Context) ([]rbac.Role, error) {
	return Load(string(f))
}

func (f FileSource) String() string {
	return string(f)
}

// ObjectGetter is the part of the S3 client that S3Source needs
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Source reads roles from an S3 object
type S3Source struct {
	Client ObjectGetter
	Bucket string
	Key    string
}

// Load fetches and parses the object
func (s *S3Source) Load(ctx context.Context) ([]rbac.Role, error) {
	out, err := s.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.Key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get seed object %s: %w", s, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(io.LimitReader(out.Body, maxObjectSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read seed object %s: %w", s, err)
	}
	if len(data) > maxObjectSize {
		return nil, fmt.Errorf("seed object %s exceeds %d bytes", s, maxObjectSize)
	}

	roles, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s, err)
	}
	return roles, nil
}

func (s *S3Source) String() string {
	return "s3://" + s.Bucket + "/" + s.Key
}

// IsS3URL reports whether location names an S3 object
func IsS3URL(location string) bool {
	return strings.HasPrefix(location, "s3://")
}

// ParseS3URL splits s3://bucket/key
func ParseS3URL(location string) (bucket, key string, err error) {
	if !IsS3URL(location) {
		return "", "", fmt.Errorf("not an s3 URL: %q", location)
	}
	bucket, key, ok := strings.Cut(strings.TrimPrefix(location, "s3://"), "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("s3 URL must be s3://bucket/key: %q", location)
	}
	return bucket, key, nil
}

// SourceFor picks the source for a seed location: nothing for "", an
// S3Source for s3:// URLs and a FileSource otherwise. client is only
// needed for S3 locations.
func SourceFor(location string, client ObjectGetter) (Source, error) {
	switch {
	case location == "":
		return nil, nil
	case IsS3URL(location):
		bucket, key, err := ParseS3URL(location)
		if err != nil {
			return nil, err
		}
		if client == nil {
			return nil, fmt.Errorf("no S3 client configured for %s", location)
		}
		return &S3Source{Client: client, Bucket: bucket, Key: key}, nil
	default:
		return FileSource(location), nil
	}
}
