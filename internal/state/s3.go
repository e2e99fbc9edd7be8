package state

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/edvin/landingzone/internal/config"
	"github.com/edvin/landingzone/internal/model"
)

// S3Store keeps bundles as JSON objects in a bucket, one object per
// bundle:
//
//	<environment>/hub.json
//	<environment>/spokes/<domain>.json
//
// Suitable as shared remote state for a team.
type S3Store struct {
	client *s3.Client
	bucket string
}

// NewS3Store creates an S3-backed store. A custom endpoint enables
// S3-compatible object stores.
func NewS3Store(settings *config.StateSettings) *S3Store {
	opts := s3.Options{
		Region:      settings.S3Region,
		Credentials: credentials.NewStaticCredentialsProvider(settings.S3AccessKey, settings.S3SecretKey, ""),
	}
	if settings.S3Endpoint != "" {
		opts.BaseEndpoint = aws.String(settings.S3Endpoint)
		opts.UsePathStyle = true
	}
	return &S3Store{client: s3.New(opts), bucket: settings.S3Bucket}
}

func hubObjectKey(environment string) string {
	return path.Join(environment, "hub.json")
}

func spokeObjectKey(environment, domain string) string {
	return path.Join(environment, "spokes", domain+".json")
}

func (s *S3Store) put(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode state object %s: %w", key, err)
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("put state object %s: %w", key, err)
	}
	return nil
}

func (s *S3Store) get(ctx context.Context, key string, v any) error {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *s3types.NoSuchKey
		if errors.As(err, &noKey) {
			return ErrSpokeNotProvisioned
		}
		return fmt.Errorf("get state object %s: %w", key, err)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return fmt.Errorf("read state object %s: %w", key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse state object %s: %w", key, err)
	}
	return nil
}

func (s *S3Store) delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete state object %s: %w", key, err)
	}
	return nil
}

func (s *S3Store) SaveHubOutputs(ctx context.Context, outputs *model.HubOutputs) error {
	return s.put(ctx, hubObjectKey(outputs.Environment), outputs)
}

func (s *S3Store) LoadHubOutputs(ctx context.Context, environment string) (*model.HubOutputs, error) {
	var outputs model.HubOutputs
	if err := s.get(ctx, hubObjectKey(environment), &outputs); err != nil {
		if errors.Is(err, ErrSpokeNotProvisioned) {
			return nil, fmt.Errorf("environment %s: %w", environment, ErrHubNotProvisioned)
		}
		return nil, err
	}
	return &outputs, nil
}

func (s *S3Store) DeleteHubOutputs(ctx context.Context, environment string) error {
	return s.delete(ctx, hubObjectKey(environment))
}

func (s *S3Store) SaveSpokeOutputs(ctx context.Context, outputs *model.SpokeOutputs) error {
	return s.put(ctx, spokeObjectKey(outputs.Environment, outputs.Domain), outputs)
}

func (s *S3Store) LoadSpokeOutputs(ctx context.Context, environment, domain string) (*model.SpokeOutputs, error) {
	var outputs model.SpokeOutputs
	if err := s.get(ctx, spokeObjectKey(environment, domain), &outputs); err != nil {
		if errors.Is(err, ErrSpokeNotProvisioned) {
			return nil, fmt.Errorf("%s spoke in %s: %w", domain, environment, ErrSpokeNotProvisioned)
		}
		return nil, err
	}
	return &outputs, nil
}

func (s *S3Store) ListSpokeDomains(ctx context.Context, environment string) ([]string, error) {
	prefix := path.Join(environment, "spokes") + "/"
	var domains []string
	var token *string
	for {
		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("list state objects %s: %w", prefix, err)
		}
		for _, obj := range out.Contents {
			name := strings.TrimPrefix(aws.ToString(obj.Key), prefix)
			domains = append(domains, strings.TrimSuffix(name, ".json"))
		}
		if out.NextContinuationToken == nil {
			break
		}
		token = out.NextContinuationToken
	}
	sort.Strings(domains)
	return domains, nil
}

func (s *S3Store) DeleteSpokeOutputs(ctx context.Context, environment, domain string) error {
	return s.delete(ctx, spokeObjectKey(environment, domain))
}

func (s *S3Store) Close() error { return nil }
