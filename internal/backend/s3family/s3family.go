// Package s3family implements the IBackend contract for every S3-compatible
// object-store backend (r2, tencent, aliyun, qiniu, upyun): SigV4-signed
// PUT via aws-sdk-go-v2 (upyun's PUT instead uses its own signed scheme in
// upyun.go), plus list/delete operations for the browse/manage native
// commands in spec §6.
package s3family

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/picdock/engine/internal/backend"
	"github.com/picdock/engine/internal/catalogue"
	"github.com/picdock/engine/internal/model"
)

// providerKey maps a BackendID to its catalogue entry key.
func providerKey(id model.BackendID) string {
	switch id {
	case model.BackendR2:
		return "r2"
	case model.BackendTencent:
		return "tencent"
	case model.BackendAliyun:
		return "aliyun"
	case model.BackendQiniu:
		return "qiniu"
	case model.BackendUpyun:
		return "upyun"
	default:
		return ""
	}
}

// Backend implements backend.IBackend for one S3-compatible provider.
type Backend struct {
	id model.BackendID
}

// New constructs an s3family Backend for id. Panics if id is not an
// S3-family member — callers must only register known families.
func New(id model.BackendID) *Backend {
	if providerKey(id) == "" {
		panic(fmt.Sprintf("s3family: %s is not an S3-compatible backend", id))
	}

	return &Backend{id: id}
}

func (b *Backend) ID() model.BackendID { return b.id }

// Validate requires all five of access key, secret key, bucket, region and
// public domain, per spec §4.1.
func (b *Backend) Validate(config model.BackendConfig) backend.ValidationResult {
	var errs []string

	if config.S3 == nil {
		return backend.ValidationResult{Valid: false, Errors: []string{"missing s3 credential"}}
	}

	if config.S3.AccessKey == "" {
		errs = append(errs, "access_key is required")
	}

	if config.S3.SecretKey == "" {
		errs = append(errs, "secret_key is required")
	}

	if config.S3.Bucket == "" {
		errs = append(errs, "bucket is required")
	}

	if config.S3.Region == "" {
		errs = append(errs, "region is required")
	}

	if config.S3.PublicDomain == "" {
		errs = append(errs, "public_domain is required")
	}

	return backend.ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

func (b *Backend) client(config model.BackendConfig) (*s3.Client, error) {
	ep, err := catalogue.S3EndpointFor(providerKey(b.id))
	if err != nil {
		return nil, err
	}

	endpoint := expandTemplate(ep.EndpointTemplate, config.S3)

	creds := credentials.NewStaticCredentialsProvider(config.S3.AccessKey, config.S3.SecretKey, "")

	cl := s3.New(s3.Options{
		Region:       config.S3.Region,
		Credentials:  creds,
		BaseEndpoint: aws.String(endpoint),
		UsePathStyle: ep.Addressing == "path",
	})

	return cl, nil
}

func expandTemplate(tmpl string, cred *model.S3Credential) string {
	r := strings.NewReplacer(
		"{bucket}", cred.Bucket,
		"{region}", cred.Region,
		"{account_id}", cred.AccessKey,
	)

	return r.Replace(tmpl)
}

// TestConnection lists at most one object as a cheap round-trip.
func (b *Backend) TestConnection(ctx context.Context, config model.BackendConfig) backend.ConnectionResult {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	start := time.Now()

	cl, err := b.client(config)
	if err != nil {
		return backend.ConnectionResult{OK: false, Error: err.Error()}
	}

	maxKeys := int32(1)

	_, err = cl.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(config.S3.Bucket),
		MaxKeys: &maxKeys,
	})
	latency := time.Since(start)

	if err != nil {
		return backend.ConnectionResult{OK: false, LatencyMS: latency.Milliseconds(), Error: err.Error()}
	}

	return backend.ConnectionResult{OK: true, LatencyMS: latency.Milliseconds()}
}

// Upload streams path as the object body, keyed under PathPrefix + the base
// file name, emitting progress via a backend.ProgressReader.
func (b *Backend) Upload(
	ctx context.Context, config model.BackendConfig, path string, opts backend.UploadOptions,
	onProgress func(progressBytes, totalBytes int64),
) (*model.UploadResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &backend.Error{Kind: backend.KindFileSystem, Op: "open", Path: path, Cause: err}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, &backend.Error{Kind: backend.KindFileSystem, Op: "stat", Path: path, Cause: err}
	}

	key := objectKey(config.S3.PathPrefix, opts.DestinationHint, info.Name())

	cl, err := b.client(config)
	if err != nil {
		return nil, backend.NewProtocolError(b.id, err.Error())
	}

	body := backend.NewProgressReader(f, info.Size(), onProgress)

	_, err = cl.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(config.S3.Bucket),
		Key:    aws.String(key),
		Body:   body,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, &backend.Error{Kind: backend.KindCancelled, BackendID: b.id, Cause: ctx.Err()}
		}

		return nil, backend.NewProtocolError(b.id, err.Error())
	}

	return &model.UploadResult{
		BackendID: b.id,
		FileKey:   key,
		SizeBytes: info.Size(),
	}, nil
}

// PublicURL assembles "{public_domain}/{key}" per spec §4.6.
func (b *Backend) PublicURL(result *model.UploadResult, config model.BackendConfig) (string, error) {
	if config.S3 == nil {
		return "", fmt.Errorf("s3family: %s: missing s3 credential", b.id)
	}

	domain := strings.TrimSuffix(config.S3.PublicDomain, "/")

	return domain + "/" + result.FileKey, nil
}

func objectKey(prefix, hint, fileName string) string {
	name := hint
	if name == "" {
		name = fileName
	}

	if prefix == "" {
		return name
	}

	return strings.TrimSuffix(prefix, "/") + "/" + strings.TrimPrefix(name, "/")
}

// ListObjects lists objects under prefix with delimiter '/' and
// continuation-token pagination, for the browse/manage native commands.
func ListObjects(
	ctx context.Context, id model.BackendID, config model.BackendConfig,
	prefix string, maxKeys int32, continuationToken string,
) ([]ObjectSummary, string, error) {
	b := New(id)

	cl, err := b.client(config)
	if err != nil {
		return nil, "", err
	}

	input := &s3.ListObjectsV2Input{
		Bucket:    aws.String(config.S3.Bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
		MaxKeys:   aws.Int32(maxKeys),
	}

	if continuationToken != "" {
		input.ContinuationToken = aws.String(continuationToken)
	}

	out, err := cl.ListObjectsV2(ctx, input)
	if err != nil {
		return nil, "", backend.NewProtocolError(id, err.Error())
	}

	summaries := make([]ObjectSummary, 0, len(out.Contents))
	for _, obj := range out.Contents {
		s := ObjectSummary{Key: aws.ToString(obj.Key), Size: aws.ToInt64(obj.Size)}
		if obj.LastModified != nil {
			s.LastModified = *obj.LastModified
		}

		if obj.ETag != nil {
			s.ETag = aws.ToString(obj.ETag)
		}

		summaries = append(summaries, s)
	}

	next := ""
	if out.NextContinuationToken != nil {
		next = *out.NextContinuationToken
	}

	return summaries, next, nil
}

// ObjectSummary is one entry in a ListObjects page.
type ObjectSummary struct {
	Key          string
	Size         int64
	LastModified time.Time
	ETag         string
}

// DeleteResult reports the outcome of a batched delete.
type DeleteResult struct {
	Succeeded []string
	Failed    []string
}

// DeleteObjects deletes one or more keys, returning per-key success/failure.
func DeleteObjects(ctx context.Context, id model.BackendID, config model.BackendConfig, keys []string) (DeleteResult, error) {
	b := New(id)

	cl, err := b.client(config)
	if err != nil {
		return DeleteResult{}, err
	}

	result := DeleteResult{}

	for _, key := range keys {
		_, err := cl.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(config.S3.Bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			result.Failed = append(result.Failed, key)
			continue
		}

		result.Succeeded = append(result.Succeeded, key)
	}

	return result, nil
}
