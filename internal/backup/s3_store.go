// Promptshelf - Prompt Sharing Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/promptshelf

package backup

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/tomtom215/promptshelf/internal/config"
)

// s3API is the part of *s3.Client the store uses.
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Store keeps archives in an S3 bucket under an optional prefix.
//
// S3 has no portable create-if-absent, so Create checks for the key first.
// Two servers racing on the same second can still overwrite each other;
// the engine's own lock covers a single server.
type S3Store struct {
	client s3API
	bucket string
	prefix string
}

// NewS3Store builds a client from the default AWS credential chain.
func NewS3Store(ctx context.Context, cfg *config.S3Config) (*S3Store, error) {
	opts := []func(*awsconfig.LoadOptions) error{}
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return newS3Store(client, cfg.Bucket, cfg.Prefix), nil
}

func newS3Store(client s3API, bucket, prefix string) *S3Store {
	prefix = strings.Trim(prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return &S3Store{client: client, bucket: bucket, prefix: prefix}
}

func (s *S3Store) key(file string) string {
	return s.prefix + file
}

// Create uploads data unless the key already exists.
func (s *S3Store) Create(ctx context.Context, file string, data []byte) (ArchiveInfo, error) {
	if err := ValidateFileName(file); err != nil {
		return ArchiveInfo{}, err
	}

	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(file)),
	})
	switch {
	case err == nil:
		return ArchiveInfo{}, fmt.Errorf("%w: %s", ErrArchiveExists, file)
	case !isS3NotFound(err):
		return ArchiveInfo{}, fmt.Errorf("s3 head failed: %w", err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key(file)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/zip"),
	})
	if err != nil {
		return ArchiveInfo{}, fmt.Errorf("s3 upload failed: %w", err)
	}

	head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(file)),
	})
	if err != nil {
		return ArchiveInfo{}, fmt.Errorf("s3 head after upload failed: %w", err)
	}
	return ArchiveInfo{
		File:    file,
		Bytes:   aws.ToInt64(head.ContentLength),
		ModTime: aws.ToTime(head.LastModified).UTC(),
	}, nil
}

// List pages through every archive under the prefix.
func (s *S3Store) List(ctx context.Context) ([]ArchiveInfo, error) {
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix),
	})

	infos := make([]ArchiveInfo, 0)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}
		for _, obj := range page.Contents {
			file := strings.TrimPrefix(aws.ToString(obj.Key), s.prefix)
			if ValidateFileName(file) != nil {
				continue
			}
			infos = append(infos, ArchiveInfo{
				File:    file,
				Bytes:   aws.ToInt64(obj.Size),
				ModTime: aws.ToTime(obj.LastModified).UTC(),
			})
		}
	}
	return infos, nil
}

// Open downloads an archive.
func (s *S3Store) Open(ctx context.Context, file string) (io.ReadCloser, ArchiveInfo, error) {
	if err := ValidateFileName(file); err != nil {
		return nil, ArchiveInfo{}, err
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(file)),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, ArchiveInfo{}, fmt.Errorf("%w: %s", ErrArchiveNotFound, file)
		}
		return nil, ArchiveInfo{}, fmt.Errorf("s3 download failed: %w", err)
	}
	return out.Body, ArchiveInfo{
		File:    file,
		Bytes:   aws.ToInt64(out.ContentLength),
		ModTime: aws.ToTime(out.LastModified).UTC(),
	}, nil
}

func isS3NotFound(err error) bool {
	var notFound *types.NotFound
	var noSuchKey *types.NoSuchKey
	return errors.As(err, &notFound) || errors.As(err, &noSuchKey)
}
