package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"graphrag/internal/util"
	"graphrag/pkg/common"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Store persists snapshots as objects under <prefix>/<graphID>/ in a single
// bucket. It satisfies SnapshotStore with the same per-graph artifacts as
// DiskStore.
type S3Store struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Store builds an S3-backed store from AWS_* environment configuration.
// Path-style addressing is always used so MinIO-style endpoints work.
func NewS3Store(ctx context.Context, prefix string) (*S3Store, error) {
	region := util.GetEnv("AWS_REGION")
	endpoint := util.GetEnv("AWS_ENDPOINT")
	accessKey := util.GetEnv("AWS_ACCESS_KEY")
	secretKey := util.GetEnv("AWS_SECRET_KEY")
	bucket := util.GetEnv("AWS_BUCKET")
	if bucket == "" {
		return nil, fmt.Errorf("%w: AWS_BUCKET must be set", common.ErrInvalidInput)
	}

	cfg, err := config.LoadDefaultConfig(
		ctx,
		config.WithRegion(region),
		config.WithBaseEndpoint(endpoint),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			accessKey,
			secretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: loading AWS config: %v", common.ErrPersistence, err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})
	return &S3Store{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}, nil
}

func (s *S3Store) key(graphID, name string) string {
	if s.prefix == "" {
		return fmt.Sprintf("%s/%s", graphID, name)
	}
	return fmt.Sprintf("%s/%s/%s", s.prefix, graphID, name)
}

func (s *S3Store) putObject(ctx context.Context, key string, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("%w: uploading %s: %v", common.ErrPersistence, key, err)
	}
	return nil
}

func (s *S3Store) getObject(ctx context.Context, key string) ([]byte, error) {
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, fmt.Errorf("%w: %s", common.ErrNotFound, key)
		}
		return nil, fmt.Errorf("%w: downloading %s: %v", common.ErrPersistence, key, err)
	}
	defer result.Body.Close()

	buf := new(bytes.Buffer)
	if _, err := io.Copy(buf, result.Body); err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", common.ErrPersistence, key, err)
	}
	return buf.Bytes(), nil
}

func (s *S3Store) SaveSnapshot(ctx context.Context, graphID string, snap *Snapshot, export *common.GraphExport) error {
	snap.Version = SnapshotVersion
	snapData, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("%w: encoding snapshot: %v", common.ErrPersistence, err)
	}
	if err := s.putObject(ctx, s.key(graphID, snapshotFile), snapData); err != nil {
		return err
	}

	exportData, err := json.Marshal(export)
	if err != nil {
		return fmt.Errorf("%w: encoding export: %v", common.ErrPersistence, err)
	}
	return s.putObject(ctx, s.key(graphID, exportFile), exportData)
}

func (s *S3Store) LoadSnapshot(ctx context.Context, graphID string) (*Snapshot, error) {
	data, err := s.getObject(ctx, s.key(graphID, snapshotFile))
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, fmt.Errorf("%w: no snapshot for graph %s", common.ErrNotFound, graphID)
		}
		return nil, err
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: decoding snapshot: %v", common.ErrPersistence, err)
	}
	if snap.Version != SnapshotVersion {
		return nil, fmt.Errorf("%w: unsupported snapshot version %d", common.ErrPersistence, snap.Version)
	}
	return &snap, nil
}

func (s *S3Store) AppendLog(ctx context.Context, graphID string, entry common.UpdateLogEntry) error {
	entries, err := s.LoadLog(ctx, graphID)
	if err != nil {
		return err
	}
	entries = append(entries, entry)
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("%w: encoding update log: %v", common.ErrPersistence, err)
	}
	return s.putObject(ctx, s.key(graphID, logFile), data)
}

func (s *S3Store) LoadLog(ctx context.Context, graphID string) ([]common.UpdateLogEntry, error) {
	data, err := s.getObject(ctx, s.key(graphID, logFile))
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return []common.UpdateLogEntry{}, nil
		}
		return nil, err
	}
	entries := []common.UpdateLogEntry{}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%w: decoding update log: %v", common.ErrPersistence, err)
	}
	return entries, nil
}

// Clear deletes every object under the graph's prefix, paging through the
// listing the way large folders require.
func (s *S3Store) Clear(ctx context.Context, graphID string) error {
	prefix := s.key(graphID, "")

	listInput := &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	}

	for {
		listOutput, err := s.client.ListObjectsV2(ctx, listInput)
		if err != nil {
			return fmt.Errorf("%w: listing objects for graph %s: %v", common.ErrPersistence, graphID, err)
		}

		if len(listOutput.Contents) == 0 {
			break
		}

		var objectsToDelete []types.ObjectIdentifier
		for _, obj := range listOutput.Contents {
			objectsToDelete = append(objectsToDelete, types.ObjectIdentifier{
				Key: obj.Key,
			})
		}

		_, err = s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &types.Delete{
				Objects: objectsToDelete,
				Quiet:   aws.Bool(true),
			},
		})
		if err != nil {
			return fmt.Errorf("%w: deleting objects for graph %s: %v", common.ErrPersistence, graphID, err)
		}

		if listOutput.IsTruncated != nil && *listOutput.IsTruncated {
			listInput.ContinuationToken = listOutput.NextContinuationToken
		} else {
			break
		}
	}

	return nil
}
