package mltasks

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUploader struct {
	mu       sync.Mutex
	objects  map[string]string
	failures map[string]int
}

func (f *fakeUploader) Upload(_ context.Context, in *s3.PutObjectInput, _ ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	key := aws.ToString(in.Key)
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures[key] > 0 {
		f.failures[key]--
		return nil, errors.New("slow down")
	}
	if f.objects == nil {
		f.objects = map[string]string{}
	}
	f.objects[aws.ToString(in.Bucket)+"/"+key] = string(body)
	return &manager.UploadOutput{Key: in.Key}, nil
}

func writeTree(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "tokenizer"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte("{}"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tokenizer", "vocab.txt"), []byte("abc"), 0o600))
	return dir
}

func TestNewS3PublisherRequiresBucket(t *testing.T) {
	_, err := NewS3Publisher(S3Config{}, &fakeUploader{}, nil)
	require.Error(t, err)
}

func TestS3PublisherUploadsTree(t *testing.T) {
	up := &fakeUploader{}
	pub, err := NewS3Publisher(S3Config{Bucket: "models", Concurrency: 2}, up, nil)
	require.NoError(t, err)

	var out bytes.Buffer
	res, err := pub.Publish(context.Background(), &out, writeTree(t), "me/model")
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"repo_id": "me/model", "objects": 2, "bytes": int64(5)}, res)

	keys := make([]string, 0, len(up.objects))
	for k := range up.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	assert.Equal(t, []string{"models/me/model/config.json", "models/me/model/tokenizer/vocab.txt"}, keys)
	assert.Equal(t, "abc", up.objects["models/me/model/tokenizer/vocab.txt"])
	assert.Contains(t, out.String(), "Uploading 2 files")
	assert.Contains(t, out.String(), "Upload completed successfully")
}

func TestS3PublisherRetriesObjects(t *testing.T) {
	up := &fakeUploader{failures: map[string]int{"me/model/config.json": 2}}
	pub, err := NewS3Publisher(S3Config{Bucket: "models", RetryLimit: 3, RetryBase: time.Millisecond}, up, nil)
	require.NoError(t, err)

	_, err = pub.Publish(context.Background(), io.Discard, writeTree(t), "me/model")
	require.NoError(t, err)
	assert.Contains(t, up.objects, "models/me/model/config.json")
}

func TestS3PublisherGivesUp(t *testing.T) {
	up := &fakeUploader{failures: map[string]int{"me/model/config.json": 10}}
	pub, err := NewS3Publisher(S3Config{Bucket: "models", RetryLimit: 1, RetryBase: time.Millisecond}, up, nil)
	require.NoError(t, err)

	_, err = pub.Publish(context.Background(), io.Discard, writeTree(t), "me/model")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upload me/model/config.json")
	assert.Contains(t, err.Error(), "slow down")
}
