package delivery

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readFile(t *testing.T, p string) string {
	t.Helper()
	b, err := os.ReadFile(p)
	require.NoError(t, err)
	return string(b)
}

func TestDirSink_WritesAndAvoidsCollisions(t *testing.T) {
	s, err := NewDirSink(filepath.Join(t.TempDir(), "download"))
	require.NoError(t, err)

	first, err := s.Deliver(context.Background(), "report.pdf", strings.NewReader("one"))
	require.NoError(t, err)
	second, err := s.Deliver(context.Background(), "report.pdf", strings.NewReader("two"))
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(s.Dir(), "report.pdf"), first)
	assert.Equal(t, filepath.Join(s.Dir(), "report (1).pdf"), second)
	assert.Equal(t, "one", readFile(t, first))
	assert.Equal(t, "two", readFile(t, second))
}

func TestDirSink_ConcurrentSameNameNeverOverwrites(t *testing.T) {
	s, err := NewDirSink(t.TempDir())
	require.NoError(t, err)
	const n = 6

	var wg sync.WaitGroup
	got := make([]string, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := s.Deliver(context.Background(), "same.txt", strings.NewReader(strconv.Itoa(i)))
			assert.NoError(t, err)
			got[i] = p
		}()
	}
	wg.Wait()

	seen := map[string]bool{}
	for i, p := range got {
		assert.False(t, seen[p], "two deliveries landed on %s", p)
		seen[p] = true
		assert.Equal(t, strconv.Itoa(i), readFile(t, p))
	}
	entries, err := os.ReadDir(s.Dir())
	require.NoError(t, err)
	assert.Len(t, entries, n)
}

func TestDirSink_StripsDirectories(t *testing.T) {
	s, err := NewDirSink(t.TempDir())
	require.NoError(t, err)

	p, err := s.Deliver(context.Background(), "../../escape.txt", strings.NewReader("x"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(s.Dir(), "escape.txt"), p)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestDirSink_FailureLeavesNothing(t *testing.T) {
	s, err := NewDirSink(t.TempDir())
	require.NoError(t, err)

	_, err = s.Deliver(context.Background(), "a.txt", io.MultiReader(strings.NewReader("partial"), failingReader{}))
	require.Error(t, err)

	entries, err := os.ReadDir(s.Dir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDirSink_StopsOnCancelledContext(t *testing.T) {
	s, err := NewDirSink(t.TempDir())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = s.Deliver(ctx, "a.txt", strings.NewReader("data"))
	require.ErrorIs(t, err, context.Canceled)
}

type fakeObjectUploader struct {
	bucket, key, body string
	err               error
}

func (f *fakeObjectUploader) Upload(_ context.Context, in *s3.PutObjectInput, _ ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	b, _ := io.ReadAll(in.Body)
	f.bucket, f.key, f.body = aws.ToString(in.Bucket), aws.ToString(in.Key), string(b)
	return &manager.UploadOutput{}, nil
}

func TestS3Sink_Deliver(t *testing.T) {
	up := &fakeObjectUploader{}
	s := &S3Sink{bucket: "vault", prefix: "inbox", uploader: up}

	loc, err := s.Deliver(context.Background(), "dir/report.pdf", strings.NewReader("pdf"))

	require.NoError(t, err)
	assert.Equal(t, "s3://vault/inbox/report.pdf", loc)
	assert.Equal(t, "vault", up.bucket)
	assert.Equal(t, "inbox/report.pdf", up.key)
	assert.Equal(t, "pdf", up.body)
}

func TestS3Sink_DeliverError(t *testing.T) {
	s := &S3Sink{bucket: "vault", uploader: &fakeObjectUploader{err: errors.New("denied")}}

	_, err := s.Deliver(context.Background(), "a", strings.NewReader(""))
	require.ErrorContains(t, err, "upload to s3://vault/a")
}

func TestFromTarget(t *testing.T) {
	origLoad, origNew := loadDefaultAWSConfig, newS3ClientFromConfig
	t.Cleanup(func() { loadDefaultAWSConfig, newS3ClientFromConfig = origLoad, origNew })

	var endpoint string
	var pathStyle bool
	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*config.LoadOptions) error) (aws.Config, error) {
		var lo config.LoadOptions
		for _, fn := range optFns {
			require.NoError(t, fn(&lo))
		}
		assert.Equal(t, "eu-central-1", lo.Region)
		require.NotNil(t, lo.Credentials)
		return aws.Config{Region: lo.Region}, nil
	}
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		var o s3.Options
		for _, fn := range optFns {
			fn(&o)
		}
		endpoint, pathStyle = aws.ToString(o.BaseEndpoint), o.UsePathStyle
		return s3.New(o)
	}

	sink, err := FromTarget(context.Background(), "s3://vault/inbox", S3Settings{
		Region: "eu-central-1", Endpoint: "http://127.0.0.1:9000", AccessKey: "ak", SecretKey: "sk",
	})
	require.NoError(t, err)
	s3sink, ok := sink.(*S3Sink)
	require.True(t, ok)
	assert.Equal(t, "vault", s3sink.bucket)
	assert.Equal(t, "inbox", s3sink.prefix)
	assert.Equal(t, "http://127.0.0.1:9000", endpoint)
	assert.True(t, pathStyle)

	_, err = FromTarget(context.Background(), "s3://", S3Settings{})
	require.Error(t, err)

	dir := filepath.Join(t.TempDir(), "out")
	sink, err = FromTarget(context.Background(), dir, S3Settings{})
	require.NoError(t, err)
	assert.IsType(t, &DirSink{}, sink)
	assert.DirExists(t, dir)
}
