package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomasbasham/s3apo/internal/selection"
	"github.com/tomasbasham/s3apo/internal/storage"
)

type putCall struct {
	Bucket      string
	Key         string
	Body        string
	ContentType string
}

// fakeUploader records every request and fails for keys listed in failOn.
type fakeUploader struct {
	mu     sync.Mutex
	calls  []putCall
	failOn map[string]error
}

func (f *fakeUploader) Upload(ctx context.Context, req *storage.UploadRequest) (*storage.UploadResult, error) {
	body, err := io.ReadAll(req.Content)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.calls = append(f.calls, putCall{Bucket: req.Bucket, Key: req.Key, Body: string(body), ContentType: req.ContentType})
	f.mu.Unlock()

	if err := f.failOn[req.Key]; err != nil {
		return nil, err
	}
	return &storage.UploadResult{Key: req.Key}, nil
}

func (f *fakeUploader) keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		out = append(out, c.Key)
	}
	return out
}

func (f *fakeUploader) factory() UploaderFunc {
	return func(context.Context, Credentials) (storage.Uploader, error) {
		return f, nil
	}
}

func testCredentials() Credentials {
	return Credentials{AccessKey: "AK", SecretKey: "SK", Bucket: "my-bucket", Region: "eu-west-1"}
}

func newTestSession(t *testing.T, names ...string) *Session {
	t.Helper()
	sess := NewSession(testCredentials())
	files := make([]selection.FileHandle, 0, len(names))
	for _, name := range names {
		files = append(files, selection.FromBytes(name, "text/plain", []byte("content of "+name)))
	}
	sess.Selection().Pick(files)
	return sess
}

func success(name string) Status {
	return Status{
		FileName: name,
		Message:  name + " uploaded successfully",
		URL:      "https://my-bucket.s3.eu-west-1.amazonaws.com/" + name,
		Progress: progress(100),
	}
}

func TestRun_AllSucceed(t *testing.T) {
	sess := newTestSession(t, "a.png", "b.txt")
	fake := &fakeUploader{}

	err := Run(context.Background(), sess, WorkerOptions{NewUploader: fake.factory()})
	require.NoError(t, err)

	snap := sess.Snapshot()
	assert.False(t, snap.Uploading)
	assert.False(t, snap.Failed())
	assert.Equal(t, []Status{success("a.png"), success("b.txt")}, snap.Statuses)

	require.Len(t, fake.calls, 2)
	assert.Equal(t, putCall{Bucket: "my-bucket", Key: "a.png", Body: "content of a.png", ContentType: "text/plain"}, fake.calls[0])
	assert.Equal(t, "b.txt", fake.calls[1].Key)
}

func TestRun_StopsAtFirstFailure(t *testing.T) {
	sess := newTestSession(t, "a.png", "b.txt")
	fake := &fakeUploader{failOn: map[string]error{"b.txt": errors.New("AccessDenied")}}

	err := Run(context.Background(), sess, WorkerOptions{NewUploader: fake.factory()})
	require.NoError(t, err)

	snap := sess.Snapshot()
	assert.False(t, snap.Uploading)
	assert.True(t, snap.Failed())
	assert.Equal(t, []Status{
		success("a.png"),
		{FileName: ErrorKey, Message: "Error: AccessDenied", IsError: true},
	}, snap.Statuses)
}

func TestRun_FailureOnKthFile(t *testing.T) {
	names := []string{"f1", "f2", "f3", "f4", "f5"}

	for k := 1; k <= len(names); k++ {
		t.Run(fmt.Sprintf("k=%d", k), func(t *testing.T) {
			sess := newTestSession(t, names...)
			fake := &fakeUploader{failOn: map[string]error{names[k-1]: errors.New("boom")}}

			require.NoError(t, Run(context.Background(), sess, WorkerOptions{NewUploader: fake.factory()}))

			statuses := sess.Snapshot().Statuses
			require.Len(t, statuses, k)
			for i := 0; i < k-1; i++ {
				assert.Equal(t, success(names[i]), statuses[i])
			}
			last := statuses[k-1]
			assert.True(t, last.IsError)
			assert.Equal(t, ErrorKey, last.FileName)
			assert.Nil(t, last.Progress)
			assert.Empty(t, last.URL)

			// Nothing after the failing file was attempted.
			assert.Equal(t, names[:k], fake.keys())
		})
	}
}

func TestRun_ObserverSeesEveryRecordInOrder(t *testing.T) {
	sess := newTestSession(t, "a.png", "b.txt")
	fake := &fakeUploader{failOn: map[string]error{"b.txt": errors.New("AccessDenied")}}

	var seen []Status
	err := Run(context.Background(), sess, WorkerOptions{
		NewUploader: fake.factory(),
		Observer:    func(s Status) { seen = append(seen, s) },
	})
	require.NoError(t, err)

	require.Len(t, seen, 4)
	assert.Equal(t, Status{FileName: "a.png", Message: "Uploading a.png...", Progress: progress(0)}, seen[0])
	assert.Equal(t, success("a.png"), seen[1])
	assert.Equal(t, Status{FileName: "b.txt", Message: "Uploading b.txt...", Progress: progress(0)}, seen[2])
	assert.True(t, seen[3].IsError)
}

func TestRun_UploadingFlagDuringRun(t *testing.T) {
	sess := newTestSession(t, "a.png")

	var during bool
	var inflight []Status
	err := Run(context.Background(), sess, WorkerOptions{
		NewUploader: func(context.Context, Credentials) (storage.Uploader, error) {
			return uploaderFunc(func(ctx context.Context, req *storage.UploadRequest) (*storage.UploadResult, error) {
				snap := sess.Snapshot()
				during = snap.Uploading
				inflight = snap.Statuses
				return &storage.UploadResult{}, nil
			}), nil
		},
	})
	require.NoError(t, err)

	assert.True(t, during)
	assert.Equal(t, []Status{{FileName: "a.png", Message: "Uploading a.png...", Progress: progress(0)}}, inflight)
	assert.False(t, sess.Snapshot().Uploading)
}

type uploaderFunc func(context.Context, *storage.UploadRequest) (*storage.UploadResult, error)

func (f uploaderFunc) Upload(ctx context.Context, req *storage.UploadRequest) (*storage.UploadResult, error) {
	return f(ctx, req)
}

func TestRun_RejectsReentrantSubmission(t *testing.T) {
	sess := newTestSession(t, "a.png")

	var nested error
	err := Run(context.Background(), sess, WorkerOptions{
		NewUploader: func(ctx context.Context, creds Credentials) (storage.Uploader, error) {
			nested = Run(ctx, sess, WorkerOptions{NewUploader: (&fakeUploader{}).factory()})
			return &fakeUploader{}, nil
		},
	})
	require.NoError(t, err)
	assert.ErrorIs(t, nested, ErrUploadInProgress)
	assert.Equal(t, []Status{success("a.png")}, sess.Snapshot().Statuses)
}

func TestRun_RejectedSubmissions(t *testing.T) {
	t.Run("no files", func(t *testing.T) {
		sess := NewSession(testCredentials())
		err := Run(context.Background(), sess, WorkerOptions{NewUploader: (&fakeUploader{}).factory()})
		assert.ErrorIs(t, err, ErrNoFiles)
		assert.False(t, sess.Snapshot().Uploading)
	})

	t.Run("invalid credentials", func(t *testing.T) {
		sess := NewSession(Credentials{Bucket: "b", Region: "eu-west-1"})
		sess.Selection().Pick([]selection.FileHandle{selection.FromBytes("a.png", "image/png", []byte("a"))})

		err := Run(context.Background(), sess, WorkerOptions{NewUploader: (&fakeUploader{}).factory()})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "access key is required")
		assert.Empty(t, sess.Snapshot().Statuses)
	})
}

func TestRun_ClearsPreviousBatch(t *testing.T) {
	sess := newTestSession(t, "a.png", "b.txt")
	fake := &fakeUploader{failOn: map[string]error{"a.png": errors.New("NoSuchBucket")}}
	require.NoError(t, Run(context.Background(), sess, WorkerOptions{NewUploader: fake.factory()}))
	require.True(t, sess.Snapshot().Failed())

	// The secret key is forgotten after every run and has to be supplied
	// again for the next one.
	sess.mu.Lock()
	sess.credentials = testCredentials()
	sess.mu.Unlock()
	sess.Selection().Pick([]selection.FileHandle{selection.FromBytes("c.txt", "text/plain", []byte("c"))})
	require.NoError(t, Run(context.Background(), sess, WorkerOptions{NewUploader: (&fakeUploader{}).factory()}))

	assert.Equal(t, []Status{success("c.txt")}, sess.Snapshot().Statuses)
}

func TestRun_ReleasesFilesAndSecret(t *testing.T) {
	tests := []struct {
		name        string
		newUploader func(f *fakeUploader) UploaderFunc
		failOn      map[string]error
	}{
		{
			name:        "success",
			newUploader: func(f *fakeUploader) UploaderFunc { return f.factory() },
		},
		{
			name:        "transfer failure",
			newUploader: func(f *fakeUploader) UploaderFunc { return f.factory() },
			failOn:      map[string]error{"b.txt": errors.New("AccessDenied")},
		},
		{
			name: "uploader construction failure",
			newUploader: func(*fakeUploader) UploaderFunc {
				return func(context.Context, Credentials) (storage.Uploader, error) {
					return nil, errors.New("no config")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess := newTestSession(t, "a.png", "b.txt")
			fake := &fakeUploader{failOn: tt.failOn}

			var secretSeen string
			build := tt.newUploader(fake)
			err := Run(context.Background(), sess, WorkerOptions{
				NewUploader: func(ctx context.Context, creds Credentials) (storage.Uploader, error) {
					secretSeen = creds.SecretKey
					return build(ctx, creds)
				},
			})
			require.NoError(t, err)

			assert.Equal(t, "SK", secretSeen)
			assert.Equal(t, 0, sess.Selection().Len())
			creds := sess.Credentials()
			assert.Empty(t, creds.SecretKey)
			assert.Equal(t, "AK", creds.AccessKey)
			assert.Equal(t, "my-bucket", creds.Bucket)
			assert.NotEmpty(t, sess.Snapshot().Statuses)
		})
	}
}

func TestRun_RejectedSubmissionKeepsSelection(t *testing.T) {
	sess := newTestSession(t, "a.png")
	_, _, err := sess.begin()
	require.NoError(t, err)

	err = Run(context.Background(), sess, WorkerOptions{NewUploader: (&fakeUploader{}).factory()})
	assert.ErrorIs(t, err, ErrUploadInProgress)
	assert.Equal(t, 1, sess.Selection().Len())
	assert.Equal(t, "SK", sess.Credentials().SecretKey)
}

func TestRun_PrefersUploaderURL(t *testing.T) {
	sess := newTestSession(t, "a.png")

	err := Run(context.Background(), sess, WorkerOptions{
		NewUploader: func(context.Context, Credentials) (storage.Uploader, error) {
			return uploaderFunc(func(ctx context.Context, req *storage.UploadRequest) (*storage.UploadResult, error) {
				return &storage.UploadResult{Key: req.Key, URL: "https://cdn.example.com/" + req.Key, ETag: `"abc"`}, nil
			}), nil
		},
	})
	require.NoError(t, err)

	statuses := sess.Snapshot().Statuses
	require.Len(t, statuses, 1)
	assert.Equal(t, "https://cdn.example.com/a.png", statuses[0].URL)
}

func TestRun_UploaderConstructionFailure(t *testing.T) {
	sess := newTestSession(t, "a.png")

	err := Run(context.Background(), sess, WorkerOptions{
		NewUploader: func(context.Context, Credentials) (storage.Uploader, error) {
			return nil, errors.New("no config")
		},
	})
	require.NoError(t, err)

	snap := sess.Snapshot()
	require.Len(t, snap.Statuses, 1)
	assert.True(t, snap.Statuses[0].IsError)
	assert.Equal(t, "Error: upload: failed to create uploader: no config", snap.Statuses[0].Message)
}

func TestRun_ReadFailure(t *testing.T) {
	sess := NewSession(testCredentials())
	sess.Selection().Pick([]selection.FileHandle{
		selection.New("broken.bin", "", 0, func() (io.ReadCloser, error) {
			return nil, errors.New("permission denied")
		}),
	})
	fake := &fakeUploader{}

	require.NoError(t, Run(context.Background(), sess, WorkerOptions{NewUploader: fake.factory()}))

	snap := sess.Snapshot()
	require.Len(t, snap.Statuses, 1)
	assert.True(t, snap.Statuses[0].IsError)
	assert.Contains(t, snap.Statuses[0].Message, "permission denied")
	assert.Empty(t, fake.calls)
}

type emptyError struct{ Code int }

func (emptyError) Error() string { return "" }

func TestDescribe(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "plain error",
			err:  errors.New("AccessDenied"),
			want: "AccessDenied",
		},
		{
			name: "api error message",
			err:  &smithy.GenericAPIError{Code: "AccessDenied", Message: "Access Denied"},
			want: "Access Denied",
		},
		{
			name: "api error without message falls back to code",
			err:  &smithy.GenericAPIError{Code: "AccessDenied"},
			want: "AccessDenied",
		},
		{
			name: "api error wrapped in storage error",
			err: &storage.Error{Op: "put", Bucket: "b", Key: "k", Err: &smithy.OperationError{
				ServiceID:     "S3",
				OperationName: "PutObject",
				Err:           &smithy.GenericAPIError{Code: "NoSuchBucket", Message: "The specified bucket does not exist"},
			}},
			want: "The specified bucket does not exist",
		},
		{
			name: "storage error is peeled",
			err:  &storage.Error{Op: "put", Bucket: "b", Key: "k", Err: errors.New("connection refused")},
			want: "connection refused",
		},
		{
			name: "empty message is rendered as json",
			err:  emptyError{Code: 7},
			want: `{"Code":7}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Describe(tt.err))
		})
	}
}
