package remote

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/dmitrijs2005/fieldsync/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

type fakeBackend struct {
	wire.UnimplementedSyncServiceServer

	mu         sync.Mutex
	deviceIDs  []string
	submits    []*wire.SubmitRecordRequest
	changes    []*wire.ApplyChangeRequest
	uploadURL  string
	pingStatus string
	submitErr  error
}

func (f *fakeBackend) recordDevice(ctx context.Context) {
	md, _ := metadata.FromIncomingContext(ctx)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deviceIDs = append(f.deviceIDs, md.Get(common.DeviceIDHeaderName)...)
}

func (f *fakeBackend) Ping(ctx context.Context, _ *wire.PingRequest) (*wire.PingResponse, error) {
	f.recordDevice(ctx)
	st := f.pingStatus
	if st == "" {
		st = wire.StatusOK
	}
	return &wire.PingResponse{Status: st}, nil
}

func (f *fakeBackend) SubmitRecord(ctx context.Context, in *wire.SubmitRecordRequest) (*wire.SubmitRecordResponse, error) {
	f.recordDevice(ctx)
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	f.mu.Lock()
	f.submits = append(f.submits, in)
	f.mu.Unlock()
	return &wire.SubmitRecordResponse{ID: "srv-" + in.LocalID, Created: true}, nil
}

func (f *fakeBackend) RequestUpload(_ context.Context, in *wire.RequestUploadRequest) (*wire.RequestUploadResponse, error) {
	return &wire.RequestUploadResponse{
		Key:       "assets/" + in.AssetID,
		UploadURL: f.uploadURL + "/assets/" + in.AssetID,
		PublicURL: "https://cdn.example/assets/" + in.AssetID,
	}, nil
}

func (f *fakeBackend) ApplyChange(_ context.Context, in *wire.ApplyChangeRequest) (*wire.ApplyChangeResponse, error) {
	f.mu.Lock()
	f.changes = append(f.changes, in)
	f.mu.Unlock()
	return &wire.ApplyChangeResponse{Applied: true}, nil
}

func newTestClient(t *testing.T, backend wire.SyncServiceServer, opts ...Option) *GRPCClient {
	t.Helper()

	lis := bufconn.Listen(1024 * 1024)
	srv := grpc.NewServer()
	wire.RegisterSyncServiceServer(srv, backend)
	go func() { _ = srv.Serve(lis) }()

	dialer := func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }
	opts = append(opts, WithDialOptions(grpc.WithContextDialer(dialer)))

	c, err := NewGRPCClient("passthrough:///bufnet", "device-42", opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = c.Close()
		srv.Stop()
	})
	return c
}

func TestPing_SendsDeviceID(t *testing.T) {
	backend := &fakeBackend{}
	c := newTestClient(t, backend)

	require.NoError(t, c.Ping(context.Background()))
	assert.Equal(t, []string{"device-42"}, backend.deviceIDs)
}

func TestPing_NotOKIsUnavailable(t *testing.T) {
	c := newTestClient(t, &fakeBackend{pingStatus: "DRAINING"})
	assert.ErrorIs(t, c.Ping(context.Background()), ErrUnavailable)
}

func TestSubmitRecord(t *testing.T) {
	backend := &fakeBackend{}
	c := newTestClient(t, backend)

	id, err := c.SubmitRecord(context.Background(), Submission{
		LocalID:     "offline_1_abcdefg",
		Title:       "Inspection",
		Payload:     []byte(`{"ok":true}`),
		Attachments: []string{"https://cdn.example/a"},
	})
	require.NoError(t, err)
	assert.Equal(t, "srv-offline_1_abcdefg", id)
	require.Len(t, backend.submits, 1)
	assert.Equal(t, []string{"https://cdn.example/a"}, backend.submits[0].Attachments)
}

func TestSubmitRecord_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"unavailable", status.Error(codes.Unavailable, "down"), ErrUnavailable},
		{"invalid", status.Error(codes.InvalidArgument, "bad"), ErrRejected},
		{"internal", status.Error(codes.Internal, "oops"), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, &fakeBackend{submitErr: tt.err})
			_, err := c.SubmitRecord(context.Background(), Submission{LocalID: "x"})
			require.Error(t, err)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
			} else {
				assert.False(t, errors.Is(err, ErrUnavailable) || errors.Is(err, ErrRejected))
			}
		})
	}
}

func TestUploadAsset_PutsToPresignedTarget(t *testing.T) {
	var (
		gotPath, gotCT string
		gotBody        []byte
	)
	s3 := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotCT = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer s3.Close()

	backend := &fakeBackend{uploadURL: s3.URL}
	c := newTestClient(t, backend, WithHTTPClient(s3.Client()))

	url, err := c.UploadAsset(context.Background(), []byte("jpeg-bytes"), AssetMeta{
		AssetID: "a1", RecordID: "r1", FileName: "site.jpg", MimeType: "image/jpeg", Size: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/assets/a1", url)
	assert.Equal(t, "/assets/a1", gotPath)
	assert.Equal(t, "image/jpeg", gotCT)
	assert.Equal(t, []byte("jpeg-bytes"), gotBody)
}

func TestUploadAsset_PutFailure(t *testing.T) {
	s3 := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer s3.Close()

	c := newTestClient(t, &fakeBackend{uploadURL: s3.URL}, WithHTTPClient(s3.Client()))
	_, err := c.UploadAsset(context.Background(), []byte("x"), AssetMeta{AssetID: "a1", MimeType: "image/png"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestApplyChange(t *testing.T) {
	backend := &fakeBackend{}
	c := newTestClient(t, backend)

	err := c.ApplyChange(context.Background(), Change{
		ID: "c1", Kind: "comment", Operation: "create", ParentID: "srv-1", Payload: []byte(`{"text":"hi"}`),
	})
	require.NoError(t, err)
	require.Len(t, backend.changes, 1)
	assert.Equal(t, "srv-1", backend.changes[0].ParentID)
}

func TestRequestTimeoutMapsToUnavailable(t *testing.T) {
	c := newTestClient(t, &slowBackend{}, WithRequestTimeout(20*time.Millisecond))

	_, err := c.SubmitRecord(context.Background(), Submission{LocalID: "x"})
	assert.ErrorIs(t, err, ErrUnavailable)
}

type slowBackend struct {
	wire.UnimplementedSyncServiceServer
}

func (slowBackend) SubmitRecord(ctx context.Context, _ *wire.SubmitRecordRequest) (*wire.SubmitRecordResponse, error) {
	<-ctx.Done()
	return nil, status.FromContextError(ctx.Err()).Err()
}
