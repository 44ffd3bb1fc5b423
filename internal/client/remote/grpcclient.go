package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/dmitrijs2005/fieldsync/internal/netx"
	"github.com/dmitrijs2005/fieldsync/internal/wire"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const defaultRequestTimeout = 30 * time.Second

type GRPCClient struct {
	endpointURL    string
	deviceID       string
	requestTimeout time.Duration
	conn           *grpc.ClientConn
	client         *wire.SyncServiceClient
	httpClient     *http.Client
	dialOpts       []grpc.DialOption
}

type Option func(*GRPCClient)

func WithRequestTimeout(d time.Duration) Option {
	return func(c *GRPCClient) {
		if d > 0 {
			c.requestTimeout = d
		}
	}
}

// WithHTTPClient sets the client used for presigned PUTs.
func WithHTTPClient(h *http.Client) Option {
	return func(c *GRPCClient) { c.httpClient = h }
}

// WithDialOptions appends to the default dial options.
func WithDialOptions(opts ...grpc.DialOption) Option {
	return func(c *GRPCClient) { c.dialOpts = append(c.dialOpts, opts...) }
}

func withDeviceID(ctx context.Context, id string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Set(common.DeviceIDHeaderName, id)
	return metadata.NewOutgoingContext(ctx, md)
}

func (c *GRPCClient) deviceIDInterceptor(
	ctx context.Context,
	method string,
	req, reply any,
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	if c.deviceID != "" {
		ctx = withDeviceID(ctx, c.deviceID)
	}
	return invoker(ctx, method, req, reply, cc, opts...)
}

// NewGRPCClient prepares a client for endpointURL. No connection is made
// until the first call.
func NewGRPCClient(endpointURL, deviceID string, opts ...Option) (*GRPCClient, error) {
	c := &GRPCClient{
		endpointURL:    endpointURL,
		deviceID:       deviceID,
		requestTimeout: defaultRequestTimeout,
		httpClient:     http.DefaultClient,
	}
	for _, o := range opts {
		o(c)
	}

	do := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(c.deviceIDInterceptor),
	}, c.dialOpts...)

	conn, err := grpc.NewClient(c.endpointURL, do...)
	if err != nil {
		return nil, err
	}
	c.conn = conn
	c.client = wire.NewSyncServiceClient(conn)
	return c, nil
}

func (c *GRPCClient) Close() error {
	return c.conn.Close()
}

func (c *GRPCClient) Ping(ctx context.Context) error {
	resp, err := c.client.Ping(ctx, &wire.PingRequest{})
	if err != nil {
		return c.mapError(err)
	}
	if resp.Status != wire.StatusOK {
		return ErrUnavailable
	}
	return nil
}

func (c *GRPCClient) SubmitRecord(ctx context.Context, s Submission) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	resp, err := c.client.SubmitRecord(ctx, &wire.SubmitRecordRequest{
		LocalID:     s.LocalID,
		Title:       s.Title,
		Payload:     s.Payload,
		Attachments: s.Attachments,
	})
	if err != nil {
		return "", c.mapError(err)
	}
	if resp.ID == "" {
		return "", fmt.Errorf("%w: empty record id", ErrRejected)
	}
	return resp.ID, nil
}

func (c *GRPCClient) ApplyChange(ctx context.Context, ch Change) error {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	_, err := c.client.ApplyChange(ctx, &wire.ApplyChangeRequest{
		ChangeID:  ch.ID,
		Kind:      ch.Kind,
		Operation: ch.Operation,
		EntityID:  ch.EntityID,
		ParentID:  ch.ParentID,
		Payload:   ch.Payload,
	})
	return c.mapError(err)
}

// RequestUpload asks the backend for a presigned PUT target.
func (c *GRPCClient) RequestUpload(ctx context.Context, meta AssetMeta) (*wire.RequestUploadResponse, error) {
	resp, err := c.client.RequestUpload(ctx, &wire.RequestUploadRequest{
		AssetID:     meta.AssetID,
		RecordID:    meta.RecordID,
		FileName:    meta.FileName,
		ContentType: meta.MimeType,
		Size:        meta.Size,
		Checksum:    meta.Checksum,
	})
	if err != nil {
		return nil, c.mapError(err)
	}
	if resp.UploadURL == "" || resp.PublicURL == "" {
		return nil, fmt.Errorf("%w: incomplete upload target", ErrRejected)
	}
	return resp, nil
}

// UploadAsset requests a presigned target, PUTs the bytes and returns the
// permanent URL.
func (c *GRPCClient) UploadAsset(ctx context.Context, data []byte, meta AssetMeta) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	target, err := c.RequestUpload(ctx, meta)
	if err != nil {
		return "", err
	}
	if err := netx.UploadToS3PresignedURL(ctx, c.httpClient, target.UploadURL, meta.MimeType, data); err != nil {
		return "", fmt.Errorf("put %s: %w", target.Key, err)
	}
	return target.PublicURL, nil
}

func (c *GRPCClient) mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	st, _ := status.FromError(err)
	switch st.Code() {
	case codes.Unavailable, codes.DeadlineExceeded, codes.Canceled:
		return fmt.Errorf("%w: %s", ErrUnavailable, st.Message())
	case codes.InvalidArgument, codes.FailedPrecondition, codes.AlreadyExists, codes.NotFound:
		return fmt.Errorf("%w: %s", ErrRejected, st.Message())
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}
