package grpc

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/dmitrijs2005/fieldsync/internal/server/models"
	"github.com/dmitrijs2005/fieldsync/internal/server/services"
	"github.com/dmitrijs2005/fieldsync/internal/wire"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func (s *GRPCServer) Ping(ctx context.Context, req *wire.PingRequest) (*wire.PingResponse, error) {
	return &wire.PingResponse{Status: wire.StatusOK}, nil
}

func (s *GRPCServer) SubmitRecord(ctx context.Context, req *wire.SubmitRecordRequest) (*wire.SubmitRecordResponse, error) {
	id, created, err := s.records.SubmitRecord(ctx, &models.Record{
		LocalID:     req.LocalID,
		DeviceID:    deviceIDFromContext(ctx),
		Title:       req.Title,
		Payload:     req.Payload,
		Attachments: req.Attachments,
	})
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	if created {
		s.logger.Info(ctx, "Record accepted", "local_id", req.LocalID, "id", id)
	}
	return &wire.SubmitRecordResponse{ID: id, Created: created}, nil
}

func (s *GRPCServer) RequestUpload(ctx context.Context, req *wire.RequestUploadRequest) (*wire.RequestUploadResponse, error) {
	target, err := s.uploads.PresignUpload(ctx, services.UploadRequest{
		AssetID:     req.AssetID,
		RecordID:    req.RecordID,
		FileName:    req.FileName,
		ContentType: req.ContentType,
		Size:        req.Size,
		Checksum:    req.Checksum,
	})
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &wire.RequestUploadResponse{Key: target.Key, UploadURL: target.UploadURL, PublicURL: target.PublicURL}, nil
}

func (s *GRPCServer) ApplyChange(ctx context.Context, req *wire.ApplyChangeRequest) (*wire.ApplyChangeResponse, error) {
	applied, err := s.records.ApplyChange(ctx, services.Change{
		ID:        req.ChangeID,
		Kind:      req.Kind,
		Operation: req.Operation,
		EntityID:  req.EntityID,
		ParentID:  req.ParentID,
		DeviceID:  deviceIDFromContext(ctx),
		Payload:   req.Payload,
	})
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &wire.ApplyChangeResponse{Applied: applied}, nil
}

// toStatus maps service errors to gRPC codes. Anything unrecognised is
// logged and reported as Internal without details.
func (s *GRPCServer) toStatus(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, common.ErrInvalidRecord), errors.Is(err, common.ErrInvalidChange):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, common.ErrUnsupportedType):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, common.ErrQuotaExceeded):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, common.ErrorNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	s.logger.Error(ctx, err.Error())
	return status.Error(codes.Internal, "internal error")
}
