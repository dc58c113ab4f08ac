package api

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/solatis/mailscore/internal/types"
)

// Auth errors are mapped in the auth interceptor.
// Pattern and value errors map to INVALID_ARGUMENT.
// Database errors map to UNAVAILABLE.
// Context timeouts map to DEADLINE_EXCEEDED.

func invalidArgument(err error) error {
	return status.Error(codes.InvalidArgument, err.Error())
}

func toStatus(err error) error {
	var perr *types.ParseError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &perr),
		errors.Is(err, types.ErrTooFewArguments),
		errors.Is(err, types.ErrTooManyArguments):
		return invalidArgument(err)
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	default:
		return status.Error(codes.Unavailable, err.Error())
	}
}
