package transport

import (
	"errors"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/stretchr/testify/require"

	"github.com/cuemby/meridian/pkg/coordfail"
)

func TestClassifyPrimaryTransportErr(t *testing.T) {
	cases := []struct {
		name string
		err  error
		kind coordfail.Kind
	}{
		{"unavailable", status.Error(codes.Unavailable, "no route"), coordfail.KindTransportDisconnect},
		{"deadline exceeded", status.Error(codes.DeadlineExceeded, "timed out"), coordfail.KindTransportDisconnect},
		{"canceled", status.Error(codes.Canceled, "bye"), coordfail.KindNodeClosed},
		{"aborted", status.Error(codes.Aborted, "stream aborted"), coordfail.KindNodeClosed},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := classifyPrimaryTransportErr("node-2", c.err)
			cf, ok := err.(*coordfail.Error)
			require.True(t, ok)
			require.Equal(t, c.kind, cf.Kind)
			require.True(t, cf.Kind.Retryable())
		})
	}

	t.Run("application error passes through unchanged", func(t *testing.T) {
		original := status.Error(codes.Internal, "index is corrupt")
		err := classifyPrimaryTransportErr("node-2", original)
		require.Equal(t, original, err)
	})

	t.Run("non-grpc error passes through unchanged", func(t *testing.T) {
		original := errors.New("boom")
		err := classifyPrimaryTransportErr("node-2", original)
		require.Equal(t, original, err)
	})
}
