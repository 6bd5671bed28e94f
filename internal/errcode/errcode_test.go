package errcode

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCode(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		want        int
		recoverable bool
	}{
		{name: "nil", err: nil, want: OK},
		{name: "wrapped validation", err: fmt.Errorf("phone_main: %w", ErrValidation), want: Validation, recoverable: true},
		{name: "not found", err: fmt.Errorf("view 42: %w", ErrNotFound), want: NotFound, recoverable: true},
		{name: "override", err: ErrOverrideRequired, want: OverrideRequired, recoverable: true},
		{name: "persistence", err: fmt.Errorf("%w: upsert: %w", ErrPersistence, errors.New("db down")), want: SystemError},
		{name: "transport", err: fmt.Errorf("send: %w", ErrTransport), want: TransportFailure},
		{name: "unknown", err: errors.New("boom"), want: SystemError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Code(tt.err))
			if tt.err != nil {
				assert.Equal(t, tt.recoverable, Recoverable(tt.err))
			}
		})
	}
}
