package values

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEmail(t *testing.T) {
	tests := []struct {
		name    string
		address string
		want    string
		wantErr bool
	}{
		{name: "simple", address: "sec@corp.com", want: "sec@corp.com"},
		{name: "normalized", address: "  SecOps@Corp.COM ", want: "secops@corp.com"},
		{name: "plus tag", address: "user+ai@corp.io", want: "user+ai@corp.io"},
		{name: "empty", address: "", wantErr: true},
		{name: "missing at", address: "corp.com", wantErr: true},
		{name: "missing domain", address: "user@", wantErr: true},
		{name: "no tld", address: "user@localhost", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			email, err := NewEmail(tt.address)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, email.String())
		})
	}
}

func TestEmail_LocalPart(t *testing.T) {
	email, err := NewEmail("Jane.Doe@corp.com")
	require.NoError(t, err)
	assert.Equal(t, "jane.doe", email.LocalPart())
}
