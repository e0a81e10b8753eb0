package callback

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		url       string
		want      Outcome
		wantIsErr error
	}{
		{
			name: "code",
			url:  "https://host/cb?code=abc123",
			want: AuthorizationCode{Code: "abc123"},
		},
		{
			name: "error-with-description",
			url:  "https://host/cb?error=access_denied&error_description=User+cancelled",
			want: ProviderError{Err: "access_denied", Description: "User cancelled"},
		},
		{
			name: "error-without-description",
			url:  "https://host/cb?error=server_error",
			want: ProviderError{Err: "server_error"},
		},
		{
			name: "error-takes-precedence-over-code",
			url:  "https://host/cb?code=stale&error=access_denied",
			want: ProviderError{Err: "access_denied"},
		},
		{
			name:      "no-query",
			url:       "https://host/cb",
			wantIsErr: ErrMalformedRedirect,
		},
		{
			name:      "unrelated-query",
			url:       "https://host/cb?session_state=xyz",
			wantIsErr: ErrMalformedRedirect,
		},
		{
			name:      "not-a-url",
			url:       "not a url",
			wantIsErr: ErrUnparsableURL,
		},
		{
			name:      "relative-url",
			url:       "/cb?code=abc123",
			wantIsErr: ErrUnparsableURL,
		},
		{
			name:      "empty",
			url:       "",
			wantIsErr: ErrUnparsableURL,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert, require := assert.New(t), require.New(t)
			got, err := Parse(tt.url)
			if tt.wantIsErr != nil {
				require.Error(err)
				assert.ErrorIs(err, tt.wantIsErr)
				assert.Nil(got)
				return
			}
			require.NoError(err)
			assert.Equal(tt.want, got)
		})
	}
}

func TestProviderError_String(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	assert.Equal("access_denied", ProviderError{Err: "access_denied"}.String())
	assert.Equal("access_denied: User cancelled", ProviderError{Err: "access_denied", Description: "User cancelled"}.String())
}
