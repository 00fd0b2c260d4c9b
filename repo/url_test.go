package repo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseURL(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    Ref
		wantErr bool
	}{
		{"https", "https://github.com/acme/widgets", Ref{"github.com", "acme", "widgets"}, false},
		{"https git suffix", "https://github.com/acme/widgets.git", Ref{"github.com", "acme", "widgets"}, false},
		{"trailing slash", "https://GitHub.com/acme/widgets/", Ref{"github.com", "acme", "widgets"}, false},
		{"scp", "git@github.com:acme/widgets.git", Ref{"github.com", "acme", "widgets"}, false},
		{"scp no suffix", "git@gitlab.com:team/tool", Ref{"gitlab.com", "team", "tool"}, false},
		{"empty", "", Ref{}, true},
		{"no repo", "https://github.com/acme", Ref{}, true},
		{"too deep", "https://github.com/acme/widgets/tree/main", Ref{}, true},
		{"ftp", "ftp://github.com/acme/widgets", Ref{}, true},
		{"garbage", "not a url", Ref{}, true},
		{"bad chars", "https://github.com/ac me/wid$gets", Ref{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseURL(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRef_Helpers(t *testing.T) {
	r := Ref{Host: "github.com", Owner: "acme", Name: "widgets"}
	assert.Equal(t, "acme/widgets", r.FullName())
	assert.Equal(t, "https://github.com/acme/widgets", r.HTTPSURL())
}
