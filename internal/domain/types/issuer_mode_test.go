package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIssuerForByMode(t *testing.T) {
	cases := []struct {
		name string
		mode IssuerMode
		base string
		org  string
		want string
	}{
		{"global ignores org", IssuerModeGlobal, "https://auth.example.com", "acme", "https://auth.example.com"},
		{"empty mode is global", "", "https://auth.example.com", "acme", "https://auth.example.com"},
		{"path appends org", IssuerModePath, "https://auth.example.com", "acme", "https://auth.example.com/t/acme"},
		{"path without org falls back", IssuerModePath, "https://auth.example.com", "", "https://auth.example.com"},
		{"trailing slash trimmed", IssuerModePath, "https://auth.example.com/", "acme", "https://auth.example.com/t/acme"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.mode.IssuerFor(tc.base, tc.org))
		})
	}
}

func TestIssuerModeIsValid(t *testing.T) {
	assert.True(t, IssuerMode("").IsValid())
	assert.True(t, IssuerModeGlobal.IsValid())
	assert.True(t, IssuerModePath.IsValid())
	assert.False(t, IssuerMode("domain").IsValid())
}
