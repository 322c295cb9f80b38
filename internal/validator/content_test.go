package validator

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindBlocked(t *testing.T) {
	v := NewContentValidator(DefaultBlockedTerms)

	tests := []struct {
		texts []string
		want  string
		found bool
	}{
		{[]string{"Fire at the shell station", "Smoke visible from Sussex road"}, "", false},
		{[]string{"Hello", "whatever happened here"}, "", false},
		{[]string{"This is a prank", ""}, "prank", true},
		{[]string{"Title", "what the HELL is going on"}, "hell", true},
		{[]string{"lol!!!"}, "lol", true},
	}

	for _, tt := range tests {
		got, found := v.FindBlocked(tt.texts...)
		assert.Equal(t, tt.found, found, tt.texts)
		assert.Equal(t, tt.want, got, tt.texts)
	}
}

func TestLoadTermsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "terms.txt")
	require.NoError(t, os.WriteFile(path, []byte("# extra terms\nSpam\n\n  scam  \n"), 0o644))

	v := NewContentValidator(nil)
	n, err := v.LoadTermsFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	term, found := v.FindBlocked("obvious scam report")
	assert.True(t, found)
	assert.Equal(t, "scam", term)

	_, err = v.LoadTermsFile(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}
