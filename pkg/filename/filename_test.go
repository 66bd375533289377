package filename

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Solo Leveling", "Solo Leveling"},
		{"What?!", "What？！"},
		{"A/B\\C", "A／B＼C"},
		{`Re: "Zero" <1> | 2`, `Re： ＂Zero＂ ＜1＞ ｜ 2`},
		{"  many   spaces\t\there ", "many spaces here"},
		{"zero\u200bwidth", "zerowidth"},
		{"...-~hidden", "hidden"},
		{"trailing dots...", "trailing dots"},
		{"~tilde~", "tilde～"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := Sanitize(tt.in)
			assert.Equal(t, tt.want, got)
			assert.NoError(t, validateIfNonEmpty(got))
		})
	}
}

func validateIfNonEmpty(s string) error {
	if s == "" {
		return nil
	}
	return Validate(s)
}

func TestJoin(t *testing.T) {
	assert.Equal(t, "Title/12화.zip", Join("Title", "12화.zip"))
	assert.Equal(t, "A／B/ep 1.zip", Join("A/B", " ", "ep  1.zip"))
}

func TestValidate(t *testing.T) {
	valid := []string{"A", "A.zip", "Title/12.zip", "한글 제목/1화.zip"}
	for _, name := range valid {
		assert.NoError(t, Validate(name), name)
	}

	invalid := []string{
		"",
		"   ",
		"/etc/passwd",
		"../escape.zip",
		"a/../b.zip",
		"./a.zip",
		"a//b.zip",
		"what?.zip",
		"a:b.zip",
		"a|b",
		"bad\x00name",
		"back\\slash",
		"dir./file.zip",
		" lead.zip",
	}
	for _, name := range invalid {
		assert.Error(t, Validate(name), "%q should be rejected", name)
	}
}
