package xmltree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToASCII(t *testing.T) {
	cases := map[string]string{
		"plain":          "plain",
		"café":           `caf\xe9`,
		"5€":             `5\u20ac`,
		"ok 😀":           `ok \U0001f600`,
		"bad\xffbyte":    `bad\xffbyte`,
		"":               "",
		"line\nbreak\t!": "line\nbreak\t!",
	}
	for in, want := range cases {
		assert.Equal(t, want, ToASCII(in), "input %q", in)
	}
}

func TestParseWithASCII(t *testing.T) {
	root, err := Parse([]byte(`<r><desc>Résumé</desc></r>`), nil, WithASCII())
	require.NoError(t, err)
	assert.Equal(t, `R\xe9sum\xe9`, OptionalText(root, "desc", ""))
}
