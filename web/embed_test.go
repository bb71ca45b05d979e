package web_test

import (
	"io/fs"
	"testing"

	"github.com/aranya-one/toastd/web"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatic_ContainsClient(t *testing.T) {
	static, err := web.Static()
	require.NoError(t, err)

	for _, name := range []string{"index.html", "toast.js", "toast.css"} {
		data, readErr := fs.ReadFile(static, name)
		require.NoError(t, readErr, name)
		assert.NotEmpty(t, data, name)
	}

	script, err := fs.ReadFile(static, "toast.js")
	require.NoError(t, err)
	assert.Contains(t, string(script), `"/ws"`)
	assert.Contains(t, string(script), "exponentialRampToValueAtTime")
}
