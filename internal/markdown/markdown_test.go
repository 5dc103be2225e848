package markdown

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlainText(t *testing.T) {
	src := "# Build **failed**\n\nStep `test` on [main](https://x.example)\n\n- one\n- two\n"
	assert.Equal(t, "Build failed\nStep test on main\none\ntwo", PlainText(src))
}

func TestPlainTextCodeBlock(t *testing.T) {
	src := "```\nline a\n\nline b\n```\n"
	assert.Equal(t, "line a\nline b", PlainText(src))
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "Title,body", Preview("## Title\n\nbody", 100))
	assert.Equal(t, "Titl…", Preview("## Title\n\nbody", 4))
	assert.Equal(t, "", Preview("", 10))
}

func TestTruncateCountsRunes(t *testing.T) {
	assert.Equal(t, "默认…", Truncate("默认分组", 2))
	assert.Equal(t, "默认", Truncate("默认", 2))
}

func TestEnsureLineBreaks(t *testing.T) {
	got := EnsureLineBreaks("a\nb  \n\nc")
	assert.Equal(t, "a  \nb  \n\nc  ", got)
	assert.False(t, strings.HasSuffix(EnsureLineBreaks(""), " "))
}
