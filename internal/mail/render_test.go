package mail

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRenderHTMLDropsRawHTML(t *testing.T) {
	out, err := RenderHTML("Ticket #12 - Created\n\nHello <script>alert(1)</script>")
	require.NoError(t, err)
	require.Contains(t, out, "Ticket #12 - Created")
	require.NotContains(t, out, "<script>")
}

func TestHTMLToText(t *testing.T) {
	require.Equal(t, "one\ntwo", HTMLToText("<p>one</p><p>two</p>"))
	require.Equal(t, "a\n\nb", HTMLToText("a<br><br><br><br>b"))
	require.Equal(t, "", HTMLToText("<style>p{}</style>"))
}
