package mail

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func crlf(s string) []byte {
	return []byte(strings.ReplaceAll(s, "\n", "\r\n"))
}

func TestParseRawPlainText(t *testing.T) {
	raw := crlf(`From: Jane Doe <jane@example.com>
To: maintenance@greatlakesg.com
Cc: someone@example.com
Subject: Re: Ticket #1042 - Broken vent
Date: Mon, 02 Sep 2024 10:00:00 +0000
Message-ID: <abc@example.com>
In-Reply-To: <root@greatlakesg.com>
Content-Type: text/plain; charset=utf-8

The vent is still stuck.
`)
	msg, err := ParseRaw(raw)
	require.NoError(t, err)
	require.Equal(t, "jane@example.com", msg.From)
	require.Equal(t, "Jane Doe", msg.FromName)
	require.Equal(t, []string{"maintenance@greatlakesg.com", "someone@example.com"}, msg.To)
	require.Equal(t, "Re: Ticket #1042 - Broken vent", msg.Subject)
	require.Equal(t, "The vent is still stuck.", msg.Body)
	require.Equal(t, "root@greatlakesg.com", msg.ThreadID)
	require.Equal(t, time.Date(2024, 9, 2, 10, 0, 0, 0, time.UTC), msg.ReceivedAt)
}

func TestParseRawPrefersPlainPartOverHTML(t *testing.T) {
	raw := crlf(`From: bob@example.com
To: electrical@greatlakesg.com
Subject: Lights out
Content-Type: multipart/alternative; boundary="b1"

--b1
Content-Type: text/html; charset=utf-8

<p>html body</p>
--b1
Content-Type: text/plain; charset=utf-8

plain body
--b1--
`)
	msg, err := ParseRaw(raw)
	require.NoError(t, err)
	require.Equal(t, "plain body", msg.Body)
}

func TestParseRawHTMLOnly(t *testing.T) {
	raw := crlf(`From: bob@example.com
To: electrical@greatlakesg.com
Subject: Lights out
Content-Type: text/html; charset=utf-8

<div>Row 4 is dark</div><div>since &amp; before lunch</div>
`)
	msg, err := ParseRaw(raw)
	require.NoError(t, err)
	require.Equal(t, "Row 4 is dark\nsince & before lunch", msg.Body)
}

func TestParseRawDecodesLatin1(t *testing.T) {
	raw := append(crlf(`From: bob@example.com
To: electrical@greatlakesg.com
Subject: =?iso-8859-1?q?Caf=E9?=
Content-Type: text/plain; charset=iso-8859-1

`), []byte("caf\xe9\r\n")...)
	msg, err := ParseRaw(raw)
	require.NoError(t, err)
	require.Equal(t, "Café", msg.Subject)
	require.Equal(t, "café", msg.Body)
}

func TestParseRawRequiresSender(t *testing.T) {
	_, err := ParseRaw(crlf("Subject: hi\n\nbody\n"))
	require.Error(t, err)

	_, err = ParseRaw(nil)
	require.Error(t, err)
}
