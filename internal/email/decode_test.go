package email

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeHeaders(t *testing.T) {
	raw := "From: =?utf-8?q?Caf=C3=A9?= <cafe@example.com>\r\n" +
		"Subject: =?UTF-8?B?V2Vla2x5IGRpZ2VzdA==?=\r\n" +
		"Date: Tue, 6 Oct 2026 08:15:00 +0000\r\n" +
		"Message-ID: <abc@example.com>\r\n\r\n"

	rec, err := DecodeHeaders(42, []byte(raw), time.UTC)
	require.NoError(t, err)

	assert.Equal(t, uint32(42), rec.UID)
	assert.Equal(t, "Weekly digest", rec.Subject)
	assert.Equal(t, "Café <cafe@example.com>", rec.Sender)
	assert.Equal(t, "Tue, 6 Oct 2026 08:15:00 +0000", rec.DateRaw)
	assert.Equal(t, "<abc@example.com>", rec.MessageID)
	require.NotNil(t, rec.DateParsed)
	assert.True(t, rec.DateParsed.Equal(time.Date(2026, 10, 6, 8, 15, 0, 0, time.UTC)))
}

func TestDecodeHeadersDefaults(t *testing.T) {
	rec, err := DecodeHeaders(7, []byte("X-Mailer: test\r\n"), time.UTC)
	require.NoError(t, err)

	assert.Equal(t, "No Subject", rec.Subject)
	assert.Equal(t, "Unknown Sender", rec.Sender)
	assert.Equal(t, "Unknown Date", rec.DateRaw)
	assert.Nil(t, rec.DateParsed)
	assert.Empty(t, rec.MessageID)
}

func TestDecodeHeadersTruncates(t *testing.T) {
	long := strings.Repeat("é", 300)
	rec, err := DecodeHeaders(1, []byte("Subject: "+long+"\r\nMessage-ID: <"+strings.Repeat("x", 150)+">\r\n\r\n"), time.UTC)
	require.NoError(t, err)

	assert.Equal(t, 200, len([]rune(rec.Subject)))
	assert.Len(t, rec.MessageID, 100)
}

func TestDecodeHeadersKeepsUndecodableWords(t *testing.T) {
	raw := "Subject: =?x-unknown-charset?q?hello?=\r\n\r\n"
	rec, err := DecodeHeaders(1, []byte(raw), time.UTC)
	require.NoError(t, err)
	assert.NotEmpty(t, rec.Subject)
	assert.NotEqual(t, "No Subject", rec.Subject)
}

func TestDecodeHeadersDoesNotModifyInput(t *testing.T) {
	buf := make([]byte, 0, 64)
	buf = append(buf, "Subject: hi\r\n"...)
	backing := buf[:cap(buf)]
	backing[len(buf)] = 'Z'

	_, err := DecodeHeaders(1, buf, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, byte('Z'), backing[len(buf)])
}

func TestDecodeHeadersMalformed(t *testing.T) {
	_, err := DecodeHeaders(9, []byte("this is not a header line\r\n\r\n"), time.UTC)
	assert.ErrorIs(t, err, ErrDecode)
}

func TestParseDate(t *testing.T) {
	manila, err := time.LoadLocation("Asia/Manila")
	require.NoError(t, err)

	tests := []struct {
		name string
		raw  string
		want *time.Time
	}{
		{"rfc 5322", "Mon, 5 Oct 2026 10:00:00 -0700", ptr(time.Date(2026, 10, 5, 17, 0, 0, 0, time.UTC))},
		{"no weekday", "5 Oct 2026 10:00:00 +0000", ptr(time.Date(2026, 10, 5, 10, 0, 0, 0, time.UTC))},
		{"zone comment", "Mon, 5 Oct 2026 10:00:00 -0700 (PDT)", ptr(time.Date(2026, 10, 5, 17, 0, 0, 0, time.UTC))},
		{"zone-less uses reference zone", "Mon, 5 Oct 2026 10:00:00", ptr(time.Date(2026, 10, 5, 2, 0, 0, 0, time.UTC))},
		{"extra whitespace", "Mon,  5 Oct 2026   10:00:00 +0000", ptr(time.Date(2026, 10, 5, 10, 0, 0, 0, time.UTC))},
		{"garbage", "yesterday-ish", nil},
		{"unknown", "Unknown Date", nil},
		{"empty", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseDate(tt.raw, manila)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.True(t, tt.want.Equal(*got), "got %v", got)
		})
	}
}

func ptr(t time.Time) *time.Time { return &t }
