package message_test

import (
	"testing"

	"github.com/eslider/mailkit/message"
)

func TestParseHeaderDecodesSubjectAndDate(t *testing.T) {
	raw := []byte("Subject: =?UTF-8?B?SGVsbG8=?=\r\n" +
		"From: Alice <alice@example.com>\r\n" +
		"To: Bob <bob@example.com>\r\n" +
		"Message-Id: <abc@example.com>\r\n" +
		"Date: Mon, 02 Jan 2006 15:04:05 +0000\r\n")

	h, err := message.NewHeaderParser().ParseHeader(raw)
	if err != nil {
		t.Fatalf("ParseHeader: %v", err)
	}
	if h.Subject != "Hello" {
		t.Errorf("Subject = %q, want %q", h.Subject, "Hello")
	}
	if h.From != "Alice <alice@example.com>" {
		t.Errorf("From = %q, want %q", h.From, "Alice <alice@example.com>")
	}
	if h.MessageID != "<abc@example.com>" {
		t.Errorf("MessageID = %q, want %q", h.MessageID, "<abc@example.com>")
	}
	if h.Date.Year() != 2006 {
		t.Errorf("Date.Year() = %d, want 2006", h.Date.Year())
	}
}

func TestParseHeaderPlainSubjectPassesThrough(t *testing.T) {
	raw := []byte("Subject: plain text\r\nFrom: a@example.com\r\n")
	h, err := message.NewHeaderParser().ParseHeader(raw)
	if err != nil {
		t.Fatalf("ParseHeader: %v", err)
	}
	if h.Subject != "plain text" {
		t.Errorf("Subject = %q, want %q", h.Subject, "plain text")
	}
}
