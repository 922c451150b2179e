package email

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"net/textproto"
	"strings"
	"time"
)

// BuildMIME renders msg as a multipart/mixed RFC 5322 message with an HTML
// part followed by one base64 part per attachment.
func BuildMIME(from string, msg Message) ([]byte, error) {
	if len(msg.To) == 0 {
		return nil, fmt.Errorf("message has no recipients")
	}
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	sender := mail.Address{Name: msg.FromName, Address: from}
	headers := []string{
		"From: " + sender.String(),
		"To: " + strings.Join(msg.To, ", "),
		"Subject: " + mime.QEncoding.Encode("utf-8", msg.Subject),
		"Date: " + time.Now().Format(time.RFC1123Z),
		"MIME-Version: 1.0",
		fmt.Sprintf("Content-Type: multipart/mixed; boundary=%q", mw.Boundary()),
	}
	head := strings.Join(headers, "\r\n") + "\r\n\r\n"

	htmlPart, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {"text/html; charset=UTF-8"},
		"Content-Transfer-Encoding": {"base64"},
	})
	if err != nil {
		return nil, err
	}
	if err := writeBase64(htmlPart, []byte(msg.HTMLBody)); err != nil {
		return nil, err
	}

	for _, a := range msg.Attachments {
		ct := a.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		part, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {mime.FormatMediaType(ct, map[string]string{"name": a.Filename})},
			"Content-Disposition":       {mime.FormatMediaType("attachment", map[string]string{"filename": a.Filename})},
			"Content-Transfer-Encoding": {"base64"},
		})
		if err != nil {
			return nil, err
		}
		if err := writeBase64(part, a.Data); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}
	return append([]byte(head), buf.Bytes()...), nil
}

// writeBase64 wraps encoded output at 76 characters per line.
func writeBase64(w io.Writer, data []byte) error {
	encoded := base64.StdEncoding.EncodeToString(data)
	for len(encoded) > 76 {
		if _, err := fmt.Fprintf(w, "%s\r\n", encoded[:76]); err != nil {
			return err
		}
		encoded = encoded[76:]
	}
	_, err := fmt.Fprintf(w, "%s\r\n", encoded)
	return err
}
