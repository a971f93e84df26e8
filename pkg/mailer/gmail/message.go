package gmail

import (
	"bytes"
	"fmt"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/textproto"
	"sort"
	"time"

	"github.com/dmitrymomot/mailcast/pkg/mailer"
)

// buildMessage encodes an RFC 5322 message. Both HTML and text parts are sent as
// multipart/alternative when present.
func buildMessage(from string, email *mailer.Email) ([]byte, error) {
	var buf bytes.Buffer

	headers := map[string]string{
		"From":         from,
		"To":           email.To,
		"Subject":      mime.QEncoding.Encode("utf-8", email.Subject),
		"Date":         time.Now().UTC().Format(time.RFC1123Z),
		"MIME-Version": "1.0",
	}
	if email.ReplyTo != "" {
		headers["Reply-To"] = email.ReplyTo
	}
	for k, v := range email.Headers {
		headers[textproto.CanonicalMIMEHeaderKey(k)] = v
	}

	if email.HTML == "" || email.Text == "" {
		contentType := "text/plain; charset=utf-8"
		content := email.Text
		if email.HTML != "" {
			contentType = "text/html; charset=utf-8"
			content = email.HTML
		}
		headers["Content-Type"] = contentType
		headers["Content-Transfer-Encoding"] = "quoted-printable"
		writeHeaders(&buf, headers)
		if err := writeQP(&buf, content); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	headers["Content-Type"] = fmt.Sprintf("multipart/alternative; boundary=%q", mw.Boundary())
	writeHeaders(&buf, headers)

	for _, part := range []struct{ contentType, content string }{
		{"text/plain; charset=utf-8", email.Text},
		{"text/html; charset=utf-8", email.HTML},
	} {
		w, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {part.contentType},
			"Content-Transfer-Encoding": {"quoted-printable"},
		})
		if err != nil {
			return nil, err
		}
		if err := writeQP(w, part.content); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}
	buf.Write(body.Bytes())
	return buf.Bytes(), nil
}

func writeHeaders(buf *bytes.Buffer, headers map[string]string) {
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(buf, "%s: %s\r\n", k, headers[k])
	}
	buf.WriteString("\r\n")
}

func writeQP(w interface{ Write([]byte) (int, error) }, content string) error {
	qp := quotedprintable.NewWriter(w)
	if _, err := qp.Write([]byte(content)); err != nil {
		return err
	}
	return qp.Close()
}
