// Package payload turns a finalized generation request into the wire body sent to the
// generation backend.
package payload

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"strings"
	"time"

	"tattty/internal/domain"
)

// Encoding identifies the shape of a SubmissionBody.
type Encoding string

const (
	EncodingJSON      Encoding = "json"
	EncodingMultipart Encoding = "multipart"
)

// Part is one field of a multipart body. File parts carry a filename and MIME type.
type Part struct {
	Name     string
	Value    string
	Filename string
	MIME     string
	Data     []byte
}

// IsFile reports whether the part carries binary image data.
func (p Part) IsFile() bool { return p.Data != nil }

// SubmissionBody is either JSON bytes or an ordered list of multipart parts. It carries
// no content type; the boundary is chosen by the writer at send time.
type SubmissionBody struct {
	Encoding Encoding
	JSON     []byte
	Parts    []Part
}

// jsonRequest mirrors domain.FinalizedRequest with the timestamp in RFC 3339.
type jsonRequest struct {
	SourceCard domain.SourceCard     `json:"sourceCard"`
	Options    domain.RequestOptions `json:"options"`
	SessionID  string                `json:"sessionId"`
	Timestamp  string                `json:"timestamp"`
	UserID     string                `json:"userId,omitempty"`
}

// Serialize encodes req. Without images the body is a JSON document; with images it is
// a list of string parts followed by images[0]..images[N-1] in order. Serialize is
// deterministic for a given request.
func Serialize(req domain.FinalizedRequest) (SubmissionBody, error) {
	ts := formatTimestamp(req.Timestamp)
	if len(req.SourceCard.Images) == 0 {
		data, err := json.Marshal(jsonRequest{
			SourceCard: req.SourceCard,
			Options:    req.Options,
			SessionID:  req.SessionID,
			Timestamp:  ts,
			UserID:     req.UserID,
		})
		if err != nil {
			return SubmissionBody{}, fmt.Errorf("payload: encode request: %w", err)
		}
		return SubmissionBody{Encoding: EncodingJSON, JSON: data}, nil
	}

	sourceCard, err := json.Marshal(req.SourceCard)
	if err != nil {
		return SubmissionBody{}, fmt.Errorf("payload: encode sourceCard: %w", err)
	}
	options, err := json.Marshal(req.Options)
	if err != nil {
		return SubmissionBody{}, fmt.Errorf("payload: encode options: %w", err)
	}

	parts := []Part{
		{Name: "sourceCard", Value: string(sourceCard)},
		{Name: "options", Value: string(options)},
		{Name: "sessionId", Value: req.SessionID},
		{Name: "timestamp", Value: ts},
	}
	if req.UserID != "" {
		parts = append(parts, Part{Name: "userId", Value: req.UserID})
	}
	for i, img := range req.SourceCard.Images {
		name := img.Filename
		if name == "" {
			name = fmt.Sprintf("image-%d", i)
		}
		data := img.Data
		if data == nil {
			data = []byte{}
		}
		parts = append(parts, Part{
			Name:     fmt.Sprintf("images[%d]", i),
			Filename: name,
			MIME:     img.MIME,
			Data:     data,
		})
	}
	return SubmissionBody{Encoding: EncodingMultipart, Parts: parts}, nil
}

// ImageParts returns the file parts in order.
func (b SubmissionBody) ImageParts() []Part {
	var out []Part
	for _, p := range b.Parts {
		if p.IsFile() {
			out = append(out, p)
		}
	}
	return out
}

// Field returns the value of the named string part.
func (b SubmissionBody) Field(name string) (string, bool) {
	for _, p := range b.Parts {
		if p.Name == name && !p.IsFile() {
			return p.Value, true
		}
	}
	return "", false
}

// Encode writes the body to w and returns the content type that goes with it. For
// multipart bodies the boundary is generated here.
func (b SubmissionBody) Encode(w io.Writer) (string, error) {
	if b.Encoding == EncodingJSON {
		if _, err := w.Write(b.JSON); err != nil {
			return "", err
		}
		return "application/json", nil
	}
	return b.WriteMultipart(w)
}

// WriteMultipart writes the parts as multipart/form-data and returns the content type
// including the boundary.
func (b SubmissionBody) WriteMultipart(w io.Writer) (string, error) {
	mw := multipart.NewWriter(w)
	for _, p := range b.Parts {
		if !p.IsFile() {
			if err := mw.WriteField(p.Name, p.Value); err != nil {
				return "", fmt.Errorf("payload: write field %s: %w", p.Name, err)
			}
			continue
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fileDisposition(p.Name, p.Filename))
		ct := p.MIME
		if ct == "" {
			ct = "application/octet-stream"
		}
		h.Set("Content-Type", ct)
		fw, err := mw.CreatePart(h)
		if err != nil {
			return "", fmt.Errorf("payload: create part %s: %w", p.Name, err)
		}
		if _, err := fw.Write(p.Data); err != nil {
			return "", fmt.Errorf("payload: write part %s: %w", p.Name, err)
		}
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("payload: close multipart: %w", err)
	}
	return mw.FormDataContentType(), nil
}

// Reader buffers the body and returns it with its content type.
func (b SubmissionBody) Reader() (io.Reader, string, error) {
	var buf bytes.Buffer
	ct, err := b.Encode(&buf)
	if err != nil {
		return nil, "", err
	}
	return &buf, ct, nil
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func fileDisposition(field, filename string) string {
	return fmt.Sprintf(`form-data; name="%s"; filename="%s"`, quoteEscaper.Replace(field), quoteEscaper.Replace(filename))
}
