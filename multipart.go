package apicall

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/textproto"
)

// MultipartPart is one form field or file of a MultipartBody.
type MultipartPart struct {
	Name        string
	FileName    string
	ContentType string
	Data        []byte
}

// MultipartBody is a multipart/form-data request body. The client sends it
// with its own boundary Content-Type instead of application/json.
type MultipartBody struct {
	Parts []MultipartPart
}

// AddField appends a plain form field.
func (m *MultipartBody) AddField(name, value string) *MultipartBody {
	m.Parts = append(m.Parts, MultipartPart{Name: name, Data: []byte(value)})
	return m
}

// AddFile appends a file part. An empty contentType means
// application/octet-stream.
func (m *MultipartBody) AddFile(name, fileName, contentType string, data []byte) *MultipartBody {
	m.Parts = append(m.Parts, MultipartPart{Name: name, FileName: fileName, ContentType: contentType, Data: data})
	return m
}

// encode renders the body and returns it with its Content-Type.
func (m *MultipartBody) encode() ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, part := range m.Parts {
		if part.FileName == "" {
			if err := w.WriteField(part.Name, string(part.Data)); err != nil {
				return nil, "", fmt.Errorf("write field %s: %w", part.Name, err)
			}
			continue
		}
		ct := part.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, part.Name, part.FileName))
		h.Set("Content-Type", ct)
		pw, err := w.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("create part %s: %w", part.Name, err)
		}
		if _, err := pw.Write(part.Data); err != nil {
			return nil, "", fmt.Errorf("write part %s: %w", part.Name, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
