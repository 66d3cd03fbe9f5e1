package httpx

import (
	"io"
	"strings"

	"github.com/go-resty/resty/v2"
)

// Form assembles a multipart request body: plain fields plus file
// attachments.
type Form struct {
	fields []*resty.MultipartField
}

func NewForm() *Form {
	return &Form{}
}

// AddField appends a plain form field. Repeated names are allowed and sent
// as repeated parts.
func (f *Form) AddField(name, value string) *Form {
	f.fields = append(f.fields, &resty.MultipartField{
		Param:  name,
		Reader: strings.NewReader(value),
	})
	return f
}

// AddFile attaches a file part read from r.
func (f *Form) AddFile(field, fileName string, r io.Reader) *Form {
	f.fields = append(f.fields, &resty.MultipartField{
		Param:    field,
		FileName: fileName,
		Reader:   r,
	})
	return f
}

// Empty reports whether nothing has been added yet.
func (f *Form) Empty() bool {
	return len(f.fields) == 0
}

func (f *Form) apply(req *resty.Request) {
	if len(f.fields) > 0 {
		req.SetMultipartFields(f.fields...)
	}
}
