package resource

import (
	"errors"
	"testing"

	"github.com/tidwall/gjson"

	"tapis-file-proxy/internal/config"
)

func TestIsTapisURL(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"tapis://sys/data.csv", true},
		{"tapis://", true},
		{"https://example.org/x.csv", false},
		{"TAPIS://sys/x", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := IsTapisURL(tt.in); got != tt.want {
				t.Errorf("IsTapisURL(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestRewriter_DownloadURL(t *testing.T) {
	tests := []struct {
		name      string
		publicURL string
		in        string
		want      string
	}{
		{"absolute", "https://catalog.example.org", "tapis://sys/datasets/report.csv", "https://catalog.example.org/tapis-file/sys/datasets/report.csv"},
		{"trailing slash trimmed", "https://catalog.example.org/", "tapis://sys/a.csv", "https://catalog.example.org/tapis-file/sys/a.csv"},
		{"relative", "", "tapis://sys/a.csv", "/tapis-file/sys/a.csv"},
		{"escaped segments", "", "tapis://sys/my dir/a#1.csv", "/tapis-file/sys/my%20dir/a%231.csv"},
		{"non tapis untouched", "https://catalog.example.org", "https://other.org/file.csv", "https://other.org/file.csv"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRewriter(&config.Config{Server: config.ServerConfig{PublicURL: tt.publicURL}})
			if got := r.DownloadURL(tt.in); got != tt.want {
				t.Errorf("DownloadURL(%q) = %q, want %q", tt.in, got, tt.want)
			}
			if got := r.ViewURL(tt.in); got != tt.want {
				t.Errorf("ViewURL(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestRewriter_Show(t *testing.T) {
	r := NewRewriter(&config.Config{Server: config.ServerConfig{PublicURL: "https://catalog.example.org"}})

	doc := []byte(`{"id":"r1","url":"tapis://sys/report.csv","format":"CSV","extras":{"n":1}}`)
	out, err := r.Show(doc)
	if err != nil {
		t.Fatalf("Show() error = %v", err)
	}

	if got := gjson.GetBytes(out, "url").String(); got != "https://catalog.example.org/tapis-file/sys/report.csv" {
		t.Errorf("url = %q", got)
	}
	if got := gjson.GetBytes(out, OriginalURLField).String(); got != "tapis://sys/report.csv" {
		t.Errorf("%s = %q", OriginalURLField, got)
	}
	for _, field := range []string{"id", "format", "extras.n"} {
		if gjson.GetBytes(out, field).Raw != gjson.GetBytes(doc, field).Raw {
			t.Errorf("field %s changed: %s -> %s", field, gjson.GetBytes(doc, field).Raw, gjson.GetBytes(out, field).Raw)
		}
	}
}

func TestRewriter_Show_Passthrough(t *testing.T) {
	r := NewRewriter(&config.Config{})

	for _, doc := range []string{
		`{"url":"https://example.org/a.csv"}`,
		`{"name":"no url"}`,
		`{"url":42}`,
	} {
		t.Run(doc, func(t *testing.T) {
			out, err := r.Show([]byte(doc))
			if err != nil {
				t.Fatalf("Show() error = %v", err)
			}
			if string(out) != doc {
				t.Errorf("Show() = %s, want unchanged %s", out, doc)
			}
		})
	}
}

func TestRewriter_Show_InvalidDocument(t *testing.T) {
	r := NewRewriter(&config.Config{})
	for _, doc := range []string{`[1,2]`, `not json`, `"tapis://x"`} {
		if _, err := r.Show([]byte(doc)); !errors.Is(err, ErrInvalidDocument) {
			t.Errorf("Show(%s) error = %v, want ErrInvalidDocument", doc, err)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr error
	}{
		{"tapis with path", `{"url":"tapis://sys/a.csv"}`, nil},
		{"bare scheme", `{"url":"tapis://"}`, ErrInvalidTapisURL},
		{"http url", `{"url":"https://example.org"}`, nil},
		{"no url", `{"name":"x"}`, nil},
		{"not an object", `[]`, ErrInvalidDocument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate([]byte(tt.doc))
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
