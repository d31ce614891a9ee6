package settlement

import (
	"encoding/base64"
	"testing"
)

func TestExtractAccountID(t *testing.T) {
	tests := []struct {
		name    string
		comment string
		want    int64
		ok      bool
	}{
		{"tg prefix", "tg:555555555", 555555555, true},
		{"plain digits", "123456789", 123456789, true},
		{"digits inside text", "payment for tg:987654321 thanks", 987654321, true},
		{"minimum length", "12345678", 12345678, true},
		{"maximum length", "123456789012", 123456789012, true},
		{"too short", "1234567", 0, false},
		{"no digits", "hello there", 0, false},
		{"empty", "", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractAccountID(tt.comment)
			if ok != tt.ok || got != tt.want {
				t.Errorf("ExtractAccountID(%q) = (%d, %v), want (%d, %v)", tt.comment, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestDecodeRawBody(t *testing.T) {
	withOp := func(s string) string {
		return base64.StdEncoding.EncodeToString(append([]byte{0, 0, 0, 0}, []byte(s)...))
	}
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"not base64", "%%%", ""},
		{"text after op tag", withOp("tg:555555555"), "tg:555555555"},
		{"url-safe alphabet", base64.URLEncoding.EncodeToString(append([]byte{0, 0, 0, 0}, []byte("hello")...)), "hello"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DecodeRawBody(tt.in); got != tt.want {
				t.Errorf("DecodeRawBody(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
