package upload

import "testing"

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"report.pdf":          "report.pdf",
		"../../etc/passwd":    "passwd",
		`..\..\windows\x.ini`: "x.ini",
		"dir/sub/":            "sub",
		"..":                  "upload",
		"":                    "upload",
		".hidden":             "hidden",
		"bad\x00na\nme.txt":   "badname.txt",
		"  spaced.txt  ":      "spaced.txt",
		"/":                   "upload",
	}
	for in, want := range cases {
		if got := SanitizeFilename(in); got != want {
			t.Fatalf("SanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}
