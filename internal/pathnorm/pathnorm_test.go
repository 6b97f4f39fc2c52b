package pathnorm

import "testing"

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"src/main/java/com/acme/App.java": "com/acme/App.java",
		"src/main/python/acme/app.py":     "acme/app.py",
		"src/acme/app.py":                 "acme/app.py",
		"./scripts/deploy.py":             "scripts/deploy.py",
		"./src/acme/app.py":               "acme/app.py",
		"acme/app.py":                     "acme/app.py",
		"src\\acme\\app.py":               "acme/app.py",
		"././scripts/run.py":              "scripts/run.py",
		"src/src/acme/app.py":             "acme/app.py",
	}
	for in, want := range cases {
		if got := Normalize(in); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	paths := []string{
		"src/main/java/com/acme/App.java",
		"./scripts/deploy.py",
		"src/acme/app.py",
		"acme/app.py",
		"lib\\util.js",
		"././scripts/run.py",
		"src/src/acme/app.py",
		"./src/./src/acme/app.py",
		"",
	}
	for _, p := range paths {
		once := Normalize(p)
		if twice := Normalize(once); twice != once {
			t.Errorf("Normalize not idempotent for %q: %q -> %q", p, once, twice)
		}
	}
}
