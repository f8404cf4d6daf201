package app

import (
	"io"
	"testing"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want Command
	}{
		{"empty defaults to serve", []string{}, CommandServe},
		{"serve", []string{"serve"}, CommandServe},
		{"worker", []string{"worker"}, CommandWorker},
		{"migrate", []string{"migrate"}, CommandMigrate},
		{"create-admin", []string{"create-admin", "-email", "a@b.c"}, CommandCreateAdmin},
		{"healthcheck", []string{"healthcheck"}, CommandHealthcheck},
		{"unknown defaults to serve", []string{"unknown"}, CommandServe},
		{"ignores extra args", []string{"worker", "--flag", "value"}, CommandWorker},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseCommand(tt.args); got != tt.want {
				t.Errorf("ParseCommand(%v) = %q, want %q", tt.args, got, tt.want)
			}
		})
	}
}

func TestParseCreateAdminFlags_AllFlags(t *testing.T) {
	opts, err := ParseCreateAdminFlags([]string{
		"-email", "registrar@school.edu",
		"-password", "s3cret",
		"-first-name", "Maria",
		"-last-name", "Santos",
		"-role", "admin-enrollment",
	}, io.Discard)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := CreateAdminOptions{
		Email:     "registrar@school.edu",
		Password:  "s3cret",
		FirstName: "Maria",
		LastName:  "Santos",
		Role:      "admin-enrollment",
	}
	if opts != want {
		t.Errorf("opts = %+v, want %+v", opts, want)
	}
}

func TestParseCreateAdminFlags_Defaults(t *testing.T) {
	t.Setenv("ADMIN_PASSWORD", "from-env")

	opts, err := ParseCreateAdminFlags([]string{"-email", "root@school.edu"}, io.Discard)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.Password != "from-env" {
		t.Errorf("Password = %q, want from ADMIN_PASSWORD", opts.Password)
	}
	if opts.Role != "super-admin" || opts.FirstName != "System" || opts.LastName != "Administrator" {
		t.Errorf("defaults = %+v", opts)
	}
}

func TestParseCreateAdminFlags_MissingEmail(t *testing.T) {
	t.Setenv("ADMIN_PASSWORD", "")

	if _, err := ParseCreateAdminFlags([]string{"-password", "x"}, io.Discard); err == nil {
		t.Fatal("expected error without -email")
	}
}

func TestParseCreateAdminFlags_UnknownFlag(t *testing.T) {
	if _, err := ParseCreateAdminFlags([]string{"-bogus"}, io.Discard); err == nil {
		t.Fatal("expected error for unknown flag")
	}
}
