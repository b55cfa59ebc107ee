package fsutil

import (
	"strings"
	"testing"

	"github.com/vdavid/cmdr-core/internal/cmdrerrors"
)

func TestValidateFilenameAcceptsUnicode(t *testing.T) {
	if err := ValidateFilename("日本語ファイル.txt"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateFilenameRejectsSlash(t *testing.T) {
	err := ValidateFilename("foo/bar")
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestValidateFilenameRejectsEmpty(t *testing.T) {
	if err := ValidateFilename("   "); err == nil {
		t.Fatalf("expected error for whitespace-only name")
	}
}

func TestValidateFilenameTooLong(t *testing.T) {
	name := strings.Repeat("a", 255)
	err := ValidateFilename(name)
	if !cmdrerrors.Is(err, cmdrerrors.NameTooLong) {
		t.Fatalf("expected NameTooLong, got %v", err)
	}
}

func TestValidateFilenameAt254Bytes(t *testing.T) {
	name := strings.Repeat("a", 254)
	if err := ValidateFilename(name); err != nil {
		t.Fatalf("unexpected error at 254 bytes: %v", err)
	}
}

func TestValidatePathLengthTooLong(t *testing.T) {
	path := "/" + strings.Repeat("a", 1023)
	err := ValidatePathLength(path)
	if !cmdrerrors.Is(err, cmdrerrors.PathTooLong) {
		t.Fatalf("expected PathTooLong, got %v", err)
	}
}

func TestValidatePathLengthAt1023Bytes(t *testing.T) {
	path := "/" + strings.Repeat("a", 1022)
	if err := ValidatePathLength(path); err != nil {
		t.Fatalf("unexpected error at 1023 bytes: %v", err)
	}
}
