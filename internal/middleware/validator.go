package middleware

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Input validation and sanitization utilities

var (
	validate   = validator.New()
	jobIDRegex = regexp.MustCompile(`^analysis_[a-f0-9]{12}$`)
)

// ErrValidation wraps every error returned from this file.
var ErrValidation = errors.New("validation failed")

// ValidateStruct runs the `validate` struct tags and flattens the result
// into a single readable error.
func ValidateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s: %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s: %s", fe.Field(), fe.Tag()))
		}
	}
	return fmt.Errorf("%w: %s", ErrValidation, strings.Join(msgs, "; "))
}

// ValidateURL checks scheme and host. With blockPrivate set, loopback,
// private, link-local and unspecified addresses are rejected (SSRF guard).
func ValidateURL(rawURL string, blockPrivate bool) error {
	if rawURL == "" {
		return fmt.Errorf("%w: URL cannot be empty", ErrValidation)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: invalid URL format: %v", ErrValidation, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: invalid URL scheme: %s (allowed: http, https)", ErrValidation, u.Scheme)
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return fmt.Errorf("%w: URL has no host", ErrValidation)
	}
	if !blockPrivate {
		return nil
	}

	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return fmt.Errorf("%w: localhost/internal IPs are not allowed", ErrValidation)
	}
	if ip := net.ParseIP(host); ip != nil {
		addr, _ := netip.AddrFromSlice(ip)
		addr = addr.Unmap()
		if addr.IsLoopback() || addr.IsPrivate() || addr.IsUnspecified() ||
			addr.IsLinkLocalUnicast() || addr.IsLinkLocalMulticast() {
			return fmt.Errorf("%w: private IP ranges are not allowed", ErrValidation)
		}
	}
	return nil
}

// SanitizeString removes dangerous characters from strings
func SanitizeString(input string) string {
	// Remove null bytes
	input = strings.ReplaceAll(input, "\x00", "")

	// Remove control characters
	var result strings.Builder
	for _, r := range input {
		if r >= 32 || r == '\t' || r == '\n' {
			result.WriteRune(r)
		}
	}

	return strings.TrimSpace(result.String())
}

// SanitizeFileName reduces an uploaded file name to a safe base name.
func SanitizeFileName(name string) (string, error) {
	name = SanitizeString(strings.ReplaceAll(name, "\\", "/"))
	base := filepath.Base(name)
	if base == "." || base == "/" || base == ".." || base == "" {
		return "", fmt.Errorf("%w: invalid file name", ErrValidation)
	}
	var b strings.Builder
	for _, r := range base {
		switch {
		case r == '/', r == ':', r == '*', r == '?', r == '"', r == '<', r == '>', r == '|':
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}
	return b.String(), nil
}

// ValidateJobID validates analysis ID format
func ValidateJobID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: analysis ID cannot be empty", ErrValidation)
	}
	if !jobIDRegex.MatchString(id) {
		return fmt.Errorf("%w: invalid analysis ID format", ErrValidation)
	}
	return nil
}
