package validation

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid input")

var (
	// UsernameRegex validates usernames, which double as identity keys
	UsernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

	// BookingIDRegex validates booking ids (UUIDs)
	BookingIDRegex = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)
)

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// ValidateUsername validates username
func ValidateUsername(username string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return invalid("username is required")
	}
	if len(username) < 3 {
		return invalid("username must be at least 3 characters")
	}
	if len(username) > 50 {
		return invalid("username is too long (max 50 characters)")
	}
	if !UsernameRegex.MatchString(username) {
		return invalid("username contains invalid characters (only letters, numbers, _, - allowed)")
	}
	return nil
}

// ValidatePassword validates password
func ValidatePassword(password string) error {
	if password == "" {
		return invalid("password is required")
	}
	if len(password) < 8 {
		return invalid("password must be at least 8 characters")
	}
	if len(password) > 128 {
		return invalid("password is too long (max 128 characters)")
	}
	return nil
}

// ValidateVenueName validates a venue name, the venue's identity key
func ValidateVenueName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return invalid("venue name is required")
	}
	if !utf8.ValidString(name) {
		return invalid("venue name contains invalid characters")
	}
	if utf8.RuneCountInString(name) > 100 {
		return invalid("venue name is too long (max 100 characters)")
	}
	if strings.ContainsAny(name, "/\\:") {
		return invalid("venue name must not contain '/', '\\' or ':'")
	}
	return nil
}

// ValidateDisplayName validates a DJ display name
func ValidateDisplayName(name string) error {
	return ValidateStringLength(strings.TrimSpace(name), 1, 80, "dj name")
}

// ValidateBookingID validates booking id format
func ValidateBookingID(id string) error {
	if id == "" {
		return invalid("booking id is required")
	}
	if !BookingIDRegex.MatchString(id) {
		return invalid("invalid booking id format")
	}
	return nil
}

// ValidateStreamingLink validates a streaming URL. An empty link is allowed:
// bookings may be created before the DJ has a stream.
func ValidateStreamingLink(link string) error {
	if link == "" {
		return nil
	}
	if len(link) > 2048 {
		return invalid("streaming link is too long (max 2048 characters)")
	}
	u, err := url.Parse(link)
	if err != nil {
		return invalid("invalid streaming link: %v", err)
	}
	switch u.Scheme {
	case "http", "https", "rtmp", "rtmps":
	default:
		return invalid("invalid streaming link scheme (must be http, https, rtmp or rtmps)")
	}
	if u.Host == "" {
		return invalid("streaming link must have a host")
	}
	return nil
}

// ValidateIP validates an IPv4 or IPv6 address
func ValidateIP(ip string) error {
	if ip == "" {
		return invalid("ip is required")
	}
	if net.ParseIP(ip) == nil {
		return invalid("invalid ip address %q", ip)
	}
	return nil
}

// ValidateStringLength validates string length in runes
func ValidateStringLength(s string, min, max int, fieldName string) error {
	length := utf8.RuneCountInString(s)
	if length < min {
		return invalid("%s must be at least %d characters", fieldName, min)
	}
	if length > max {
		return invalid("%s is too long (max %d characters)", fieldName, max)
	}
	return nil
}
