package validation

import (
	"errors"
	"fmt"
	"strings"
)

// Limits bounds request payload sizes. Zero values fall back to defaults
// when installed via SetLimits.
type Limits struct {
	MaxMessageBytes int64
	MaxNameLen      int
	MaxGroupMembers int
}

var limits = Limits{
	MaxMessageBytes: 64 * 1024,
	MaxNameLen:      120,
	MaxGroupMembers: 256,
}

// SetLimits installs configured limits; zero fields keep their defaults.
func SetLimits(l Limits) {
	if l.MaxMessageBytes > 0 {
		limits.MaxMessageBytes = l.MaxMessageBytes
	}
	if l.MaxNameLen > 0 {
		limits.MaxNameLen = l.MaxNameLen
	}
	if l.MaxGroupMembers > 0 {
		limits.MaxGroupMembers = l.MaxGroupMembers
	}
}

// MaxBodyBytes returns the request body cap derived from the message limit.
func MaxBodyBytes() int64 {
	return limits.MaxMessageBytes + 4*1024
}

// ValidateSignup checks signup fields.
func ValidateSignup(email, password, name string) error {
	var errs []string
	if !strings.Contains(email, "@") || len(email) < 3 {
		errs = append(errs, "valid email is required")
	}
	if len(password) < 8 {
		errs = append(errs, "password must be at least 8 characters")
	}
	if err := ValidateName(name); err != nil {
		errs = append(errs, err.Error())
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// ValidateName checks a display or group name.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("name is required")
	}
	if len(name) > limits.MaxNameLen {
		return fmt.Errorf("name exceeds %d characters", limits.MaxNameLen)
	}
	return nil
}

// ValidateSendMessage enforces the tagged-union contract: exactly one of
// toUserID / groupID, and a bounded non-empty text.
func ValidateSendMessage(toUserID, groupID, text string) error {
	if (toUserID == "") == (groupID == "") {
		return errors.New("exactly one of toUserId or groupId is required")
	}
	if text == "" {
		return errors.New("text is required")
	}
	if int64(len(text)) > limits.MaxMessageBytes {
		return fmt.Errorf("text exceeds %d bytes", limits.MaxMessageBytes)
	}
	return nil
}

// ValidateCreateGroup checks group creation fields.
func ValidateCreateGroup(name string, memberIDs []string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if len(memberIDs) > limits.MaxGroupMembers {
		return fmt.Errorf("too many members (max %d)", limits.MaxGroupMembers)
	}
	for _, id := range memberIDs {
		if strings.TrimSpace(id) == "" {
			return errors.New("member ids must be non-empty")
		}
	}
	return nil
}
