package fields

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"resumedesk/internal/errcode"
)

const maxFreeTextRunes = 2000

var (
	phonePattern    = regexp.MustCompile(`^09\d{9}$`)
	handlePattern   = regexp.MustCompile(`^@?(\w{5,32})$`)
	twoTokenPattern = regexp.MustCompile(`\S+\s+\S+`)
)

// ValidationError 描述用户输入不合法的原因，可通过 errors.Is 判定为 errcode.ErrValidation。
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return errcode.ErrValidation }

// Validator 校验输入并返回规范化后的值。
type Validator func(key, input string) (string, error)

// ValidatePhone 要求 11 位、以 09 开头的手机号。
func ValidatePhone(key, input string) (string, error) {
	v := strings.TrimSpace(input)
	if !phonePattern.MatchString(v) {
		return "", &ValidationError{Field: key, Reason: "expected an 11-digit mobile number starting with 09"}
	}
	return v, nil
}

// ValidateDecimal 要求可解析为十进制数。
func ValidateDecimal(key, input string) (string, error) {
	v := strings.TrimSpace(input)
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return "", &ValidationError{Field: key, Reason: "expected a number, decimals allowed"}
	}
	return strconv.FormatFloat(f, 'f', -1, 64), nil
}

// ValidateFullName 要求至少两个以空白分隔的片段。
func ValidateFullName(key, input string) (string, error) {
	v := strings.Join(strings.Fields(input), " ")
	if !twoTokenPattern.MatchString(v) {
		return "", &ValidationError{Field: key, Reason: "expected first and last name"}
	}
	return v, nil
}

// ValidateHandle 接受 @username 或 username，存储时去掉 @。
func ValidateHandle(key, input string) (string, error) {
	m := handlePattern.FindStringSubmatch(strings.TrimSpace(input))
	if m == nil {
		return "", &ValidationError{Field: key, Reason: "expected @username with 5-32 letters, digits or underscores"}
	}
	return m[1], nil
}

// ValidateFreeText 要求非空且长度受限。
func ValidateFreeText(key, input string) (string, error) {
	v := strings.TrimSpace(input)
	if v == "" {
		return "", &ValidationError{Field: key, Reason: "value must not be empty"}
	}
	if utf8.RuneCountInString(v) > maxFreeTextRunes {
		return "", &ValidationError{Field: key, Reason: fmt.Sprintf("at most %d characters", maxFreeTextRunes)}
	}
	return v, nil
}

// OneOf 返回只接受给定选项的校验器（不区分大小写，返回规范写法）。
func OneOf(options ...string) Validator {
	return func(key, input string) (string, error) {
		v := strings.TrimSpace(input)
		for _, opt := range options {
			if strings.EqualFold(v, opt) {
				return opt, nil
			}
		}
		return "", &ValidationError{Field: key, Reason: "choose one of: " + strings.Join(options, ", ")}
	}
}

// ValidateWorkHistory 接受 "No"、"Yes" 或 "Yes: 说明"。
func ValidateWorkHistory(key, input string) (string, error) {
	v := strings.TrimSpace(input)
	if strings.EqualFold(v, AnswerNo) {
		return AnswerNo, nil
	}
	if strings.EqualFold(v, AnswerYes) {
		return AnswerYes, nil
	}
	if len(v) > len(AnswerYes)+1 && strings.EqualFold(v[:len(AnswerYes)+1], AnswerYes+":") {
		details, err := ValidateFreeText(key, v[len(AnswerYes)+1:])
		if err != nil {
			return "", err
		}
		return WorkHistoryWithDetails(details), nil
	}
	return "", &ValidationError{Field: key, Reason: `expected "Yes", "No" or "Yes: details"`}
}

// WorkHistoryWithDetails 组合 "Yes" 分支的补充说明。
func WorkHistoryWithDetails(details string) string {
	return AnswerYes + ": " + strings.TrimSpace(details)
}
