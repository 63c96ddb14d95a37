package form

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hitoshi/taskfront/internal/model"
)

const (
	maxNameLength     = 50
	minPasswordLength = 8
	maxSubjectLength  = 10
	maxContentsLength = 50
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// passwordSymbols はパスワードに使える記号。
const passwordSymbols = "@$!%*#?&"

// ValidateName1 は姓を検証する。
func ValidateName1(v string) string {
	return validateName(v, "姓を入力してください", "姓は50文字以内で入力してください")
}

// ValidateName2 は名を検証する。
func ValidateName2(v string) string {
	return validateName(v, "名を入力してください", "名は50文字以内で入力してください")
}

func validateName(v, required, tooLong string) string {
	trimmed := strings.TrimSpace(v)
	if trimmed == "" {
		return required
	}
	if utf8.RuneCountInString(trimmed) > maxNameLength {
		return tooLong
	}
	return ""
}

// ValidateEmail はメールアドレスを検証する。
func ValidateEmail(v string) string {
	if strings.TrimSpace(v) == "" {
		return "メールアドレスを入力してください"
	}
	if !emailPattern.MatchString(v) {
		return "有効なメールアドレスを入力してください"
	}
	return ""
}

// ValidateLoginPassword はログイン時のパスワードを検証する。強度は問わない。
func ValidateLoginPassword(v string) string {
	if v == "" {
		return "パスワードを入力してください"
	}
	return ""
}

// ValidatePassword は登録時のパスワードを検証する。
func ValidatePassword(v string) string {
	if v == "" {
		return "パスワードを入力してください"
	}
	if !isStrongPassword(v) {
		return "パスワードは8文字以上で、英字と数字を含む必要があります"
	}
	return ""
}

// isStrongPassword は英字と数字をそれぞれ1文字以上含み、
// 英数字と許可された記号のみからなる8文字以上の文字列かを判定する。
func isStrongPassword(s string) bool {
	if len(s) < minPasswordLength {
		return false
	}
	var hasLetter, hasDigit bool
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z':
			hasLetter = true
		case '0' <= c && c <= '9':
			hasDigit = true
		case strings.IndexByte(passwordSymbols, c) >= 0:
		default:
			return false
		}
	}
	return hasLetter && hasDigit
}

// ValidateConfirmPassword は確認用パスワードを検証する。
func ValidateConfirmPassword(password, confirm string) string {
	if confirm == "" {
		return "確認パスワードを入力してください"
	}
	if password != confirm {
		return "パスワードが一致しません"
	}
	return ""
}

// ValidateSubject はTODOのタイトルを検証する。
func ValidateSubject(v string) string {
	if strings.TrimSpace(v) == "" {
		return "タイトルは必須です"
	}
	if utf8.RuneCountInString(v) > maxSubjectLength {
		return "タイトルは10文字以内で入力してください"
	}
	return ""
}

// ValidateContents はTODOの内容を検証する。
// マークアップは表示時に除去するため、ここでは入力のまま文字数を数える。
func ValidateContents(v string) string {
	if utf8.RuneCountInString(v) > maxContentsLength {
		return "内容は50文字以内で入力してください"
	}
	return ""
}

// ValidateDueDate は期日を検証する。nowの日付と日単位で比較し、過去日を拒否する。
func ValidateDueDate(v string, now time.Time) string {
	if strings.TrimSpace(v) == "" {
		return "期日は必須です"
	}
	due, err := time.ParseInLocation(model.DateLayout, strings.TrimSpace(v), now.Location())
	if err != nil {
		return "期日はYYYY-MM-DD形式で入力してください"
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if due.Before(today) {
		return "今日以降の日付を選択してください"
	}
	return ""
}
