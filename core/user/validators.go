package user

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/somabem/erp/core"
	appfs "github.com/somabem/erp/fs"
)

const commonPasswordsPath = "assets/common-passwords.txt.gz"

var (
	allRolesTag  = "allroles"
	allRolesText = "invalid roles"

	moduleTag  = "module"
	moduleText = "unknown module"

	usernameOrEmailTag  = "username_or_email"
	usernameOrEmailText = "one of username or email is required"

	// password policy
	pwdMinLen     = 8
	pwdMinLenTag  = "pwdminlen"
	pwdMinLenText = fmt.Sprintf("password must contain at least %d characters", pwdMinLen)

	pwdNoSpaceTag  = "pwdnospace"
	pwdNoSpaceText = "password must not contain whitespace"

	pwdNotAllNumTag  = "pwdnotallnum"
	pwdNotAllNumText = "password cannot be entirely numeric"

	pwdMaxSim      = .7
	pwdAttrSimTag  = "pwdtoosim"
	pwdAttrSimText = "password cannot be similar to user attributes"

	pwdNoCommonTag  = "pwdnocommon"
	pwdNoCommonText = "password is too common"

	policyTexts = map[string]string{
		pwdMinLenTag:    pwdMinLenText,
		pwdNoSpaceTag:   pwdNoSpaceText,
		pwdNotAllNumTag: pwdNotAllNumText,
		pwdAttrSimTag:   pwdAttrSimText,
		pwdNoCommonTag:  pwdNoCommonText,
	}

	commonPasswords     []string
	loadCommonPasswords sync.Once
)

// RegisterValidators registers the user validation tags and struct rules on validate.
// It must run before any user input is validated.
func RegisterValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(allRolesTag, allRolesValidation)
	core.RegisterCustomTranslation(validate, translator, allRolesTag, allRolesText)

	_ = validate.RegisterValidation(moduleTag, moduleValidation)
	core.RegisterCustomTranslation(validate, translator, moduleTag, moduleText)

	validate.RegisterStructValidation(userStructValidation, NewUser{}, UpdateUser{}, ChangePassword{}, ResetUserPassword{})
	core.RegisterCustomTranslation(validate, translator, usernameOrEmailTag, usernameOrEmailText)
	for tag, text := range policyTexts {
		core.RegisterCustomTranslation(validate, translator, tag, text)
	}
}

func commonPasswordList() []string {
	loadCommonPasswords.Do(func() {
		file, err := appfs.FS.Open(commonPasswordsPath)
		if err != nil {
			return
		}
		defer file.Close()
		gzRdr, err := gzip.NewReader(file)
		if err != nil {
			return
		}
		pwds := make([]string, 0, 20000)
		scanner := bufio.NewScanner(gzRdr)
		for scanner.Scan() {
			pwds = append(pwds, strings.TrimSpace(scanner.Text()))
		}
		sort.Strings(pwds)
		commonPasswords = pwds
	})
	return commonPasswords
}

// Custom Validators

// allRolesValidation checks that provided user roles are all in AllRoles
func allRolesValidation(fl validator.FieldLevel) bool {
	roles, ok := fl.Field().Interface().([]string)
	if !ok {
		return false
	}
	for _, role := range roles {
		if _, known := rolePriorities[role]; !known {
			return false
		}
	}
	return true
}

func moduleValidation(fl validator.FieldLevel) bool {
	return core.Module(fl.Field().String()).Valid()
}

// userStructValidation does struct level validation on the user inputs carrying a password.
func userStructValidation(sl validator.StructLevel) {
	report := func(pwd, tag string) {
		if tag != "" {
			sl.ReportError(pwd, "password", "Password", tag, "")
		}
	}

	switch usr := sl.Current().Interface().(type) {
	case NewUser:
		if len(usr.Username) == 0 && len(usr.Email) == 0 {
			sl.ReportError(usr.Username, "username", "Username", usernameOrEmailTag, "")
			sl.ReportError(usr.Email, "email", "Email", usernameOrEmailTag, "")
		}
		report(usr.Password, passwordPolicy(usr.Password, usr.Name, usr.Username, usr.Email))
	case UpdateUser:
		if usr.Password != "" {
			report(usr.Password, passwordPolicy(usr.Password, usr.Name, usr.Username, usr.Email))
		}
	case ChangePassword:
		report(usr.Password, passwordPolicy(usr.Password, usr.Login))
	case ResetUserPassword:
		report(usr.Password, passwordPolicy(usr.Password))
	}
}

// ValidatePassword applies the password policy with the attributes of u.
func ValidatePassword(pwd string, u User) error {
	if tag := passwordPolicy(pwd, u.Name, u.Username, u.Email); tag != "" {
		return core.NewFieldError("password", policyTexts[tag])
	}
	return nil
}

// passwordPolicy returns the tag of the first rule pwd breaks, "" if none:
// - minLen: 8
// - no whitespace
// - no all numeric
// - no user attrs similarity
// - no common password
func passwordPolicy(pwd string, attrs ...string) string {
	var digitCount int

	// - minLen: 8
	pwdLen := len([]rune(pwd))
	if pwdLen < pwdMinLen {
		return pwdMinLenTag
	}
	for _, char := range pwd {
		// - no whitespace
		if unicode.IsSpace(char) {
			return pwdNoSpaceTag
		}
		if unicode.IsDigit(char) {
			digitCount++
		}
	}

	// - not all numeric
	if digitCount == pwdLen {
		return pwdNotAllNumTag
	}

	// - no user attrs similarity
	lpwd := strings.ToLower(pwd)
	for _, attr := range attrs {
		if SimilarityRatio(lpwd, strings.ToLower(attr)) >= pwdMaxSim {
			return pwdAttrSimTag
		}
	}

	// - no common passwords
	common := commonPasswordList()
	if idx := sort.SearchStrings(common, lpwd); idx < len(common) && common[idx] == lpwd {
		return pwdNoCommonTag
	}
	return ""
}

// SimilarityRatio is the difflib similarity of two strings, between 0 and 1.
func SimilarityRatio(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	return difflib.NewMatcher(strings.Split(a, ""), strings.Split(b, "")).QuickRatio()
}

// PasswordStrength scores pwd from 0 to 100: 25 points each for a length of at least 8,
// mixed case, a digit and a special character.
func PasswordStrength(pwd string) int {
	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, char := range pwd {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsDigit(char):
			hasDigit = true
		default:
			hasSpecial = true
		}
	}

	var score int
	if len([]rune(pwd)) >= pwdMinLen {
		score += 25
	}
	if hasUpper && hasLower {
		score += 25
	}
	if hasDigit {
		score += 25
	}
	if hasSpecial {
		score += 25
	}
	return score
}
