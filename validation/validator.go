// Package validation 提供客户字段的通用验证函数
package validation

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"custman/errors"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// ValidateRequired 验证必填字段（去除首尾空白后不能为空）
func ValidateRequired(value, fieldName string) error {
	if strings.TrimSpace(value) == "" {
		return errors.NewValidationError(fmt.Sprintf("%s不能为空", fieldName))
	}
	return nil
}

// ValidateEmail 验证邮箱格式
func ValidateEmail(email string) error {
	if email == "" {
		return errors.NewValidationError("邮箱不能为空")
	}
	if !emailRegex.MatchString(email) {
		return errors.NewValidationError("邮箱格式不正确")
	}
	return nil
}

// ValidateDateOfBirth 验证出生日期：必须存在且不能晚于当前时间
func ValidateDateOfBirth(dob time.Time) error {
	if dob.IsZero() {
		return errors.NewValidationError("出生日期不能为空")
	}
	if dob.After(time.Now()) {
		return errors.NewValidationError("出生日期不能晚于当前时间")
	}
	return nil
}

// ValidatePositiveID 验证聚合 ID 为正数
func ValidatePositiveID(id int64, fieldName string) error {
	if id <= 0 {
		return errors.NewValidationError(fmt.Sprintf("%s必须为正数（当前%d）", fieldName, id))
	}
	return nil
}
