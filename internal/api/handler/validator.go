package handler

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/atakdmr/student-attendance/internal/model"
)

// RegisterValidators 在 gin 的校验引擎上注册自定义标签
//
//	attendance_status  present / absent / late / excused
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return nil
	}
	return v.RegisterValidation("attendance_status", func(fl validator.FieldLevel) bool {
		return model.IsValidAttendanceStatus(fl.Field().String())
	})
}
