package validator

import (
	"github.com/civicsafe/api/internal/model"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// RegisterBindings adds the report enums to gin's request validator so
// handlers can use `binding:"reporttype"` and `binding:"reportstatus"`.
func RegisterBindings() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return nil
	}
	if err := v.RegisterValidation("reporttype", func(fl validator.FieldLevel) bool {
		return model.ReportType(fl.Field().String()).Valid()
	}); err != nil {
		return err
	}
	return v.RegisterValidation("reportstatus", func(fl validator.FieldLevel) bool {
		_, ok := model.ParseReportStatus(fl.Field().String())
		return ok
	})
}
