package service

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/kevinaaaquil/library/common"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var validate = newValidator()

// newValidator reports fields by their JSON names so error messages match
// request bodies.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func validateStruct(s any) error {
	if err := validate.Struct(s); err != nil {
		return common.FromValidation(err)
	}
	return nil
}

func parseID(field, hex string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return primitive.NilObjectID, common.InvalidID(field)
	}
	return id, nil
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}
