package cache

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// validate is the schema layer every value read back from the store must
// pass. Validation failure is a cache miss, never an error.
var validate = validator.New()

func encodeValue[T any](kind, id string, v T) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", errors.Wrapf(err, "cache: encoding %s %s", kind, id)
	}
	return string(data), nil
}

// decodeValue parses a raw store value through the entity schema. Anything
// that fails to parse or validate is reported as absent so a corrupt entry
// can never break a read path that would otherwise succeed.
func decodeValue[T any](logger *zap.Logger, kind, raw string) (T, bool) {
	var zero T
	var v T
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		logger.Warn("discarding unreadable cache entry",
			zap.String("kind", kind), zap.Error(err))
		return zero, false
	}
	if err := validate.Struct(v); err != nil {
		logger.Warn("discarding invalid cache entry",
			zap.String("kind", kind), zap.Error(err))
		return zero, false
	}
	return v, true
}
