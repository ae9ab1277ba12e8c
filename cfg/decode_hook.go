package cfg

import (
	"fmt"
	"reflect"
	"strconv"

	"github.com/mitchellh/mapstructure"
)

func hookFunc() mapstructure.DecodeHookFuncType {
	return func(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
		if f.Kind() != reflect.String {
			return data, nil
		}
		s := data.(string)
		switch t {
		case reflect.TypeOf(Octal(0)):
			v, err := strconv.ParseInt(s, 8, 32)
			if err != nil {
				return nil, fmt.Errorf("invalid octal mode %q: %w", s, err)
			}
			return v, nil
		case reflect.TypeOf(BackendKind("")):
			return BackendKind(s), nil
		default:
			return data, nil
		}
	}
}

// DecodeHook composes the custom type decoders above with mapstructure's
// standard TextUnmarshaler/duration/slice hooks, the same composition the
// teacher's cfg.DecodeHook uses.
func DecodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		hookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
}
