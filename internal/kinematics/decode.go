package kinematics

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Decode builds the MotionModel described by raw. The object must carry a
// "model" discriminator; the remaining keys belong to the selected model.
//
// Supported models:
//   - "constant": fixed a_acc / a_dcc rates.
func Decode(raw json.RawMessage) (MotionModel, error) {
	if len(raw) == 0 {
		return nil, errors.New("missing \"kinematics\" field")
	}

	var disc struct {
		Model string `json:"model"`
	}
	if err := json.Unmarshal(raw, &disc); err != nil {
		return nil, fmt.Errorf("reading kinematics model discriminator: %w", err)
	}

	switch disc.Model {
	case ConstantModelName:
		var k ConstantAcceleration
		if err := json.Unmarshal(raw, &k); err != nil {
			return nil, fmt.Errorf("parsing constant kinematics: %w", err)
		}
		return k, nil
	}
	return nil, fmt.Errorf("unknown kinematics model %q", disc.Model)
}
