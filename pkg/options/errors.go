// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package options

import (
	"errors"
	"fmt"
)

// ErrValidation is the sentinel wrapped by every ValidationError.
var ErrValidation = errors.New("invalid options")

// ValidationError reports an option that is unknown to a mode's schema or
// whose value violates the declared type or range.
type ValidationError struct {
	Mode   Mode
	Option string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s options: %s", e.Mode, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}
