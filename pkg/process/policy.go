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

package process

import (
	"bytes"
	"fmt"
)

// ExitPolicy decides whether a non-zero exit still counts as success.
type ExitPolicy int

const (
	// ExitStrict treats every non-zero exit as a failure.
	ExitStrict ExitPolicy = iota

	// ExitTolerateAmbiguous accepts exit code -1 when stderr is empty and
	// stdout is not. Some platforms report -1 for a child that finished
	// normally but whose status could not be collected.
	ExitTolerateAmbiguous

	// ExitTolerateOutput accepts any exit as long as stdout carries data.
	// Used for embedding and reranking, whose output is parsed afterwards.
	ExitTolerateOutput
)

var exitPolicyNames = map[ExitPolicy]string{
	ExitStrict:            "strict",
	ExitTolerateAmbiguous: "tolerate_ambiguous",
	ExitTolerateOutput:    "tolerate_output",
}

func (p ExitPolicy) String() string {
	if name, ok := exitPolicyNames[p]; ok {
		return name
	}
	return fmt.Sprintf("ExitPolicy(%d)", int(p))
}

// ParseExitPolicy parses a policy name. The empty string is ExitStrict.
func ParseExitPolicy(s string) (ExitPolicy, error) {
	if s == "" {
		return ExitStrict, nil
	}
	for p, name := range exitPolicyNames {
		if name == s {
			return p, nil
		}
	}
	return ExitStrict, fmt.Errorf("invalid exit policy %q (valid: strict, tolerate_ambiguous, tolerate_output)", s)
}

// Accepts reports whether out counts as a successful run under p.
func (p ExitPolicy) Accepts(out *CapturedOutput) bool {
	if out.ExitCode == 0 {
		return true
	}
	switch p {
	case ExitTolerateAmbiguous:
		return out.ExitCode == -1 && len(out.Stderr) == 0 && len(out.Stdout) > 0
	case ExitTolerateOutput:
		return len(bytes.TrimSpace(out.Stdout)) > 0
	default:
		return false
	}
}
