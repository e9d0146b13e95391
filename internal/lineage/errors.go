/*
 * Copyright 2025 Google LLC
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *    https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */
package lineage

import "fmt"

// ResolutionError is returned when a single statement cannot be resolved or
// its columns cannot be extracted. The pipeline logs it and moves on.
type ResolutionError struct {
	Statement string
	Msg       string
	Err       error
}

func (e *ResolutionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("lineage resolution error: %s: %v", e.Msg, e.Err)
	}
	return fmt.Sprintf("lineage resolution error: %s", e.Msg)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

func newResolutionError(stmt, msg string) *ResolutionError {
	return &ResolutionError{Statement: stmt, Msg: msg}
}
