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

import "strings"

// Classify picks the extraction strategy for a whitespace-collapsed statement.
// CREATE_AS is checked first, so a statement matching both rules is CREATE_AS.
func Classify(text string) Kind {
	upper := strings.ToUpper(text)
	switch {
	case strings.Contains(upper, "CREATE TABLE") && strings.Contains(upper, " AS "):
		return KindCreateAs
	case strings.HasPrefix(upper, "CREATE TABLE") && strings.Contains(upper, "("):
		return KindCreatePlain
	default:
		return KindUnrecognized
	}
}
