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
package database

import (
	"strings"
)

const (
	StartTag = "<gemini>"
	EndTag   = "</gemini>"
)

// SplitQualifiedName splits "schema.table" into its parts. The schema is
// empty for unqualified names.
func SplitQualifiedName(name string) (schema, table string) {
	if idx := strings.LastIndex(name, "."); idx > 0 {
		return name[:idx], name[idx+1:]
	}
	return "", name
}

// GenerateMetadataCommentString builds the generated part of a column comment:
// the description followed by the tables the column is derived from.
func GenerateMetadataCommentString(data *CommentData) string {
	if data == nil {
		return ""
	}
	var parts []string
	if d := strings.TrimSpace(data.Description); d != "" {
		parts = append(parts, d)
	}
	if len(data.SourceTables) > 0 {
		parts = append(parts, "Derived from: "+strings.Join(data.SourceTables, ", "))
	}
	return strings.Join(parts, " | ")
}

// splitTagged locates the generated section of a comment. ok is false when
// the comment carries no well-formed tag pair.
func splitTagged(comment string) (prefix, inner, suffix string, ok bool) {
	startIndex := strings.Index(comment, StartTag)
	endIndex := strings.LastIndex(comment, EndTag)
	if startIndex == -1 || endIndex == -1 || endIndex <= startIndex {
		return "", "", "", false
	}
	prefix = strings.TrimSpace(comment[:startIndex])
	inner = strings.TrimSpace(comment[startIndex+len(StartTag) : endIndex])
	suffix = strings.TrimSpace(comment[endIndex+len(EndTag):])
	return prefix, inner, suffix, true
}

func joinNonEmpty(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}

// MergeComments combines an existing comment with newly generated metadata.
// Text outside the tags is always preserved. In "append" mode new metadata is
// added to the tagged section, otherwise it replaces it. Empty metadata
// leaves the comment unchanged.
func MergeComments(existingComment string, newMetadataComment string, updateExistingMode string) string {
	trimmedExisting := strings.TrimSpace(existingComment)
	newMetadataComment = strings.TrimSpace(newMetadataComment)
	if newMetadataComment == "" {
		return trimmedExisting
	}

	prefix, inner, suffix, ok := splitTagged(existingComment)
	if !ok {
		return joinNonEmpty(trimmedExisting, StartTag+newMetadataComment+EndTag)
	}

	tagged := newMetadataComment
	if updateExistingMode == "append" && inner != "" {
		tagged = inner + " | " + newMetadataComment
	}
	return joinNonEmpty(prefix, StartTag+tagged+EndTag, suffix)
}

// RemoveGeneratedComment strips the tagged section from a comment.
func RemoveGeneratedComment(existingComment string) string {
	prefix, _, suffix, ok := splitTagged(existingComment)
	if !ok {
		return strings.TrimSpace(existingComment)
	}
	return joinNonEmpty(prefix, suffix)
}

// ExtractGeneratedComment returns the tagged section of a comment, if any.
func ExtractGeneratedComment(comment string) (string, bool) {
	_, inner, _, ok := splitTagged(comment)
	return inner, ok
}
