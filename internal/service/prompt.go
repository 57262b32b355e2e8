package service

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/catalpa-cl/espresso/internal/domain/feedback"
)

// Placeholder slots available to criterion prompt templates.
const (
	slotSubmission      = "##submission##"
	slotTaskTitle       = "##task_title##"
	slotTaskDescription = "##task_description##"
	slotTaskContext     = "##task_context##"
	slotCourseName      = "##course_name##"
	slotCourseContext   = "##course_context##"
)

var placeholderPattern = regexp.MustCompile(`##[a-z_]+##`)

// TemplateError reports placeholders left unresolved after rendering.
// The orchestrator treats it like a terminal provider failure for the
// affected criterion.
type TemplateError struct {
	Placeholders []string
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("unresolved placeholders: %s", strings.Join(e.Placeholders, ", "))
}

// RenderPrompt resolves a criterion template against the submission and
// the feedback's task/course context. Rendering is a pure function; any
// ##...## token left after substitution fails with a TemplateError.
func RenderPrompt(template string, f *feedback.Feedback, submission string) (string, error) {
	r := strings.NewReplacer(
		slotSubmission, sanitizePromptInput(submission),
		slotTaskTitle, f.TaskTitle,
		slotTaskDescription, f.TaskDescription,
		slotTaskContext, f.TaskContext,
		slotCourseName, f.CourseName,
		slotCourseContext, f.CourseContext,
	)
	rendered := r.Replace(template)

	if leftover := placeholderPattern.FindAllString(rendered, -1); len(leftover) > 0 {
		return "", &TemplateError{Placeholders: dedupe(leftover)}
	}
	return rendered, nil
}

// sanitizePromptInput strips control characters and common prompt
// injection patterns from learner-supplied text before it is embedded in
// a criterion prompt. This blunts role-override attacks (e.g. "system:
// ignore all previous instructions") hidden inside submissions.
func sanitizePromptInput(s string) string {
	// Strip non-printable control characters (keep newlines, tabs).
	s = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' || r == '\r' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)

	// Neutralize role markers at line beginnings so the model cannot be
	// tricked into treating submission text as system instructions.
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(strings.ToLower(line))
		for _, prefix := range []string{
			"system:", "assistant:", "user:", "[system]", "[assistant]",
			"<|system|>", "<|assistant|>", "<|im_start|>",
			"### system", "### assistant", "### instruction",
		} {
			if strings.HasPrefix(trimmed, prefix) {
				lines[i] = "[sanitized] " + line
				break
			}
		}
	}
	s = strings.Join(lines, "\n")

	// Length cap against context flooding.
	const maxInputLen = 10000
	if len(s) > maxInputLen {
		s = s[:maxInputLen] + "\n[truncated]"
	}

	return s
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
