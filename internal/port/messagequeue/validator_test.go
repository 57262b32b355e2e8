package messagequeue

import "testing"

func TestValidateAcceptsWellFormedSessionEvent(t *testing.T) {
	data := []byte(`{"session_id":"s1","feedback_id":"f1","correlation_id":"c1","status":"success","results":[{"rank":1,"criterion_id":"cr1","status":"success","tokens_total":42}]}`)
	if err := Validate(SubjectSessionCompleted, data); err != nil {
		t.Fatalf("expected valid payload, got %v", err)
	}
}

func TestValidateRejectsInvalidJSON(t *testing.T) {
	if err := Validate(SubjectSessionScored, []byte(`{"session_id":`)); err == nil {
		t.Fatal("expected error for truncated JSON")
	}
}

func TestValidateRejectsWrongShape(t *testing.T) {
	// nps_score must be a number.
	data := []byte(`{"session_id":"s1","nps_score":"nine"}`)
	if err := Validate(SubjectSessionScored, data); err == nil {
		t.Fatal("expected schema validation error")
	}
}

func TestValidateUnknownSubjectPasses(t *testing.T) {
	if err := Validate("feedback.future.subject", []byte(`{"anything":true}`)); err != nil {
		t.Fatalf("unknown subject should pass, got %v", err)
	}
}
